package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/servosteer/internal/steer"
)

// PowerSpectrum returns the one-sided power of data with its mean removed.
// Bin k is at k*rate/len(data).
func PowerSpectrum(data []float64) []float64 {
	if len(data) < 2 {
		return nil
	}
	mean := stat.Mean(data, nil)
	centred := make([]float64, len(data))
	for i, v := range data {
		centred[i] = v - mean
	}

	coeffs := fft.FFTReal(centred)
	ps := make([]float64, len(coeffs)/2+1)
	for i := range ps {
		a := cmplx.Abs(coeffs[i])
		ps[i] = a * a
	}
	return ps
}

type Peak struct {
	Freq  float64 // Hz
	Power float64
	// Share is the peak's fraction of total power.
	Share float64
}

// Dominant finds the strongest non-DC frequency of data sampled at rate Hz.
func Dominant(data []float64, rate float64) Peak {
	ps := PowerSpectrum(data)
	if len(ps) < 2 {
		return Peak{}
	}
	total := floats.Sum(ps[1:])
	if total == 0 {
		return Peak{}
	}
	k := floats.MaxIdx(ps[1:]) + 1
	return Peak{
		Freq:  float64(k) * rate / float64(len(data)),
		Power: ps[k],
		Share: ps[k] / total,
	}
}

// Errors extracts the error signal of a run.
func Errors(reports []steer.Report) []float64 {
	out := make([]float64, len(reports))
	for i, r := range reports {
		out[i] = r.LastError
	}
	return out
}

// Outputs extracts the servo command of a run.
func Outputs(reports []steer.Report) []float64 {
	out := make([]float64, len(reports))
	for i, r := range reports {
		out[i] = r.Output
	}
	return out
}

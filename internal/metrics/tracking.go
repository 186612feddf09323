package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/servosteer/internal/steer"
)

// TrackingError is the mean absolute error, the per-cycle integral of
// absolute error.
type TrackingError struct {
	sum     float64
	samples int
}

func NewTrackingError() *TrackingError { return &TrackingError{} }

func (e *TrackingError) Name() string { return "mean_abs_error" }

func (e *TrackingError) Observe(r steer.Report) {
	e.sum += math.Abs(r.LastError)
	e.samples++
}

func (e *TrackingError) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.sum / float64(e.samples)
}

func (e *TrackingError) Reset() {
	e.sum = 0
	e.samples = 0
}

// ErrorSpread is the sample standard deviation of the error.
type ErrorSpread struct {
	errs []float64
}

func NewErrorSpread() *ErrorSpread { return &ErrorSpread{} }

func (e *ErrorSpread) Name() string { return "error_stddev" }

func (e *ErrorSpread) Observe(r steer.Report) {
	e.errs = append(e.errs, r.LastError)
}

func (e *ErrorSpread) Value() float64 {
	if len(e.errs) < 2 {
		return 0
	}
	return stat.StdDev(e.errs, nil)
}

func (e *ErrorSpread) Reset() {
	e.errs = e.errs[:0]
}

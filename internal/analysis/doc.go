// Package analysis inspects recorded runs:
//
//   - [PowerSpectrum] and [Dominant]: frequency content of the error signal,
//     used to spot oscillation from aggressive gains
//   - [NewPhasePortrait]: error against error rate, rendered with [PhasePortrait.ASCII]
//
// # Oscillation
//
// A well-tuned loop puts most of the error energy near zero frequency:
//
//	peak := analysis.Dominant(errs, rateHz)
//	if peak.Share > 0.5 && peak.Freq > 0 {
//	    // Loop is ringing at peak.Freq
//	}
package analysis

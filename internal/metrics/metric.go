// Package metrics scores a run of regulation cycles.
package metrics

import (
	"context"

	"github.com/san-kum/servosteer/internal/steer"
)

type Metric interface {
	Name() string
	Observe(r steer.Report)
	Value() float64
	Reset()
}

// Set observes every metric it holds. It is a steer.Reporter so it can ride
// along with a running loop.
type Set []Metric

// Standard is the set recorded with every stored run.
func Standard() Set {
	return Set{
		NewTrackingError(),
		NewErrorSpread(),
		NewControlEffort(),
		NewSaturation(),
		NewStability(DefaultTolerance),
		NewSettling(DefaultTolerance),
	}
}

func (s Set) Report(_ context.Context, r steer.Report) error {
	for _, m := range s {
		m.Observe(r)
	}
	return nil
}

func (s Set) Values() map[string]float64 {
	out := make(map[string]float64, len(s))
	for _, m := range s {
		out[m.Name()] = m.Value()
	}
	return out
}

func (s Set) Reset() {
	for _, m := range s {
		m.Reset()
	}
}

// Summarize scores recorded reports with the standard set.
func Summarize(reports []steer.Report) map[string]float64 {
	s := Standard()
	for _, r := range reports {
		s.Report(context.Background(), r)
	}
	return s.Values()
}

package metrics

import (
	"math"

	"github.com/san-kum/servosteer/internal/steer"
)

// DefaultTolerance is the error band, in degrees, that counts as on target.
const DefaultTolerance = 2.0

// Stability is the fraction of cycles with the error inside the tolerance.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(r steer.Report) {
	s.samples++
	if math.Abs(r.LastError) > s.threshold {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// Settling is the first cycle after which the error stayed inside the
// tolerance, or -1 if the run ended outside it.
type Settling struct {
	threshold float64
	since     int
	settled   bool
}

func NewSettling(threshold float64) *Settling {
	return &Settling{threshold: threshold}
}

func (s *Settling) Name() string { return "settling_cycle" }

func (s *Settling) Observe(r steer.Report) {
	if math.Abs(r.LastError) > s.threshold {
		s.settled = false
		return
	}
	if !s.settled {
		s.settled = true
		s.since = r.Cycle
	}
}

func (s *Settling) Value() float64 {
	if !s.settled {
		return -1
	}
	return float64(s.since)
}

func (s *Settling) Reset() {
	s.since = 0
	s.settled = false
}

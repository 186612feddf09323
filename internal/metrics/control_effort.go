package metrics

import (
	"math"

	"github.com/san-kum/servosteer/internal/steer"
)

// ControlEffort is the mean servo deflection from target in degrees.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(r steer.Report) {
	c.sum += math.Abs(r.Offset())
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

// Saturation is the fraction of cycles whose output sat on a bound.
type Saturation struct {
	hits    int
	samples int
}

func NewSaturation() *Saturation { return &Saturation{} }

func (s *Saturation) Name() string { return "saturation" }

func (s *Saturation) Observe(r steer.Report) {
	s.samples++
	if r.Saturated {
		s.hits++
	}
}

func (s *Saturation) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.hits) / float64(s.samples)
}

func (s *Saturation) Reset() {
	s.hits = 0
	s.samples = 0
}

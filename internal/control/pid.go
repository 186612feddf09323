package control

import (
	"fmt"

	"github.com/san-kum/servosteer/internal/dynamo"
)

const (
	DefaultOutputMin = 0.0
	DefaultOutputMax = 180.0
	DefaultKp        = 1.0
	DefaultKi        = 0.01
	DefaultKd        = 0.1
)

type Config struct {
	Target    float64
	OutputMin float64
	OutputMax float64
	Kp        float64
	Ki        float64
	Kd        float64
	// IntegralLimit bounds the accumulator to [-limit, limit]. Zero leaves it unbounded.
	IntegralLimit float64
}

func DefaultConfig(target float64) Config {
	return Config{
		Target:    target,
		OutputMin: DefaultOutputMin,
		OutputMax: DefaultOutputMax,
		Kp:        DefaultKp,
		Ki:        DefaultKi,
		Kd:        DefaultKd,
	}
}

func (c Config) Validate() error {
	if !dynamo.IsFinite(c.OutputMin) || !dynamo.IsFinite(c.OutputMax) || c.OutputMax <= c.OutputMin {
		return fmt.Errorf("output bounds [%g, %g]: %w", c.OutputMin, c.OutputMax, dynamo.ErrInvalidBounds)
	}
	for name, v := range map[string]float64{"target": c.Target, "kp": c.Kp, "ki": c.Ki, "kd": c.Kd} {
		if !dynamo.IsFinite(v) {
			return fmt.Errorf("%s=%g: %w", name, v, dynamo.ErrParameterBounds)
		}
	}
	if c.IntegralLimit < 0 || !dynamo.IsFinite(c.IntegralLimit) {
		return fmt.Errorf("integral limit %g: %w", c.IntegralLimit, dynamo.ErrParameterBounds)
	}
	return nil
}

// PID drives an absolute actuator position. The target doubles as the
// baseline of the output, so a zero error commands the target itself:
//
//	output = target + Kp*e + Ki*sum(e) + Kd*(e - e_prev)
//
// The output is saturated into [OutputMin, OutputMax] after every update.
// Not safe for concurrent use.
type PID struct {
	Kp     float64
	Ki     float64
	Kd     float64
	Target float64

	outMin        float64
	outMax        float64
	integralLimit float64

	output     float64
	input      float64
	integral   float64
	derivative float64
	lastErr    float64
}

func New(cfg Config) (*PID, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &PID{
		Kp:            cfg.Kp,
		Ki:            cfg.Ki,
		Kd:            cfg.Kd,
		Target:        cfg.Target,
		outMin:        cfg.OutputMin,
		outMax:        cfg.OutputMax,
		integralLimit: cfg.IntegralLimit,
	}
	p.Reset()
	return p, nil
}

// Regulate consumes a new measurement and returns the saturated output.
func (p *PID) Regulate(measurement float64) float64 {
	err := p.Target - measurement
	p.input = measurement

	p.integral += err
	if p.integralLimit > 0 {
		p.integral = dynamo.Clamp(p.integral, -p.integralLimit, p.integralLimit)
	}

	p.derivative = err - p.lastErr
	u := p.Target + p.Kp*err + p.Ki*p.integral + p.Kd*p.derivative
	p.lastErr = err

	p.output = dynamo.Clamp(u, p.outMin, p.outMax)
	return p.output
}

// Reset clears integral and derivative memory. The output returns to the
// target, saturated.
func (p *PID) Reset() {
	p.integral = 0
	p.derivative = 0
	p.lastErr = 0
	p.input = 0
	p.output = dynamo.Clamp(p.Target, p.outMin, p.outMax)
}

func (p *PID) Output() float64     { return p.output }
func (p *PID) Input() float64      { return p.input }
func (p *PID) Integral() float64   { return p.integral }
func (p *PID) Derivative() float64 { return p.derivative }
func (p *PID) LastError() float64  { return p.lastErr }
func (p *PID) OutputMin() float64  { return p.outMin }
func (p *PID) OutputMax() float64  { return p.outMax }

// Saturated reports whether the last output was pinned to a bound.
func (p *PID) Saturated() bool {
	return p.output == p.outMin || p.output == p.outMax
}

// State is a copy of the regulator memory for diagnostics.
type State struct {
	Target     float64 `json:"target"`
	Input      float64 `json:"input"`
	Output     float64 `json:"output"`
	Integral   float64 `json:"integral"`
	Derivative float64 `json:"derivative"`
	LastError  float64 `json:"last_error"`
}

func (p *PID) Snapshot() State {
	return State{
		Target:     p.Target,
		Input:      p.input,
		Output:     p.output,
		Integral:   p.integral,
		Derivative: p.derivative,
		LastError:  p.lastErr,
	}
}

// GetParams returns tunable parameters for live adjustment
func (p *PID) GetParams() map[string]float64 {
	return map[string]float64{
		"Kp":     p.Kp,
		"Ki":     p.Ki,
		"Kd":     p.Kd,
		"Target": p.Target,
	}
}

// SetParam adjusts a PID parameter
func (p *PID) SetParam(name string, value float64) error {
	if !dynamo.IsFinite(value) {
		return fmt.Errorf("%s=%g: %w", name, value, dynamo.ErrParameterBounds)
	}
	switch name {
	case "Kp":
		p.Kp = value
	case "Ki":
		p.Ki = value
	case "Kd":
		p.Kd = value
	case "Target":
		p.Target = value
	default:
		return fmt.Errorf("%q: %w", name, dynamo.ErrUnknownParam)
	}
	return nil
}

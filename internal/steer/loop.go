package steer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/time/rate"

	"github.com/san-kum/servosteer/internal/channel"
	"github.com/san-kum/servosteer/internal/control"
	"github.com/san-kum/servosteer/internal/dynamo"
	"github.com/san-kum/servosteer/internal/mapping"
)

type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// Acquirer yields the next raw reading for a channel. It is called once per
// side per cycle, left first. io.EOF ends a Run cleanly.
type Acquirer interface {
	Acquire(ctx context.Context, side Side) (float64, error)
}

// AcquirerFunc adapts a function to an Acquirer.
type AcquirerFunc func(ctx context.Context, side Side) (float64, error)

func (f AcquirerFunc) Acquire(ctx context.Context, side Side) (float64, error) {
	return f(ctx, side)
}

type Reporter interface {
	Report(ctx context.Context, r Report) error
}

type ReporterFunc func(ctx context.Context, r Report) error

func (f ReporterFunc) Report(ctx context.Context, r Report) error { return f(ctx, r) }

// Actuator receives the saturated command after each cycle.
type Actuator interface {
	Actuate(ctx context.Context, output float64) error
}

// Report is the outcome of one regulation cycle.
type Report struct {
	Cycle       int       `json:"cycle"`
	Time        time.Time `json:"time"`
	Target      float64   `json:"target"`
	Measurement float64   `json:"measurement"`
	Output      float64   `json:"output"`
	LastError   float64   `json:"last_error"`
	RawLeft     float64   `json:"raw_left"`
	RawRight    float64   `json:"raw_right"`
	Left        float64   `json:"left"`
	Right       float64   `json:"right"`
	Difference  float64   `json:"difference"`
	Ratio       float64   `json:"ratio"`
	Integral    float64   `json:"integral"`
	Derivative  float64   `json:"derivative"`
	Saturated   bool      `json:"saturated"`
}

// Offset is the output angle relative to the target; negative is left.
func (r Report) Offset() float64 {
	return r.Output - r.Target
}

type Option func(*Loop)

func WithReporter(r Reporter) Option { return func(l *Loop) { l.reporters = append(l.reporters, r) } }
func WithActuator(a Actuator) Option { return func(l *Loop) { l.actuator = a } }
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// Loop runs the acquire, map, regulate, report cycle. Not safe for concurrent use.
type Loop struct {
	pid       *control.PID
	pair      *mapping.Pair
	acq       Acquirer
	actuator  Actuator
	reporters []Reporter
	now       func() time.Time
	cycles    int
	defaulted bool
}

func New(cfg Config, acq Acquirer, opts ...Option) (*Loop, error) {
	if acq == nil {
		return nil, fmt.Errorf("steer: nil acquirer")
	}

	pid, err := control.New(cfg.Control())
	if err != nil {
		return nil, err
	}

	left, defaulted := channel.NewOrDefault(cfg.InputMin, cfg.InputMax)
	right, _ := channel.NewOrDefault(cfg.InputMin, cfg.InputMax)
	pair, err := mapping.NewPair(left, right)
	if err != nil {
		return nil, err
	}

	l := &Loop{
		pid:       pid,
		pair:      pair,
		acq:       acq,
		now:       time.Now,
		defaulted: defaulted,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *Loop) Regulator() *control.PID { return l.pid }
func (l *Loop) Pair() *mapping.Pair     { return l.pair }
func (l *Loop) Cycles() int             { return l.cycles }

// DefaultedInputRange reports whether the configured input bounds were
// invalid and replaced with [channel.DefaultLower, channel.DefaultUpper].
func (l *Loop) DefaultedInputRange() bool { return l.defaulted }

// Step runs one regulation cycle. A failed acquisition abandons the cycle
// before any state is touched.
func (l *Loop) Step(ctx context.Context) (Report, error) {
	cycle := l.cycles + 1

	rawLeft, err := l.acquire(ctx, cycle, Left)
	if err != nil {
		return Report{}, err
	}
	rawRight, err := l.acquire(ctx, cycle, Right)
	if err != nil {
		return Report{}, err
	}

	l.pair.Left().Assign(rawLeft)
	l.pair.Right().Assign(rawRight)

	measurement := l.pair.Measurement(l.pid.Target)
	output := l.pid.Regulate(measurement)
	l.cycles = cycle

	r := Report{
		Cycle:       cycle,
		Time:        l.now(),
		Target:      l.pid.Target,
		Measurement: measurement,
		Output:      output,
		LastError:   l.pid.LastError(),
		RawLeft:     rawLeft,
		RawRight:    rawRight,
		Left:        l.pair.Left().Value(),
		Right:       l.pair.Right().Value(),
		Difference:  l.pair.Difference(),
		Ratio:       l.pair.Ratio(),
		Integral:    l.pid.Integral(),
		Derivative:  l.pid.Derivative(),
		Saturated:   l.pid.Saturated(),
	}

	if l.actuator != nil {
		if err := l.actuator.Actuate(ctx, output); err != nil {
			return r, &dynamo.CycleError{Cycle: cycle, Stage: "actuate", Wrapped: err}
		}
	}
	for _, rep := range l.reporters {
		if err := rep.Report(ctx, r); err != nil {
			return r, &dynamo.CycleError{Cycle: cycle, Stage: "report", Wrapped: err}
		}
	}
	return r, nil
}

func (l *Loop) acquire(ctx context.Context, cycle int, side Side) (float64, error) {
	v, err := l.acq.Acquire(ctx, side)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, err
		}
		return 0, &dynamo.CycleError{Cycle: cycle, Stage: "acquire " + side.String(), Wrapped: err}
	}
	if !dynamo.IsFinite(v) {
		return 0, &dynamo.CycleError{Cycle: cycle, Stage: "acquire " + side.String(), Wrapped: dynamo.ErrNonFinite}
	}
	return v, nil
}

// Summary describes a finished Run.
type Summary struct {
	Cycles    int
	Saturated int
	Last      Report
}

// Run repeats Step until cycles complete, the context ends or the acquirer
// returns io.EOF. cycles <= 0 runs without a cycle limit. A nil limiter runs
// unpaced.
func (l *Loop) Run(ctx context.Context, cycles int, limiter *rate.Limiter) (Summary, error) {
	var s Summary
	for cycles <= 0 || s.Cycles < cycles {
		select {
		case <-ctx.Done():
			return s, ctx.Err()
		default:
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return s, err
			}
		}

		r, err := l.Step(ctx)
		if errors.Is(err, io.EOF) {
			return s, nil
		}
		if err != nil {
			return s, err
		}

		s.Cycles++
		s.Last = r
		if r.Saturated {
			s.Saturated++
		}
	}
	return s, nil
}

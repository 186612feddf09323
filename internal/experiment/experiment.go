package experiment

import (
	"context"
	"fmt"
	"sort"

	"github.com/san-kum/servosteer/internal/config"
	"github.com/san-kum/servosteer/internal/dynamo"
	"github.com/san-kum/servosteer/internal/integrators"
	"github.com/san-kum/servosteer/internal/metrics"
	"github.com/san-kum/servosteer/internal/plant"
	"github.com/san-kum/servosteer/internal/steer"
	"github.com/san-kum/servosteer/internal/storage"
)

// Config is one closed-loop run against the simulated corridor.
type Config struct {
	Servo      steer.Config
	Plant      plant.Params
	Integrator string
	Dt         float64
	Cycles     int
	Offset     float64
	Heading    float64
	Seed       int64
	// Params are applied to the regulator with SetParam before the run.
	Params map[string]float64
}

// FromConfig builds a run from the file configuration.
func FromConfig(cfg *config.Config) Config {
	p := plant.DefaultParams()
	p.Speed = cfg.Plant.Speed
	p.Width = cfg.Plant.Width
	p.Noise = cfg.Plant.Noise
	p.Center = cfg.Servo.Target
	if cfg.Servo.InputMax > cfg.Servo.InputMin {
		p.FullScale = cfg.Servo.InputMax
	}

	cycles := cfg.Loop.Cycles
	if cycles <= 0 {
		cycles = DefaultCycles
	}
	return Config{
		Servo:      cfg.Steer(),
		Plant:      p,
		Integrator: cfg.Plant.Integrator,
		Dt:         cfg.Plant.Dt,
		Cycles:     cycles,
		Offset:     cfg.Plant.Offset,
		Heading:    cfg.Plant.Heading,
		Seed:       cfg.Plant.Seed,
	}
}

const DefaultCycles = 500

type Result struct {
	Reports    []steer.Report
	Trajectory []dynamo.State
	Times      []float64
	Metrics    map[string]float64
	Summary    steer.Summary
	Collided   bool
}

type Experiment struct {
	cfg      Config
	corridor *plant.Corridor
	loop     *steer.Loop
	recorder *storage.Recorder
	metrics  metrics.Set
}

func New(cfg Config, reporters ...steer.Reporter) (*Experiment, error) {
	integ, err := integrators.Get(cfg.Integrator)
	if err != nil {
		return nil, err
	}
	corridor, err := plant.NewCorridor(cfg.Plant, integ, cfg.Dt, dynamo.State{cfg.Offset, cfg.Heading}, cfg.Seed)
	if err != nil {
		return nil, err
	}

	e := &Experiment{
		cfg:      cfg,
		corridor: corridor,
		recorder: &storage.Recorder{},
		metrics:  metrics.Standard(),
	}

	opts := []steer.Option{
		steer.WithActuator(corridor),
		steer.WithReporter(e.recorder),
		steer.WithReporter(e.metrics),
	}
	for _, r := range reporters {
		opts = append(opts, steer.WithReporter(r))
	}
	e.loop, err = steer.New(cfg.Servo, corridor, opts...)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(cfg.Params))
	for name := range cfg.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := e.loop.Regulator().SetParam(name, cfg.Params[name]); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Experiment) Loop() *steer.Loop         { return e.loop }
func (e *Experiment) Corridor() *plant.Corridor { return e.corridor }
func (e *Experiment) Config() Config            { return e.cfg }

// Run drives the loop for the configured number of cycles. Simulated runs
// are not paced.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	summary, err := e.loop.Run(ctx, e.cfg.Cycles, nil)
	if err != nil {
		return nil, fmt.Errorf("experiment: %w", err)
	}

	vals := e.metrics.Values()
	collided := 0.0
	if e.corridor.Collided() {
		collided = 1
	}
	vals["collided"] = collided

	return &Result{
		Reports:    e.recorder.Reports(),
		Trajectory: e.corridor.Trajectory,
		Times:      e.corridor.Times,
		Metrics:    vals,
		Summary:    summary,
		Collided:   e.corridor.Collided(),
	}, nil
}

// Metadata describes the run for storage.
func (e *Experiment) Metadata(res *Result) storage.RunMetadata {
	integ := e.cfg.Integrator
	if integ == "" {
		integ = "rk4"
	}
	return storage.RunMetadata{
		Source:     "sim",
		Seed:       e.cfg.Seed,
		Dt:         e.cfg.Dt,
		Integrator: integ,
		Servo:      e.cfg.Servo,
		Metrics:    res.Metrics,
	}
}

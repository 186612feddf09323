package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/san-kum/servosteer/internal/config"
	"github.com/san-kum/servosteer/internal/experiment"
	"github.com/san-kum/servosteer/internal/input"
	"github.com/san-kum/servosteer/internal/metrics"
	"github.com/san-kum/servosteer/internal/report"
	"github.com/san-kum/servosteer/internal/steer"
	"github.com/san-kum/servosteer/internal/storage"
	"github.com/san-kum/servosteer/internal/telemetry"
)

// session is everything a loop run needs besides the loop itself.
type session struct {
	cfg       *config.Config
	acq       steer.Acquirer
	act       steer.Actuator
	exp       *experiment.Experiment
	reporters []steer.Reporter
	recorder  *storage.Recorder
	closers   []func()
}

func (s *session) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// forward lets a reporter be wired before the loop it reports on exists.
type forward struct{ next steer.Reporter }

func (f *forward) Report(ctx context.Context, r steer.Report) error {
	if f.next == nil {
		return nil
	}
	return f.next.Report(ctx, r)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// openSource connects the acquisition side named by cfg.Source.Kind.
func openSource(ctx context.Context, s *session) error {
	src := s.cfg.Source
	switch src.Kind {
	case "terminal":
		s.acq = input.NewTerminal(os.Stdin, os.Stdout)
	case "replay":
		seq, err := input.OpenReplay(src.Path)
		if err != nil {
			return err
		}
		s.acq = seq
	case "serial":
		sp, err := input.OpenSerial(ctx, src.Port, src.Baud)
		if err != nil {
			return err
		}
		glog.Infof("serial: reading %s at %d baud", src.Port, src.Baud)
		s.acq, s.act = sp, sp
		s.closers = append(s.closers, func() {
			if n := sp.Skipped(); n > 0 {
				glog.Warningf("serial: skipped %d malformed lines", n)
			}
			sp.Close()
		})
	case "mqtt":
		m, err := input.DialMQTT(src.Broker, src.Topic, fmt.Sprintf("servosteer-%d", os.Getpid()))
		if err != nil {
			return err
		}
		glog.Infof("mqtt: subscribed to %s on %s", src.Topic, src.Broker)
		s.acq = m
		s.closers = append(s.closers, func() {
			if n := m.Dropped(); n > 0 {
				glog.Warningf("mqtt: dropped %d frames", n)
			}
			m.Close()
		})
	case "sim":
	default:
		return fmt.Errorf("unknown source kind: %s", src.Kind)
	}
	return nil
}

// addOutput attaches the console report chosen by the loop flags.
func addOutput(s *session) {
	var out steer.Reporter
	if jsonOut {
		out = report.NewJSONLines(os.Stdout)
	} else {
		t := report.NewText(os.Stdout)
		t.Decimals = decimals
		t.Detail = detail
		out = t
	}
	if every > 1 {
		out = report.Every(every, out)
	}
	s.reporters = append(s.reporters, out)
}

// addTelemetry connects the publishers named in the telemetry config. They
// only log failures.
func addTelemetry(s *session) error {
	tc := s.cfg.Telemetry
	if tc.MQTTBroker != "" {
		topic := tc.MQTTTopic
		if topic == "" {
			topic = "servosteer/cycles"
		}
		pub, err := telemetry.DialMQTTPublisher(tc.MQTTBroker, topic, fmt.Sprintf("servosteer-pub-%d", os.Getpid()))
		if err != nil {
			return fmt.Errorf("telemetry mqtt: %w", err)
		}
		s.reporters = append(s.reporters, telemetry.BestEffort("mqtt", pub))
		s.closers = append(s.closers, pub.Close)
	}
	if tc.NATSURL != "" {
		pub, err := telemetry.DialNATS(tc.NATSURL, tc.NATSSubject)
		if err != nil {
			return fmt.Errorf("telemetry nats: %w", err)
		}
		s.reporters = append(s.reporters, telemetry.BestEffort("nats", pub))
		s.closers = append(s.closers, func() { pub.Close() })
	}
	return nil
}

// build creates the loop for the session. Simulated sources get the
// corridor as both acquirer and actuator.
func (s *session) build() (*steer.Loop, error) {
	if save {
		s.recorder = &storage.Recorder{}
		s.reporters = append(s.reporters, s.recorder)
	}

	if s.cfg.Source.Kind == "sim" {
		ecfg, err := simConfig(s.cfg)
		if err != nil {
			return nil, err
		}
		s.exp, err = experiment.New(ecfg, s.reporters...)
		if err != nil {
			return nil, err
		}
		return s.exp.Loop(), nil
	}

	opts := make([]steer.Option, 0, len(s.reporters)+1)
	for _, r := range s.reporters {
		opts = append(opts, steer.WithReporter(r))
	}
	if s.act != nil {
		opts = append(opts, steer.WithActuator(s.act))
	}
	loop, err := steer.New(s.cfg.Steer(), s.acq, opts...)
	if err != nil {
		return nil, err
	}
	if loop.DefaultedInputRange() {
		glog.Warningf("input range [%g, %g] is invalid, using [0, 1023]", s.cfg.Servo.InputMin, s.cfg.Servo.InputMax)
	}
	return loop, nil
}

func limiter(hz float64) *rate.Limiter {
	if hz <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(hz), 1)
}

// drive runs loop and stores the cycles when --save was given.
func (s *session) drive(ctx context.Context, loop *steer.Loop) error {
	summary, err := loop.Run(ctx, s.cfg.Loop.Cycles, limiter(s.cfg.Loop.RateHz))
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		return err
	}
	if summary.Cycles > 0 {
		glog.V(1).Infof("loop: %d cycles, %d saturated", summary.Cycles, summary.Saturated)
	}

	if s.recorder == nil || s.recorder.Len() == 0 {
		return nil
	}
	reports := s.recorder.Reports()
	meta := storage.RunMetadata{
		Source:  s.cfg.Source.Kind,
		Servo:   s.cfg.Steer(),
		Metrics: metrics.Summarize(reports),
	}
	if s.exp != nil {
		meta.Seed = s.exp.Config().Seed
		meta.Dt = s.exp.Config().Dt
		meta.Integrator = s.cfg.Plant.Integrator
	}
	id, err := storage.New(dataDir).Save(meta, reports)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "run id: %s\n", id)
	return nil
}

func runLoop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return runSource(cfg)
}

// sourceCommand pins the source kind and takes its location from the
// command's argument.
func sourceCommand(kind string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg.Source.Kind = kind
		switch kind {
		case "replay":
			cfg.Source.Path = args[0]
		case "serial":
			cfg.Source.Port = args[0]
		case "mqtt":
			cfg.Source.Broker = args[0]
		}
		return runSource(cfg)
	}
}

func runSource(cfg *config.Config) error {
	if cfg.Source.Kind == "sim" && cfg.Loop.Cycles <= 0 {
		cfg.Loop.Cycles = experiment.DefaultCycles
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	s := &session{cfg: cfg}
	defer s.close()
	if err := openSource(ctx, s); err != nil {
		return err
	}
	addOutput(s)
	if err := addTelemetry(s); err != nil {
		return err
	}

	loop, err := s.build()
	if err != nil {
		return err
	}
	return s.drive(ctx, loop)
}

// runServe runs the loop behind the HTTP surface. Posted parameter changes
// reach the regulator between cycles.
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("listen") || cfg.Telemetry.Listen == "" {
		cfg.Telemetry.Listen = listen
	}
	if cfg.Source.Kind == "terminal" {
		cfg.Source.Kind = "sim"
	}
	if cfg.Source.Kind == "sim" && cfg.Loop.RateHz == 0 {
		cfg.Loop.RateHz = 1 / cfg.Plant.Dt
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	s := &session{cfg: cfg}
	defer s.close()
	if err := openSource(ctx, s); err != nil {
		return err
	}
	if err := addTelemetry(s); err != nil {
		return err
	}
	fwd := &forward{}
	s.reporters = append(s.reporters, fwd)

	loop, err := s.build()
	if err != nil {
		return err
	}
	srv := telemetry.NewServer(loop.Regulator())
	fwd.next = srv
	s.closers = append(s.closers, srv.Hub().Close)

	httpSrv := &http.Server{
		Addr:              cfg.Telemetry.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		glog.Infof("serve: listening on %s (source %s)", cfg.Telemetry.Listen, cfg.Source.Kind)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			glog.Errorf("serve: %v", err)
			cancel()
		}
	}()
	defer func() {
		shutdown, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		httpSrv.Shutdown(shutdown)
	}()

	if err := s.drive(ctx, loop); err != nil {
		return err
	}
	glog.Infof("serve: loop finished after %d cycles", loop.Cycles())
	<-ctx.Done()
	return nil
}

package steer_test

import (
	"context"
	"errors"
	"io"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/servosteer/internal/dynamo"
	"github.com/san-kum/servosteer/internal/steer"
)

type pairs struct {
	readings [][2]float64
	pos      int
	failOn   int
}

func (p *pairs) Acquire(ctx context.Context, side steer.Side) (float64, error) {
	if p.pos >= len(p.readings) {
		return 0, io.EOF
	}
	if p.failOn > 0 && p.pos+1 == p.failOn && side == steer.Right {
		return 0, errors.New("sensor bus timeout")
	}
	v := p.readings[p.pos][side]
	if side == steer.Right {
		p.pos++
	}
	return v, nil
}

type recorder struct {
	reports []steer.Report
}

func (r *recorder) Report(ctx context.Context, rep steer.Report) error {
	r.reports = append(r.reports, rep)
	return nil
}

type servo struct{ angles []float64 }

func (s *servo) Actuate(ctx context.Context, out float64) error {
	s.angles = append(s.angles, out)
	return nil
}

var _ = Describe("Loop", func() {
	var (
		ctx context.Context
		rec *recorder
		cfg steer.Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		rec = &recorder{}
		cfg = steer.DefaultConfig()
	})

	newLoop := func(acq steer.Acquirer, opts ...steer.Option) *steer.Loop {
		opts = append(opts, steer.WithReporter(rec))
		l, err := steer.New(cfg, acq, opts...)
		Expect(err).NotTo(HaveOccurred())
		return l
	}

	It("maps, regulates and reports one cycle", func() {
		fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		l := newLoop(&pairs{readings: [][2]float64{{500, 700}}}, steer.WithClock(func() time.Time { return fixed }))

		r, err := l.Step(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(r.Cycle).To(Equal(1))
		Expect(r.Time).To(Equal(fixed))
		Expect(r.Difference).To(Equal(-200.0))
		Expect(r.Measurement).To(BeNumerically("~", 72.4, 0.05))

		e := 90 - r.Measurement
		expected := 90 + e + 0.01*e + 0.1*e
		Expect(r.Output).To(BeNumerically("~", expected, 1e-9))
		Expect(r.LastError).To(BeNumerically("~", e, 1e-12))
		Expect(rec.reports).To(HaveLen(1))
	})

	It("saturates raw readings before mapping", func() {
		l := newLoop(&pairs{readings: [][2]float64{{-300, 4000}}})

		r, err := l.Step(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Left).To(Equal(0.0))
		Expect(r.Right).To(Equal(1023.0))
		Expect(r.RawRight).To(Equal(4000.0))
		Expect(r.Measurement).To(Equal(0.0))
	})

	It("holds the target while readings are balanced", func() {
		readings := make([][2]float64, 20)
		for i := range readings {
			readings[i] = [2]float64{float64(i * 10), float64(i * 10)}
		}
		l := newLoop(&pairs{readings: readings})

		s, err := l.Run(ctx, 0, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Cycles).To(Equal(20))
		for _, r := range rec.reports {
			Expect(r.Output).To(Equal(90.0))
		}
	})

	It("keeps every output inside the actuation range", func() {
		readings := make([][2]float64, 200)
		for i := range readings {
			readings[i] = [2]float64{1023 * math.Abs(math.Sin(float64(i))), 1023 * math.Abs(math.Cos(float64(i)*0.7))}
		}
		cfg.Kp, cfg.Ki, cfg.Kd = 4, 0.5, 3
		act := &servo{}
		l := newLoop(&pairs{readings: readings}, steer.WithActuator(act))

		_, err := l.Run(ctx, 0, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(act.angles).To(HaveLen(200))
		for _, a := range act.angles {
			Expect(a).To(BeNumerically(">=", 0))
			Expect(a).To(BeNumerically("<=", 180))
		}
	})

	It("stops after the requested number of cycles", func() {
		l := newLoop(&pairs{readings: [][2]float64{{1, 1}, {2, 2}, {3, 3}}})

		s, err := l.Run(ctx, 2, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Cycles).To(Equal(2))
		Expect(l.Cycles()).To(Equal(2))
	})

	It("abandons a cycle on acquisition failure without touching state", func() {
		l := newLoop(&pairs{readings: [][2]float64{{100, 900}, {900, 100}}, failOn: 2})

		_, err := l.Step(ctx)
		Expect(err).NotTo(HaveOccurred())
		before := l.Regulator().Snapshot()
		left := l.Pair().Left().Value()

		_, err = l.Step(ctx)
		var ce *dynamo.CycleError
		Expect(errors.As(err, &ce)).To(BeTrue())
		Expect(ce.Cycle).To(Equal(2))
		Expect(ce.Stage).To(Equal("acquire right"))

		Expect(l.Regulator().Snapshot()).To(Equal(before))
		Expect(l.Pair().Left().Value()).To(Equal(left))
		Expect(l.Cycles()).To(Equal(1))
	})

	It("rejects non-finite readings", func() {
		l := newLoop(&pairs{readings: [][2]float64{{math.NaN(), 10}}})

		_, err := l.Step(ctx)
		Expect(err).To(MatchError(dynamo.ErrNonFinite))
		Expect(rec.reports).To(BeEmpty())
	})

	It("falls back to the default input range for malformed bounds", func() {
		cfg.InputMin, cfg.InputMax = 500, 100
		l := newLoop(&pairs{})

		Expect(l.DefaultedInputRange()).To(BeTrue())
		Expect(l.Pair().Range()).To(Equal(1023.0))
	})

	It("returns regulator configuration errors", func() {
		cfg.OutputMin, cfg.OutputMax = 10, 10
		_, err := steer.New(cfg, &pairs{})
		Expect(err).To(MatchError(dynamo.ErrInvalidBounds))
	})

	It("honours context cancellation", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		l := newLoop(&pairs{readings: [][2]float64{{1, 1}}})

		_, err := l.Run(cctx, 0, nil)
		Expect(err).To(MatchError(context.Canceled))
	})
})

var _ = DescribeTable("Describe",
	func(output float64, expected string) {
		Expect(steer.Describe(90, output, 1)).To(Equal(expected))
	},
	Entry("left", 80.0, "The servo is angled 10.0 degrees to the left of target!"),
	Entry("right", 102.3, "The servo is angled 12.3 degrees to the right of target!"),
	Entry("centre", 90.0, "The servo is angled right at target!"),
)

var _ = DescribeTable("DirectionOf",
	func(output float64, expected steer.Direction) {
		Expect(steer.DirectionOf(90, output)).To(Equal(expected))
	},
	Entry("below target is left", 45.0, steer.LeftOfTarget),
	Entry("above target is right", 135.0, steer.RightOfTarget),
	Entry("equal is on target", 90.0, steer.OnTarget),
)

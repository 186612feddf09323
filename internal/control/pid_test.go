package control_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/servosteer/internal/control"
	"github.com/san-kum/servosteer/internal/dynamo"
)

var _ = Describe("PID", func() {
	var pid *control.PID

	newPID := func(cfg control.Config) *control.PID {
		p, err := control.New(cfg)
		Expect(err).NotTo(HaveOccurred())
		return p
	}

	BeforeEach(func() {
		pid = newPID(control.DefaultConfig(90))
	})

	It("starts at the target with empty memory", func() {
		Expect(pid.Output()).To(Equal(90.0))
		Expect(pid.Integral()).To(BeZero())
		Expect(pid.LastError()).To(BeZero())
	})

	It("follows the target-offset equation", func() {
		cfg := control.DefaultConfig(90)
		cfg.Kp, cfg.Ki, cfg.Kd = 0.5, 0.1, 0.2
		pid = newPID(cfg)

		out := pid.Regulate(80)
		// e=10, integral=10, derivative=10
		Expect(out).To(BeNumerically("~", 90+5+1+2, 1e-12))
		Expect(pid.Input()).To(Equal(80.0))
		Expect(pid.LastError()).To(Equal(10.0))

		out = pid.Regulate(85)
		// e=5, integral=15, derivative=-5
		Expect(out).To(BeNumerically("~", 90+2.5+1.5-1, 1e-12))
		Expect(pid.Derivative()).To(Equal(-5.0))
	})

	It("holds the target when the measurement is on target", func() {
		for i := 0; i < 50; i++ {
			Expect(pid.Regulate(90)).To(Equal(90.0))
		}
		Expect(pid.Integral()).To(BeZero())
	})

	It("saturates to the upper bound", func() {
		cfg := control.DefaultConfig(90)
		cfg.Kp, cfg.Ki, cfg.Kd = 1, 0, 0
		pid = newPID(cfg)

		Expect(pid.Regulate(-1000)).To(Equal(180.0))
		Expect(pid.Saturated()).To(BeTrue())
	})

	It("saturates to the lower bound", func() {
		Expect(pid.Regulate(5000)).To(Equal(0.0))
	})

	It("keeps the output inside bounds for any measurement sequence", func() {
		cfg := control.DefaultConfig(90)
		cfg.Kp, cfg.Ki, cfg.Kd = 3, 0.7, 2
		pid = newPID(cfg)

		x := 0.37
		for i := 0; i < 500; i++ {
			x = 3.9 * x * (1 - x)
			out := pid.Regulate(x*400 - 100)
			Expect(out).To(BeNumerically(">=", 0))
			Expect(out).To(BeNumerically("<=", 180))
		}
	})

	It("accumulates a constant error without bound", func() {
		prev := pid.Integral()
		for i := 0; i < 100; i++ {
			pid.Regulate(80)
			Expect(pid.Integral()).To(BeNumerically("~", prev+10, 1e-9))
			prev = pid.Integral()
		}
		Expect(prev).To(BeNumerically("~", 1000, 1e-9))
	})

	It("bounds the accumulator when an integral limit is set", func() {
		cfg := control.DefaultConfig(90)
		cfg.IntegralLimit = 25
		pid = newPID(cfg)

		for i := 0; i < 10; i++ {
			pid.Regulate(80)
		}
		Expect(pid.Integral()).To(Equal(25.0))

		for i := 0; i < 10; i++ {
			pid.Regulate(100)
		}
		Expect(pid.Integral()).To(Equal(-25.0))
	})

	It("clears memory on reset", func() {
		pid.Regulate(10)
		pid.Regulate(20)
		pid.Reset()

		Expect(pid.Integral()).To(BeZero())
		Expect(pid.Derivative()).To(BeZero())
		Expect(pid.Output()).To(Equal(90.0))
	})

	DescribeTable("rejects invalid configuration",
		func(mutate func(*control.Config), target error) {
			cfg := control.DefaultConfig(90)
			mutate(&cfg)
			_, err := control.New(cfg)
			Expect(err).To(MatchError(target))
		},
		Entry("inverted bounds", func(c *control.Config) { c.OutputMin, c.OutputMax = 180, 0 }, dynamo.ErrInvalidBounds),
		Entry("equal bounds", func(c *control.Config) { c.OutputMax = c.OutputMin }, dynamo.ErrInvalidBounds),
		Entry("nan gain", func(c *control.Config) { c.Kp = math.NaN() }, dynamo.ErrParameterBounds),
		Entry("negative integral limit", func(c *control.Config) { c.IntegralLimit = -1 }, dynamo.ErrParameterBounds),
	)

	Describe("live tuning", func() {
		It("exposes and updates gains", func() {
			Expect(pid.GetParams()).To(HaveKeyWithValue("Kp", 1.0))
			Expect(pid.SetParam("Kd", 0.4)).To(Succeed())
			Expect(pid.Kd).To(Equal(0.4))
		})

		It("retargets through the exported field", func() {
			pid.Target = 100
			Expect(pid.Regulate(100)).To(Equal(100.0))
			Expect(pid.Snapshot().Target).To(Equal(100.0))
		})

		It("rejects unknown names and non-finite values", func() {
			Expect(pid.SetParam("Kx", 1)).To(MatchError(dynamo.ErrUnknownParam))
			Expect(pid.SetParam("Ki", math.Inf(1))).To(MatchError(dynamo.ErrParameterBounds))
		})
	})
})

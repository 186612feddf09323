package integrators

import (
	"math"
	"testing"

	"github.com/san-kum/servosteer/internal/dynamo"
)

// bicycle is a constant-turn kinematic model: x=[y, psi], u=[steer rad].
type bicycle struct {
	speed, wheelbase float64
}

func (b *bicycle) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{b.speed * math.Sin(x[1]), b.speed / b.wheelbase * math.Tan(u[0])}
}

func (b *bicycle) StateDim() int   { return 2 }
func (b *bicycle) ControlDim() int { return 1 }

// For a constant steering input psi(t) = w*t and y(t) = v/w*(1-cos(w*t)).
func exactBicycle(b *bicycle, steer, t float64) (float64, float64) {
	w := b.speed / b.wheelbase * math.Tan(steer)
	return b.speed / w * (1 - math.Cos(w*t)), w * t
}

func TestRK4Accuracy(t *testing.T) {
	dyn := &bicycle{speed: 1.5, wheelbase: 0.5}
	integ := NewRK4()

	u := dynamo.Control{0.1}
	dt := 0.01
	steps := 100

	x := dynamo.State{0, 0}
	for i := 0; i < steps; i++ {
		x = integ.Step(dyn, x, u, float64(i)*dt, dt)
	}

	expectedY, expectedPsi := exactBicycle(dyn, u[0], float64(steps)*dt)

	if math.Abs(x[0]-expectedY) > 1e-6 {
		t.Errorf("offset error too large: got %.8f, expected %.8f", x[0], expectedY)
	}
	if math.Abs(x[1]-expectedPsi) > 1e-9 {
		t.Errorf("heading error too large: got %.8f, expected %.8f", x[1], expectedPsi)
	}
}

func TestEulerLessAccurateThanRK4(t *testing.T) {
	dyn := &bicycle{speed: 1.5, wheelbase: 0.5}
	u := dynamo.Control{0.2}
	dt := 0.02

	xe := dynamo.State{0, 0}
	xr := dynamo.State{0, 0}
	euler, rk4 := NewEuler(), NewRK4()
	for i := 0; i < 50; i++ {
		xe = euler.Step(dyn, xe, u, float64(i)*dt, dt)
		xr = rk4.Step(dyn, xr, u, float64(i)*dt, dt)
	}

	exact, _ := exactBicycle(dyn, u[0], 50*dt)
	if math.Abs(xe[0]-exact) <= math.Abs(xr[0]-exact) {
		t.Errorf("expected euler error %.8f to exceed rk4 error %.8f", math.Abs(xe[0]-exact), math.Abs(xr[0]-exact))
	}
}

func TestGet(t *testing.T) {
	for _, name := range append(Names(), "") {
		if _, err := Get(name); err != nil {
			t.Errorf("get %q failed: %v", name, err)
		}
	}
	if _, err := Get("verlet"); err == nil {
		t.Error("expected error for unknown integrator")
	}
}

func TestOrderOfAccuracy(t *testing.T) {
	dyn := &bicycle{speed: 1.5, wheelbase: 0.5}
	u := dynamo.Control{0.2}
	dt := 0.02
	exact, _ := exactBicycle(dyn, u[0], 50*dt)

	var errs []float64
	for _, integ := range []dynamo.Integrator{NewEuler(), NewMidpoint(), NewRK4()} {
		x := dynamo.State{0, 0}
		for i := 0; i < 50; i++ {
			x = integ.Step(dyn, x, u, float64(i)*dt, dt)
		}
		errs = append(errs, math.Abs(x[0]-exact))
	}
	if !(errs[0] > errs[1] && errs[1] > errs[2]) {
		t.Errorf("expected error to fall with order, got euler=%g midpoint=%g rk4=%g", errs[0], errs[1], errs[2])
	}
}

func TestStepLeavesInputAlone(t *testing.T) {
	dyn := &bicycle{speed: 1.5, wheelbase: 0.5}
	x := dynamo.State{0.1, 0.2}
	next := NewRK4().Step(dyn, x, dynamo.Control{0.1}, 0, 0.02)
	if x[0] != 0.1 || x[1] != 0.2 {
		t.Errorf("input state modified: %v", x)
	}
	if next[0] == x[0] {
		t.Error("expected the state to advance")
	}
}

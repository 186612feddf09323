package integrators

import (
	"fmt"

	"github.com/san-kum/servosteer/internal/dynamo"
)

// Tableau is the Butcher tableau of an explicit Runge-Kutta method. A is
// strictly lower triangular: stage i only reads stages before it.
type Tableau struct {
	A [][]float64
	B []float64
	C []float64
}

var (
	EulerTableau = Tableau{
		A: [][]float64{{}},
		B: []float64{1},
		C: []float64{0},
	}
	MidpointTableau = Tableau{
		A: [][]float64{{}, {0.5}},
		B: []float64{0, 1},
		C: []float64{0, 0.5},
	}
	RK4Tableau = Tableau{
		A: [][]float64{{}, {0.5}, {0, 0.5}, {0, 0, 1}},
		B: []float64{1.0 / 6, 1.0 / 3, 1.0 / 3, 1.0 / 6},
		C: []float64{0, 0.5, 0.5, 1},
	}
)

// RungeKutta steps a system with a fixed tableau. Stage buffers are reused
// between steps; a RungeKutta must not be shared between goroutines.
type RungeKutta struct {
	tab     Tableau
	k       []dynamo.State
	scratch dynamo.State
}

func NewRungeKutta(tab Tableau) *RungeKutta {
	return &RungeKutta{tab: tab}
}

func NewEuler() *RungeKutta    { return NewRungeKutta(EulerTableau) }
func NewMidpoint() *RungeKutta { return NewRungeKutta(MidpointTableau) }
func NewRK4() *RungeKutta      { return NewRungeKutta(RK4Tableau) }

func (rk *RungeKutta) ensureScratch(n int) {
	if len(rk.scratch) == n && len(rk.k) == len(rk.tab.B) {
		return
	}
	rk.k = make([]dynamo.State, len(rk.tab.B))
	for i := range rk.k {
		rk.k[i] = make(dynamo.State, n)
	}
	rk.scratch = make(dynamo.State, n)
}

func (rk *RungeKutta) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	rk.ensureScratch(n)

	for s := range rk.tab.B {
		copy(rk.scratch, x)
		for j, a := range rk.tab.A[s] {
			if a == 0 {
				continue
			}
			for i := 0; i < n; i++ {
				rk.scratch[i] += dt * a * rk.k[j][i]
			}
		}
		// Derive may return its own buffer; keep a copy per stage.
		copy(rk.k[s], dyn.Derive(rk.scratch, u, t+rk.tab.C[s]*dt))
	}

	next := make(dynamo.State, n)
	copy(next, x)
	for s, b := range rk.tab.B {
		if b == 0 {
			continue
		}
		for i := 0; i < n; i++ {
			next[i] += dt * b * rk.k[s][i]
		}
	}
	return next
}

// Get returns a fresh integrator by name. The empty name is rk4.
func Get(name string) (dynamo.Integrator, error) {
	switch name {
	case "", "rk4":
		return NewRK4(), nil
	case "midpoint":
		return NewMidpoint(), nil
	case "euler":
		return NewEuler(), nil
	default:
		return nil, fmt.Errorf("unknown integrator: %s (available: %v)", name, Names())
	}
}

func Names() []string {
	return []string{"euler", "midpoint", "rk4"}
}

// Package dynamo provides the shared primitives of the steering controller.
//
// The package defines the small vocabulary every other package speaks:
//
//   - [State] and [Control]: vectors used by the simulated plant
//   - [System] and [Integrator]: ODE plant and numerical stepper interfaces
//   - [Configurable]: live parameter tuning for regulators
//   - domain errors such as [ErrInvalidBounds] and [ErrNonFinite]
//
// # Errors
//
// Construction errors are returned, never substituted silently. Callers that
// want the forgiving behaviour of a default range ask for it explicitly:
//
//	ch, err := channel.New(lo, hi)
//	if errors.Is(err, dynamo.ErrInvalidBounds) {
//	    ch = channel.Default()
//	}
package dynamo

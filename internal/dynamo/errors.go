package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for the steering loop.
var (
	// ErrInvalidBounds indicates an upper bound that is not above the lower bound.
	ErrInvalidBounds = errors.New("dynamo: upper bound must exceed lower bound")

	// ErrBoundsMismatch indicates two channels of a pair with different bounds.
	ErrBoundsMismatch = errors.New("dynamo: paired channels must share bounds")

	// ErrZeroRange indicates a channel pair whose input range is zero.
	ErrZeroRange = errors.New("dynamo: channel range is zero")

	// ErrNonFinite indicates an acquired reading that is NaN or Inf.
	ErrNonFinite = errors.New("dynamo: non-finite reading")

	// ErrParameterBounds indicates a parameter value is outside valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")

	// ErrUnknownParam indicates a tuning request for a parameter that does not exist.
	ErrUnknownParam = errors.New("dynamo: unknown parameter")

	// ErrInvalidState indicates a plant state vector containing NaN or Inf.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrDimensionMismatch indicates mismatched state/control dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")
)

// CycleError wraps an error with regulation cycle context.
type CycleError struct {
	Cycle   int
	Stage   string
	Wrapped error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle %d (%s): %v", e.Cycle, e.Stage, e.Wrapped)
}

func (e *CycleError) Unwrap() error {
	return e.Wrapped
}

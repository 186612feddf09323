// Package channel holds a single bounded sensor reading.
package channel

import (
	"fmt"

	"github.com/san-kum/servosteer/internal/dynamo"
)

const (
	DefaultLower = 0.0
	DefaultUpper = 1023.0
)

// Channel is a scalar reading saturated into [lower, upper].
// The zero value is not usable; construct with New, NewOrDefault or Default.
type Channel struct {
	lower float64
	upper float64
	value float64
}

// New returns a channel bounded by [lower, upper]. The value starts at lower.
func New(lower, upper float64) (*Channel, error) {
	if !dynamo.IsFinite(lower) || !dynamo.IsFinite(upper) {
		return nil, fmt.Errorf("channel bounds [%g, %g]: %w", lower, upper, dynamo.ErrInvalidBounds)
	}
	if upper <= lower {
		return nil, fmt.Errorf("channel bounds [%g, %g]: %w", lower, upper, dynamo.ErrInvalidBounds)
	}
	return &Channel{lower: lower, upper: upper, value: lower}, nil
}

// NewOrDefault is New with the default range substituted for invalid bounds.
// The returned bool reports whether the substitution happened.
func NewOrDefault(lower, upper float64) (*Channel, bool) {
	ch, err := New(lower, upper)
	if err != nil {
		return Default(), true
	}
	return ch, false
}

func Default() *Channel {
	return &Channel{lower: DefaultLower, upper: DefaultUpper, value: DefaultLower}
}

// Assign stores raw saturated to the channel bounds and returns the stored value.
func (c *Channel) Assign(raw float64) float64 {
	c.value = dynamo.Clamp(raw, c.lower, c.upper)
	return c.value
}

func (c *Channel) Value() float64 { return c.value }
func (c *Channel) Lower() float64 { return c.lower }
func (c *Channel) Upper() float64 { return c.upper }

// Range is upper minus lower. It is always positive for a constructed channel.
func (c *Channel) Range() float64 {
	return c.upper - c.lower
}

// SameBounds reports whether both channels saturate to the same interval.
func (c *Channel) SameBounds(other *Channel) bool {
	return c.lower == other.lower && c.upper == other.upper
}

// Saturated reports whether the current value sits on either bound.
func (c *Channel) Saturated() bool {
	return c.value == c.lower || c.value == c.upper
}

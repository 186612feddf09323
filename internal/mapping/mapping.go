// Package mapping turns a differential pair of distance readings into a
// single measurement on the regulator's scale.
//
// The difference left-right lies in [-range, range]. It is shifted and
// halved into [0, range], divided by range to get a ratio in [0, 1], and
// finally stretched onto [0, 2*target] so that equal readings map exactly
// onto the target:
//
//	left=500 right=700 range=1023 target=90
//	diff  = -200
//	ratio = (-200+1023)/2/1023 = 0.4022
//	meas  = 0.4022 * 180       = 72.4
package mapping

import (
	"fmt"

	"github.com/san-kum/servosteer/internal/channel"
	"github.com/san-kum/servosteer/internal/dynamo"
)

// Pair is a left/right channel pair with identical, non-degenerate bounds.
type Pair struct {
	left  *channel.Channel
	right *channel.Channel
}

func NewPair(left, right *channel.Channel) (*Pair, error) {
	if left == nil || right == nil {
		return nil, fmt.Errorf("mapping: nil channel")
	}
	if !left.SameBounds(right) {
		return nil, fmt.Errorf("left [%g, %g] right [%g, %g]: %w",
			left.Lower(), left.Upper(), right.Lower(), right.Upper(), dynamo.ErrBoundsMismatch)
	}
	if left.Range() <= 0 {
		return nil, dynamo.ErrZeroRange
	}
	return &Pair{left: left, right: right}, nil
}

func (p *Pair) Left() *channel.Channel  { return p.left }
func (p *Pair) Right() *channel.Channel { return p.right }

// Range is the shared input range of both channels.
func (p *Pair) Range() float64 { return p.left.Range() }

func (p *Pair) Difference() float64 {
	return p.left.Value() - p.right.Value()
}

func (p *Pair) Ratio() float64 {
	return Ratio(p.Difference(), p.Range())
}

// Measurement maps the current readings onto a scale centred at target.
func (p *Pair) Measurement(target float64) float64 {
	return p.Ratio() * (target * 2)
}

// Ratio remaps a difference in [-rng, rng] into [0, 1]. rng must be non-zero.
func Ratio(difference, rng float64) float64 {
	scaled := (difference + rng) / 2.0
	return scaled / rng
}

// Map is Pair.Measurement for bare values.
func Map(left, right, rng, target float64) float64 {
	return Ratio(left-right, rng) * (target * 2)
}

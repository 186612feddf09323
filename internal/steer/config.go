package steer

import (
	"fmt"
	"math"

	"github.com/san-kum/servosteer/internal/channel"
	"github.com/san-kum/servosteer/internal/control"
)

const DefaultTarget = 90.0

// Config is the construction surface of a Loop. Angles are in degrees,
// 0 fully left and 180 fully right.
type Config struct {
	Target        float64
	OutputMin     float64
	OutputMax     float64
	Kp            float64
	Ki            float64
	Kd            float64
	IntegralLimit float64
	InputMin      float64
	InputMax      float64
}

func DefaultConfig() Config {
	return Config{
		Target:    DefaultTarget,
		OutputMin: control.DefaultOutputMin,
		OutputMax: control.DefaultOutputMax,
		Kp:        control.DefaultKp,
		Ki:        control.DefaultKi,
		Kd:        control.DefaultKd,
		InputMin:  channel.DefaultLower,
		InputMax:  channel.DefaultUpper,
	}
}

func (c Config) Control() control.Config {
	return control.Config{
		Target:        c.Target,
		OutputMin:     c.OutputMin,
		OutputMax:     c.OutputMax,
		Kp:            c.Kp,
		Ki:            c.Ki,
		Kd:            c.Kd,
		IntegralLimit: c.IntegralLimit,
	}
}

type Direction int

const (
	OnTarget Direction = iota
	LeftOfTarget
	RightOfTarget
)

// DirectionOf compares the servo output with the target.
func DirectionOf(target, output float64) Direction {
	switch {
	case output < target:
		return LeftOfTarget
	case output > target:
		return RightOfTarget
	default:
		return OnTarget
	}
}

// Describe renders the servo angle relative to target with the given
// number of decimals.
func Describe(target, output float64, decimals int) string {
	diff := math.Abs(output - target)
	switch DirectionOf(target, output) {
	case LeftOfTarget:
		return fmt.Sprintf("The servo is angled %.*f degrees to the left of target!", decimals, diff)
	case RightOfTarget:
		return fmt.Sprintf("The servo is angled %.*f degrees to the right of target!", decimals, diff)
	default:
		return "The servo is angled right at target!"
	}
}

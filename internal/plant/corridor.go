// Package plant simulates a vehicle driving down a corridor with two
// forward-angled time-of-flight sensors and a steering servo at the front.
//
// State is [offset, heading]: lateral offset from the corridor centre in
// metres (positive right) and heading in radians (positive right). The
// single control input is the servo angle in degrees.
package plant

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/san-kum/servosteer/internal/dynamo"
	"github.com/san-kum/servosteer/internal/steer"
)

const (
	DefaultWheelbase   = 0.5
	DefaultMaxSteer    = math.Pi / 6
	DefaultSensorAngle = math.Pi / 4
)

type Params struct {
	Speed     float64 // m/s
	Width     float64 // corridor width in metres
	Wheelbase float64
	// MaxSteer is the wheel angle in radians at a servo deflection of Center.
	MaxSteer float64
	// Center is the servo angle that points the wheels straight ahead.
	Center float64
	// FullScale is the sensor reading for a beam whose lateral reach equals Width.
	FullScale float64
	// SensorAngle is the angle of each beam from the direction of travel.
	// Angled beams see the heading as well as the offset.
	SensorAngle float64
	// Noise is the standard deviation of sensor noise in reading units.
	Noise float64
}

func DefaultParams() Params {
	return Params{
		Speed:       1.5,
		Width:       2.0,
		Wheelbase:   DefaultWheelbase,
		MaxSteer:    DefaultMaxSteer,
		Center:      steer.DefaultTarget,
		FullScale:   1023,
		SensorAngle: DefaultSensorAngle,
	}
}

// Kinematics is the bicycle model of the vehicle as a dynamo.System.
type Kinematics struct {
	p Params
}

func (k *Kinematics) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	delta := k.p.SteerAngle(u[0])
	return dynamo.State{
		k.p.Speed * math.Sin(x[1]),
		k.p.Speed / k.p.Wheelbase * math.Tan(delta),
	}
}

func (k *Kinematics) StateDim() int   { return 2 }
func (k *Kinematics) ControlDim() int { return 1 }

// SteerAngle converts a servo angle in degrees into a wheel angle in radians.
func (p Params) SteerAngle(servo float64) float64 {
	delta := (servo - p.Center) / p.Center * p.MaxSteer
	return dynamo.Clamp(delta, -p.MaxSteer, p.MaxSteer)
}

// Corridor is both the acquisition and actuation collaborator of a steer.Loop.
// Readings are sampled when the left channel is acquired; the right channel
// returns the same sample.
type Corridor struct {
	p     Params
	dyn   *Kinematics
	integ dynamo.Integrator
	dt    float64
	rnd   *rand.Rand

	x        dynamo.State
	t        float64
	sample   [2]float64
	collided bool

	// MaxHistory caps Trajectory and Times; zero keeps everything.
	MaxHistory int
	Trajectory []dynamo.State
	Times      []float64
}

func NewCorridor(p Params, integ dynamo.Integrator, dt float64, x0 dynamo.State, seed int64) (*Corridor, error) {
	if p.Width <= 0 || p.Speed < 0 || p.Wheelbase <= 0 || p.Center <= 0 || p.FullScale <= 0 ||
		p.SensorAngle <= 0 || p.SensorAngle > math.Pi/2 {
		return nil, fmt.Errorf("plant: %w", dynamo.ErrParameterBounds)
	}
	if dt <= 0 {
		return nil, fmt.Errorf("plant: dt must be positive, got %f", dt)
	}
	if len(x0) != 2 {
		return nil, fmt.Errorf("plant: %w", dynamo.ErrDimensionMismatch)
	}
	c := &Corridor{
		p:     p,
		dyn:   &Kinematics{p: p},
		integ: integ,
		dt:    dt,
		rnd:   rand.New(rand.NewSource(seed)),
		x:     x0.Clone(),
	}
	c.record()
	return c, nil
}

// Distances returns the true distances to the left and right walls along the
// sensor beams. A beam that runs parallel to or away from its wall is cut
// off at ten times its lateral reach.
func (c *Corridor) Distances() (float64, float64) {
	half := c.p.Width / 2
	b, psi := c.p.SensorAngle, c.x[1]
	return (half + c.x[0]) / beam(b-psi), (half - c.x[0]) / beam(b+psi)
}

func beam(angle float64) float64 {
	return math.Max(math.Sin(angle), 0.1)
}

func (c *Corridor) Acquire(ctx context.Context, side steer.Side) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if side == steer.Left {
		l, r := c.Distances()
		c.sample[0] = c.toReading(l)
		c.sample[1] = c.toReading(r)
	}
	return c.sample[side], nil
}

// toReading scales so that a centred vehicle heading straight reads half of
// FullScale on both sides.
func (c *Corridor) toReading(d float64) float64 {
	v := d * math.Sin(c.p.SensorAngle) / c.p.Width * c.p.FullScale
	if c.p.Noise > 0 {
		v += c.rnd.NormFloat64() * c.p.Noise
	}
	return v
}

// Actuate advances the vehicle by one time step under the given servo angle.
func (c *Corridor) Actuate(ctx context.Context, output float64) error {
	next := c.integ.Step(c.dyn, c.x, dynamo.Control{output}, c.t, c.dt)
	if !next.IsValid() {
		return dynamo.ErrInvalidState
	}

	half := c.p.Width / 2
	if math.Abs(next[0]) >= half {
		next[0] = math.Copysign(half, next[0])
		c.collided = true
	}

	c.x = next
	c.t += c.dt
	c.record()
	return nil
}

func (c *Corridor) record() {
	c.Trajectory = append(c.Trajectory, c.x.Clone())
	c.Times = append(c.Times, c.t)
	if c.MaxHistory > 0 && len(c.Times) > c.MaxHistory {
		drop := len(c.Times) - c.MaxHistory
		c.Trajectory = c.Trajectory[drop:]
		c.Times = c.Times[drop:]
	}
}

// Disturb shifts the vehicle, as a bump or a gust would. The offset stays
// inside the corridor.
func (c *Corridor) Disturb(dOffset, dHeading float64) {
	half := c.p.Width / 2
	c.x[0] = dynamo.Clamp(c.x[0]+dOffset, -half, half)
	c.x[1] += dHeading
}

func (c *Corridor) State() dynamo.State { return c.x.Clone() }
func (c *Corridor) Time() float64       { return c.t }
func (c *Corridor) Params() Params      { return c.p }

// Collided reports whether the vehicle has touched a wall.
func (c *Corridor) Collided() bool { return c.collided }

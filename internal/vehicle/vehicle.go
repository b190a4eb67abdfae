// Package vehicle models the actuation layer under the driver: a command
// sink that clamps its inputs and reports scalar speed, and a simple
// kinematic body that integrates those commands.
package vehicle

import (
	"math"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/roadagent/internal/geom"
)

// SpeedScale converts body velocity in world units per second into the
// speed units the driver reasons in.
const SpeedScale = 5.0

// Actuator accepts driver commands and reports the current speed.
type Actuator interface {
	SetThrottle(v float64)
	SetBrake(v float64)
	SetSteering(v float64)
	Speed() float64
}

// Command is one tick's actuator input.
type Command struct {
	Throttle float64 `json:"throttle"`
	Brake    float64 `json:"brake"`
	Steering float64 `json:"steering"`
}

// Clamp limits the command to the ranges every Actuator accepts.
func (c Command) Clamp() Command {
	return Command{
		Throttle: clampFinite(c.Throttle, -1, 1),
		Brake:    clampFinite(c.Brake, 0, 1),
		Steering: clampFinite(c.Steering, -1, 1),
	}
}

func clampFinite(v, lower, upper float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return lo.Clamp(v, lower, upper)
}

// BodyConfig holds the kinematic body constants.
type BodyConfig struct {
	MaxSteerAngle float64 // degrees at full steering
	WheelBase     float64 // world units
	MaxAccel      float64 // world units/s² at full throttle
	MaxDecel      float64 // world units/s² at full brake
	Drag          float64 // fraction of velocity lost per second
}

// DefaultBodyConfig returns a body whose full-throttle top speed,
// MaxAccel/Drag*SpeedScale = 75, sits just above the default cruise speed
// so the throttle holds cruise near the top of its range.
func DefaultBodyConfig() BodyConfig {
	return BodyConfig{
		MaxSteerAngle: 30,
		WheelBase:     2.5,
		MaxAccel:      3,
		MaxDecel:      12,
		Drag:          0.2,
	}
}

// Body is a kinematic bicycle model implementing Actuator.
type Body struct {
	cfg      BodyConfig
	pose     geom.Pose
	velocity float64 // world units per second, never negative
	cmd      Command
}

var _ Actuator = (*Body)(nil)

// NewBody places a stationary body at pose.
func NewBody(cfg BodyConfig, pose geom.Pose) *Body {
	return &Body{cfg: cfg, pose: pose}
}

func (b *Body) SetThrottle(v float64) { b.cmd.Throttle = clampFinite(v, -1, 1) }
func (b *Body) SetBrake(v float64)    { b.cmd.Brake = clampFinite(v, 0, 1) }
func (b *Body) SetSteering(v float64) { b.cmd.Steering = clampFinite(v, -1, 1) }

// Speed returns the scaled scalar speed.
func (b *Body) Speed() float64 { return b.velocity * SpeedScale }

// SetVelocity overrides the body velocity in world units per second.
func (b *Body) SetVelocity(v float64) { b.velocity = math.Max(0, v) }

// Command returns the last clamped command.
func (b *Body) Command() Command { return b.cmd }

// Pose returns the current pose.
func (b *Body) Pose() geom.Pose { return b.pose }

// MaxSteerAngle returns the steering angle at full lock in degrees.
func (b *Body) MaxSteerAngle() float64 { return b.cfg.MaxSteerAngle }

// Step integrates the body forward by dt seconds.
func (b *Body) Step(dt float64) {
	if dt <= 0 {
		return
	}
	accel := b.cmd.Throttle*b.cfg.MaxAccel - b.cmd.Brake*b.cfg.MaxDecel - b.cfg.Drag*b.velocity
	b.velocity = math.Max(0, b.velocity+accel*dt)

	steer := b.cmd.Steering * b.cfg.MaxSteerAngle * math.Pi / 180
	yaw := b.pose.Yaw()
	if b.cfg.WheelBase > 0 {
		yaw += b.velocity / b.cfg.WheelBase * math.Tan(steer) * dt
	}
	next := geom.PoseFromHeading(b.pose.Position, yaw)
	next.Position = r3.Add(b.pose.Position, r3.Scale(b.velocity*dt, next.Forward))
	b.pose = next
}

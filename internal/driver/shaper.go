package driver

import (
	"math"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/roadagent/internal/geom"
	"github.com/banshee-data/roadagent/internal/path"
)

const (
	// standstillRatio stands in for target/speed when the car is not moving.
	standstillRatio = 1e8
	// brakeDominates is the residual brake above which throttle is cut.
	brakeDominates = 0.1
	// throttleNudge keeps throttle from sticking at exactly zero.
	throttleNudge = 0.001
)

// ShapeThrottle ramps throttle toward the level that holds target speed.
func ShapeThrottle(throttle, speed, target, brake, rate, dt float64, pers Personality) float64 {
	if target == 0 {
		return 0
	}
	if brake >= brakeDominates {
		return 0
	}
	ratio := standstillRatio
	if speed > 0 {
		ratio = target / speed
	}
	r, p := pers.Recklessness, pers.Patience
	if ratio < 1 {
		throttle -= (1/ratio)*rate*dt*(1+r) - throttleNudge
	} else {
		throttle += ratio*rate*dt*(1+10*r)*(2-p) + throttleNudge
	}
	if !geom.Finite(throttle) {
		return 0
	}
	return lo.Clamp(throttle, 0, 1)
}

// AdvanceLaneModifier moves the lane blend toward +1 for the right lane or
// -1 for the left at rate per second.
func AdvanceLaneModifier(mod float64, useRightLane bool, rate, dt float64) float64 {
	step := math.Max(0, rate*dt)
	if useRightLane {
		mod = math.Min(mod+step, 1)
	} else {
		mod = math.Max(mod-step, -1)
	}
	return lo.Clamp(mod, -1, 1)
}

// SteeringCommand steers toward the lane-offset path point lookAhead beyond
// arc. The result is the bearing in degrees over maxSteer, clamped to
// [-1,1].
func SteeringCommand(road path.Oracle, pose geom.Pose, arc, lookAhead, laneOffset, laneMod, maxSteer float64) float64 {
	if maxSteer <= 0 {
		return 0
	}
	d := arc + lookAhead
	target := r3.Add(road.PointAt(d), r3.Scale(laneOffset*laneMod, road.NormalAt(d)))
	steer := pose.Bearing(target) / maxSteer
	if !geom.Finite(steer) {
		return 0
	}
	return lo.Clamp(steer, -1, 1)
}

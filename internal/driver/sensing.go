package driver

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/roadagent/internal/geom"
	"github.com/banshee-data/roadagent/internal/path"
	"github.com/banshee-data/roadagent/internal/world"
)

const (
	// curveSampleFactor multiplies the road look-ahead to place the
	// curvature sample beyond the steering target.
	curveSampleFactor = 4.0
	// curveSpeedDivisor normalises speed in the severity measure.
	curveSpeedDivisor = 45.0

	// forwardCone is the widest bearing, in degrees, at which another car
	// still counts as ahead.
	forwardCone = 100.0

	// Lateral zones shrink by these multiples of recklessness.
	lateralBackShrink  = 3.0
	lateralFrontShrink = 10.0
	// impatienceScale converts patience into the speed deficit an agent
	// tolerates before it only checks the close zone.
	impatienceScale = 10.0
	// impatientAngleDivisor widens the close zone when impatient.
	impatientAngleDivisor = 3.75
)

// CurveSeverity measures how sharply the road bends ahead, scaled by speed.
// It is the angle in degrees between the vehicle's right axis and the path
// normal four look-ahead distances down the road, times speed/45.
func CurveSeverity(road path.Oracle, pose geom.Pose, arc, speed, lookAhead float64) float64 {
	n := road.NormalAt(arc + lookAhead*curveSampleFactor)
	return geom.Angle(n, pose.Right) * speed / curveSpeedDivisor
}

// ForwardThreat returns the closest other car ahead in the given lane, or
// in any lane while it is changing lanes, and the straight-line distance to
// it. It returns nil when nothing qualifies.
func ForwardThreat(self world.Entity, cars []world.Car, useRightLane bool) (world.Car, float64) {
	me := self.Pose()
	var (
		threat world.Car
		best   float64
	)
	for _, c := range cars {
		if c.ID() == self.ID() {
			continue
		}
		if c.UseRightLane() != useRightLane && !c.IsChangingLanes() {
			continue
		}
		pos := c.Pose().Position
		if geom.Angle(me.Forward, r3.Sub(pos, me.Position)) >= forwardCone {
			continue
		}
		d := geom.Distance(pos, me.Position)
		if d <= 0 {
			continue
		}
		if threat == nil || d < best {
			threat, best = c, d
		}
	}
	return threat, best
}

// LateralThreat reports the first car in scan order that makes a lane
// change unsafe. cruise and target are the agent's cruise speed and its
// current target speed.
func LateralThreat(self world.Entity, cars []world.Car, p Params, pers Personality, cruise, target float64) world.Car {
	me := self.Pose()
	r := pers.Recklessness
	back := p.LateralBackDistance - lateralBackShrink*r
	front := p.LateralFrontDistance - lateralFrontShrink*r
	impatient := cruise-target > pers.Patience*impatienceScale

	for _, c := range cars {
		if c.ID() == self.ID() {
			continue
		}
		pos := c.Pose().Position
		angle := geom.Angle(me.Forward, r3.Sub(pos, me.Position))
		d := geom.Distance(pos, me.Position)

		if impatient {
			if d < back && angle > p.LateralFrontAngle/impatientAngleDivisor {
				return c
			}
			continue
		}
		if (d < back && angle < p.LateralBackAngle) || (d < front && angle > p.LateralFrontAngle) {
			return c
		}
	}
	return nil
}

// Package driver is the behaviour controller of one autonomous car: a
// prioritised state machine fed by curve, traffic and stop-sign sensing,
// whose target speed and brake level are shaped into actuator commands.
package driver

import (
	"math"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/banshee-data/roadagent/internal/geom"
	"github.com/banshee-data/roadagent/internal/path"
	"github.com/banshee-data/roadagent/internal/vehicle"
	"github.com/banshee-data/roadagent/internal/world"
)

const (
	// curveSlowdownRate scales curve severity into target-speed decay.
	curveSlowdownRate = 0.5

	// closingRateOffset is subtracted from the speed difference before it
	// counts as closing in on the car ahead.
	closingRateOffset = 3.0
	// followHeadroom widens the follow cap beyond the danger gap.
	followHeadroom = 4.0
	// panicMargin is how far inside the emergency threshold panic begins.
	panicMargin = 1.0
	// fastThreatSpeed separates the two headroom terms of the follow
	// speed; fastHeadroom applies above it, slowHeadroom below.
	fastThreatSpeed = 15.0
	fastHeadroom    = 10.0
	slowHeadroom    = 1.0
	// laneDelayRecovery divides dt while the lane-change timer refills.
	laneDelayRecovery = 10.0

	// softTriggerThrottle and softTriggerBrake describe a car ahead that is
	// not pulling away.
	softTriggerThrottle = 0.8
	softTriggerBrake    = 0.1

	// recklessFloorBoost raises the stop-sign approach floor per unit of
	// recklessness.
	recklessFloorBoost = 10.0
	// finalStopDivisor divides the approach speed into the distance at
	// which the final stop is forced.
	finalStopDivisor = 3.0
	// stoppedSpeed is the speed below which the car counts as stopped.
	stoppedSpeed = 0.1

	// minGap replaces any distance that would otherwise divide by zero.
	minGap = 1e-3
)

// Vehicle is the actuated body an Agent drives.
type Vehicle interface {
	vehicle.Actuator
	Pose() geom.Pose
	MaxSteerAngle() float64
}

// Config describes a new Agent.
type Config struct {
	ID          uuid.UUID
	Name        string
	Params      Params
	Personality Personality
	// LeftLane starts the agent in the left lane.
	LeftLane bool
}

// ManualInput replaces the throttle shaper while Enabled.
type ManualInput struct {
	Enabled  bool    `json:"enabled"`
	Throttle float64 `json:"throttle"`
	Brake    float64 `json:"brake"`
}

// Agent drives one Vehicle along a road. Tick must be called from a single
// goroutine; other agents read its public state between ticks.
type Agent struct {
	id   uuid.UUID
	name string

	veh   Vehicle
	road  path.Oracle
	world world.Query

	params      Params
	personality Personality
	manual      ManualInput

	state           State
	arc             float64
	useRightLane    bool
	laneModifier    float64
	laneChangeDelay float64
	stopTimer       float64
	targetSpeed     float64
	signs           StopSignTracker
	cmd             vehicle.Command

	snap Snapshot
}

var _ world.Car = (*Agent)(nil)

// NewAgent returns an agent in Accelerate. A nil ID is replaced with a
// fresh one.
func NewAgent(cfg Config, veh Vehicle, road path.Oracle, q world.Query) *Agent {
	id := cfg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	a := &Agent{
		id:              id,
		name:            cfg.Name,
		veh:             veh,
		road:            road,
		world:           q,
		params:          cfg.Params,
		personality:     cfg.Personality.Clamp(),
		state:           StateAccelerate,
		useRightLane:    !cfg.LeftLane,
		laneModifier:    1,
		laneChangeDelay: cfg.Params.MaxLaneChangeDelay,
	}
	if cfg.LeftLane {
		a.laneModifier = -1
	}
	a.snap = a.snapshot(StateAccelerate, tickSignals{})
	return a
}

func (a *Agent) ID() uuid.UUID     { return a.id }
func (a *Agent) Tag() world.Tag    { return world.TagCar }
func (a *Agent) Pose() geom.Pose   { return a.veh.Pose() }
func (a *Agent) Name() string      { return a.name }
func (a *Agent) State() State      { return a.state }
func (a *Agent) Speed() float64    { return a.veh.Speed() }
func (a *Agent) Throttle() float64 { return a.cmd.Throttle }
func (a *Agent) Brake() float64    { return a.cmd.Brake }
func (a *Agent) Steering() float64 { return a.cmd.Steering }

// UseRightLane reports the lane the agent is heading for.
func (a *Agent) UseRightLane() bool { return a.useRightLane }

// IsChangingLanes reports whether the lane blend has not settled.
func (a *Agent) IsChangingLanes() bool { return math.Abs(a.laneModifier) < 1 }

// LaneModifier returns the lane blend in [-1,1].
func (a *Agent) LaneModifier() float64 { return a.laneModifier }

// TargetSpeed returns the target speed computed by the last tick.
func (a *Agent) TargetSpeed() float64 { return a.targetSpeed }

// Params returns the current navigation parameters.
func (a *Agent) Params() Params { return a.params }

// Personality returns the current personality.
func (a *Agent) Personality() Personality { return a.personality }

// tickSignals are the sensing results of one tick, kept for the snapshot.
type tickSignals struct {
	speed     float64
	severity  float64
	threat    world.Car
	threatGap float64
	followCap float64
	hasSign   bool
	signGap   float64
}

// Tick advances the agent by dt seconds and pushes its commands to the
// vehicle.
func (a *Agent) Tick(dt float64) {
	if !(dt > 0) || !geom.Finite(dt) {
		return
	}
	p := a.params
	r := a.personality.Recklessness
	pose := a.veh.Pose()
	cruise := p.CruiseSpeed

	// 1. Localise on the road and sense the bend ahead.
	var sig tickSignals
	sig.speed = a.veh.Speed()
	a.arc = a.road.ClosestDistanceAlong(pose.Position)
	sig.severity = CurveSeverity(a.road, pose, a.arc, sig.speed, p.RoadLookAhead) / (1 + r)

	// 2. Stop sign: re-validate the tracked one, or look for the next.
	signArc, ok := a.signs.Arc(a.road, a.world)
	if !ok && a.signs.Resolve(a.road, a.world, a.arc, p.StopSignBuffer) {
		signArc, ok = a.signs.Arc(a.road, a.world)
	}
	if ok {
		sig.hasSign = true
		sig.signGap = arcAhead(a.road, a.arc, signArc, p.StopSignBuffer)
		if sig.signGap <= p.StopSignBrakeDistance && a.state.Priority() < StateStopAtSign.Priority() {
			a.state = StateStopAtSign
		}
	}

	// 3. Forward traffic.
	cars := world.Cars(a.world)
	sig.threat, sig.threatGap = ForwardThreat(a, cars, a.useRightLane)
	if sig.threat != nil && (!sig.hasSign || sig.signGap > sig.threatGap) {
		soft := sig.threatGap < p.SoftDangerDistance(r) &&
			(sig.threat.Throttle() < softTriggerThrottle || sig.threat.Brake() > softTriggerBrake)
		hard := sig.threatGap < p.EmergencyDistance(r)
		if soft || hard {
			a.state = StateMaintainDistance
		}
	}

	// 4. Behaviour.
	acting := a.state
	switch a.state {
	case StateAccelerate:
		a.targetSpeed = cruise
		a.cmd.Brake = 0
		if sig.severity > p.MaxCurveSeverity {
			a.state = StateSlowForCurve
		} else if sig.speed >= a.targetSpeed {
			a.state = StateCruise
		}

	case StateCruise:
		a.targetSpeed = cruise
		if sig.severity > p.MaxCurveSeverity {
			a.state = StateSlowForCurve
		}

	case StateSlowForCurve:
		if sig.severity > p.MaxCurveSeverity {
			a.targetSpeed = lo.Clamp(a.targetSpeed-sig.severity*dt*curveSlowdownRate, cruise/2, cruise)
		} else {
			a.state = StateAccelerate
		}

	case StateMaintainDistance:
		a.maintainDistance(&sig, cars, dt)

	case StateChangeLanes:
		if (a.useRightLane && a.laneModifier >= 1) || (!a.useRightLane && a.laneModifier <= -1) {
			a.state = StateAccelerate
		}
		if math.Abs(a.laneModifier) > 0.5 {
			a.targetSpeed = cruise
		}

	case StateStopAtSign:
		a.stopAtSign(sig, dt)

	case StateWaitAtStopSign:
		a.stopTimer -= dt
		if a.stopTimer <= 0 {
			a.cmd.Brake = 0
			a.signs.Clear()
			a.state = StateAccelerate
		}

	default:
		a.state = StateAccelerate
	}

	// 5. Shape throttle and steering, then hand the command to the vehicle.
	if !geom.Finite(a.targetSpeed) {
		a.targetSpeed = 0
	}
	a.targetSpeed = math.Max(0, a.targetSpeed)
	if !geom.Finite(a.cmd.Brake) {
		a.cmd.Brake = 1
	}
	a.cmd.Brake = lo.Clamp(a.cmd.Brake, 0, 1)

	if a.manual.Enabled {
		a.cmd.Throttle = a.manual.Throttle
		a.cmd.Brake = a.manual.Brake
	} else {
		a.cmd.Throttle = ShapeThrottle(a.cmd.Throttle, sig.speed, a.targetSpeed, a.cmd.Brake, p.ThrottleAdjustSpeed, dt, a.personality)
	}
	a.laneModifier = AdvanceLaneModifier(a.laneModifier, a.useRightLane, p.ChangeLaneSpeed, dt)
	a.cmd.Steering = SteeringCommand(a.road, pose, a.arc, p.RoadLookAhead, p.LaneOffset, a.laneModifier, a.veh.MaxSteerAngle())

	a.cmd = vehicle.Command{
		Throttle: lo.Clamp(a.cmd.Throttle, 0, 1),
		Brake:    a.cmd.Brake,
		Steering: a.cmd.Steering,
	}.Clamp()
	a.veh.SetThrottle(a.cmd.Throttle)
	a.veh.SetBrake(a.cmd.Brake)
	a.veh.SetSteering(a.cmd.Steering)

	a.snap = a.snapshot(acting, sig)
}

func (a *Agent) maintainDistance(sig *tickSignals, cars []world.Car, dt float64) {
	if sig.threat == nil {
		a.state = StateAccelerate
		return
	}
	p := a.params
	r := a.personality.Recklessness
	cruise := p.CruiseSpeed
	gap := math.Max(sig.threatGap, minGap)
	other := sig.threat.Speed()

	closing := lo.Clamp(sig.speed-other-closingRateOffset, 0, p.ClosingRateCap)
	sig.followCap = math.Min(cruise-p.DangerThreshold+gap+followHeadroom, other+1)

	if gap < p.EmergencyThreshold-panicMargin {
		a.targetSpeed = cruise * r / 2
		a.cmd.Brake = 1 - r*r
	} else {
		headroom := slowHeadroom
		if other > fastThreatSpeed {
			headroom = fastHeadroom
		}
		a.targetSpeed = math.Min(other-headroom/gap, cruise)*(1-r) + cruise*r
		a.cmd.Brake = math.Pow(closing*closing/(gap*gap*gap), 1+2*r)
	}

	if gap > p.DangerThreshold/p.DangerExitModifier {
		a.state = StateAccelerate
	}

	if gap < p.CarLookAhead && cruise > other {
		a.laneChangeDelay -= dt
		if a.laneChangeDelay < 0 && !a.IsChangingLanes() {
			if LateralThreat(a, cars, p, a.personality, cruise, a.targetSpeed) == nil {
				a.state = StateChangeLanes
				a.useRightLane = !a.useRightLane
			}
			a.laneChangeDelay = p.MaxLaneChangeDelay + 2*a.personality.Patience
		}
	} else if a.laneChangeDelay < p.MaxLaneChangeDelay {
		a.laneChangeDelay += dt / laneDelayRecovery
	}
}

func (a *Agent) stopAtSign(sig tickSignals, dt float64) {
	if !sig.hasSign {
		a.cmd.Brake = 0
		a.state = StateAccelerate
		return
	}
	p := a.params
	floor := p.StopSignApproachSpeed + recklessFloorBoost*a.personality.Recklessness

	a.targetSpeed = sig.signGap + p.StopSignApproachSpeed
	if sig.signGap > minGap {
		a.cmd.Brake += p.StopSignBrakeStrength / sig.signGap * dt * p.BrakingSpeed
	}
	if sig.speed < floor {
		a.targetSpeed = floor
		a.cmd.Brake = 0
	}
	if sig.signGap < p.StopSignApproachSpeed/finalStopDivisor {
		a.targetSpeed = 0
		a.cmd.Brake = 1
	}
	if sig.speed < stoppedSpeed {
		a.stopTimer = p.StopDuration
		a.state = StateWaitAtStopSign
	}
}

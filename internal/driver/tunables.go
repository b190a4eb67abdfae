package driver

import "github.com/samber/lo"

// Runtime tunables. Every setter clamps its input and takes effect on the
// next Tick.

// SetPatience sets patience, clamped to [0,1].
func (a *Agent) SetPatience(v float64) {
	a.personality.Patience = unit(v)
}

// SetRecklessness sets recklessness, clamped to [0,1].
func (a *Agent) SetRecklessness(v float64) {
	a.personality.Recklessness = unit(v)
}

// SetManualOverride switches between the throttle shaper and the manual
// throttle and brake scalars.
func (a *Agent) SetManualOverride(enabled bool) {
	a.manual.Enabled = enabled
}

// SetManualThrottle sets the manual throttle, clamped to [0,1].
func (a *Agent) SetManualThrottle(v float64) {
	a.manual.Throttle = unit(v)
}

// SetManualBrake sets the manual brake, clamped to [0,1].
func (a *Agent) SetManualBrake(v float64) {
	a.manual.Brake = unit(v)
}

// Manual returns the manual override settings.
func (a *Agent) Manual() ManualInput { return a.manual }

// ForceLaneChange flips the target lane. The steering shaper carries out
// the move; the behaviour state is left alone.
func (a *Agent) ForceLaneChange() {
	a.useRightLane = !a.useRightLane
}

// SetLaneChangeSpeed maps v in [0,1] to a lane blend rate of 0.5..5 per
// second and a lane-change delay of 10..0.5 seconds.
func (a *Agent) SetLaneChangeSpeed(v float64) {
	v = unit(v)
	a.params.ChangeLaneSpeed = 0.5 + 4.5*v
	a.params.MaxLaneChangeDelay = 10 - 9.5*v
	a.laneChangeDelay = lo.Clamp(a.laneChangeDelay, 0, a.params.MaxLaneChangeDelay)
}

// SetDesiredCruiseSpeed sets cruise speed to v times MaxCruiseSpeed.
func (a *Agent) SetDesiredCruiseSpeed(v float64) {
	a.params.CruiseSpeed = unit(v) * a.params.MaxCruiseSpeed
}

// SetParams replaces every navigation parameter. It rejects invalid sets.
func (a *Agent) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	a.params = p
	return nil
}

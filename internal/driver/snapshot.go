package driver

import (
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
)

// Snapshot is the observable state of an agent after a tick. Presentation
// layers poll it; the controller never reads it back.
type Snapshot struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`

	// State is the behaviour that ran during the tick, NextState the one
	// the next tick starts in.
	State     State  `json:"state"`
	NextState State  `json:"next_state"`
	Action    string `json:"action"`

	Position      r3.Vec  `json:"position"`
	Arc           float64 `json:"arc"`
	Speed         float64 `json:"speed"`
	TargetSpeed   float64 `json:"target_speed"`
	CurveSeverity float64 `json:"curve_severity"`

	UseRightLane    bool    `json:"use_right_lane"`
	LaneModifier    float64 `json:"lane_modifier"`
	LaneChangeDelay float64 `json:"lane_change_delay"`

	ThreatID       *uuid.UUID `json:"threat_id,omitempty"`
	ThreatDistance float64    `json:"threat_distance,omitempty"`
	FollowCap      float64    `json:"follow_cap,omitempty"`

	StopSignID       *uuid.UUID `json:"stop_sign_id,omitempty"`
	StopSignDistance float64    `json:"stop_sign_distance,omitempty"`
	StopTimer        float64    `json:"stop_timer,omitempty"`

	Throttle float64 `json:"throttle"`
	Brake    float64 `json:"brake"`
	Steering float64 `json:"steering"`
	Manual   bool    `json:"manual"`

	Personality Personality `json:"personality"`
}

// Snapshot returns the state published by the last tick.
func (a *Agent) Snapshot() Snapshot {
	return a.snap
}

func (a *Agent) snapshot(acting State, sig tickSignals) Snapshot {
	s := Snapshot{
		ID:              a.id,
		Name:            a.name,
		State:           acting,
		NextState:       a.state,
		Action:          acting.Label(),
		Position:        a.veh.Pose().Position,
		Arc:             a.arc,
		Speed:           sig.speed,
		TargetSpeed:     a.targetSpeed,
		CurveSeverity:   sig.severity,
		UseRightLane:    a.useRightLane,
		LaneModifier:    a.laneModifier,
		LaneChangeDelay: a.laneChangeDelay,
		FollowCap:       sig.followCap,
		Throttle:        a.cmd.Throttle,
		Brake:           a.cmd.Brake,
		Steering:        a.cmd.Steering,
		Manual:          a.manual.Enabled,
		Personality:     a.personality,
	}
	if sig.threat != nil {
		id := sig.threat.ID()
		s.ThreatID = &id
		s.ThreatDistance = sig.threatGap
	}
	if id, ok := a.signs.Tracked(); ok && sig.hasSign {
		s.StopSignID = &id
		s.StopSignDistance = sig.signGap
	}
	if acting == StateWaitAtStopSign {
		s.StopTimer = a.stopTimer
	}
	return s
}

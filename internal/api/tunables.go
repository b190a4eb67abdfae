package api

import (
	"errors"
	"fmt"

	"github.com/banshee-data/roadagent/internal/config"
	"github.com/banshee-data/roadagent/internal/driver"
)

// TunablesRequest is the body of POST /api/agents/{agent}/tunables. Unset
// fields leave the agent alone.
type TunablesRequest struct {
	Patience           *float64 `json:"patience,omitempty"`
	Recklessness       *float64 `json:"recklessness,omitempty"`
	ManualOverride     *bool    `json:"manual_override,omitempty"`
	ManualThrottle     *float64 `json:"manual_throttle,omitempty"`
	ManualBrake        *float64 `json:"manual_brake,omitempty"`
	ForceLaneChange    bool     `json:"force_lane_change,omitempty"`
	LaneChangeSpeed    *float64 `json:"lane_change_speed,omitempty"`
	DesiredCruiseSpeed *float64 `json:"desired_cruise_speed,omitempty"`
	// Params patches driver parameters on top of the agent's current set.
	Params *config.TuningConfig `json:"params,omitempty"`
}

var errEmptyRequest = errors.New("no tunables set")

// Validate rejects empty requests and parameter patches that could never
// apply. Unit-range values are clamped by the agent, not rejected.
func (r TunablesRequest) Validate() error {
	if r == (TunablesRequest{}) {
		return errEmptyRequest
	}
	if r.Params != nil {
		if err := r.Params.Validate(); err != nil {
			return fmt.Errorf("params: %w", err)
		}
	}
	return nil
}

// Apply runs the request against a, in field order. A parameter patch that
// fails against the agent's current set is reported and skipped.
func (r TunablesRequest) Apply(a *driver.Agent) error {
	if r.Patience != nil {
		a.SetPatience(*r.Patience)
	}
	if r.Recklessness != nil {
		a.SetRecklessness(*r.Recklessness)
	}
	if r.ManualOverride != nil {
		a.SetManualOverride(*r.ManualOverride)
	}
	if r.ManualThrottle != nil {
		a.SetManualThrottle(*r.ManualThrottle)
	}
	if r.ManualBrake != nil {
		a.SetManualBrake(*r.ManualBrake)
	}
	if r.ForceLaneChange {
		a.ForceLaneChange()
	}
	if r.LaneChangeSpeed != nil {
		a.SetLaneChangeSpeed(*r.LaneChangeSpeed)
	}
	if r.DesiredCruiseSpeed != nil {
		a.SetDesiredCruiseSpeed(*r.DesiredCruiseSpeed)
	}
	if r.Params != nil {
		if r.Params.Patience != nil {
			a.SetPatience(*r.Params.Patience)
		}
		if r.Params.Recklessness != nil {
			a.SetRecklessness(*r.Params.Recklessness)
		}
		if err := a.SetParams(r.Params.ApplyTo(a.Params())); err != nil {
			return fmt.Errorf("agent %s: %w", a.Name(), err)
		}
	}
	return nil
}

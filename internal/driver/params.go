package driver

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/samber/lo"
)

// Params are the navigation constants of one agent. Distances are in world
// units, speeds in vehicle speed units, angles in degrees.
type Params struct {
	CruiseSpeed        float64 `json:"cruise_speed"`
	MaxCruiseSpeed     float64 `json:"max_cruise_speed"`
	ChangeLaneSpeed    float64 `json:"change_lane_speed"`
	MaxLaneChangeDelay float64 `json:"max_lane_change_delay"`
	LaneOffset         float64 `json:"lane_offset"`

	RoadLookAhead    float64 `json:"road_look_ahead"`
	MaxCurveSeverity float64 `json:"max_curve_severity"`

	CarLookAhead       float64 `json:"car_look_ahead"`
	DangerThreshold    float64 `json:"danger_threshold"`
	EmergencyThreshold float64 `json:"emergency_threshold"`
	ClosingRateCap     float64 `json:"closing_rate_cap"`
	DangerExitModifier float64 `json:"danger_exit_modifier"`

	LateralFrontDistance float64 `json:"lateral_front_distance"`
	LateralFrontAngle    float64 `json:"lateral_front_angle"`
	LateralBackDistance  float64 `json:"lateral_back_distance"`
	LateralBackAngle     float64 `json:"lateral_back_angle"`

	ThrottleAdjustSpeed float64 `json:"throttle_adjust_speed"`
	BrakingSpeed        float64 `json:"braking_speed"`

	StopSignBrakeStrength float64 `json:"stop_sign_brake_strength"`
	StopSignBrakeDistance float64 `json:"stop_sign_brake_distance"`
	StopSignApproachSpeed float64 `json:"stop_sign_approach_speed"`
	StopSignBuffer        float64 `json:"stop_sign_buffer"`
	StopDuration          float64 `json:"stop_duration"`
}

// DefaultParams returns the stock tuning.
func DefaultParams() Params {
	return Params{
		CruiseSpeed:        65,
		MaxCruiseSpeed:     65,
		ChangeLaneSpeed:    2,
		MaxLaneChangeDelay: 4,
		LaneOffset:         0,

		RoadLookAhead:    6,
		MaxCurveSeverity: 20,

		CarLookAhead:       12,
		DangerThreshold:    5,
		EmergencyThreshold: 4,
		ClosingRateCap:     20,
		DangerExitModifier: 2,

		LateralFrontDistance: 12,
		LateralFrontAngle:    30,
		LateralBackDistance:  4,
		LateralBackAngle:     160,

		ThrottleAdjustSpeed: 0.1,
		BrakingSpeed:        1,

		StopSignBrakeStrength: 10,
		StopSignBrakeDistance: 40,
		StopSignApproachSpeed: 15,
		StopSignBuffer:        5,
		StopDuration:          1,
	}
}

// MaxLaneOffset bounds LaneOffset.
const MaxLaneOffset = 2.0

var errNegative = errors.New("must not be negative")

// Validate checks that every parameter is usable.
func (p Params) Validate() error {
	nonNegative := map[string]float64{
		"cruise_speed":             p.CruiseSpeed,
		"max_cruise_speed":         p.MaxCruiseSpeed,
		"change_lane_speed":        p.ChangeLaneSpeed,
		"max_lane_change_delay":    p.MaxLaneChangeDelay,
		"road_look_ahead":          p.RoadLookAhead,
		"max_curve_severity":       p.MaxCurveSeverity,
		"car_look_ahead":           p.CarLookAhead,
		"danger_threshold":         p.DangerThreshold,
		"emergency_threshold":      p.EmergencyThreshold,
		"closing_rate_cap":         p.ClosingRateCap,
		"lateral_front_distance":   p.LateralFrontDistance,
		"lateral_back_distance":    p.LateralBackDistance,
		"throttle_adjust_speed":    p.ThrottleAdjustSpeed,
		"braking_speed":            p.BrakingSpeed,
		"stop_sign_brake_strength": p.StopSignBrakeStrength,
		"stop_sign_brake_distance": p.StopSignBrakeDistance,
		"stop_sign_approach_speed": p.StopSignApproachSpeed,
		"stop_sign_buffer":         p.StopSignBuffer,
		"stop_duration":            p.StopDuration,
	}
	names := lo.Keys(nonNegative)
	slices.Sort(names)
	for _, name := range names {
		if nonNegative[name] < 0 {
			return fmt.Errorf("%s %w, got %v", name, errNegative, nonNegative[name])
		}
	}
	if p.DangerExitModifier <= 0 {
		return fmt.Errorf("danger_exit_modifier must be positive, got %v", p.DangerExitModifier)
	}
	if p.LaneOffset < 0 || p.LaneOffset > MaxLaneOffset {
		return fmt.Errorf("lane_offset must be in [0, %v], got %v", MaxLaneOffset, p.LaneOffset)
	}
	for name, v := range map[string]float64{
		"lateral_front_angle": p.LateralFrontAngle,
		"lateral_back_angle":  p.LateralBackAngle,
	} {
		if v < 0 || v > 180 {
			return fmt.Errorf("%s must be in [0, 180] degrees, got %v", name, v)
		}
	}
	return nil
}

// Personality biases every threshold of an agent. Both values lie in [0,1].
type Personality struct {
	Patience     float64 `json:"patience"`
	Recklessness float64 `json:"recklessness"`
}

// DefaultPersonality is a moderately patient, careful driver.
func DefaultPersonality() Personality {
	return Personality{Patience: 0.5, Recklessness: 0}
}

// Clamp forces both values into [0,1].
func (p Personality) Clamp() Personality {
	return Personality{
		Patience:     unit(p.Patience),
		Recklessness: unit(p.Recklessness),
	}
}

// unit clamps v into [0,1], mapping NaN to 0.
func unit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return lo.Clamp(v, 0, 1)
}

// SoftDangerDistance is the gap below which a slowing car ahead triggers
// MaintainDistance.
func (p Params) SoftDangerDistance(recklessness float64) float64 {
	return p.DangerThreshold / (1 + 5*recklessness)
}

// EmergencyDistance is the gap below which any car ahead triggers
// MaintainDistance.
func (p Params) EmergencyDistance(recklessness float64) float64 {
	return p.EmergencyThreshold - recklessness
}

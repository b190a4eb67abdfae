// Package config loads driver tuning from JSON.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/roadagent/internal/driver"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

const (
	defaultTickInterval = 20 * time.Millisecond
	maxConfigSize       = 1 << 20
)

// TuningConfig is the root tuning document. Every field is optional; a nil
// field falls back to the driver default, so partial files are safe. The
// schema matches the monitor's tunables endpoint so one file can seed a run
// and patch a live one.
type TuningConfig struct {
	// Cruise and lane changes
	CruiseSpeed        *float64 `json:"cruise_speed,omitempty"`
	MaxCruiseSpeed     *float64 `json:"max_cruise_speed,omitempty"`
	ChangeLaneSpeed    *float64 `json:"change_lane_speed,omitempty"`
	MaxLaneChangeDelay *float64 `json:"max_lane_change_delay,omitempty"`
	LaneOffset         *float64 `json:"lane_offset,omitempty"`

	// Road and curve sensing
	RoadLookAhead    *float64 `json:"road_look_ahead,omitempty"`
	MaxCurveSeverity *float64 `json:"max_curve_severity,omitempty"`

	// Collision sensing
	CarLookAhead         *float64 `json:"car_look_ahead,omitempty"`
	DangerThreshold      *float64 `json:"danger_threshold,omitempty"`
	EmergencyThreshold   *float64 `json:"emergency_threshold,omitempty"`
	ClosingRateCap       *float64 `json:"closing_rate_cap,omitempty"`
	DangerExitModifier   *float64 `json:"danger_exit_modifier,omitempty"`
	LateralFrontDistance *float64 `json:"lateral_front_distance,omitempty"`
	LateralFrontAngle    *float64 `json:"lateral_front_angle,omitempty"`
	LateralBackDistance  *float64 `json:"lateral_back_distance,omitempty"`
	LateralBackAngle     *float64 `json:"lateral_back_angle,omitempty"`

	// Actuation
	ThrottleAdjustSpeed *float64 `json:"throttle_adjust_speed,omitempty"`
	BrakingSpeed        *float64 `json:"braking_speed,omitempty"`

	// Stop signs
	StopSignBrakeStrength *float64 `json:"stop_sign_brake_strength,omitempty"`
	StopSignBrakeDistance *float64 `json:"stop_sign_brake_distance,omitempty"`
	StopSignApproachSpeed *float64 `json:"stop_sign_approach_speed,omitempty"`
	StopSignBuffer        *float64 `json:"stop_sign_buffer,omitempty"`
	StopDuration          *float64 `json:"stop_duration,omitempty"`

	// Personality
	Patience     *float64 `json:"patience,omitempty"`
	Recklessness *float64 `json:"recklessness,omitempty"`

	// Simulation
	TickInterval *string `json:"tick_interval,omitempty"` // duration string like "20ms"
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a config with every field populated from the
// driver defaults. It is what config/tuning.defaults.json encodes.
func DefaultTuningConfig() *TuningConfig {
	p := driver.DefaultParams()
	pers := driver.DefaultPersonality()
	cfg := &TuningConfig{
		Patience:     ptrFloat64(pers.Patience),
		Recklessness: ptrFloat64(pers.Recklessness),
		TickInterval: ptrString(defaultTickInterval.String()),
	}
	for _, f := range cfg.fields() {
		*f.cfg = ptrFloat64(*f.param(&p))
	}
	return cfg
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseTuningConfig(data)
}

// ParseTuningConfig decodes and validates a JSON tuning document.
func ParseTuningConfig(data []byte) (*TuningConfig, error) {
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching upwards from the
// working directory. Panics if the file cannot be loaded; intended for tests.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the merged driver parameters, the personality ranges and
// the tick interval.
func (c *TuningConfig) Validate() error {
	if err := c.DriverParams().Validate(); err != nil {
		return err
	}
	if c.Patience != nil && (*c.Patience < 0 || *c.Patience > 1) {
		return fmt.Errorf("patience must be between 0 and 1, got %f", *c.Patience)
	}
	if c.Recklessness != nil && (*c.Recklessness < 0 || *c.Recklessness > 1) {
		return fmt.Errorf("recklessness must be between 0 and 1, got %f", *c.Recklessness)
	}
	if c.TickInterval != nil && *c.TickInterval != "" {
		d, err := time.ParseDuration(*c.TickInterval)
		if err != nil {
			return fmt.Errorf("invalid tick_interval '%s': %w", *c.TickInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("tick_interval must be positive, got %s", d)
		}
	}
	return nil
}

// field pairs a config pointer with the driver parameter it overrides.
type field struct {
	cfg   **float64
	param func(*driver.Params) *float64
}

func (c *TuningConfig) fields() []field {
	return []field{
		{&c.CruiseSpeed, func(p *driver.Params) *float64 { return &p.CruiseSpeed }},
		{&c.MaxCruiseSpeed, func(p *driver.Params) *float64 { return &p.MaxCruiseSpeed }},
		{&c.ChangeLaneSpeed, func(p *driver.Params) *float64 { return &p.ChangeLaneSpeed }},
		{&c.MaxLaneChangeDelay, func(p *driver.Params) *float64 { return &p.MaxLaneChangeDelay }},
		{&c.LaneOffset, func(p *driver.Params) *float64 { return &p.LaneOffset }},
		{&c.RoadLookAhead, func(p *driver.Params) *float64 { return &p.RoadLookAhead }},
		{&c.MaxCurveSeverity, func(p *driver.Params) *float64 { return &p.MaxCurveSeverity }},
		{&c.CarLookAhead, func(p *driver.Params) *float64 { return &p.CarLookAhead }},
		{&c.DangerThreshold, func(p *driver.Params) *float64 { return &p.DangerThreshold }},
		{&c.EmergencyThreshold, func(p *driver.Params) *float64 { return &p.EmergencyThreshold }},
		{&c.ClosingRateCap, func(p *driver.Params) *float64 { return &p.ClosingRateCap }},
		{&c.DangerExitModifier, func(p *driver.Params) *float64 { return &p.DangerExitModifier }},
		{&c.LateralFrontDistance, func(p *driver.Params) *float64 { return &p.LateralFrontDistance }},
		{&c.LateralFrontAngle, func(p *driver.Params) *float64 { return &p.LateralFrontAngle }},
		{&c.LateralBackDistance, func(p *driver.Params) *float64 { return &p.LateralBackDistance }},
		{&c.LateralBackAngle, func(p *driver.Params) *float64 { return &p.LateralBackAngle }},
		{&c.ThrottleAdjustSpeed, func(p *driver.Params) *float64 { return &p.ThrottleAdjustSpeed }},
		{&c.BrakingSpeed, func(p *driver.Params) *float64 { return &p.BrakingSpeed }},
		{&c.StopSignBrakeStrength, func(p *driver.Params) *float64 { return &p.StopSignBrakeStrength }},
		{&c.StopSignBrakeDistance, func(p *driver.Params) *float64 { return &p.StopSignBrakeDistance }},
		{&c.StopSignApproachSpeed, func(p *driver.Params) *float64 { return &p.StopSignApproachSpeed }},
		{&c.StopSignBuffer, func(p *driver.Params) *float64 { return &p.StopSignBuffer }},
		{&c.StopDuration, func(p *driver.Params) *float64 { return &p.StopDuration }},
	}
}

// DriverParams returns driver.DefaultParams with every set field applied.
func (c *TuningConfig) DriverParams() driver.Params {
	return c.ApplyTo(driver.DefaultParams())
}

// ApplyTo overlays the set fields onto base. The monitor uses it to patch a
// running agent's parameters.
func (c *TuningConfig) ApplyTo(base driver.Params) driver.Params {
	for _, f := range c.fields() {
		if v := *f.cfg; v != nil {
			*f.param(&base) = *v
		}
	}
	return base
}

// Personality returns the configured personality, defaults filled in.
func (c *TuningConfig) Personality() driver.Personality {
	return driver.Personality{
		Patience:     c.GetPatience(),
		Recklessness: c.GetRecklessness(),
	}.Clamp()
}

// GetPatience returns patience or the default.
func (c *TuningConfig) GetPatience() float64 {
	if c.Patience == nil {
		return driver.DefaultPersonality().Patience
	}
	return *c.Patience
}

// GetRecklessness returns recklessness or the default.
func (c *TuningConfig) GetRecklessness() float64 {
	if c.Recklessness == nil {
		return driver.DefaultPersonality().Recklessness
	}
	return *c.Recklessness
}

// GetTickInterval parses and returns the TickInterval as a time.Duration.
func (c *TuningConfig) GetTickInterval() time.Duration {
	if c.TickInterval == nil || *c.TickInterval == "" {
		return defaultTickInterval
	}
	d, err := time.ParseDuration(*c.TickInterval)
	if err != nil || d <= 0 {
		return defaultTickInterval
	}
	return d
}

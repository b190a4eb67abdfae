package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/roadagent/internal/driver"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestDefaultsFileMatchesDriverDefaults(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if diff := cmp.Diff(driver.DefaultParams(), cfg.DriverParams()); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, driver.DefaultPersonality(), cfg.Personality())
	assert.Equal(t, 20*time.Millisecond, cfg.GetTickInterval())

	if diff := cmp.Diff(DefaultTuningConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestEmptyConfigFallsBack(t *testing.T) {
	cfg := EmptyTuningConfig()
	assert.Equal(t, driver.DefaultParams(), cfg.DriverParams())
	assert.Equal(t, 0.5, cfg.GetPatience())
	assert.Equal(t, 0.0, cfg.GetRecklessness())
	assert.Equal(t, 20*time.Millisecond, cfg.GetTickInterval())
	require.NoError(t, cfg.Validate())
}

func TestLoadTuningConfigPartial(t *testing.T) {
	p := writeConfig(t, "partial.json", `{
  "cruise_speed": 40,
  "stop_duration": 2.5,
  "recklessness": 0.3,
  "tick_interval": "50ms"
}`)
	cfg, err := LoadTuningConfig(p)
	require.NoError(t, err)

	want := driver.DefaultParams()
	want.CruiseSpeed = 40
	want.StopDuration = 2.5
	if diff := cmp.Diff(want, cfg.DriverParams()); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, driver.Personality{Patience: 0.5, Recklessness: 0.3}, cfg.Personality())
	assert.Equal(t, 50*time.Millisecond, cfg.GetTickInterval())
}

func TestLoadTuningConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "tuning.yaml", `{}`, ".json extension"},
		{"bad json", "bad.json", `{"cruise_speed":`, "failed to parse"},
		{"negative distance", "neg.json", `{"car_look_ahead": -1}`, "car_look_ahead"},
		{"zero exit modifier", "exit.json", `{"danger_exit_modifier": 0}`, "danger_exit_modifier"},
		{"patience out of range", "pat.json", `{"patience": 1.5}`, "patience"},
		{"bad tick interval", "tick.json", `{"tick_interval": "soon"}`, "tick_interval"},
		{"non-positive tick interval", "tick0.json", `{"tick_interval": "0s"}`, "tick_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTuningConfig(writeConfig(t, tt.file, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "failed to stat")
}

func TestLoadTuningConfigTooLarge(t *testing.T) {
	body := `{"cruise_speed": 40` + strings.Repeat(" ", maxConfigSize) + `}`
	_, err := LoadTuningConfig(writeConfig(t, "big.json", body))
	assert.ErrorContains(t, err, "too large")
}

func TestApplyToKeepsUnsetFields(t *testing.T) {
	base := driver.DefaultParams()
	base.CruiseSpeed = 30
	base.LaneOffset = 1

	cfg, err := ParseTuningConfig([]byte(`{"lane_offset": 0.5}`))
	require.NoError(t, err)
	got := cfg.ApplyTo(base)
	assert.Equal(t, 30.0, got.CruiseSpeed)
	assert.Equal(t, 0.5, got.LaneOffset)
}

func TestDefaultTuningConfigRoundTrip(t *testing.T) {
	data, err := json.Marshal(DefaultTuningConfig())
	require.NoError(t, err)
	cfg, err := ParseTuningConfig(data)
	require.NoError(t, err)
	assert.Equal(t, driver.DefaultParams(), cfg.DriverParams())
}

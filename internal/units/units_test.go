package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid mps", MPS, true},
		{"valid mph", MPH, true},
		{"valid kmph", KMPH, true},
		{"valid kph", KPH, true},
		{"valid sim", Sim, true},
		{"invalid unit", "invalid", false},
		{"empty unit", "", false},
		{"uppercase MPS", "MPS", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValid(tt.unit))
		})
	}
}

func TestValidUnitsString(t *testing.T) {
	assert.Equal(t, "mps, mph, kmph, kph, sim", ValidUnitsString())
}

func TestFromSim(t *testing.T) {
	tests := []struct {
		name  string
		speed float64
		unit  string
		want  float64
	}{
		{"cruise to mps", 65, MPS, 13},
		{"cruise to kmph", 65, KMPH, 46.8},
		{"cruise to mph", 65, MPH, 13 * 2.2369362920544},
		{"sim passthrough", 65, Sim, 65},
		{"unknown falls back to mps", 10, "furlongs", 2},
		{"zero", 0, MPH, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, FromSim(tt.speed, tt.unit), 1e-9)
		})
	}
}

func TestConvertSpeedSim(t *testing.T) {
	assert.InDelta(t, 10.0, ConvertSpeed(2, Sim), 1e-12)
}

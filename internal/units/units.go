// Package units converts simulator speeds into display units.
package units

import (
	"strings"

	"github.com/samber/lo"
)

// Unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
	// Sim is the raw speed the driver reasons in: body velocity times the
	// vehicle speed scale.
	Sim = "sim"
)

// SimScale is the factor between body velocity in m/s and the speed the
// driver reads. It mirrors vehicle.SpeedScale without importing it.
const SimScale = 5.0

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH, Sim}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	return lo.Contains(ValidUnits, unit)
}

// ValidUnitsString returns a comma-separated list of valid units for error messages.
func ValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertSpeed converts a speed from meters per second to the target units.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * 2.2369362920544
	case KMPH, KPH:
		return speedMPS * 3.6
	case Sim:
		return speedMPS * SimScale
	default:
		return speedMPS
	}
}

// FromSim converts a driver-scale speed into the target units.
func FromSim(simSpeed float64, targetUnits string) float64 {
	if targetUnits == Sim {
		return simSpeed
	}
	return ConvertSpeed(simSpeed/SimScale, targetUnits)
}

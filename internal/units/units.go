// Package units provides shared constants and conversions for volume,
// mass and energy figures in reports.
package units

import "fmt"

// Unit constants
const (
	Milliliters = "ml"
	Liters      = "l"
	Grams       = "g"
	Kilograms   = "kg"
	Kilocal     = "kcal"
)

// ValidVolumeUnits contains all valid volume unit values.
var ValidVolumeUnits = []string{Milliliters, Liters}

// ValidMassUnits contains all valid mass unit values.
var ValidMassUnits = []string{Grams, Kilograms}

// IsValidVolumeUnit checks if the given unit is a valid volume unit.
func IsValidVolumeUnit(unit string) bool {
	for _, v := range ValidVolumeUnits {
		if unit == v {
			return true
		}
	}
	return false
}

// IsValidMassUnit checks if the given unit is a valid mass unit.
func IsValidMassUnit(unit string) bool {
	for _, v := range ValidMassUnits {
		if unit == v {
			return true
		}
	}
	return false
}

// ConvertVolume converts a volume from milliliters to the target unit.
// Pipeline figures are stored in ml.
func ConvertVolume(volumeML float64, targetUnit string) float64 {
	switch targetUnit {
	case Liters:
		return volumeML / 1000
	case Milliliters:
		return volumeML
	default:
		return volumeML // default to ml if unknown unit
	}
}

// ConvertMass converts a mass from grams to the target unit.
// Pipeline figures are stored in grams.
func ConvertMass(massG float64, targetUnit string) float64 {
	switch targetUnit {
	case Kilograms:
		return massG / 1000
	case Grams:
		return massG
	default:
		return massG // default to grams if unknown unit
	}
}

// FormatVolume renders a volume for display, switching to liters at 1000ml.
func FormatVolume(volumeML float64) string {
	if volumeML >= 1000 {
		return fmt.Sprintf("%.2f l", volumeML/1000)
	}
	return fmt.Sprintf("%.0f ml", volumeML)
}

// FormatMass renders a mass for display, switching to kilograms at 1000g.
func FormatMass(massG float64) string {
	if massG >= 1000 {
		return fmt.Sprintf("%.2f kg", massG/1000)
	}
	return fmt.Sprintf("%.0f g", massG)
}

// FormatCalories renders an energy figure for display.
func FormatCalories(kcal float64) string {
	return fmt.Sprintf("%.0f kcal", kcal)
}

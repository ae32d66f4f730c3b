// Package units provides speed unit constants, conversions and the labels
// used for the two kinematic unit systems.
package units

// Speed unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits contains all valid speed unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// ConvertSpeed converts a speed from metres per second to the target units.
// Unknown units return the input unchanged.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * 2.2369362920544
	case KMPH, KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}

// System identifies the unit system a kinematic profile is expressed in.
type System string

const (
	// Pixel profiles measure distance in source coordinate units.
	Pixel System = "pixel"
	// Metric profiles measure distance in metres.
	Metric System = "metric"
)

// DistanceLabel returns the short distance unit for s.
func (s System) DistanceLabel() string {
	if s == Metric {
		return "m"
	}
	return "px"
}

// SpeedLabel returns the short speed unit for s.
func (s System) SpeedLabel() string {
	if s == Metric {
		return "m/s"
	}
	return "px/s"
}

package stand

import (
	"math"
	"strconv"
)

// Battery is a charge level in steps of ten percent, or BatteryUnknown.
type Battery int

// BatteryUnknown marks a level the stand did not report.
const BatteryUnknown Battery = -1

// batteryStep is the granularity the stand reports its charge in.
const batteryStep = 10

// ParseBattery converts a reported percentage into a Battery level.
// Values are rounded to the nearest step; anything outside 0..100 is unknown.
func ParseBattery(percent float64) Battery {
	if math.IsNaN(percent) || percent < 0 || percent > 100 {
		return BatteryUnknown
	}

	return Battery(math.Round(percent/batteryStep) * batteryStep)
}

// Known reports whether the level was reported.
func (b Battery) Known() bool {
	return b >= 0 && b <= 100
}

// String renders the level as "70%" or "N/A".
func (b Battery) String() string {
	if !b.Known() {
		return notAvailable
	}

	return strconv.Itoa(int(b)) + "%"
}

// Tristate is a yes/no flag that may be unknown.
type Tristate int

const (
	// Unknown means the stand did not report the flag.
	Unknown Tristate = iota
	// Yes means the flag is set.
	Yes
	// No means the flag is cleared.
	No
)

// TristateOf converts a bool.
func TristateOf(v bool) Tristate {
	if v {
		return Yes
	}

	return No
}

// String renders the flag as "Yes", "No" or "N/A".
func (t Tristate) String() string {
	switch t {
	case Yes:
		return "Yes"
	case No:
		return "No"
	default:
		return notAvailable
	}
}

// notAvailable is shown for values the stand did not report.
const notAvailable = "N/A"

// State is the canonical snapshot of the stand's reported condition.
// A new value is built on every resolved call; it is never mutated afterwards.
type State struct {
	// ID is the positive stand identifier.
	ID int
	// Operate reports whether the stand accepts actuation commands.
	Operate bool
	// ArmState is the arm position as reported by the controller.
	ArmState string
	// StandState is the stand position or motion status as reported by the controller.
	StandState string
	// Battery is the charge level.
	Battery Battery
	// UltrasonicDetected reports whether the obstruction sensor saw something.
	UltrasonicDetected Tristate
}

// Fields returns the state as ordered label/value pairs for display.
func (s *State) Fields() [][2]string {
	operate := "No"
	if s.Operate {
		operate = "Yes"
	}

	return [][2]string{
		{"Stand ID", strconv.Itoa(s.ID)},
		{"Operate", operate},
		{"Arm state", orNotAvailable(s.ArmState)},
		{"Stand state", orNotAvailable(s.StandState)},
		{"Battery", s.Battery.String()},
		{"Ultrasonic", s.UltrasonicDetected.String()},
	}
}

func orNotAvailable(s string) string {
	if s == "" {
		return notAvailable
	}

	return s
}

package servo

import (
	"math"
	"time"
)

// Angle limits for hobby servos, in degrees.
const (
	MinAngle    = 0.0
	MaxAngle    = 180.0
	CenterAngle = 90.0
)

// Calibration maps servo angles onto PWM pulse widths.
type Calibration struct {
	MinPulse time.Duration
	MaxPulse time.Duration
}

// DefaultCalibration returns the 500-2500µs range used by most hobby servos.
func DefaultCalibration() Calibration {
	return Calibration{
		MinPulse: 500 * time.Microsecond,
		MaxPulse: 2500 * time.Microsecond,
	}
}

// PulseWidth converts an angle in degrees to a pulse width.
func (c Calibration) PulseWidth(angle float64) time.Duration {
	span := float64(c.MaxPulse - c.MinPulse)
	return c.MinPulse + time.Duration(math.Round(angle/MaxAngle*span))
}

// Angle converts a pulse width back to an angle in degrees.
func (c Calibration) Angle(pulse time.Duration) float64 {
	span := float64(c.MaxPulse - c.MinPulse)
	if span == 0 {
		return 0
	}
	return float64(pulse-c.MinPulse) / span * MaxAngle
}

// Ticks converts a pulse width into the number of "on" counts within one PWM
// period of the given length, for a counter with the given resolution.
func Ticks(pulse, period time.Duration, resolution int) int {
	if period <= 0 {
		return 0
	}
	t := int(math.Round(float64(pulse) / float64(period) * float64(resolution)))
	if t < 0 {
		return 0
	}
	if t > resolution-1 {
		return resolution - 1
	}
	return t
}

// ValidAngle reports whether angle lies within [MinAngle, MaxAngle].
func ValidAngle(angle float64) bool {
	return !math.IsNaN(angle) && angle >= MinAngle && angle <= MaxAngle
}

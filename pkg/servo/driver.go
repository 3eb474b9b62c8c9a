// Package servo drives hobby and bus servos: it validates targets, paces
// trajectories in real time and tracks the last commanded angle per channel.
package servo

import (
	"context"
	"errors"
)

var (
	// ErrInvalidTarget is returned for out-of-range channels, angles or speeds.
	// Nothing is actuated when it is returned.
	ErrInvalidTarget = errors.New("invalid target")

	// ErrActuatorFault wraps a failed hardware write. The channel state is left
	// at its previous value and the write is not retried.
	ErrActuatorFault = errors.New("actuator fault")
)

// Driver is the hardware boundary: it puts a channel at an angle now.
type Driver interface {
	// Channels returns the number of addressable channels.
	Channels() int

	// SetAngle outputs the pulse for angle (degrees) on channel.
	SetAngle(ctx context.Context, channel int, angle float64) error

	// Disable stops output on channel so the servo goes limp.
	Disable(ctx context.Context, channel int) error

	Close() error
}

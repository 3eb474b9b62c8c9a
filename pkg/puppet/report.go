package puppet

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownLimb is reported for limb names the puppet does not have.
	ErrUnknownLimb = errors.New("unknown limb")

	// ErrUnknownJoint is reported for joint names a limb does not have.
	ErrUnknownJoint = errors.New("unknown joint")
)

// Skip records a unit of work that was not applied and why.
type Skip struct {
	Item string
	Err  error
}

func (s Skip) String() string {
	return fmt.Sprintf("%s: %v", s.Item, s.Err)
}

// MoveReport describes the outcome of moving one limb to a pose.
type MoveReport struct {
	Limb    LimbName
	Applied map[JointName]float64
	Skipped []Skip
}

// OK returns true if every requested joint was applied.
func (r MoveReport) OK() bool {
	return len(r.Skipped) == 0
}

// Err joins the reasons of all skipped joints, or returns nil.
func (r MoveReport) Err() error {
	errs := make([]error, 0, len(r.Skipped))
	for _, s := range r.Skipped {
		errs = append(errs, fmt.Errorf("%s: %w", s.Item, s.Err))
	}
	return errors.Join(errs...)
}

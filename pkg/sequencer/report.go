package sequencer

import (
	"github.com/gwillem/puppet/pkg/puppet"
)

// Outcome summarizes how much of an operation was carried out.
type Outcome int

const (
	Success Outcome = iota // everything applied
	Partial                // some items skipped
	Failure                // nothing applied
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Partial:
		return "partial"
	case Failure:
		return "failure"
	}
	return "unknown"
}

// PoseReport describes one pose execution.
type PoseReport struct {
	Pose    string
	Outcome Outcome
	Limbs   []puppet.MoveReport
	Skipped []puppet.Skip
}

// Applied returns the number of joints that were moved.
func (r PoseReport) Applied() int {
	n := 0
	for _, l := range r.Limbs {
		n += len(l.Applied)
	}
	return n
}

// StepReport describes one step of a sequence.
type StepReport struct {
	Index int
	Pose  PoseReport
	Err   error
}

// SequenceReport describes one sequence execution.
type SequenceReport struct {
	Sequence  string
	Outcome   Outcome
	Steps     []StepReport
	Completed bool // false when interrupted before the last step
}

// Failed returns the steps whose pose could not be executed.
func (r SequenceReport) Failed() []StepReport {
	var out []StepReport
	for _, s := range r.Steps {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

// Skipped returns the number of skipped items across all steps.
func (r SequenceReport) Skipped() int {
	n := 0
	for _, s := range r.Steps {
		n += len(s.Pose.Skipped)
	}
	return n
}

func poseOutcome(r PoseReport) Outcome {
	switch {
	case len(r.Skipped) == 0:
		return Success
	case r.Applied() == 0:
		return Failure
	default:
		return Partial
	}
}

func sequenceOutcome(r SequenceReport) Outcome {
	if len(r.Steps) == 0 {
		if r.Completed {
			return Success
		}
		return Failure
	}
	failed := 0
	clean := r.Completed
	for _, s := range r.Steps {
		if s.Err != nil {
			failed++
		}
		if s.Pose.Outcome != Success {
			clean = false
		}
	}
	switch {
	case failed == len(r.Steps):
		return Failure
	case clean:
		return Success
	default:
		return Partial
	}
}

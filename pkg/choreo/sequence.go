package choreo

import (
	"math"
	"time"
)

// DefaultStepDuration is the hold after a step that does not declare one.
const DefaultStepDuration = time.Second

// Step plays one pose. Speed and Duration are optional.
type Step struct {
	Pose     string   `json:"pose"`
	Speed    *float64 `json:"speed,omitempty"`    // degrees per step
	Duration *float64 `json:"duration,omitempty"` // seconds
}

// MoveSpeed returns the step speed, or 0 (immediate) when none is set.
func (s Step) MoveSpeed() float64 {
	if s.Speed == nil {
		return 0
	}
	return *s.Speed
}

// Hold returns how long to wait after the pose was dispatched. Negative and
// non-finite durations hold for zero.
func (s Step) Hold() time.Duration {
	if s.Duration == nil {
		return DefaultStepDuration
	}
	d := *s.Duration
	if d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0
	}
	return time.Duration(d * float64(time.Second))
}

// Sequence is an ordered list of steps.
type Sequence struct {
	Description string `json:"description,omitempty"`
	Steps       []Step `json:"steps"`
}

// Clone returns a deep copy.
func (q Sequence) Clone() Sequence {
	out := Sequence{Description: q.Description, Steps: make([]Step, len(q.Steps))}
	for i, s := range q.Steps {
		out.Steps[i] = Step{Pose: s.Pose, Speed: clonePtr(s.Speed), Duration: clonePtr(s.Duration)}
	}
	return out
}

func clonePtr(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// Float returns a pointer to f, for building steps in code.
func Float(f float64) *float64 {
	return &f
}

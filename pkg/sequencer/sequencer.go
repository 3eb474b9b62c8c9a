// Package sequencer plays poses and sequences from a choreography store on a
// puppet, and drives the interactive command loop.
package sequencer

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/gwillem/puppet/pkg/choreo"
	"github.com/gwillem/puppet/pkg/logging"
	"github.com/gwillem/puppet/pkg/puppet"
	"github.com/gwillem/puppet/pkg/servo"
)

// EventKind identifies a playback event.
type EventKind int

const (
	PoseStarted EventKind = iota
	PoseFinished
	StepStarted
	SequenceStarted
	SequenceFinished
)

// Event is emitted while poses and sequences play.
type Event struct {
	Kind        EventKind
	Name        string // pose or sequence name
	Description string
	Step        int // 1-based, for StepStarted
	Steps       int
	Pose        *PoseReport     // PoseFinished
	Sequence    *SequenceReport // SequenceFinished
}

// Sequencer executes choreography against a puppet. Calls are not meant to
// overlap; callers that share a Sequencer serialize access.
type Sequencer struct {
	puppet   *puppet.Puppet
	store    *choreo.Store
	log      *slog.Logger
	clock    servo.Clock
	handlers []func(Event)
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sequencer) { s.log = l }
}

// WithClock sets the clock used for step holds and demo pauses.
func WithClock(c servo.Clock) Option {
	return func(s *Sequencer) { s.clock = c }
}

// WithEventHandler registers fn to receive playback events. It may be given
// more than once.
func WithEventHandler(fn func(Event)) Option {
	return func(s *Sequencer) { s.handlers = append(s.handlers, fn) }
}

// New creates a sequencer.
func New(p *puppet.Puppet, store *choreo.Store, opts ...Option) *Sequencer {
	s := &Sequencer{
		puppet: p,
		store:  store,
		log:    logging.Discard(),
		clock:  servo.RealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sequencer) emit(e Event) {
	for _, fn := range s.handlers {
		fn(e)
	}
}

// Puppet returns the puppet being driven.
func (s *Sequencer) Puppet() *puppet.Puppet {
	return s.puppet
}

// Store returns the choreography store.
func (s *Sequencer) Store() *choreo.Store {
	return s.store
}

// ExecutePose moves every limb named in the pose. Unknown limbs and joints
// are skipped and reported; the rest of the pose is still applied. The error
// is non-nil only when the pose does not exist or ctx is done. A limb already
// moving finishes its move; limbs after it are skipped with ctx's error.
func (s *Sequencer) ExecutePose(ctx context.Context, name string, speed float64) (PoseReport, error) {
	report := PoseReport{Pose: name, Outcome: Failure}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	pose, err := s.store.Pose(name)
	if err != nil {
		s.log.Warn("pose not found", "pose", name)
		return report, err
	}

	s.log.Info("executing pose", "pose", name, "description", pose.Description)
	s.emit(Event{Kind: PoseStarted, Name: name, Description: pose.Description})

	var interrupted error
	for limbName, joints := range pose.Limbs() {
		if err := ctx.Err(); err != nil {
			interrupted = err
			report.Skipped = append(report.Skipped, puppet.Skip{Item: limbName, Err: err})
			continue
		}

		limb, ok := s.puppet.Limb(puppet.LimbName(limbName))
		if !ok {
			s.log.Warn("limb not found", "pose", name, "limb", limbName)
			report.Skipped = append(report.Skipped, puppet.Skip{
				Item: limbName,
				Err:  fmt.Errorf("%w %q", puppet.ErrUnknownLimb, limbName),
			})
			continue
		}

		angles := make(map[puppet.JointName]float64, len(joints))
		for j, a := range joints {
			angles[puppet.JointName(j)] = a
		}
		mr := limb.MoveToPose(ctx, angles, speed)
		report.Limbs = append(report.Limbs, mr)
		report.Skipped = append(report.Skipped, mr.Skipped...)
	}

	report.Outcome = poseOutcome(report)
	if interrupted != nil {
		s.log.Info("pose interrupted", "pose", name, "applied", report.Applied())
	}
	s.emit(Event{Kind: PoseFinished, Name: name, Description: pose.Description, Pose: &report})
	return report, interrupted
}

// ExecuteSequence plays the steps of a sequence in order. A step whose pose
// fails is logged and skipped; later steps still run. After each executed
// step the sequencer holds for the step duration. Cancelling ctx stops the
// sequence before the next step.
func (s *Sequencer) ExecuteSequence(ctx context.Context, name string) (SequenceReport, error) {
	report := SequenceReport{Sequence: name, Outcome: Failure}

	seq, err := s.store.Sequence(name)
	if err != nil {
		s.log.Warn("sequence not found", "sequence", name)
		return report, err
	}

	total := len(seq.Steps)
	s.log.Info("executing sequence", "sequence", name, "description", seq.Description, "steps", total)
	s.emit(Event{Kind: SequenceStarted, Name: name, Description: seq.Description, Steps: total})

	finish := func(err error) (SequenceReport, error) {
		report.Outcome = sequenceOutcome(report)
		s.emit(Event{Kind: SequenceFinished, Name: name, Description: seq.Description, Steps: total, Sequence: &report})
		return report, err
	}

	for i, step := range seq.Steps {
		if err := ctx.Err(); err != nil {
			s.log.Info("sequence interrupted", "sequence", name, "step", i+1)
			return finish(err)
		}

		s.log.Debug("sequence step", "sequence", name, "step", i+1, "of", total, "pose", step.Pose)
		s.emit(Event{Kind: StepStarted, Name: step.Pose, Step: i + 1, Steps: total})

		pr, err := s.ExecutePose(ctx, step.Pose, step.MoveSpeed())
		report.Steps = append(report.Steps, StepReport{Index: i, Pose: pr, Err: err})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				s.log.Info("sequence interrupted", "sequence", name, "step", i+1)
				return finish(ctxErr)
			}
			s.log.Warn("failed to execute pose", "sequence", name, "step", i+1, "pose", step.Pose, "error", err)
			continue
		}

		if err := s.clock.Sleep(ctx, step.Hold()); err != nil {
			s.log.Info("sequence interrupted", "sequence", name, "step", i+1)
			return finish(err)
		}
	}

	report.Completed = true
	s.log.Info("sequence completed", "sequence", name)
	return finish(nil)
}

// ListPoses yields (name, description) for every pose in stored order.
func (s *Sequencer) ListPoses() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for name, p := range s.store.Poses() {
			if !yield(name, p.Description) {
				return
			}
		}
	}
}

// ListSequences yields (name, description) for every sequence in stored order.
func (s *Sequencer) ListSequences() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for name, q := range s.store.Sequences() {
			if !yield(name, q.Description) {
				return
			}
		}
	}
}

// DefinePose adds or replaces a pose. Limbs and joints are checked when the
// pose is executed, not here.
func (s *Sequencer) DefinePose(name string, p choreo.Pose) {
	s.store.DefinePose(name, p)
	s.log.Info("defined pose", "pose", name)
}

// Reset centers every limb.
func (s *Sequencer) Reset(ctx context.Context) error {
	return s.puppet.ResetAll(ctx)
}

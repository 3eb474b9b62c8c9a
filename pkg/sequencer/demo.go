package sequencer

import (
	"context"
	"time"
)

const (
	// RestPose is the pose the puppet returns to after a pose demo.
	RestPose = "rest"

	DefaultPoseDemoDelay = 2 * time.Second
	DefaultDemoPause     = 3 * time.Second
)

// DefaultDemoSequences are played by RunDemo when no names are given.
var DefaultDemoSequences = []string{
	"greeting",
	"pointing_demo",
	"celebration_dance",
	"thinking_sequence",
	"exercise_routine",
}

// DemoAllPoses executes every pose in stored order with delay between them,
// then returns to the rest pose.
func (s *Sequencer) DemoAllPoses(ctx context.Context, delay time.Duration) ([]PoseReport, error) {
	s.log.Info("demonstrating all poses", "poses", s.store.NumPoses())

	var reports []PoseReport
	for _, name := range s.store.PoseNames() {
		r, err := s.ExecutePose(ctx, name, 0)
		if err != nil {
			if ctx.Err() != nil {
				return reports, ctx.Err()
			}
			continue
		}
		reports = append(reports, r)
		if err := s.clock.Sleep(ctx, delay); err != nil {
			return reports, err
		}
	}

	r, err := s.ExecutePose(ctx, RestPose, 0)
	if err == nil {
		reports = append(reports, r)
	}
	return reports, ctx.Err()
}

// RunDemo plays the named sequences (DefaultDemoSequences when empty) with a
// pause between them. Missing sequences are skipped.
func (s *Sequencer) RunDemo(ctx context.Context, names []string, pause time.Duration) ([]SequenceReport, error) {
	if len(names) == 0 {
		names = DefaultDemoSequences
	}

	var reports []SequenceReport
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		s.log.Info("demo", "n", i+1, "of", len(names), "sequence", name)

		r, err := s.ExecuteSequence(ctx, name)
		reports = append(reports, r)
		if err != nil && ctx.Err() != nil {
			return reports, ctx.Err()
		}

		if i < len(names)-1 {
			if err := s.clock.Sleep(ctx, pause); err != nil {
				return reports, err
			}
		}
	}
	s.log.Info("demo completed")
	return reports, nil
}

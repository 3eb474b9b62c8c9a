package player

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/puppet/pkg/choreo"
	"github.com/gwillem/puppet/pkg/puppet"
	"github.com/gwillem/puppet/pkg/sequencer"
	"github.com/gwillem/puppet/pkg/servo"
)

func newTestPlayer(t *testing.T) (*Player, *sequencer.Sequencer, *servo.SimDriver) {
	t.Helper()
	drv := servo.NewSimDriver(16)
	clock := &servo.RecordingClock{}
	ctrl := servo.NewController(drv, servo.WithClock(clock))
	p, err := puppet.New(ctrl, puppet.DefaultConfig().Limbs, puppet.WithClock(clock))
	require.NoError(t, err)

	store := choreo.NewStore()
	wave := choreo.NewPose("wave")
	wave.Set("right_arm", "shoulder", 45)
	wave.Set("tail", "tip", 10)
	store.DefinePose("wave", wave)
	store.DefineSequence("hello", choreo.Sequence{Steps: []choreo.Step{{Pose: "wave"}}})

	pl := New(p, Config{Hz: 100})
	seq := sequencer.New(p, store, sequencer.WithClock(clock), sequencer.WithEventHandler(pl.HandleEvent))
	return pl, seq, drv
}

func drainLogs(pl *Player) string {
	var lines []string
	for {
		select {
		case l := <-pl.Logs():
			lines = append(lines, l)
		default:
			return strings.Join(lines, "\n")
		}
	}
}

func TestPlayer_JointsOrder(t *testing.T) {
	pl, _, _ := newTestPlayer(t)
	assert.Equal(t, []string{
		"left_arm.shoulder", "left_arm.elbow", "left_arm.wrist",
		"right_arm.shoulder", "right_arm.elbow", "right_arm.wrist",
	}, pl.Joints())
}

func TestPlayer_StartRunsJobAndResets(t *testing.T) {
	pl, seq, drv := newTestPlayer(t)

	err := pl.Start(context.Background(), func(ctx context.Context) error {
		_, err := seq.ExecuteSequence(ctx, "hello")
		return err
	})
	require.NoError(t, err)

	assert.Contains(t, drv.Commands(), servo.Command{Channel: 3, Angle: 45})

	state := <-pl.States()
	assert.NoError(t, state.Error)
	assert.Len(t, state.Angles, 6)
	for key, a := range state.Angles {
		assert.Equal(t, servo.CenterAngle, a, key)
	}

	logs := drainLogs(pl)
	assert.Contains(t, logs, "Sequence hello (1 steps)")
	assert.Contains(t, logs, "Step 1/1: wave")
	assert.Contains(t, logs, "Skipped tail")
}

func TestPlayer_JobErrorIsReturned(t *testing.T) {
	pl, seq, _ := newTestPlayer(t)

	err := pl.Start(context.Background(), func(ctx context.Context) error {
		_, err := seq.ExecutePose(ctx, "nope", 0)
		return err
	})

	assert.ErrorIs(t, err, choreo.ErrNotFound)
	state := <-pl.States()
	assert.ErrorIs(t, state.Error, choreo.ErrNotFound)
}

func TestPlayer_CancelStopsPlayback(t *testing.T) {
	pl, _, drv := newTestPlayer(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := pl.Start(ctx, func(ctx context.Context) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, drv.Commands(), 6, "only the final reset")
}

func TestPlayer_RejectsConcurrentStart(t *testing.T) {
	pl, _, _ := newTestPlayer(t)
	started := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = pl.Start(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := pl.Start(context.Background(), func(context.Context) error { return errors.New("unreachable") })
	assert.Error(t, err)
	close(release)
}

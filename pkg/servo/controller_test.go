package servo

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController(t *testing.T, opts ...Option) (*Controller, *SimDriver, *RecordingClock) {
	t.Helper()
	drv := NewSimDriver(16)
	clock := &RecordingClock{}
	ctrl := NewController(drv, append([]Option{WithClock(clock)}, opts...)...)
	return ctrl, drv, clock
}

func angles(cmds []Command) []float64 {
	out := make([]float64, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, c.Angle)
	}
	return out
}

func TestNewController_StartsCentered(t *testing.T) {
	ctrl, drv, _ := newTestController(t)

	assert.Equal(t, 16, ctrl.Channels())
	for ch := 0; ch < ctrl.Channels(); ch++ {
		a, ok := ctrl.Angle(ch)
		require.True(t, ok)
		assert.Equal(t, CenterAngle, a)
	}
	assert.Empty(t, drv.Commands(), "construction must not actuate")
}

func TestMove_ImmediateSetsExactAngle(t *testing.T) {
	ctx := context.Background()
	ctrl, drv, clock := newTestController(t)

	for _, ch := range []int{0, 7, 15} {
		for a := 0; a <= 180; a++ {
			require.NoError(t, ctrl.Move(ctx, ch, float64(a), 0))
			got, _ := ctrl.Angle(ch)
			require.Equal(t, float64(a), got)
		}
		assert.Len(t, drv.CommandsFor(ch), 181)
	}
	assert.Empty(t, clock.Sleeps(), "immediate moves are not paced")
}

func TestMove_InvalidTarget(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		channel int
		angle   float64
		speed   float64
	}{
		{"negative channel", -1, 90, 0},
		{"channel past capacity", 16, 90, 0},
		{"angle below range", 0, -1, 0},
		{"angle above range", 0, 181, 0},
		{"angle NaN", 0, math.NaN(), 0},
		{"negative speed", 0, 45, -2},
		{"infinite speed", 0, 45, math.Inf(1)},
		{"paced angle above range", 3, 200, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl, drv, _ := newTestController(t)
			before := ctrl.State().Snapshot()

			err := ctrl.Move(ctx, tt.channel, tt.angle, tt.speed)
			require.ErrorIs(t, err, ErrInvalidTarget)
			assert.Empty(t, drv.Commands(), "nothing may be actuated")
			assert.Equal(t, before, ctrl.State().Snapshot())
		})
	}
}

func TestMove_PacedStepsThenLandsOnTarget(t *testing.T) {
	ctx := context.Background()
	ctrl, drv, clock := newTestController(t)

	require.NoError(t, ctrl.Move(ctx, 2, 100, 3))

	assert.Equal(t, []float64{93, 96, 99, 100}, angles(drv.CommandsFor(2)))
	assert.Equal(t, []time.Duration{DefaultStepInterval, DefaultStepInterval, DefaultStepInterval}, clock.Sleeps())
	got, _ := ctrl.Angle(2)
	assert.Equal(t, 100.0, got)
}

func TestMove_PacedDownward(t *testing.T) {
	ctx := context.Background()
	ctrl, drv, _ := newTestController(t)

	require.NoError(t, ctrl.Move(ctx, 0, 0, 7))

	cmds := angles(drv.CommandsFor(0))
	require.NotEmpty(t, cmds)
	assert.Equal(t, 0.0, cmds[len(cmds)-1])
	prev := CenterAngle
	for _, a := range cmds {
		assert.Less(t, a, prev, "trajectory must be monotonic")
		assert.GreaterOrEqual(t, a, 0.0, "trajectory must not overshoot")
		prev = a
	}
}

func TestMove_PacedAlwaysTerminatesOnTarget(t *testing.T) {
	ctx := context.Background()

	for _, speed := range []float64{0.3, 1, 2.5, 7, 33, 179, 500} {
		for _, target := range []float64{0, 12.5, 89.9, 90, 133, 180} {
			ctrl, _, _ := newTestController(t)
			require.NoError(t, ctrl.Move(ctx, 4, target, speed))
			got, _ := ctrl.Angle(4)
			require.Equal(t, target, got, "speed %v target %v", speed, target)
		}
	}
}

func TestMove_PacedShortDistanceIsSingleCommand(t *testing.T) {
	ctx := context.Background()
	ctrl, drv, clock := newTestController(t)

	require.NoError(t, ctrl.Move(ctx, 1, 95, 10))

	assert.Equal(t, []float64{95}, angles(drv.CommandsFor(1)))
	assert.Empty(t, clock.Sleeps())
}

func TestMove_PacedIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ctrl, _, _ := newTestController(t)

	require.NoError(t, ctrl.Move(ctx, 5, 150, 10))
	got, _ := ctrl.Angle(5)
	assert.Equal(t, 150.0, got)
}

type probeClock struct {
	state *State
	ch    int
	seen  []float64
}

func (c *probeClock) Sleep(ctx context.Context, d time.Duration) error {
	a, _ := c.state.Angle(c.ch)
	c.seen = append(c.seen, a)
	return nil
}

func TestMove_IntermediateAnglesAreObservable(t *testing.T) {
	drv := NewSimDriver(16)
	probe := &probeClock{ch: 3}
	ctrl := NewController(drv, WithClock(probe))
	probe.state = ctrl.State()

	require.NoError(t, ctrl.Move(context.Background(), 3, 110, 5))

	assert.Equal(t, []float64{95, 100, 105}, probe.seen)
}

func TestMove_ActuatorFault(t *testing.T) {
	ctx := context.Background()
	ctrl, drv, _ := newTestController(t)
	boom := errors.New("i2c nack")
	drv.FailOn(2, boom)

	err := ctrl.Move(ctx, 2, 30, 0)
	require.ErrorIs(t, err, ErrActuatorFault)
	require.ErrorIs(t, err, boom)

	got, _ := ctrl.Angle(2)
	assert.Equal(t, CenterAngle, got, "failed write must not change state")

	err = ctrl.Move(ctx, 2, 30, 5)
	require.ErrorIs(t, err, ErrActuatorFault)
	got, _ = ctrl.Angle(2)
	assert.Equal(t, CenterAngle, got)

	// Other channels are unaffected
	require.NoError(t, ctrl.Move(ctx, 3, 30, 0))
}

func TestMove_Observer(t *testing.T) {
	type call struct {
		ch    int
		angle float64
		err   bool
	}
	var calls []call
	ctrl, drv, _ := newTestController(t, WithObserver(func(ch int, angle float64, err error) {
		if err != nil {
			assert.ErrorIs(t, err, ErrActuatorFault)
		}
		calls = append(calls, call{ch, angle, err != nil})
	}))
	drv.FailOn(9, errors.New("fault"))

	_ = ctrl.Move(context.Background(), 1, 10, 0)
	_ = ctrl.Move(context.Background(), 9, 10, 0)
	_ = ctrl.Move(context.Background(), 1, 400, 0)

	assert.Equal(t, []call{{1, 10, false}, {9, 10, true}}, calls)
}

func TestCenter(t *testing.T) {
	ctx := context.Background()
	ctrl, drv, clock := newTestController(t)
	require.NoError(t, ctrl.Move(ctx, 0, 10, 0))
	drv.Clear()

	require.NoError(t, ctrl.Center(ctx))

	assert.Len(t, drv.Commands(), 16)
	for _, a := range ctrl.State().Snapshot() {
		assert.Equal(t, CenterAngle, a)
	}
	assert.Equal(t, 16*centerGap, clock.Total())
}

func TestDisableAll(t *testing.T) {
	ctx := context.Background()
	ctrl, drv, _ := newTestController(t)
	require.NoError(t, ctrl.Move(ctx, 0, 10, 0))
	drv.Clear()

	require.NoError(t, ctrl.DisableAll(ctx))

	cmds := drv.Commands()
	require.Len(t, cmds, 16)
	for _, c := range cmds {
		assert.True(t, c.Disabled)
	}
	got, _ := ctrl.Angle(0)
	assert.Equal(t, 10.0, got, "disabling keeps the last commanded angle")

	require.ErrorIs(t, ctrl.Disable(ctx, 99), ErrInvalidTarget)
}

package puppet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/puppet/pkg/servo"
)

type rig struct {
	puppet *Puppet
	drv    *servo.SimDriver
	clock  *servo.RecordingClock
}

func newRig(t *testing.T, limbs ...LimbConfig) *rig {
	t.Helper()
	if len(limbs) == 0 {
		limbs = DefaultConfig().Limbs
	}
	drv := servo.NewSimDriver(16)
	clock := &servo.RecordingClock{}
	ctrl := servo.NewController(drv, servo.WithClock(clock))
	p, err := New(ctrl, limbs, WithClock(clock))
	require.NoError(t, err)
	return &rig{puppet: p, drv: drv, clock: clock}
}

func (r *rig) limb(t *testing.T, name LimbName) *Limb {
	t.Helper()
	l, ok := r.puppet.Limb(name)
	require.True(t, ok, "limb %s", name)
	return l
}

func TestLimb_JointsOrderedByChannel(t *testing.T) {
	r := newRig(t, LimbConfig{Name: "tail", Joints: map[JointName]int{"tip": 9, "base": 7, "mid": 8}})
	l := r.limb(t, "tail")

	assert.Equal(t, []JointName{"base", "mid", "tip"}, l.Joints())
	ch, ok := l.Channel("mid")
	assert.True(t, ok)
	assert.Equal(t, 8, ch)
	_, ok = l.Channel("fin")
	assert.False(t, ok)
}

func TestLimb_ResetToCenter(t *testing.T) {
	ctx := context.Background()
	r := newRig(t)
	l := r.limb(t, RightArm)

	require.NoError(t, l.ResetToCenter(ctx))

	assert.Equal(t, []servo.Command{
		{Channel: 3, Angle: 90},
		{Channel: 4, Angle: 90},
		{Channel: 5, Angle: 90},
	}, r.drv.Commands())
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, r.clock.Sleeps())
}

func TestLimb_MoveToPose_UnknownJointStillAppliesKnown(t *testing.T) {
	ctx := context.Background()
	r := newRig(t)
	l := r.limb(t, LeftArm)

	report := l.MoveToPose(ctx, map[JointName]float64{
		Shoulder: 45,
		"knee":   10,
		Elbow:    120,
	}, 0)

	assert.Equal(t, map[JointName]float64{Shoulder: 45, Elbow: 120}, report.Applied)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "left_arm.knee", report.Skipped[0].Item)
	assert.ErrorIs(t, report.Skipped[0].Err, ErrUnknownJoint)
	assert.False(t, report.OK())
	assert.ErrorIs(t, report.Err(), ErrUnknownJoint)

	assert.Equal(t, []servo.Command{
		{Channel: 0, Angle: 45},
		{Channel: 1, Angle: 120},
	}, r.drv.Commands())

	pose := l.CurrentPose()
	assert.Equal(t, 45.0, pose[Shoulder])
	assert.Equal(t, 120.0, pose[Elbow])
	assert.Equal(t, 90.0, pose[Wrist])
}

func TestLimb_MoveToPose_FaultSkipsJoint(t *testing.T) {
	ctx := context.Background()
	r := newRig(t)
	l := r.limb(t, LeftArm)
	r.drv.FailOn(1, errors.New("i2c nack"))

	report := l.MoveToPose(ctx, map[JointName]float64{Shoulder: 30, Elbow: 60, Wrist: 200}, 0)

	assert.Equal(t, map[JointName]float64{Shoulder: 30}, report.Applied)
	require.Len(t, report.Skipped, 2)
	assert.ErrorIs(t, report.Skipped[0].Err, servo.ErrActuatorFault)
	assert.ErrorIs(t, report.Skipped[1].Err, servo.ErrInvalidTarget)

	pose := l.CurrentPose()
	assert.Equal(t, 90.0, pose[Elbow], "failed joint keeps its angle")
	assert.Equal(t, 90.0, pose[Wrist])
}

func TestLimb_MoveToPose_WaitsForCompletion(t *testing.T) {
	r := newRig(t)
	l := r.limb(t, LeftArm)

	l.MoveToPose(context.Background(), map[JointName]float64{Shoulder: 10}, 0)

	assert.Equal(t, []time.Duration{500 * time.Millisecond}, r.clock.Sleeps())
}

func TestLimb_CurrentPoseIsACopy(t *testing.T) {
	r := newRig(t)
	l := r.limb(t, LeftArm)

	pose := l.CurrentPose()
	pose[Shoulder] = 12
	delete(pose, Elbow)

	fresh := l.CurrentPose()
	assert.Equal(t, 90.0, fresh[Shoulder])
	assert.Contains(t, fresh, Elbow)
}

func TestLimb_WaveRestoresPose(t *testing.T) {
	ctx := context.Background()
	r := newRig(t)
	l := r.limb(t, LeftArm)
	l.MoveToPose(ctx, map[JointName]float64{Shoulder: 100, Elbow: 80, Wrist: 70}, 0)
	before := l.CurrentPose()
	r.drv.Clear()

	require.NoError(t, l.Wave(ctx, 2, 0))

	assert.Equal(t, before, l.CurrentPose())
	wrist := r.drv.CommandsFor(2)
	assert.Equal(t, []servo.Command{
		{Channel: 2, Angle: 60},
		{Channel: 2, Angle: 120},
		{Channel: 2, Angle: 60},
		{Channel: 2, Angle: 120},
		{Channel: 2, Angle: 70},
	}, wrist)
}

func TestLimb_RaiseAndLower(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, LimbConfig{Name: LeftArm, Joints: map[JointName]int{Shoulder: 0, Elbow: 1}})
	l := r.limb(t, LeftArm)

	require.NoError(t, l.Raise(ctx, 0))
	assert.Equal(t, map[JointName]float64{Shoulder: 30, Elbow: 60}, l.CurrentPose())

	require.NoError(t, l.Lower(ctx, 0))
	assert.Equal(t, map[JointName]float64{Shoulder: 150, Elbow: 120}, l.CurrentPose())

	for _, c := range r.drv.Commands() {
		assert.NotEqual(t, 2, c.Channel, "limb without wrist must not drive a wrist channel")
	}
}

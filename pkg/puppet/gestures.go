package puppet

import (
	"context"
	"errors"
)

// Gesture angles. The wrist is only commanded when the limb has one.
var (
	waveUp   = map[JointName]float64{Shoulder: 45, Elbow: 90, Wrist: 60}
	waveDown = map[JointName]float64{Shoulder: 45, Elbow: 90, Wrist: 120}
	raised   = map[JointName]float64{Shoulder: 30, Elbow: 60, Wrist: 90}
	lowered  = map[JointName]float64{Shoulder: 150, Elbow: 120, Wrist: 90}
)

// DefaultWaveSpeed is the speed used when both arms wave.
const DefaultWaveSpeed = 5

// Wave swings the wrist up and down cycles times, then returns the limb to the
// pose it had before the gesture.
func (l *Limb) Wave(ctx context.Context, cycles int, speed float64) error {
	l.log.Info("waving", "cycles", cycles)
	original := l.CurrentPose()

	var errs []error
	for range cycles {
		for _, stroke := range []map[JointName]float64{waveUp, waveDown} {
			errs = append(errs, l.MoveToPose(ctx, l.gesture(stroke), speed).Err())
			l.hold(ctx, l.timing.GestureHold)
		}
	}
	errs = append(errs, l.MoveToPose(ctx, original, speed).Err())
	return errors.Join(errs...)
}

// Raise lifts the limb and leaves it raised.
func (l *Limb) Raise(ctx context.Context, speed float64) error {
	return l.MoveToPose(ctx, l.gesture(raised), speed).Err()
}

// Lower drops the limb and leaves it lowered.
func (l *Limb) Lower(ctx context.Context, speed float64) error {
	return l.MoveToPose(ctx, l.gesture(lowered), speed).Err()
}

// gesture keeps only the joints this limb has.
func (l *Limb) gesture(angles map[JointName]float64) map[JointName]float64 {
	out := make(map[JointName]float64, len(angles))
	for j, a := range angles {
		if l.HasJoint(j) {
			out[j] = a
		}
	}
	return out
}

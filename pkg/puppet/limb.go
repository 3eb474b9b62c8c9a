package puppet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/gwillem/puppet/pkg/servo"
)

// Timing holds the fixed delays that give the mechanics time to follow.
type Timing struct {
	Settle      time.Duration // after ResetToCenter
	Complete    time.Duration // after MoveToPose
	GestureHold time.Duration // between strokes of a gesture
}

// DefaultTiming returns the delays of the reference puppet.
func DefaultTiming() Timing {
	return Timing{
		Settle:      500 * time.Millisecond,
		Complete:    500 * time.Millisecond,
		GestureHold: 300 * time.Millisecond,
	}
}

// Limb is a named group of joints, each driven by one servo channel.
type Limb struct {
	name   LimbName
	ctrl   *servo.Controller
	joints map[JointName]int
	order  []JointName // by channel
	pose   map[JointName]float64
	clock  servo.Clock
	timing Timing
	log    *slog.Logger
}

func newLimb(ctrl *servo.Controller, cfg LimbConfig, clock servo.Clock, timing Timing, log *slog.Logger) *Limb {
	joints := maps.Clone(cfg.Joints)
	order := slices.Collect(maps.Keys(joints))
	slices.SortFunc(order, func(a, b JointName) int {
		return joints[a] - joints[b]
	})

	// Start from the controller's view of each channel
	pose := make(map[JointName]float64, len(joints))
	for j, ch := range joints {
		pose[j], _ = ctrl.Angle(ch)
	}

	return &Limb{
		name:   cfg.Name,
		ctrl:   ctrl,
		joints: joints,
		order:  order,
		pose:   pose,
		clock:  clock,
		timing: timing,
		log:    log.With("limb", string(cfg.Name)),
	}
}

// Name returns the limb name.
func (l *Limb) Name() LimbName {
	return l.name
}

// Joints returns the joint names ordered by channel.
func (l *Limb) Joints() []JointName {
	return slices.Clone(l.order)
}

// Channel returns the servo channel of joint.
func (l *Limb) Channel(joint JointName) (int, bool) {
	ch, ok := l.joints[joint]
	return ch, ok
}

// HasJoint returns true if the limb has joint.
func (l *Limb) HasJoint(joint JointName) bool {
	_, ok := l.joints[joint]
	return ok
}

// ResetToCenter moves every joint to the center angle immediately, then waits
// for the mechanics to settle.
func (l *Limb) ResetToCenter(ctx context.Context) error {
	var errs []error
	for _, j := range l.order {
		if err := l.ctrl.Move(ctx, l.joints[j], servo.CenterAngle, 0); err != nil {
			errs = append(errs, fmt.Errorf("%s.%s: %w", l.name, j, err))
			continue
		}
		l.pose[j] = servo.CenterAngle
	}
	l.hold(ctx, l.timing.Settle)
	return errors.Join(errs...)
}

// MoveToPose moves the joints named in angles. Joints the limb does not have,
// and joints whose move fails, are skipped and reported; the others are still
// applied. Known joints move in channel order.
func (l *Limb) MoveToPose(ctx context.Context, angles map[JointName]float64, speed float64) MoveReport {
	report := MoveReport{
		Limb:    l.name,
		Applied: make(map[JointName]float64, len(angles)),
	}
	l.log.Debug("moving to pose", "pose", angles, "speed", speed)

	for _, j := range l.order {
		angle, ok := angles[j]
		if !ok {
			continue
		}
		if err := l.ctrl.Move(ctx, l.joints[j], angle, speed); err != nil {
			l.log.Warn("joint move failed", "joint", string(j), "error", err)
			report.Skipped = append(report.Skipped, Skip{Item: l.item(j), Err: err})
			continue
		}
		l.pose[j] = angle
		report.Applied[j] = angle
	}

	unknown := slices.Sorted(maps.Keys(angles))
	for _, j := range unknown {
		if l.HasJoint(j) {
			continue
		}
		l.log.Warn("joint not found in limb configuration", "joint", string(j))
		report.Skipped = append(report.Skipped, Skip{
			Item: l.item(j),
			Err:  fmt.Errorf("%w %q", ErrUnknownJoint, j),
		})
	}

	l.hold(ctx, l.timing.Complete)
	return report
}

// CurrentPose returns a copy of the last angle applied to each joint.
func (l *Limb) CurrentPose() map[JointName]float64 {
	return maps.Clone(l.pose)
}

func (l *Limb) item(j JointName) string {
	return fmt.Sprintf("%s.%s", l.name, j)
}

// hold waits for the mechanics. It is not a cancellation point.
func (l *Limb) hold(ctx context.Context, d time.Duration) {
	_ = l.clock.Sleep(context.WithoutCancel(ctx), d)
}

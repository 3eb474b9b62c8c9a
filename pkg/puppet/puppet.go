package puppet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gwillem/puppet/pkg/logging"
	"github.com/gwillem/puppet/pkg/servo"
)

// Puppet owns a set of limbs that share one servo controller.
type Puppet struct {
	ctrl  *servo.Controller
	limbs []*Limb
	index map[LimbName]*Limb
	log   *slog.Logger
}

type options struct {
	timing Timing
	clock  servo.Clock
	log    *slog.Logger
}

// Option configures a Puppet.
type Option func(*options)

// WithTiming sets the mechanical delays of every limb.
func WithTiming(t Timing) Option {
	return func(o *options) { o.timing = t }
}

// WithClock sets the clock used for mechanical delays.
func WithClock(c servo.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// New builds a puppet from limb configs. Limbs keep their declaration order.
// No servo is moved; call ResetAll to bring the puppet to a known pose.
func New(ctrl *servo.Controller, limbs []LimbConfig, opts ...Option) (*Puppet, error) {
	o := options{
		timing: DefaultTiming(),
		clock:  servo.RealClock(),
		log:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := validateLimbs(limbs, ctrl.Channels()); err != nil {
		return nil, err
	}

	p := &Puppet{
		ctrl:  ctrl,
		index: make(map[LimbName]*Limb, len(limbs)),
		log:   o.log,
	}
	for _, lc := range limbs {
		l := newLimb(ctrl, lc, o.clock, o.timing, o.log)
		p.limbs = append(p.limbs, l)
		p.index[lc.Name] = l
	}
	return p, nil
}

// Controller returns the servo controller shared by all limbs.
func (p *Puppet) Controller() *servo.Controller {
	return p.ctrl
}

// Limb returns the limb called name.
func (p *Puppet) Limb(name LimbName) (*Limb, bool) {
	l, ok := p.index[name]
	return l, ok
}

// Limbs returns the limbs in declaration order.
func (p *Puppet) Limbs() []*Limb {
	out := make([]*Limb, len(p.limbs))
	copy(out, p.limbs)
	return out
}

// ResetAll centers every limb, one after the other in declaration order.
// A failing limb does not stop the others.
func (p *Puppet) ResetAll(ctx context.Context) error {
	p.log.Info("resetting all limbs to center")
	var errs []error
	for _, l := range p.limbs {
		if err := l.ResetToCenter(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WaveAll waves both arms. The arms wave one after the other.
func (p *Puppet) WaveAll(ctx context.Context, cycles int) error {
	left, lok := p.Limb(LeftArm)
	right, rok := p.Limb(RightArm)
	if !lok || !rok {
		return fmt.Errorf("%w: need both %s and %s", ErrUnknownLimb, LeftArm, RightArm)
	}
	p.log.Info("both arms waving")
	return errors.Join(
		left.Wave(ctx, cycles, DefaultWaveSpeed),
		right.Wave(ctx, cycles, DefaultWaveSpeed),
	)
}

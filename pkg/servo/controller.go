package servo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

const (
	// DefaultStepInterval is the pause between intermediate angles of a paced move.
	DefaultStepInterval = 50 * time.Millisecond

	// centerGap spaces out channels when centering all of them at once.
	centerGap = 100 * time.Millisecond
)

// State holds the last commanded angle for every channel.
// It is safe to read while a move is in progress.
type State struct {
	mu     sync.RWMutex
	angles []float64
}

// NewState returns a state with every channel at CenterAngle.
func NewState(channels int) *State {
	angles := make([]float64, channels)
	for i := range angles {
		angles[i] = CenterAngle
	}
	return &State{angles: angles}
}

// Channels returns the number of tracked channels.
func (s *State) Channels() int {
	return len(s.angles)
}

// Angle returns the last commanded angle of channel.
func (s *State) Angle(channel int) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if channel < 0 || channel >= len(s.angles) {
		return 0, false
	}
	return s.angles[channel], true
}

// Snapshot returns a copy of all channel angles.
func (s *State) Snapshot() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]float64(nil), s.angles...)
}

func (s *State) set(channel int, angle float64) {
	s.mu.Lock()
	s.angles[channel] = angle
	s.mu.Unlock()
}

// Observer is called after every command issued to the driver.
type Observer func(channel int, angle float64, err error)

// Controller moves servos through a Driver and tracks their state.
type Controller struct {
	driver   Driver
	state    *State
	clock    Clock
	interval time.Duration
	observer Observer
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used for pacing.
func WithClock(c Clock) Option {
	return func(ctrl *Controller) { ctrl.clock = c }
}

// WithStepInterval sets the pause between intermediate angles.
func WithStepInterval(d time.Duration) Option {
	return func(ctrl *Controller) { ctrl.interval = d }
}

// WithObserver registers a hook called for every issued command.
func WithObserver(o Observer) Option {
	return func(ctrl *Controller) { ctrl.observer = o }
}

// NewController creates a controller for all channels of d.
func NewController(d Driver, opts ...Option) *Controller {
	c := &Controller{
		driver:   d,
		state:    NewState(d.Channels()),
		clock:    RealClock(),
		interval: DefaultStepInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Channels returns the channel capacity.
func (c *Controller) Channels() int {
	return c.state.Channels()
}

// State returns the live channel state.
func (c *Controller) State() *State {
	return c.state
}

// Angle returns the last commanded angle of channel.
func (c *Controller) Angle(channel int) (float64, bool) {
	return c.state.Angle(channel)
}

// Move puts channel at target degrees.
//
// With speed 0 the move is a single command. A positive speed is in degrees
// per step: intermediate angles are issued every step interval and the move
// always ends with a command for exactly target. A paced move cannot be
// interrupted once started; cancelling ctx has no effect on it.
func (c *Controller) Move(ctx context.Context, channel int, target, speed float64) error {
	if err := c.validate(channel, target, speed); err != nil {
		return err
	}
	if speed == 0 {
		return c.write(ctx, channel, target)
	}
	return c.glide(context.WithoutCancel(ctx), channel, target, speed)
}

func (c *Controller) validate(channel int, target, speed float64) error {
	if channel < 0 || channel >= c.state.Channels() {
		return fmt.Errorf("%w: channel %d not in [0, %d)", ErrInvalidTarget, channel, c.state.Channels())
	}
	if !ValidAngle(target) {
		return fmt.Errorf("%w: angle %g not in [%g, %g]", ErrInvalidTarget, target, MinAngle, MaxAngle)
	}
	if speed < 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		return fmt.Errorf("%w: speed %g", ErrInvalidTarget, speed)
	}
	return nil
}

func (c *Controller) glide(ctx context.Context, channel int, target, speed float64) error {
	angle, _ := c.state.Angle(channel)

	step := -speed
	if angle < target {
		step = speed
	}

	for math.Abs(angle-target) > math.Abs(step) {
		angle += step
		if err := c.write(ctx, channel, angle); err != nil {
			return err
		}
		_ = c.clock.Sleep(ctx, c.interval)
	}

	// Land exactly on target regardless of step rounding
	return c.write(ctx, channel, target)
}

func (c *Controller) write(ctx context.Context, channel int, angle float64) error {
	err := c.driver.SetAngle(ctx, channel, angle)
	if err != nil {
		err = fmt.Errorf("%w: channel %d: %w", ErrActuatorFault, channel, err)
	} else {
		c.state.set(channel, angle)
	}
	if c.observer != nil {
		c.observer(channel, angle, err)
	}
	return err
}

// Center moves every channel to CenterAngle, one at a time.
func (c *Controller) Center(ctx context.Context) error {
	var errs []error
	for ch := 0; ch < c.state.Channels(); ch++ {
		if err := c.write(ctx, ch, CenterAngle); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := c.clock.Sleep(ctx, centerGap); err != nil {
			return err
		}
	}
	return errors.Join(errs...)
}

// Disable stops output on channel. The last commanded angle is kept.
func (c *Controller) Disable(ctx context.Context, channel int) error {
	if channel < 0 || channel >= c.state.Channels() {
		return fmt.Errorf("%w: channel %d not in [0, %d)", ErrInvalidTarget, channel, c.state.Channels())
	}
	if err := c.driver.Disable(ctx, channel); err != nil {
		return fmt.Errorf("%w: disable channel %d: %w", ErrActuatorFault, channel, err)
	}
	return nil
}

// DisableAll stops output on every channel.
func (c *Controller) DisableAll(ctx context.Context) error {
	var errs []error
	for ch := 0; ch < c.state.Channels(); ch++ {
		if err := c.Disable(ctx, ch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases the driver.
func (c *Controller) Close() error {
	return c.driver.Close()
}

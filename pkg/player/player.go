// Package player runs choreography in the background while publishing live
// joint angles for monitors.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gwillem/puppet/pkg/puppet"
	"github.com/gwillem/puppet/pkg/sequencer"
)

// State is a snapshot of every joint angle.
type State struct {
	Angles    map[string]float64 // keyed by "limb.joint"
	Playing   string
	Timestamp time.Time
	Error     error
}

// Job is the work a player runs, typically a sequencer call.
type Job func(ctx context.Context) error

// Config holds configuration for the player.
type Config struct {
	Hz int // state publish rate
}

// Player runs one job at a time and samples the puppet while it runs.
type Player struct {
	puppet *puppet.Puppet
	hz     int

	mu      sync.RWMutex
	running bool
	playing string
	stateCh chan State
	logCh   chan string
}

// New creates a player for p.
func New(p *puppet.Puppet, cfg Config) *Player {
	if cfg.Hz <= 0 {
		cfg.Hz = 30
	}
	return &Player{
		puppet:  p,
		hz:      cfg.Hz,
		stateCh: make(chan State, 1),
		logCh:   make(chan string, 10),
	}
}

// States returns a channel that receives state updates.
func (p *Player) States() <-chan State {
	return p.stateCh
}

// Logs returns a channel that receives log messages.
func (p *Player) Logs() <-chan string {
	return p.logCh
}

// Hz returns the state publish rate.
func (p *Player) Hz() int {
	return p.hz
}

// Joints returns the "limb.joint" keys of State.Angles in limb declaration
// and channel order.
func (p *Player) Joints() []string {
	var out []string
	for _, l := range p.puppet.Limbs() {
		for _, j := range l.Joints() {
			out = append(out, jointKey(l.Name(), j))
		}
	}
	return out
}

func jointKey(l puppet.LimbName, j puppet.JointName) string {
	return fmt.Sprintf("%s.%s", l, j)
}

func (p *Player) log(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case p.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// HandleEvent turns sequencer events into log lines. Pass it to
// sequencer.WithEventHandler.
func (p *Player) HandleEvent(e sequencer.Event) {
	switch e.Kind {
	case sequencer.SequenceStarted:
		p.setPlaying(e.Name)
		p.log("Sequence %s (%d steps)", e.Name, e.Steps)
	case sequencer.StepStarted:
		p.log("Step %d/%d: %s", e.Step, e.Steps, e.Name)
	case sequencer.PoseStarted:
		if p.currentlyPlaying() == "" {
			p.setPlaying(e.Name)
		}
	case sequencer.PoseFinished:
		for _, s := range e.Pose.Skipped {
			p.log("Skipped %s", s)
		}
	case sequencer.SequenceFinished:
		p.log("Sequence %s: %s", e.Name, e.Sequence.Outcome)
	}
}

func (p *Player) setPlaying(name string) {
	p.mu.Lock()
	p.playing = name
	p.mu.Unlock()
}

func (p *Player) currentlyPlaying() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.playing
}

// Start runs job and publishes states until the job returns or ctx is done.
// The puppet is reset to center afterwards in either case.
func (p *Player) Start(ctx context.Context, job Job) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("already running")
	}
	p.running = true
	p.playing = ""
	p.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- job(ctx) }()
	p.log("Playback started at %d Hz", p.hz)

	ticker := time.NewTicker(time.Second / time.Duration(p.hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Moves in flight finish on their own
			err := <-done
			p.shutdown(err)
			return ctx.Err()
		case err := <-done:
			p.shutdown(err)
			return err
		case <-ticker.C:
			p.sendState(p.sample(nil))
		}
	}
}

func (p *Player) sample(err error) State {
	angles := make(map[string]float64)
	ctrl := p.puppet.Controller()
	for _, l := range p.puppet.Limbs() {
		for _, j := range l.Joints() {
			ch, _ := l.Channel(j)
			angles[jointKey(l.Name(), j)], _ = ctrl.Angle(ch)
		}
	}
	return State{
		Angles:    angles,
		Playing:   p.currentlyPlaying(),
		Timestamp: time.Now(),
		Error:     err,
	}
}

func (p *Player) sendState(s State) {
	select {
	case p.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-p.stateCh:
		default:
		}
		p.stateCh <- s
	}
}

func (p *Player) shutdown(jobErr error) {
	if jobErr != nil && !errors.Is(jobErr, context.Canceled) {
		p.log("Error: %v", jobErr)
	}
	if err := p.puppet.ResetAll(context.Background()); err != nil {
		p.log("Warning: reset failed: %v", err)
	} else {
		p.log("All limbs centered")
	}

	p.mu.Lock()
	p.running = false
	p.playing = ""
	p.mu.Unlock()

	p.sendState(p.sample(jobErr))
	p.log("Playback stopped")
}

package servo

import (
	"context"
	"fmt"
	"sync"
)

// Command is one output recorded by SimDriver.
type Command struct {
	Channel  int
	Angle    float64
	Disabled bool
}

// SimDriver is an in-memory Driver. It records every command and can be told
// to fail writes on specific channels.
type SimDriver struct {
	mu       sync.Mutex
	channels int
	commands []Command
	failing  map[int]error
	closed   bool
}

// NewSimDriver creates a simulated driver with the given channel count.
func NewSimDriver(channels int) *SimDriver {
	return &SimDriver{
		channels: channels,
		failing:  make(map[int]error),
	}
}

func (d *SimDriver) Channels() int {
	return d.channels
}

func (d *SimDriver) SetAngle(_ context.Context, channel int, angle float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(channel); err != nil {
		return err
	}
	d.commands = append(d.commands, Command{Channel: channel, Angle: angle})
	return nil
}

func (d *SimDriver) Disable(_ context.Context, channel int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(channel); err != nil {
		return err
	}
	d.commands = append(d.commands, Command{Channel: channel, Disabled: true})
	return nil
}

func (d *SimDriver) check(channel int) error {
	if d.closed {
		return fmt.Errorf("driver closed")
	}
	if channel < 0 || channel >= d.channels {
		return fmt.Errorf("no channel %d", channel)
	}
	return d.failing[channel]
}

func (d *SimDriver) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

// FailOn makes every write to channel return err. A nil err clears the fault.
func (d *SimDriver) FailOn(channel int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failing, channel)
		return
	}
	d.failing[channel] = err
}

// Commands returns the commands recorded so far.
func (d *SimDriver) Commands() []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Command(nil), d.commands...)
}

// CommandsFor returns the recorded commands for one channel.
func (d *SimDriver) CommandsFor(channel int) []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Command
	for _, c := range d.commands {
		if c.Channel == channel {
			out = append(out, c)
		}
	}
	return out
}

// Clear forgets all recorded commands.
func (d *SimDriver) Clear() {
	d.mu.Lock()
	d.commands = nil
	d.mu.Unlock()
}

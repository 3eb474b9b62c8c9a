package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/puppet/pkg/puppet"
	"github.com/gwillem/puppet/pkg/servo"
)

// Distinctive motion so the user can spot which servo is on a channel
var wigglePattern = []float64{90, 45, 135, 90}

type SetupCommand struct {
	Channels int           `short:"n" long:"channels" default:"6" description:"Number of channels to test, starting at 0"`
	Hold     time.Duration `long:"hold" default:"1s" description:"Pause at each wiggle position"`
}

const skipJoint = "skip"

// Execute moves one channel at a time and asks which joint moved, then
// writes the resulting limb wiring to the config file.
func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("Puppet Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━"))
	fmt.Println()

	log := newLogger()
	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if c.Channels < 1 || c.Channels > cfg.Driver.Channels {
		return fmt.Errorf("channels must be between 1 and %d", cfg.Driver.Channels)
	}

	ctx, stop := signalContext()
	defer stop()

	ctrl, err := openController(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	fmt.Printf("Testing %d channel(s). Watch which servo moves.\n", c.Channels)

	assigned := make(map[string]int) // "limb.joint" -> channel
	for ch := range c.Channels {
		fmt.Println()
		fmt.Println(subHeaderStyle.Render(fmt.Sprintf("━━━ Channel %d ━━━", ch)))

		if err := wiggle(ctx, ctrl, servo.RealClock(), ch, c.Hold); err != nil {
			if interrupted(err) {
				return nil
			}
			fmt.Println(errorStyle.Render(fmt.Sprintf("Channel %d: %v", ch, err)))
			continue
		}

		joint, err := askJoint(ctx, ch, assigned)
		if err != nil {
			fmt.Println()
			return recenter(ctrl, ch)
		}
		if joint == skipJoint {
			continue
		}
		assigned[joint] = ch
		fmt.Printf("Recorded: %s = channel %d\n", joint, ch)
	}

	if len(assigned) == 0 {
		fmt.Println()
		fmt.Println("No joints were identified.")
		return nil
	}

	cfg.Limbs = limbsFrom(assigned)
	if err := cfg.Validate(); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(renderWiring(cfg.Limbs))

	if err := cfg.SaveTo(configPath()); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Println()
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", configPath())
	fmt.Println("Try it with: " + headerStyle.Render("puppet run"))
	return nil
}

// wiggle swings a channel through wigglePattern. If it is cut short the
// channel is put back in the center.
func wiggle(ctx context.Context, ctrl *servo.Controller, clock servo.Clock, channel int, hold time.Duration) error {
	for _, a := range wigglePattern {
		err := ctrl.Move(ctx, channel, a, 0)
		if err == nil {
			err = clock.Sleep(ctx, hold)
		}
		if err != nil {
			return errors.Join(err, recenter(ctrl, channel))
		}
	}
	return nil
}

// recenter moves a channel to the center. It runs after an interrupt, so it
// does not take the command context.
func recenter(ctrl *servo.Controller, channel int) error {
	return ctrl.Move(context.Background(), channel, servo.CenterAngle, 0)
}

func askJoint(ctx context.Context, channel int, assigned map[string]int) (string, error) {
	var options []huh.Option[string]
	for _, l := range puppet.AllLimbs() {
		for _, j := range puppet.AllJoints() {
			key := fmt.Sprintf("%s.%s", l, j)
			if _, taken := assigned[key]; taken {
				continue
			}
			options = append(options, huh.NewOption(key, key))
		}
	}
	options = append(options, huh.NewOption("Skip this channel", skipJoint))

	var joint string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Which joint is on channel %d?", channel)).
				Description("The servo that just wiggled").
				Options(options...).
				Value(&joint),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		return "", err
	}
	return joint, nil
}

// limbsFrom groups "limb.joint" assignments into limb configs, keeping the
// default limb order.
func limbsFrom(assigned map[string]int) []puppet.LimbConfig {
	joints := make(map[puppet.LimbName]map[puppet.JointName]int)
	for key, ch := range assigned {
		limb, joint, _ := strings.Cut(key, ".")
		l := puppet.LimbName(limb)
		if joints[l] == nil {
			joints[l] = make(map[puppet.JointName]int)
		}
		joints[l][puppet.JointName(joint)] = ch
	}

	var limbs []puppet.LimbConfig
	for _, l := range puppet.AllLimbs() {
		if j, ok := joints[l]; ok {
			limbs = append(limbs, puppet.LimbConfig{Name: l, Joints: j})
		}
	}
	return limbs
}

func renderWiring(limbs []puppet.LimbConfig) string {
	var rows [][]string
	for _, lc := range limbs {
		for _, j := range slices.Sorted(maps.Keys(lc.Joints)) {
			rows = append(rows, []string{string(lc.Name), string(j), fmt.Sprintf("%d", lc.Joints[j])})
		}
	}

	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Limb", "Joint", "Channel").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return cellStyle.Bold(true).Foreground(lipgloss.Color("12"))
			}
			return cellStyle
		}).
		Render()
}

type SweepCommand struct {
	Channel int           `short:"c" long:"channel" default:"0" description:"Channel to test"`
	Hold    time.Duration `long:"hold" default:"1500ms" description:"Pause at each position"`
}

var sweepPositions = []struct {
	angle float64
	label string
}{
	{90, "Center position"},
	{0, "Minimum position (0°)"},
	{180, "Maximum position (180°)"},
	{90, "Back to center"},
	{45, "45°"},
	{135, "135°"},
	{90, "Final center position"},
}

// Execute drives one servo through its range to check the wiring.
func (c *SweepCommand) Execute(args []string) error {
	log := newLogger()
	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	ctrl, err := openController(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	fmt.Println(headerStyle.Render(fmt.Sprintf("Testing servo on channel %d", c.Channel)))
	for _, p := range sweepPositions {
		fmt.Printf("Moving to %3.0f° %s\n", p.angle, dimStyle.Render("- "+p.label))
		if err := ctrl.Move(ctx, c.Channel, p.angle, 0); err != nil {
			return err
		}
		if err := pause(ctx, c.Hold); err != nil {
			fmt.Println(dimStyle.Render("Interrupted by user"))
			return recenter(ctrl, c.Channel)
		}
	}

	fmt.Println(successStyle.Render("Sweep complete!"))
	return nil
}

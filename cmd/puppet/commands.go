package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gwillem/puppet/pkg/choreo"
	"github.com/gwillem/puppet/pkg/sequencer"
	"github.com/gwillem/puppet/pkg/servo"
)

// withSession opens a session, runs fn and always resets the puppet
// afterwards. Ctrl+C cancels fn and is not reported as a failure.
func withSession(fn func(ctx context.Context, s *session) error, handlers ...func(sequencer.Event)) (err error) {
	ctx, stop := signalContext()
	defer stop()

	s, err := openSession(ctx, handlers...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	err = fn(ctx, s)
	if interrupted(err) {
		fmt.Println()
		fmt.Println(dimStyle.Render("Interrupted by user"))
		return nil
	}
	return err
}

func pause(ctx context.Context, d time.Duration) error {
	return servo.RealClock().Sleep(ctx, d)
}

type RunCommand struct{}

func (c *RunCommand) Execute(args []string) error {
	return withSession(func(ctx context.Context, s *session) error {
		fmt.Println(headerStyle.Render("Puppet Controller"))
		fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━"))
		printLimbs(s.puppet)
		fmt.Println()

		fmt.Println("Resetting puppet to center position...")
		if err := s.seq.Reset(ctx); err != nil {
			s.log.Warn("reset incomplete", "error", err)
		}
		if err := pause(ctx, time.Second); err != nil {
			return err
		}

		fmt.Println()
		fmt.Println("Available commands:")
		for _, usage := range []string{
			"puppet interactive",
			"puppet demo",
			"puppet list poses",
			"puppet list sequences",
			"puppet pose rest",
			"puppet seq greeting",
		} {
			fmt.Println("  " + dimStyle.Render(usage))
		}

		fmt.Println()
		fmt.Println(subHeaderStyle.Render("Quick demonstration"))
		for _, name := range []string{"arms_raised", sequencer.RestPose} {
			if err := pause(ctx, 2*time.Second); err != nil {
				return err
			}
			r, err := s.seq.ExecutePose(ctx, name, 0)
			if err != nil {
				if interrupted(err) {
					return err
				}
				fmt.Println(errorStyle.Render(err.Error()))
				continue
			}
			fmt.Println(sequencer.RenderPoseReport(r))
		}
		return nil
	})
}

type PoseCommand struct {
	Speed float64 `short:"s" long:"speed" default:"0" description:"Degrees per step (0 moves immediately)"`
	Args  struct {
		Name string `positional-arg-name:"name"`
	} `positional-args:"yes" required:"yes"`
}

func (c *PoseCommand) Execute(args []string) error {
	return withSession(func(ctx context.Context, s *session) error {
		fmt.Printf("Executing pose: %s\n", headerStyle.Render(c.Args.Name))
		r, err := s.seq.ExecutePose(ctx, c.Args.Name, c.Speed)
		if err != nil {
			return err
		}
		fmt.Println(sequencer.RenderPoseReport(r))
		return nil
	})
}

type SeqCommand struct {
	Args struct {
		Name string `positional-arg-name:"name"`
	} `positional-args:"yes" required:"yes"`
}

func (c *SeqCommand) Execute(args []string) error {
	return withSession(func(ctx context.Context, s *session) error {
		fmt.Printf("Running sequence: %s\n", headerStyle.Render(c.Args.Name))
		r, err := s.seq.ExecuteSequence(ctx, c.Args.Name)
		if r.Steps != nil || err == nil {
			fmt.Println(sequencer.RenderSequenceReport(r))
		}
		return err
	})
}

type ListCommand struct {
	Args struct {
		Kind string `positional-arg-name:"poses|sequences"`
	} `positional-args:"yes"`
}

// Execute lists definitions without touching the hardware.
func (c *ListCommand) Execute(args []string) error {
	log := newLogger()
	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	store := choreo.NewStore()
	kind := strings.ToLower(c.Args.Kind)
	switch kind {
	case "", "poses", "sequences":
	default:
		return fmt.Errorf("unknown list %q, expected poses or sequences", c.Args.Kind)
	}

	if kind == "" || kind == "poses" {
		if err := store.LoadPosesFile(cfg.PosesFile); err != nil {
			log.Warn("poses unavailable", "error", err)
		}
		fmt.Println(headerStyle.Render("Available poses:"))
		fmt.Println(sequencer.RenderPoses(store))
	}
	if kind == "" || kind == "sequences" {
		if err := store.LoadSequencesFile(cfg.SequencesFile); err != nil {
			log.Warn("sequences unavailable", "error", err)
		}
		fmt.Println(headerStyle.Render("Available sequences:"))
		fmt.Println(sequencer.RenderSequences(store))
	}
	return nil
}

type DemoCommand struct {
	Poses bool          `long:"poses" description:"Step through every pose instead of the demo sequences"`
	Pause time.Duration `long:"pause" default:"3s" description:"Pause between sequences or poses"`
	Args  struct {
		Sequences []string `positional-arg-name:"sequence"`
	} `positional-args:"yes"`
}

func (c *DemoCommand) Execute(args []string) error {
	return withSession(func(ctx context.Context, s *session) error {
		if c.Poses {
			fmt.Println(headerStyle.Render("Demonstrating all poses"))
			reports, err := s.seq.DemoAllPoses(ctx, c.Pause)
			for _, r := range reports {
				fmt.Println(sequencer.RenderPoseReport(r))
			}
			return err
		}

		fmt.Println(headerStyle.Render("Running demo sequences"))
		fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━"))
		reports, err := s.seq.RunDemo(ctx, c.Args.Sequences, c.Pause)
		for _, r := range reports {
			fmt.Println(sequencer.RenderSequenceReport(r))
		}
		if err == nil {
			fmt.Println(successStyle.Render("Demo complete!"))
		}
		return err
	})
}

type InteractiveCommand struct{}

func (c *InteractiveCommand) Execute(args []string) error {
	return withSession(func(ctx context.Context, s *session) error {
		return s.seq.Interact(ctx, os.Stdin, os.Stdout)
	})
}

type DefineCommand struct {
	Description string `short:"d" long:"description" default:"Custom pose" description:"Pose description"`
	Args        struct {
		Name    string   `positional-arg-name:"name"`
		Targets []string `positional-arg-name:"limb.joint=angle"`
	} `positional-args:"yes" required:"yes"`
}

// Execute adds a pose to the poses file. Limbs and joints are not checked
// against the wiring, matching what the sequencer accepts at runtime.
func (c *DefineCommand) Execute(args []string) error {
	if len(c.Args.Targets) == 0 {
		return fmt.Errorf("pose %s has no joint targets", c.Args.Name)
	}
	p, err := sequencer.ParsePose(c.Args.Targets)
	if err != nil {
		return err
	}
	p.Description = c.Description

	log := newLogger()
	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	store := choreo.NewStore()
	if _, err := os.Stat(cfg.PosesFile); err == nil {
		if err := store.LoadPosesFile(cfg.PosesFile); err != nil {
			return err
		}
	}
	store.DefinePose(c.Args.Name, p)
	if err := store.SavePosesFile(cfg.PosesFile); err != nil {
		return err
	}

	fmt.Printf("%s %s saved to %s\n", successStyle.Render("Pose"), c.Args.Name, cfg.PosesFile)
	return nil
}

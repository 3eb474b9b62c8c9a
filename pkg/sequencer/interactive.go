package sequencer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/gwillem/puppet/pkg/choreo"
)

const prompt = "> "

var errQuit = errors.New("quit")

// Command is one entry of the interactive command table.
type Command struct {
	Name        string // one or more words, matched case-insensitively
	Args        string // usage hint, empty when the command takes none
	Description string
	Run         func(ctx context.Context, s *Sequencer, out io.Writer, args []string) error
}

func (c *Command) takesArgs() bool {
	return c.Args != ""
}

var (
	QuitCommand = &Command{
		Name:        "quit",
		Description: "Exit interactive mode",
		Run: func(context.Context, *Sequencer, io.Writer, []string) error {
			return errQuit
		},
	}
	HelpCommand = &Command{
		Name:        "help",
		Description: "Show this help",
		Run: func(_ context.Context, _ *Sequencer, out io.Writer, _ []string) error {
			writeHelp(out)
			return nil
		},
	}
	ListPosesCommand = &Command{
		Name:        "list poses",
		Description: "List all poses",
		Run: func(_ context.Context, s *Sequencer, out io.Writer, _ []string) error {
			fmt.Fprintln(out, RenderPoses(s.store))
			return nil
		},
	}
	ListSequencesCommand = &Command{
		Name:        "list sequences",
		Description: "List all sequences",
		Run: func(_ context.Context, s *Sequencer, out io.Writer, _ []string) error {
			fmt.Fprintln(out, RenderSequences(s.store))
			return nil
		},
	}
	PoseCommand = &Command{
		Name:        "pose",
		Args:        "<name>",
		Description: "Execute a pose",
		Run: func(ctx context.Context, s *Sequencer, out io.Writer, args []string) error {
			name := strings.Join(args, " ")
			r, err := s.ExecutePose(ctx, name, 0)
			if errors.Is(err, choreo.ErrNotFound) {
				fmt.Fprintln(out, ErrorStyle.Render(fmt.Sprintf("Pose '%s' not found", name)))
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(out, RenderPoseReport(r))
			return nil
		},
	}
	SequenceCommand = &Command{
		Name:        "seq",
		Args:        "<name>",
		Description: "Execute a sequence",
		Run: func(ctx context.Context, s *Sequencer, out io.Writer, args []string) error {
			name := strings.Join(args, " ")
			r, err := s.ExecuteSequence(ctx, name)
			if errors.Is(err, choreo.ErrNotFound) {
				fmt.Fprintln(out, ErrorStyle.Render(fmt.Sprintf("Sequence '%s' not found", name)))
				return nil
			}
			fmt.Fprintln(out, RenderSequenceReport(r))
			return nil
		},
	}
	ResetCommand = &Command{
		Name:        "reset",
		Description: "Reset to center position",
		Run: func(ctx context.Context, s *Sequencer, out io.Writer, _ []string) error {
			if err := s.Reset(ctx); err != nil {
				return err
			}
			fmt.Fprintln(out, SuccessStyle.Render("All limbs centered"))
			return nil
		},
	}
	DemoPosesCommand = &Command{
		Name:        "demo poses",
		Description: "Demo all poses",
		Run: func(ctx context.Context, s *Sequencer, out io.Writer, _ []string) error {
			reports, err := s.DemoAllPoses(ctx, DefaultPoseDemoDelay)
			for _, r := range reports {
				fmt.Fprintln(out, RenderPoseReport(r))
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	WaveCommand = &Command{
		Name:        "wave",
		Description: "Wave both arms",
		Run: func(ctx context.Context, s *Sequencer, _ io.Writer, _ []string) error {
			return s.puppet.WaveAll(ctx, 3)
		},
	}
	DefineCommand = &Command{
		Name:        "define",
		Args:        "<name> <limb>.<joint>=<angle> ...",
		Description: "Define a custom pose",
		Run: func(_ context.Context, s *Sequencer, out io.Writer, args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("usage: define <name> <limb>.<joint>=<angle> ...")
			}
			p, err := ParsePose(args[1:])
			if err != nil {
				return err
			}
			p.Description = "Custom pose"
			s.DefinePose(args[0], p)
			fmt.Fprintln(out, SuccessStyle.Render("Created custom pose: "+args[0]))
			return nil
		},
	}
)

// Commands is the interactive command table. It is filled in init because
// the help command lists it.
var Commands []*Command

func init() {
	Commands = []*Command{
		PoseCommand,
		SequenceCommand,
		ListPosesCommand,
		ListSequencesCommand,
		DemoPosesCommand,
		ResetCommand,
		WaveCommand,
		DefineCommand,
		HelpCommand,
		QuitCommand,
	}
}

// ParsePose builds a pose from "limb.joint=angle" assignments.
func ParsePose(assignments []string) (choreo.Pose, error) {
	var p choreo.Pose
	for _, a := range assignments {
		target, value, ok := strings.Cut(a, "=")
		if !ok {
			return p, fmt.Errorf("expected <limb>.<joint>=<angle>, got %q", a)
		}
		limb, joint, ok := strings.Cut(target, ".")
		if !ok || limb == "" || joint == "" {
			return p, fmt.Errorf("expected <limb>.<joint>, got %q", target)
		}
		angle, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return p, fmt.Errorf("angle for %s: %w", target, err)
		}
		p.Set(limb, joint, angle)
	}
	return p, nil
}

func writeHelp(out io.Writer) {
	fmt.Fprintln(out, HeaderStyle.Render("=== Puppet Interactive Mode ==="))
	fmt.Fprintln(out, "Commands:")
	for _, c := range Commands {
		usage := c.Name
		if c.takesArgs() {
			usage += " " + c.Args
		}
		fmt.Fprintf(out, "  %-16s %s\n", usage, DimStyle.Render("- "+c.Description))
	}
}

// match finds the command for a lowercased, split input line.
func match(fields []string) (*Command, []string, bool) {
	for _, c := range Commands {
		words := strings.Fields(c.Name)
		if len(fields) < len(words) || !slices.Equal(fields[:len(words)], words) {
			continue
		}
		args := fields[len(words):]
		if c.takesArgs() != (len(args) > 0) {
			continue
		}
		return c, args, true
	}
	return nil, nil, false
}

type inputLine struct {
	text string
	err  error
}

// readLines feeds lines from r until EOF, a read error or done is closed.
func readLines(r io.Reader, done <-chan struct{}) <-chan inputLine {
	lines := make(chan inputLine)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- inputLine{text: sc.Text()}:
			case <-done:
				return
			}
		}
		if err := sc.Err(); err != nil {
			select {
			case lines <- inputLine{err: err}:
			case <-done:
			}
		}
	}()
	return lines
}

// Interact runs the command loop, reading one command per line from in until
// quit, end of input or ctx is cancelled. Whatever the reason for leaving, all
// limbs are reset before Interact returns.
func (s *Sequencer) Interact(ctx context.Context, in io.Reader, out io.Writer) (err error) {
	defer func() {
		fmt.Fprintln(out, DimStyle.Render("Resetting puppet to center..."))
		if rerr := s.puppet.ResetAll(context.WithoutCancel(ctx)); rerr != nil {
			err = errors.Join(err, fmt.Errorf("reset: %w", rerr))
		}
	}()

	done := make(chan struct{})
	defer close(done)
	lines := readLines(in, done)

	writeHelp(out)
	for {
		fmt.Fprint(out, "\n"+prompt)

		var line inputLine
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\nExiting interactive mode...")
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			if l.err != nil {
				return fmt.Errorf("read command: %w", l.err)
			}
			line = l
		}

		fields := strings.Fields(strings.ToLower(line.text))
		if len(fields) == 0 {
			continue
		}

		cmd, args, ok := match(fields)
		if !ok {
			fmt.Fprintln(out, WarnStyle.Render("Unknown command. Type 'help' for commands, 'quit' to exit."))
			continue
		}

		switch err := cmd.Run(ctx, s, out, args); {
		case errors.Is(err, errQuit):
			return nil
		case err != nil:
			s.log.Warn("command failed", "command", cmd.Name, "error", err)
			fmt.Fprintln(out, ErrorStyle.Render("Error: "+err.Error()))
		}

		if ctx.Err() != nil {
			fmt.Fprintln(out, "\nExiting interactive mode...")
			return nil
		}
	}
}

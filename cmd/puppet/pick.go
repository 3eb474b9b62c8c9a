package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/gwillem/puppet/pkg/sequencer"
)

type PickCommand struct {
	Speed float64 `short:"s" long:"speed" default:"0" description:"Degrees per step for poses"`
}

const (
	pickPose     = "pose:"
	pickSequence = "seq:"
	pickQuit     = "quit"
)

func pickOptions(s *session) []huh.Option[string] {
	var options []huh.Option[string]
	for name, desc := range s.seq.ListPoses() {
		options = append(options, huh.NewOption(fmt.Sprintf("Pose: %s %s", name, dimStyle.Render(desc)), pickPose+name))
	}
	for name, desc := range s.seq.ListSequences() {
		options = append(options, huh.NewOption(fmt.Sprintf("Sequence: %s %s", name, dimStyle.Render(desc)), pickSequence+name))
	}
	return append(options, huh.NewOption("Quit", pickQuit))
}

// Execute shows a menu of poses and sequences until the user quits.
func (c *PickCommand) Execute(args []string) error {
	return withSession(func(ctx context.Context, s *session) error {
		options := pickOptions(s)
		if len(options) == 1 {
			return fmt.Errorf("no poses or sequences loaded")
		}

		for {
			var choice string
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewSelect[string]().
						Title("What should the puppet do?").
						Options(options...).
						Value(&choice),
				),
			)
			if err := form.RunWithContext(ctx); err != nil {
				// Esc or Ctrl+C
				return nil
			}

			if choice == pickQuit {
				return nil
			}
			if name, ok := strings.CutPrefix(choice, pickPose); ok {
				r, err := s.seq.ExecutePose(ctx, name, c.Speed)
				if err != nil {
					return err
				}
				fmt.Println(sequencer.RenderPoseReport(r))
				continue
			}

			name := strings.TrimPrefix(choice, pickSequence)
			r, err := s.seq.ExecuteSequence(ctx, name)
			fmt.Println(sequencer.RenderSequenceReport(r))
			if err != nil {
				return err
			}
		}
	})
}

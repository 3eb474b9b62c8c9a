package sequencer

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/puppet/pkg/choreo"
)

var (
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	WarnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	DimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableNameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

const noDescription = "No description"

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(DimStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if col == 0 {
				return tableNameStyle
			}
			return tableCellStyle
		})
}

func describe(s string) string {
	if s == "" {
		return noDescription
	}
	return s
}

// RenderPoses renders the pose catalog as a table.
func RenderPoses(store *choreo.Store) string {
	if store.NumPoses() == 0 {
		return DimStyle.Render("No poses loaded")
	}
	t := newTable("Pose", "Description", "Limbs")
	for name, p := range store.Poses() {
		t.Row(name, describe(p.Description), fmt.Sprintf("%d", p.NumLimbs()))
	}
	return t.Render()
}

// RenderSequences renders the sequence catalog as a table.
func RenderSequences(store *choreo.Store) string {
	if store.NumSequences() == 0 {
		return DimStyle.Render("No sequences loaded")
	}
	t := newTable("Sequence", "Description", "Steps")
	for name, q := range store.Sequences() {
		t.Row(name, describe(q.Description), fmt.Sprintf("%d", len(q.Steps)))
	}
	return t.Render()
}

func outcomeStyle(o Outcome) lipgloss.Style {
	switch o {
	case Success:
		return SuccessStyle
	case Partial:
		return WarnStyle
	default:
		return ErrorStyle
	}
}

// RenderPoseReport renders a one-line summary plus any skipped items.
func RenderPoseReport(r PoseReport) string {
	var sb strings.Builder
	sb.WriteString(outcomeStyle(r.Outcome).Render(fmt.Sprintf("pose %s: %s", r.Pose, r.Outcome)))
	sb.WriteString(DimStyle.Render(fmt.Sprintf(" (%d joints moved)", r.Applied())))
	for _, skip := range r.Skipped {
		sb.WriteString("\n  ")
		sb.WriteString(WarnStyle.Render("skipped " + skip.String()))
	}
	return sb.String()
}

// RenderSequenceReport renders a summary of a sequence run.
func RenderSequenceReport(r SequenceReport) string {
	var sb strings.Builder
	status := r.Outcome.String()
	if !r.Completed {
		status += ", interrupted"
	}
	sb.WriteString(outcomeStyle(r.Outcome).Render(fmt.Sprintf("sequence %s: %s", r.Sequence, status)))
	sb.WriteString(DimStyle.Render(fmt.Sprintf(" (%d steps, %d skipped items)", len(r.Steps), r.Skipped())))
	for _, s := range r.Failed() {
		sb.WriteString("\n  ")
		sb.WriteString(ErrorStyle.Render(fmt.Sprintf("step %d: %v", s.Index+1, s.Err)))
	}
	return sb.String()
}

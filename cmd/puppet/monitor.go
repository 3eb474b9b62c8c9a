package main

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/puppet/pkg/player"
	"github.com/gwillem/puppet/pkg/sequencer"
)

type MonitorCommand struct {
	Hz    int     `long:"hz" default:"30" description:"Chart refresh frequency"`
	Pose  bool    `long:"pose" description:"Treat the name as a pose instead of a sequence"`
	Speed float64 `short:"s" long:"speed" default:"2" description:"Degrees per step when playing a pose"`
	Args  struct {
		Name string `positional-arg-name:"name"`
	} `positional-args:"yes" required:"yes"`
}

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Joint colors, assigned in joint order
var jointColors = []string{
	"196", // red
	"208", // orange
	"226", // yellow
	"46",  // green
	"51",  // cyan
	"201", // magenta
	"33",  // blue
	"250", // grey
}

func jointColor(i int) string {
	return jointColors[i%len(jointColors)]
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type monitorModel struct {
	player     *player.Player
	joints     []string
	chart      *streamlinechart.Model
	width      int
	height     int
	logs       []string
	playing    string
	quitting   bool
	lastAngles map[string]float64
}

func (m *monitorModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// hasMovement checks if any joint angle changed since the last state
func (m *monitorModel) hasMovement(angles map[string]float64) bool {
	if m.lastAngles == nil {
		return true
	}
	for key, a := range angles {
		if last, ok := m.lastAngles[key]; !ok || a != last {
			return true
		}
	}
	return false
}

type stateMsg player.State
type logMsg string

func waitForState(p *player.Player) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-p.States())
	}
}

func waitForLog(p *player.Player) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-p.Logs())
	}
}

func (m *monitorModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-legendHeight-footerHeight-borderSize, 10)
	return width, height
}

func (m *monitorModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func initialMonitorModel(p *player.Player) monitorModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(0, 180),
	)

	joints := p.Joints()
	for i, key := range joints {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColor(i)))
		chart.SetDataSetStyles(key, runes.ThinLineStyle, style)
	}

	return monitorModel{
		player: p,
		joints: joints,
		chart:  &chart,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.player),
		waitForLog(m.player),
	)
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case stateMsg:
		state := player.State(msg)
		m.playing = state.Playing
		if state.Angles != nil && m.hasMovement(state.Angles) {
			for key, a := range state.Angles {
				m.chart.PushDataSet(key, a)
			}
			m.chart.DrawAll()
			m.lastAngles = state.Angles
		}
		return m, waitForState(m.player)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.player)
	}

	return m, nil
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Monitor stopped.\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Puppet Monitor"))
	sb.WriteString(fmt.Sprintf(" - %d Hz", m.player.Hz()))
	if m.playing != "" {
		sb.WriteString(statusStyle.Render("  playing " + m.playing))
	}
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	sb.WriteString(renderLegend(m.joints))
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20))

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Press 'q' to quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func renderLegend(joints []string) string {
	var items []string
	for i, key := range joints {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColor(i))).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+key)
	}
	return strings.Join(items, "  ")
}

func (c *MonitorCommand) job(s *session) player.Job {
	if c.Pose {
		return func(ctx context.Context) error {
			_, err := s.seq.ExecutePose(ctx, c.Args.Name, c.Speed)
			return err
		}
	}
	return func(ctx context.Context) error {
		_, err := s.seq.ExecuteSequence(ctx, c.Args.Name)
		return err
	}
}

func (c *MonitorCommand) Execute(args []string) error {
	// Set before any job runs, so events never see a nil player
	var pl *player.Player
	forward := func(e sequencer.Event) { pl.HandleEvent(e) }

	return withSession(func(ctx context.Context, s *session) error {
		pl = player.New(s.puppet, player.Config{Hz: c.Hz})

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- pl.Start(ctx, c.job(s)) }()

		p := tea.NewProgram(initialMonitorModel(pl), tea.WithAltScreen(), tea.WithContext(ctx))
		_, tuiErr := p.Run()
		signalled := ctx.Err() != nil

		cancel()
		err := <-done
		if tuiErr != nil && !signalled {
			return fmt.Errorf("run monitor: %w", tuiErr)
		}
		return err
	}, forward)
}

package main

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/mechseq/pkg/actuator"
	"github.com/gwillem/mechseq/pkg/command"
	"github.com/gwillem/mechseq/pkg/legs"
	"github.com/gwillem/mechseq/pkg/runner"
)

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	statusHeight = 3 // status box
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Colors handed out to actuators in bank order.
var palette = []string{"196", "208", "226", "46", "51", "201", "33", "141", "250", "214"}

var keyBindings = map[string]command.Command{
	"w": command.Walk,
	"s": command.Stand,
	"x": command.Still,
	"t": command.Toggle,
	"a": command.Advance,
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
)

type dashboard struct {
	ctrl          *runner.Controller
	title         string
	ids           []string
	colors        map[string]string
	chart         *streamlinechart.Model
	width         int // terminal width
	height        int // terminal height
	status        []string
	logs          []string // last N log messages
	quitting      bool
	lastPositions map[string]float64 // track previous positions to detect movement
}

// legsChartRange returns the largest absolute setpoint of any frame, with
// some headroom.
func legsChartRange(cfg legs.Config) float64 {
	r := 1.0
	for _, anim := range cfg.Animations {
		for _, frame := range anim.Frames {
			for _, v := range frame {
				r = math.Max(r, math.Abs(v))
			}
		}
	}
	return r * 1.2
}

func newDashboard(ctrl *runner.Controller, title string, bank *actuator.Bank, yRange float64) dashboard {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-yRange, yRange),
	)

	var ids []string
	colors := make(map[string]string)
	for i, a := range bank.Actuators() {
		if a.Kind == actuator.Lock {
			continue
		}
		color := palette[i%len(palette)]
		colors[a.ID] = color
		ids = append(ids, a.ID)
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
		chart.SetDataSetStyles(a.ID, runes.ThinLineStyle, style)
	}

	return dashboard{
		ctrl:   ctrl,
		title:  title,
		ids:    ids,
		colors: colors,
		chart:  &chart,
	}
}

func (m *dashboard) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// hasMovement checks if any actuator position has changed from the last state
func (m *dashboard) hasMovement(positions map[string]float64) bool {
	if m.lastPositions == nil {
		return true
	}
	for id, pos := range positions {
		if lastPos, ok := m.lastPositions[id]; !ok || pos != lastPos {
			return true
		}
	}
	return false
}

// Messages from the controller
type stateMsg runner.State
type logMsg string

func waitForState(ctrl *runner.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ctrl.States())
	}
}

func waitForLog(ctrl *runner.Controller) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ctrl.Logs())
	}
}

func (m *dashboard) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-legendHeight-statusHeight-footerHeight-borderSize, 10)
	return width, height
}

func (m dashboard) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.ctrl),
	)
}

func (m dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chart.Resize(m.chartSize())
		return m, nil

	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		if cmd, ok := keyBindings[key]; ok {
			m.ctrl.Send(cmd)
		}

	case stateMsg:
		state := runner.State(msg)
		m.status = state.Status
		if state.Positions != nil && m.hasMovement(state.Positions) {
			// Only redraw on movement so the chart freezes when idle.
			for _, id := range m.ids {
				if pos, ok := state.Positions[id]; ok {
					m.chart.PushDataSet(id, pos)
				}
			}
			m.chart.DrawAll()
			m.lastPositions = state.Positions
		}
		return m, waitForState(m.ctrl)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.ctrl)
	}

	return m, nil
}

func (m dashboard) View() string {
	if m.quitting {
		return "Stopped.\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteString(fmt.Sprintf(" - %d Hz", m.ctrl.Hz()))
	sb.WriteString(statusStyle.Render("  w walk · s stand · x still · t toggle · a advance · q quit"))
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	sb.WriteString(m.renderLegend())
	sb.WriteString("\n")

	sb.WriteString(boxStyle.Width(max(m.width-4, 20)).Render(strings.Join(m.status, "   ")))
	sb.WriteString("\n")

	logStyle := boxStyle.
		Width(max(m.width-4, 20)).
		Foreground(lipgloss.Color("9"))

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

func (m dashboard) renderLegend() string {
	var items []string
	for _, id := range m.ids {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.colors[id])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+id)
	}
	return strings.Join(items, "  ")
}

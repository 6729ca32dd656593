package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/logdesk/internal/model"
)

// LogActions is the part of the log viewer controller the page drives.
type LogActions interface {
	Clear(ctx context.Context) error
}

type logsClearedMsg struct {
	err error
}

const (
	logsChartHeight = 5
	lastLogLayout   = "15:04:05"
)

// LogsPage shows the log stream, its counters and a type chart.
type LogsPage struct {
	ctx     context.Context
	actions LogActions
	mode    model.Mode
	keys    KeyMap

	vp       viewport.Model
	lines    []string
	entries  int
	counts   model.Counts
	follow   bool
	clearing bool
	status   string
}

// NewLogsPage builds the logs page. ctx bounds the actions it triggers.
func NewLogsPage(ctx context.Context, actions LogActions, mode model.Mode) *LogsPage {
	return &LogsPage{
		ctx:     ctx,
		actions: actions,
		mode:    mode,
		keys:    DefaultKeyMap(),
		vp:      viewport.New(0, 0),
		follow:  true,
	}
}

func (p *LogsPage) ID() string    { return PageLogs }
func (p *LogsPage) Title() string { return "Logs" }

func (p *LogsPage) Init() tea.Cmd { return nil }

// Counts returns the counters last pushed by the controller.
func (p *LogsPage) Counts() model.Counts { return p.counts }

// Lines returns the number of displayed entries.
func (p *LogsPage) Lines() int { return p.entries }

// Status returns the transient status text under the log view.
func (p *LogsPage) Status() string { return p.status }

func (p *LogsPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case LogAppendedMsg:
		p.lines = append(p.lines, renderLogLine(msg.Entry))
		p.entries++
		p.refreshContent()
	case LogsReplacedMsg:
		p.lines = p.lines[:0]
		for _, e := range msg.Entries {
			p.lines = append(p.lines, renderLogLine(e))
		}
		p.entries = len(msg.Entries)
		p.refreshContent()
	case LogStatsMsg:
		p.counts = msg.Counts
	case logsClearedMsg:
		p.clearing = false
		if msg.err != nil {
			p.status = "Clear failed: " + msg.err.Error()
		} else {
			p.status = "Logs cleared"
		}
	case tea.KeyMsg:
		return p.handleKey(msg), nil
	}
	return nil, nil
}

func (p *LogsPage) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, p.keys.ClearLogs):
		if p.clearing {
			return nil
		}
		p.clearing = true
		p.status = "Clearing logs..."
		return p.clearCmd()
	case key.Matches(msg, p.keys.Home):
		p.vp.GotoTop()
		p.follow = false
	case key.Matches(msg, p.keys.End):
		p.vp.GotoBottom()
		p.follow = true
	case key.Matches(msg, p.keys.Up, p.keys.Down, p.keys.PageUp, p.keys.PageDown):
		var cmd tea.Cmd
		p.vp, cmd = p.vp.Update(msg)
		p.follow = p.vp.AtBottom()
		return cmd
	}
	return nil
}

// clearCmd runs the remote clear off the update loop. The controller
// re-renders through the bridge when it succeeds.
func (p *LogsPage) clearCmd() tea.Cmd {
	ctx, actions := p.ctx, p.actions
	return func() tea.Msg {
		return logsClearedMsg{err: actions.Clear(ctx)}
	}
}

func (p *LogsPage) refreshContent() {
	p.vp.SetContent(strings.Join(p.lines, "\n"))
	if p.follow {
		p.vp.GotoBottom()
	}
}

func renderLogLine(e model.LogEntry) string {
	content := lipgloss.NewStyle().Foreground(logTypeColor(e.Type)).Render(e.Content)
	if e.Timestamp == "" {
		return content
	}
	return timestampStyle.Render("["+e.Timestamp+"]") + " " + content
}

func (p *LogsPage) View(width, height int) string {
	if width < 30 || height < 12 {
		return "Terminal too small. Resize to at least 30x12."
	}

	header := p.renderHeader(width)
	chart := sectionStyle.Width(width - 2).Render(renderTypeChart(p.counts, width-6, logsChartHeight))
	footer := p.renderStatusLine(width)

	logHeight := height - lipgloss.Height(header) - lipgloss.Height(chart) - lipgloss.Height(footer) - 2
	if logHeight < 1 {
		logHeight = 1
	}
	p.vp.Width = width - 4
	p.vp.Height = logHeight
	if p.follow {
		p.vp.GotoBottom()
	}

	var body string
	if p.entries == 0 {
		body = lipgloss.Place(width-4, logHeight, lipgloss.Center, lipgloss.Center, helpStyle.Render("No logs yet"))
	} else {
		body = p.vp.View()
	}
	logs := activeSectionStyle.Width(width - 2).Height(logHeight).Render(body)

	return lipgloss.JoinVertical(lipgloss.Left, header, chart, logs, footer)
}

func (p *LogsPage) renderHeader(width int) string {
	last := model.Placeholder
	if !p.counts.LastLogAt.IsZero() {
		last = p.counts.LastLogAt.Format(lastLogLayout)
	}
	left := chartTitleStyle.Render("Log Viewer") + helpStyle.Render(" ("+string(p.mode)+")")
	right := fmt.Sprintf("Total: %d | Errors: %d | Success: %d | Last: %s",
		p.counts.Total, p.counts.Errors, p.counts.Successes, last)

	spacer := width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if spacer < 1 {
		return left
	}
	return " " + left + strings.Repeat(" ", spacer) + right
}

func (p *LogsPage) renderStatusLine(width int) string {
	help := helpLine(p.keys.ClearLogs, p.keys.End, p.keys.NextPage, p.keys.Quit)
	text := help
	if p.status != "" {
		text = p.status + "  " + help
	}
	return statusBarStyle.Width(width).Render(text)
}


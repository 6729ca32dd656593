package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// App is the top-level Bubble Tea model that routes between pages.
type App struct {
	pages      map[string]Page
	order      []string
	activePage string
	keys       KeyMap
	width      int
	height     int
}

// NewApp creates a new App with the given pages. The first page is the default.
func NewApp(pages ...Page) *App {
	pageMap := make(map[string]Page, len(pages))
	order := make([]string, 0, len(pages))
	for _, p := range pages {
		pageMap[p.ID()] = p
		order = append(order, p.ID())
	}
	a := &App{
		pages: pageMap,
		order: order,
		keys:  DefaultKeyMap(),
	}
	if len(order) > 0 {
		a.activePage = order[0]
	}
	return a
}

// ActivePage returns the id of the page currently shown.
func (a *App) ActivePage() string { return a.activePage }

func (a *App) Init() tea.Cmd {
	// Every page loads up front so the controllers behind them start
	// rendering before the user switches.
	cmds := make([]tea.Cmd, 0, len(a.order))
	for _, id := range a.order {
		cmds = append(cmds, a.pages[id].Init())
	}
	return tea.Batch(cmds...)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
	case tea.KeyMsg:
		if key.Matches(msg, a.keys.ForceQuit) {
			return a, tea.Quit
		}
		p, ok := a.pages[a.activePage]
		if !ok {
			return a, nil
		}
		if !capturesInput(p) {
			switch {
			case key.Matches(msg, a.keys.Quit):
				return a, tea.Quit
			case key.Matches(msg, a.keys.NextPage):
				a.activePage = a.nextPageID(a.activePage)
				return a, nil
			case key.Matches(msg, a.keys.LogsPage):
				return a, a.navigate(&PageNav{PageID: PageLogs})
			case key.Matches(msg, a.keys.License):
				return a, a.navigate(&PageNav{PageID: PageLicense})
			}
		}
		cmd, nav := p.Update(msg)
		return a, tea.Batch(cmd, a.navigate(nav))
	}

	// Non-key messages reach every page: controllers push updates for pages
	// that are not on screen.
	var cmds []tea.Cmd
	for _, id := range a.order {
		cmd, nav := a.pages[id].Update(msg)
		cmds = append(cmds, cmd)
		if id == a.activePage {
			cmds = append(cmds, a.navigate(nav))
		}
	}
	return a, tea.Batch(cmds...)
}

func (a *App) navigate(nav *PageNav) tea.Cmd {
	if nav == nil {
		return nil
	}
	if _, exists := a.pages[nav.PageID]; exists {
		a.activePage = nav.PageID
	}
	return nil
}

// inputCapturer is implemented by pages that sometimes need every key, such
// as while a text field has focus.
type inputCapturer interface {
	CapturesInput() bool
}

func capturesInput(p Page) bool {
	c, ok := p.(inputCapturer)
	return ok && c.CapturesInput()
}

// nextPageID returns the page after current in tab order.
func (a *App) nextPageID(current string) string {
	for i, id := range a.order {
		if id == current {
			return a.order[(i+1)%len(a.order)]
		}
	}
	return current
}

func (a *App) View() string {
	p, ok := a.pages[a.activePage]
	if !ok {
		return "No active page"
	}
	if a.width <= 0 || a.height <= 0 {
		return "Initializing..."
	}

	tabs := a.renderTabs()
	body := p.View(a.width, a.height-lipgloss.Height(tabs))
	return lipgloss.JoinVertical(lipgloss.Left, tabs, body)
}

func (a *App) renderTabs() string {
	active := lipgloss.NewStyle().
		Background(ColorBlue).
		Foreground(ColorWhite).
		Bold(true).
		Padding(0, 1)
	inactive := lipgloss.NewStyle().
		Background(ColorNavy).
		Foreground(ColorGray).
		Padding(0, 1)

	parts := make([]string, 0, len(a.order))
	for i, id := range a.order {
		label := string(rune('1'+i)) + " " + a.pages[id].Title()
		if id == a.activePage {
			parts = append(parts, active.Render(label))
		} else {
			parts = append(parts, inactive.Render(label))
		}
	}
	row := strings.Join(parts, "")
	return statusBarStyle.Width(a.width).Render(row)
}

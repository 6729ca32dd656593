package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/logdesk/internal/license"
)

// LicenseActions is the part of the license controller the page drives.
type LicenseActions interface {
	CheckStatus(ctx context.Context) (license.StatusView, error)
	Setup(ctx context.Context, token, apiURL string) error
	Verify(ctx context.Context) error
	Clear(ctx context.Context, confirm license.Confirmer) error
	Dismiss(id string) bool
}

type licenseMode int

const (
	licenseModeView licenseMode = iota
	licenseModeForm
	licenseModeConfirm
)

type licenseActionDoneMsg struct {
	action string
	err    error
}

const (
	fieldToken = iota
	fieldAPIURL
)

// LicensePage shows the license card, the setup form and notifications.
type LicensePage struct {
	ctx           context.Context
	actions       LicenseActions
	defaultAPIURL string
	keys          KeyMap

	mode   licenseMode
	inputs []textinput.Model
	focus  int

	view    license.StatusView
	loaded  bool
	busy    string
	notes   []license.Notification
	lastErr error
}

// NewLicensePage builds the license page. ctx bounds the actions it
// triggers.
func NewLicensePage(ctx context.Context, actions LicenseActions, defaultAPIURL string) *LicensePage {
	token := textinput.New()
	token.Placeholder = "license token"
	token.EchoMode = textinput.EchoPassword
	token.EchoCharacter = '•'
	token.CharLimit = 512
	token.Prompt = "Token:   "

	apiURL := textinput.New()
	apiURL.Placeholder = defaultAPIURL
	apiURL.CharLimit = 256
	apiURL.Prompt = "API URL: "

	return &LicensePage{
		ctx:           ctx,
		actions:       actions,
		defaultAPIURL: defaultAPIURL,
		keys:          DefaultKeyMap(),
		inputs:        []textinput.Model{token, apiURL},
	}
}

func (p *LicensePage) ID() string    { return PageLicense }
func (p *LicensePage) Title() string { return "License" }

// CapturesInput reports whether the form or the confirmation owns the
// keyboard.
func (p *LicensePage) CapturesInput() bool { return p.mode != licenseModeView }

// StatusView returns the card last pushed by the controller.
func (p *LicensePage) StatusView() license.StatusView { return p.view }

// Notifications returns the notifications last pushed by the controller.
func (p *LicensePage) Notifications() []license.Notification { return p.notes }

// LastError returns the error of the most recent action, if any.
func (p *LicensePage) LastError() error { return p.lastErr }

func (p *LicensePage) Init() tea.Cmd {
	return tea.Batch(p.run("refresh", func(ctx context.Context) error {
		_, err := p.actions.CheckStatus(ctx)
		return err
	}), spinnerTick())
}

func (p *LicensePage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case LicenseStatusMsg:
		p.view = msg.View
		p.loaded = true
	case NotificationsMsg:
		p.notes = msg.List
	case licenseActionDoneMsg:
		if p.busy == msg.action {
			p.busy = ""
		}
		p.lastErr = msg.err
	case SpinnerTickMsg:
		if !p.loaded && p.busy != "" {
			return spinnerTick(), nil
		}
	case tea.KeyMsg:
		return p.handleKey(msg), nil
	}
	return nil, nil
}

func (p *LicensePage) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch p.mode {
	case licenseModeForm:
		return p.handleFormKey(msg)
	case licenseModeConfirm:
		return p.handleConfirmKey(msg)
	}

	switch {
	case key.Matches(msg, p.keys.Setup):
		return p.openForm()
	case key.Matches(msg, p.keys.Refresh):
		return p.run("refresh", func(ctx context.Context) error {
			_, err := p.actions.CheckStatus(ctx)
			return err
		})
	case key.Matches(msg, p.keys.Verify):
		return p.run("verify", p.actions.Verify)
	case key.Matches(msg, p.keys.Remove):
		p.mode = licenseModeConfirm
	case key.Matches(msg, p.keys.Dismiss):
		if len(p.notes) == 0 {
			return nil
		}
		id := p.notes[len(p.notes)-1].ID
		actions := p.actions
		return func() tea.Msg {
			actions.Dismiss(id)
			return nil
		}
	}
	return nil
}

func (p *LicensePage) openForm() tea.Cmd {
	p.mode = licenseModeForm
	p.focus = fieldToken
	p.inputs[fieldAPIURL].Blur()
	return p.inputs[fieldToken].Focus()
}

func (p *LicensePage) closeForm() {
	p.mode = licenseModeView
	for i := range p.inputs {
		p.inputs[i].Blur()
	}
}

func (p *LicensePage) handleFormKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, p.keys.Escape):
		p.closeForm()
		return nil
	case key.Matches(msg, p.keys.NextField):
		p.inputs[p.focus].Blur()
		p.focus = (p.focus + 1) % len(p.inputs)
		return p.inputs[p.focus].Focus()
	case key.Matches(msg, p.keys.Submit):
		token := p.inputs[fieldToken].Value()
		apiURL := p.inputs[fieldAPIURL].Value()
		p.inputs[fieldToken].SetValue("")
		p.closeForm()
		return p.run("setup", func(ctx context.Context) error {
			return p.actions.Setup(ctx, token, apiURL)
		})
	}

	var cmd tea.Cmd
	p.inputs[p.focus], cmd = p.inputs[p.focus].Update(msg)
	return cmd
}

func (p *LicensePage) handleConfirmKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, p.keys.Confirm):
		p.mode = licenseModeView
		return p.run("clear", func(ctx context.Context) error {
			return p.actions.Clear(ctx, func(string) bool { return true })
		})
	case key.Matches(msg, p.keys.Decline):
		p.mode = licenseModeView
	}
	return nil
}

// run executes a controller action in a command goroutine. The controller
// reports outcomes as notifications through the bridge.
func (p *LicensePage) run(action string, fn func(ctx context.Context) error) tea.Cmd {
	p.busy = action
	ctx := p.ctx
	return func() tea.Msg {
		return licenseActionDoneMsg{action: action, err: fn(ctx)}
	}
}

func (p *LicensePage) View(width, height int) string {
	if p.mode == licenseModeConfirm {
		return renderConfirmModal(license.ClearPrompt, width, height)
	}
	if !p.loaded {
		return renderLoadingPlaceholder(width, height)
	}

	card := p.renderCard(width)
	parts := []string{card}
	if p.mode == licenseModeForm {
		parts = append(parts, p.renderForm(width))
	}
	parts = append(parts, p.renderNotifications(width))

	footer := p.renderStatusLine(width)
	bodyHeight := height - lipgloss.Height(footer)
	body := lipgloss.NewStyle().Height(bodyHeight).MaxHeight(bodyHeight).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))

	return lipgloss.JoinVertical(lipgloss.Left, body, footer)
}

func (p *LicensePage) renderCard(width int) string {
	color := licenseStateColor(p.view.State)
	icon := "⚠"
	switch p.view.State {
	case license.StateValid:
		icon = "✔"
	case license.StateInvalid:
		icon = "✖"
	}

	title := lipgloss.NewStyle().Foreground(color).Bold(true).Render(icon + " " + p.view.Title)
	subtitle := helpStyle.Render(p.view.Subtitle)

	meta := []string{
		fmt.Sprintf("%-12s %s", "Device ID:", p.view.DeviceUUID),
		fmt.Sprintf("%-12s %s", "Last check:", p.view.LastCheck),
		fmt.Sprintf("%-12s %s", "Created:", p.view.CreatedAt),
	}

	return lipgloss.NewStyle().
		Width(width-2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "", strings.Join(meta, "\n")))
}

func (p *LicensePage) renderForm(width int) string {
	header := chartTitleStyle.Render("Setup license")
	lines := []string{header}
	for _, in := range p.inputs {
		lines = append(lines, in.View())
	}
	lines = append(lines, helpStyle.Render(helpLine(p.keys.NextField, p.keys.Submit, p.keys.Escape)))
	return activeSectionStyle.Width(width - 2).Render(strings.Join(lines, "\n"))
}

func (p *LicensePage) renderNotifications(width int) string {
	if len(p.notes) == 0 {
		return ""
	}
	lines := make([]string, 0, len(p.notes))
	for _, n := range p.notes {
		style := lipgloss.NewStyle().Foreground(severityColor(n.Severity))
		lines = append(lines, style.Render(n.Icon+" "+n.Text))
	}
	return sectionStyle.Width(width - 2).Render(strings.Join(lines, "\n"))
}

func (p *LicensePage) renderStatusLine(width int) string {
	text := helpLine(p.keys.Setup, p.keys.Verify, p.keys.Remove, p.keys.Refresh, p.keys.Dismiss, p.keys.Quit)
	if p.busy != "" {
		text = "Working (" + p.busy + ")...  " + text
	}
	return statusBarStyle.Width(width).Render(text)
}

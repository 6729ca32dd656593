package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// renderConfirmModal renders a centred yes/no question.
func renderConfirmModal(question string, width, height int) string {
	modalWidth := min(width-8, 60)
	if modalWidth < 20 {
		modalWidth = 20
	}

	header := lipgloss.NewStyle().
		Foreground(ColorOrange).
		Bold(true).
		Render("Confirm")

	body := lipgloss.NewStyle().
		Width(modalWidth - 4).
		Render(question)

	statusBar := renderModalStatusBar()

	modal := lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", statusBar)

	finalModal := lipgloss.NewStyle().
		Width(modalWidth).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorOrange).
		Padding(0, 1).
		Render(modal)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, finalModal)
}

// renderModalStatusBar renders the status bar for modals
func renderModalStatusBar() string {
	return helpStyle.Render("y: Confirm | n/ESC: Cancel")
}

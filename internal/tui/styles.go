package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/logdesk/internal/license"
	"github.com/tinytelemetry/logdesk/internal/model"
)

var (
	ColorWhite  = lipgloss.Color("#FFFFFF")
	ColorGray   = lipgloss.Color("244")
	ColorBlue   = lipgloss.Color("39")
	ColorGreen  = lipgloss.Color("42")
	ColorRed    = lipgloss.Color("196")
	ColorOrange = lipgloss.Color("208")
	ColorNavy   = lipgloss.Color("#1B2A41")
)

var (
	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(ColorGray).
			Padding(0, 1)

	activeSectionStyle = sectionStyle.
				BorderForeground(ColorBlue)

	chartTitleStyle = lipgloss.NewStyle().
			Foreground(ColorBlue).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	statusBarStyle = lipgloss.NewStyle().
			Background(ColorNavy).
			Foreground(ColorWhite)

	timestampStyle = lipgloss.NewStyle().
			Foreground(ColorGray)
)

// logTypeColor returns the colour used for entries of type t.
func logTypeColor(t model.LogType) lipgloss.Color {
	switch t {
	case model.LogError:
		return ColorRed
	case model.LogSuccess:
		return ColorGreen
	default:
		return ColorBlue
	}
}

func severityColor(s license.Severity) lipgloss.Color {
	switch s {
	case license.SeveritySuccess:
		return ColorGreen
	case license.SeverityError:
		return ColorRed
	default:
		return ColorBlue
	}
}

func licenseStateColor(s license.StatusState) lipgloss.Color {
	switch s {
	case license.StateValid:
		return ColorGreen
	case license.StateInvalid:
		return ColorRed
	default:
		return ColorOrange
	}
}

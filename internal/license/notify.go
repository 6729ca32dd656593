package license

import "time"

// Severity classifies a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Icon returns the glyph shown next to a notification of this severity.
func (s Severity) Icon() string {
	switch s {
	case SeveritySuccess:
		return "✔"
	case SeverityError:
		return "✖"
	default:
		return "ℹ"
	}
}

// Notification is a transient, dismissible message.
type Notification struct {
	ID        string
	Text      string
	Severity  Severity
	Icon      string
	CreatedAt time.Time
}

package license

import (
	"time"

	"github.com/tinytelemetry/logdesk/internal/model"
)

// StatusState is the visual state of the license card.
type StatusState int

const (
	StateAbsent StatusState = iota
	StateValid
	StateInvalid
)

func (s StatusState) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateInvalid:
		return "invalid"
	default:
		return "absent"
	}
}

// StatusView is the rendered form of a license status. Metadata fields hold
// model.Placeholder when unknown.
type StatusView struct {
	State    StatusState
	Title    string
	Subtitle string

	DeviceUUID string
	LastCheck  string
	CreatedAt  string
}

const displayDateLayout = "02/01/2006 15:04:05"

var inputDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

// BuildView maps a status response onto the card. Without a license the
// card is absent whatever else the response says.
func BuildView(st *model.LicenseStatus) StatusView {
	view := StatusView{
		State:      StateAbsent,
		Title:      "License not configured",
		Subtitle:   "Configure a license to use the system",
		DeviceUUID: model.Placeholder,
		LastCheck:  model.Placeholder,
		CreatedAt:  model.Placeholder,
	}
	if st == nil || !st.HasLicense {
		return view
	}

	view.Title = st.Message
	if st.IsValid {
		view.State = StateValid
		view.Subtitle = "License verified and active"
		if view.Title == "" {
			view.Title = "License active"
		}
	} else {
		view.State = StateInvalid
		view.Subtitle = "License inactive or expired"
		if view.Title == "" {
			view.Title = "License invalid"
		}
	}

	if info := st.Info; info != nil {
		view.DeviceUUID = orPlaceholder(info.DeviceUUID)
		view.LastCheck = FormatDate(info.LastCheck)
		view.CreatedAt = FormatDate(info.CreatedAt)
	}
	return view
}

// FormatDate renders a backend timestamp in local time. Unparseable values
// are returned as is and empty ones become the placeholder.
func FormatDate(raw string) string {
	if raw == "" {
		return model.Placeholder
	}
	for _, layout := range inputDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t.Local().Format(displayDateLayout)
		}
	}
	return raw
}

func orPlaceholder(s string) string {
	if s == "" {
		return model.Placeholder
	}
	return s
}

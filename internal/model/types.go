package model

import "time"

// LogType is the display classification of a log line.
type LogType string

const (
	LogInfo    LogType = "info"
	LogSuccess LogType = "success"
	LogError   LogType = "error"
)

// LogEntry represents a single log line held by the log viewer.
// ID is assigned locally on ingestion and is never read from the wire.
type LogEntry struct {
	Timestamp string  `json:"timestamp"`
	Content   string  `json:"content"`
	Type      LogType `json:"type"`
	ID        string  `json:"-"`
}

// Counts holds the log viewer counters. Errors and Successes are disjoint
// subsets of Total; everything else counts as info.
type Counts struct {
	Total     int
	Errors    int
	Successes int
	LastLogAt time.Time // zero until the first ingestion
}

// Mode selects how the log viewer learns about new entries.
type Mode string

const (
	ModePoll   Mode = "poll"   // periodic fetch with a length-based diff
	ModeStream Mode = "stream" // server push with polling fallback
)

// LogsResponse is the body of GET /api/logs.
type LogsResponse struct {
	Logs []LogEntry `json:"logs"`
}

// LicenseInfo is the machine metadata attached to a license status.
type LicenseInfo struct {
	DeviceUUID string `json:"device_uuid"`
	LastCheck  string `json:"last_check"`
	CreatedAt  string `json:"created_at"`
	IsActive   bool   `json:"is_active"`
}

// LicenseStatus is the body of GET /api/license/status. It is transient and
// refetched for every render.
type LicenseStatus struct {
	HasLicense bool         `json:"has_license"`
	IsValid    bool         `json:"is_valid"`
	Message    string       `json:"message"`
	Info       *LicenseInfo `json:"info,omitempty"`
}

// SetupRequest is the body of POST /api/license/setup.
type SetupRequest struct {
	Token  string `json:"token"`
	APIURL string `json:"api_url"`
}

// ActionResponse is returned by the setup and clear license endpoints.
type ActionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// VerifyResponse is returned by POST /api/license/verify.
type VerifyResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

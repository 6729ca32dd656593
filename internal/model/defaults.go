package model

import "time"

// Shared defaults used by the controllers and the CLI.
const (
	DefaultBaseURL          = "http://localhost:8080"
	DefaultPollInterval     = 2 * time.Second
	DefaultFallbackInterval = 5 * time.Second
	DefaultRetryDelay       = 5 * time.Second
	DefaultLogBuffer        = 1000
	DefaultRequestTimeout   = 10 * time.Second
	DefaultRecheckDelay     = 1 * time.Second
	DefaultNotificationTTL  = 5 * time.Second
	DefaultLicenseAPIURL    = "http://localhost:8000"
	DefaultMode             = ModePoll
)

// Placeholder is shown for any status field the backend did not report.
const Placeholder = "--"

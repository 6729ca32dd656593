package model

import "context"

// LogAPI is the remote log surface consumed by the log viewer.
type LogAPI interface {
	Logs(ctx context.Context) ([]LogEntry, error)
	ClearLogs(ctx context.Context) error
}

// LicenseAPI is the remote license surface consumed by the license panel.
type LicenseAPI interface {
	LicenseStatus(ctx context.Context) (*LicenseStatus, error)
	SetupLicense(ctx context.Context, token, apiURL string) (*ActionResponse, error)
	VerifyLicense(ctx context.Context) (*VerifyResponse, error)
	ClearLicense(ctx context.Context) (*ActionResponse, error)
}

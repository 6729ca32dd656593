package apiclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tinytelemetry/logdesk/internal/apiclient"
	"github.com/tinytelemetry/logdesk/internal/apitest"
	"github.com/tinytelemetry/logdesk/internal/model"
)

func newTestClient(t *testing.T) (*apiclient.Client, *apitest.Server) {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)
	return apiclient.New(srv.URL()), srv
}

func TestLogs(t *testing.T) {
	t.Parallel()
	client, srv := newTestClient(t)

	srv.AddLog("GET /status - IP: ::1")
	srv.AddLog("GET /status - Status: 200")

	logs, err := client.Logs(context.Background())
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("len(logs) = %d, want 2", len(logs))
	}
	if logs[1].Type != model.LogSuccess {
		t.Errorf("logs[1].Type = %q, want success", logs[1].Type)
	}
	if logs[0].ID != "" {
		t.Errorf("logs[0].ID = %q, want empty (IDs are assigned locally)", logs[0].ID)
	}
}

func TestLogs_StatusError(t *testing.T) {
	t.Parallel()
	client, srv := newTestClient(t)
	srv.FailNext(apiclient.PathLogs, http.StatusInternalServerError)

	_, err := client.Logs(context.Background())

	var statusErr *apiclient.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", statusErr.StatusCode)
	}
}

func TestLogs_MalformedBody(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"logs": [`))
	}))
	t.Cleanup(ts.Close)

	_, err := apiclient.New(ts.URL).Logs(context.Background())
	if !errors.Is(err, apiclient.ErrMalformedResponse) {
		t.Fatalf("err = %v, want ErrMalformedResponse", err)
	}
}

func TestLogs_TransportError(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	if _, err := apiclient.New(url).Logs(context.Background()); err == nil {
		t.Fatal("expected transport error against closed server")
	}
}

func TestClearLogs(t *testing.T) {
	t.Parallel()
	client, srv := newTestClient(t)
	srv.AddLog("something")

	if err := client.ClearLogs(context.Background()); err != nil {
		t.Fatalf("ClearLogs: %v", err)
	}

	logs, err := client.Logs(context.Background())
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if len(logs) != 0 {
		t.Errorf("len(logs) after clear = %d, want 0", len(logs))
	}
}

func TestLicenseLifecycle(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t)
	ctx := context.Background()

	status, err := client.LicenseStatus(ctx)
	if err != nil {
		t.Fatalf("LicenseStatus: %v", err)
	}
	if status.HasLicense {
		t.Fatal("fresh backend reports a license")
	}

	// Verify without a license answers 400 with a decodable body.
	verify, err := client.VerifyLicense(ctx)
	if err != nil {
		t.Fatalf("VerifyLicense: %v", err)
	}
	if verify.Valid || verify.Message == "" {
		t.Errorf("verify = %+v, want invalid with message", verify)
	}

	setup, err := client.SetupLicense(ctx, "tok-123", model.DefaultLicenseAPIURL)
	if err != nil {
		t.Fatalf("SetupLicense: %v", err)
	}
	if !setup.Success {
		t.Fatalf("setup = %+v, want success", setup)
	}

	status, err = client.LicenseStatus(ctx)
	if err != nil {
		t.Fatalf("LicenseStatus: %v", err)
	}
	if !status.HasLicense || !status.IsValid || status.Info == nil || status.Info.DeviceUUID == "" {
		t.Errorf("status after setup = %+v", status)
	}

	cleared, err := client.ClearLicense(ctx)
	if err != nil {
		t.Fatalf("ClearLicense: %v", err)
	}
	if !cleared.Success {
		t.Errorf("clear = %+v, want success", cleared)
	}
}

func TestSetupLicense_BusinessFailure(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t)

	resp, err := client.SetupLicense(context.Background(), "invalid-token", "")
	if err != nil {
		t.Fatalf("SetupLicense: %v", err)
	}
	if resp.Success || resp.Message != "invalid token" {
		t.Errorf("resp = %+v, want failure with server message", resp)
	}
}

func TestSetupLicense_NonJSONFailure(t *testing.T) {
	t.Parallel()
	client, srv := newTestClient(t)
	srv.FailNext(apiclient.PathLicenseSetup, http.StatusBadGateway)

	_, err := client.SetupLicense(context.Background(), "tok", "")

	var statusErr *apiclient.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if statusErr.Body != "injected failure" {
		t.Errorf("body = %q, want %q", statusErr.Body, "injected failure")
	}
}

func TestNew_NormalizesBaseURL(t *testing.T) {
	t.Parallel()
	c := apiclient.New("http://example.test:8080/")
	if got := c.StreamURL(); got != "http://example.test:8080/api/logs/stream" {
		t.Errorf("StreamURL = %q", got)
	}
	if got := apiclient.New("").BaseURL(); got != model.DefaultBaseURL {
		t.Errorf("default BaseURL = %q, want %q", got, model.DefaultBaseURL)
	}
}

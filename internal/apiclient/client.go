package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tinytelemetry/logdesk/internal/model"
)

// API paths consumed by the client.
const (
	PathLogs          = "/api/logs"
	PathLogsClear     = "/api/logs/clear"
	PathLogsStream    = "/api/logs/stream"
	PathLicenseStatus = "/api/license/status"
	PathLicenseSetup  = "/api/license/setup"
	PathLicenseVerify = "/api/license/verify"
	PathLicenseClear  = "/api/license/clear"
)

// maxErrorBody caps how much of a failed response is kept for diagnostics.
const maxErrorBody = 512

// ErrMalformedResponse is returned when a response body is not the JSON
// shape the endpoint promises.
var ErrMalformedResponse = errors.New("apiclient: malformed response")

// StatusError reports a non-2xx response that carried no usable body.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("apiclient: %s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("apiclient: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Client implements model.LogAPI and model.LicenseAPI over HTTP/JSON.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = model.DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: model.DefaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string { return c.baseURL }

// HTTPClient returns the client used for requests. The push stream reuses
// its transport.
func (c *Client) HTTPClient() *http.Client { return c.httpClient }

// StreamURL returns the address of the log push stream.
func (c *Client) StreamURL() string { return c.baseURL + PathLogsStream }

// Logs fetches the full log list.
func (c *Client) Logs(ctx context.Context) ([]model.LogEntry, error) {
	var resp model.LogsResponse
	if err := c.do(ctx, http.MethodGet, PathLogs, nil, &resp, false); err != nil {
		return nil, err
	}
	return resp.Logs, nil
}

// ClearLogs asks the backend to drop its log history.
func (c *Client) ClearLogs(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, PathLogsClear, struct{}{}, nil, false)
}

// LicenseStatus fetches the license and device status.
func (c *Client) LicenseStatus(ctx context.Context) (*model.LicenseStatus, error) {
	var resp model.LicenseStatus
	if err := c.do(ctx, http.MethodGet, PathLicenseStatus, nil, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetupLicense posts credentials. Business failures come back as a
// response with Success false, not as an error.
func (c *Client) SetupLicense(ctx context.Context, token, apiURL string) (*model.ActionResponse, error) {
	var resp model.ActionResponse
	req := model.SetupRequest{Token: token, APIURL: apiURL}
	if err := c.do(ctx, http.MethodPost, PathLicenseSetup, req, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyLicense asks the backend to re-validate the stored license.
func (c *Client) VerifyLicense(ctx context.Context) (*model.VerifyResponse, error) {
	var resp model.VerifyResponse
	if err := c.do(ctx, http.MethodPost, PathLicenseVerify, struct{}{}, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearLicense removes the stored license.
func (c *Client) ClearLicense(ctx context.Context) (*model.ActionResponse, error) {
	var resp model.ActionResponse
	if err := c.do(ctx, http.MethodPost, PathLicenseClear, struct{}{}, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do performs one JSON request. With decodeOnError set, a non-2xx response
// whose body decodes into dest is treated as a normal reply; the license
// endpoints report business failures that way.
func (c *Client) do(ctx context.Context, method, path string, body, dest any, decodeOnError bool) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("apiclient: marshal %s: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("apiclient: create request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("apiclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("apiclient: read %s: %w", path, err)
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok && !decodeOnError {
		return statusError(method, path, resp.StatusCode, raw)
	}

	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		if !ok {
			return statusError(method, path, resp.StatusCode, raw)
		}
		return fmt.Errorf("%w: %s %s: %v", ErrMalformedResponse, method, path, err)
	}
	return nil
}

func statusError(method, path string, code int, raw []byte) *StatusError {
	body := strings.TrimSpace(string(raw))
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &StatusError{Method: method, Path: path, StatusCode: code, Body: body}
}

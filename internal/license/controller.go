// Package license implements the license panel controller: status display,
// setup, verification, removal and the notification list that reports the
// outcome of each action.
package license

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinytelemetry/logdesk/internal/model"
)

// Renderer receives status and notification updates. Calls are made with
// the controller lock held and must not call back into the controller.
type Renderer interface {
	DisplayLicenseStatus(view StatusView)
	DisplayNotifications(list []Notification)
}

// Scheduler runs f once after d. The returned stop func cancels it and
// reports whether it was still pending, like (*time.Timer).Stop.
type Scheduler func(d time.Duration, f func()) (stop func() bool)

// Confirmer asks the user a yes/no question.
type Confirmer func(prompt string) bool

var (
	ErrTokenRequired = errors.New("license: token is required")
	ErrNotConfirmed  = errors.New("license: action not confirmed")
	// ErrRejected wraps a business failure reported by the backend.
	ErrRejected = errors.New("license: rejected")
)

// ClearPrompt is the confirmation question asked before removal.
const ClearPrompt = "Remove the license? This cannot be undone."

// Options tunes a Controller. Zero values fall back to package model
// defaults.
type Options struct {
	RecheckDelay    time.Duration
	NotificationTTL time.Duration
	DefaultAPIURL   string

	Schedule Scheduler
	Now      func() time.Time
}

// Controller drives the license panel.
type Controller struct {
	api      model.LicenseAPI
	renderer Renderer

	recheckDelay  time.Duration
	ttl           time.Duration
	defaultAPIURL string
	schedule      Scheduler
	now           func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	notes  []Notification
	timers map[string]func() bool
	seq    int
	closed bool
}

// NewController wires a controller to its API and renderer.
func NewController(api model.LicenseAPI, renderer Renderer, opts Options) *Controller {
	c := &Controller{
		api:           api,
		renderer:      renderer,
		recheckDelay:  opts.RecheckDelay,
		ttl:           opts.NotificationTTL,
		defaultAPIURL: opts.DefaultAPIURL,
		schedule:      opts.Schedule,
		now:           opts.Now,
		timers:        make(map[string]func() bool),
	}
	if c.recheckDelay <= 0 {
		c.recheckDelay = model.DefaultRecheckDelay
	}
	if c.ttl <= 0 {
		c.ttl = model.DefaultNotificationTTL
	}
	if c.defaultAPIURL == "" {
		c.defaultAPIURL = model.DefaultLicenseAPIURL
	}
	if c.schedule == nil {
		c.schedule = func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		}
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// CheckStatus fetches the license status and renders it.
func (c *Controller) CheckStatus(ctx context.Context) (StatusView, error) {
	st, err := c.api.LicenseStatus(ctx)
	if err != nil {
		log.Printf("license: status check failed: %v", err)
		c.ShowMessage("Failed to check license status", SeverityError)
		return StatusView{}, fmt.Errorf("check license status: %w", err)
	}

	view := BuildView(st)
	c.mu.Lock()
	c.renderer.DisplayLicenseStatus(view)
	c.mu.Unlock()
	return view, nil
}

// Setup installs a license. The token is required and checked before any
// request is made. An empty apiURL uses the configured default.
func (c *Controller) Setup(ctx context.Context, token, apiURL string) error {
	token = strings.TrimSpace(token)
	apiURL = strings.TrimSpace(apiURL)
	if token == "" {
		c.ShowMessage("Token is required", SeverityError)
		return ErrTokenRequired
	}
	if apiURL == "" {
		apiURL = c.defaultAPIURL
	}

	c.ShowMessage("Configuring license...", SeverityInfo)
	resp, err := c.api.SetupLicense(ctx, token, apiURL)
	if err != nil {
		log.Printf("license: setup failed: %v", err)
		c.ShowMessage("Failed to configure license", SeverityError)
		return fmt.Errorf("setup license: %w", err)
	}
	if !resp.Success {
		c.ShowMessage(orDefault(resp.Message, "Failed to configure license"), SeverityError)
		return fmt.Errorf("%w: %s", ErrRejected, resp.Message)
	}

	c.ShowMessage("License configured successfully", SeveritySuccess)
	c.scheduleRecheck()
	return nil
}

// Verify asks the backend to re-validate the license. The status is
// re-checked afterwards whether or not it was valid.
func (c *Controller) Verify(ctx context.Context) error {
	c.ShowMessage("Verifying license...", SeverityInfo)
	resp, err := c.api.VerifyLicense(ctx)
	if err != nil {
		log.Printf("license: verify failed: %v", err)
		c.ShowMessage("Failed to verify license", SeverityError)
		return fmt.Errorf("verify license: %w", err)
	}

	defer c.scheduleRecheck()
	if !resp.Valid {
		c.ShowMessage(orDefault(resp.Message, "License is invalid"), SeverityError)
		return fmt.Errorf("%w: %s", ErrRejected, resp.Message)
	}
	c.ShowMessage("License verified successfully", SeveritySuccess)
	return nil
}

// Clear removes the license after confirm approves ClearPrompt. A nil
// confirm counts as declined.
func (c *Controller) Clear(ctx context.Context, confirm Confirmer) error {
	if confirm == nil || !confirm(ClearPrompt) {
		return ErrNotConfirmed
	}

	c.ShowMessage("Removing license...", SeverityInfo)
	resp, err := c.api.ClearLicense(ctx)
	if err != nil {
		log.Printf("license: clear failed: %v", err)
		c.ShowMessage("Failed to remove license", SeverityError)
		return fmt.Errorf("clear license: %w", err)
	}
	if !resp.Success {
		c.ShowMessage(orDefault(resp.Message, "Failed to remove license"), SeverityError)
		return fmt.Errorf("%w: %s", ErrRejected, resp.Message)
	}

	c.ShowMessage("License removed successfully", SeveritySuccess)
	c.scheduleRecheck()
	return nil
}

func (c *Controller) scheduleRecheck() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.seq++
	key := fmt.Sprintf("recheck-%d", c.seq)
	c.timers[key] = c.schedule(c.recheckDelay, func() {
		c.mu.Lock()
		delete(c.timers, key)
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		// Failures are already reported by CheckStatus.
		_, _ = c.CheckStatus(c.ctx)
	})
}

// ShowMessage appends a notification that expires after the configured
// lifetime and returns it.
func (c *Controller) ShowMessage(text string, severity Severity) Notification {
	n := Notification{
		ID:        uuid.NewString(),
		Text:      text,
		Severity:  severity,
		Icon:      severity.Icon(),
		CreatedAt: c.now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = append(c.notes, n)
	if !c.closed {
		c.timers[n.ID] = c.schedule(c.ttl, func() { c.expire(n.ID) })
	}
	c.renderer.DisplayNotifications(c.notificationsLocked())
	return n
}

func (c *Controller) expire(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.timers, id)
	if c.removeLocked(id) {
		c.renderer.DisplayNotifications(c.notificationsLocked())
	}
}

// Dismiss closes a notification before it expires. It reports whether the
// notification was still shown.
func (c *Controller) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if stop, ok := c.timers[id]; ok {
		stop()
		delete(c.timers, id)
	}
	if !c.removeLocked(id) {
		return false
	}
	c.renderer.DisplayNotifications(c.notificationsLocked())
	return true
}

func (c *Controller) removeLocked(id string) bool {
	for i, n := range c.notes {
		if n.ID == id {
			c.notes = append(c.notes[:i], c.notes[i+1:]...)
			return true
		}
	}
	return false
}

// Notifications returns the visible notifications, oldest first.
func (c *Controller) Notifications() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notificationsLocked()
}

func (c *Controller) notificationsLocked() []Notification {
	out := make([]Notification, len(c.notes))
	copy(out, c.notes)
	return out
}

// Close cancels pending re-checks and expiry timers. Visible notifications
// stay until dismissed.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for key, stop := range c.timers {
		stop()
		delete(c.timers, key)
	}
	c.cancel()
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

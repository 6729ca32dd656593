// Package logview implements the log viewer controller: a bounded buffer of
// entries fed by polling or by the push stream, with running counters and
// a remote clear action.
package logview

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinytelemetry/logdesk/internal/logbuf"
	"github.com/tinytelemetry/logdesk/internal/logparse"
	"github.com/tinytelemetry/logdesk/internal/model"
	"github.com/tinytelemetry/logdesk/internal/stream"
)

// Renderer receives every display update. Calls are serialized and made
// while the controller holds its lock, so implementations must not call
// back into the controller.
type Renderer interface {
	// DisplayLog appends one entry and scrolls to the bottom.
	DisplayLog(entry model.LogEntry)
	// DisplayAll re-renders the whole buffer and scrolls to the bottom.
	DisplayAll(entries []model.LogEntry)
	DisplayStats(counts model.Counts)
}

// EventSource is a push channel of log events. *stream.Stream satisfies it.
type EventSource interface {
	Start(ctx context.Context) <-chan stream.Event
	Close()
}

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("logview: controller closed")

// Options tunes a Controller. Zero values fall back to the defaults in
// package model.
type Options struct {
	Mode             model.Mode
	PollInterval     time.Duration
	FallbackInterval time.Duration
	Capacity         int

	// NewStream builds the push channel for stream mode. Without it the
	// controller behaves as if the stream were unavailable.
	NewStream func() EventSource

	Now func() time.Time
}

// Snapshot is a copy of the controller state.
type Snapshot struct {
	Entries  []model.LogEntry
	Counts   model.Counts
	LastSeen int
}

// Controller owns the log buffer and counters.
type Controller struct {
	api      model.LogAPI
	renderer Renderer

	mode             model.Mode
	pollInterval     time.Duration
	fallbackInterval time.Duration
	newStream        func() EventSource
	now              func() time.Time

	mu       sync.Mutex
	buf      *logbuf.Buffer
	counts   model.Counts
	lastSeen int
	cancel   context.CancelFunc
	closed   bool

	// generation is bumped on every reset; fetches started under an older
	// generation are dropped when they land.
	generation uint64
}

// NewController wires a controller to its API and renderer.
func NewController(api model.LogAPI, renderer Renderer, opts Options) *Controller {
	c := &Controller{
		api:              api,
		renderer:         renderer,
		mode:             opts.Mode,
		pollInterval:     opts.PollInterval,
		fallbackInterval: opts.FallbackInterval,
		newStream:        opts.NewStream,
		now:              opts.Now,
		buf:              logbuf.New(opts.Capacity),
	}
	if c.mode != model.ModeStream {
		c.mode = model.ModePoll
	}
	if c.pollInterval <= 0 {
		c.pollInterval = model.DefaultPollInterval
	}
	if c.fallbackInterval <= 0 {
		c.fallbackInterval = model.DefaultFallbackInterval
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Mode reports how the controller receives new entries.
func (c *Controller) Mode() model.Mode { return c.mode }

// Classify derives a log type from content alone.
func (c *Controller) Classify(content string) model.LogType {
	return logparse.Classify(content)
}

// LoadInitial fetches the full history and replaces the local state with it.
// The last-log time only moves when the history grew since the previous
// load.
func (c *Controller) LoadInitial(ctx context.Context) error {
	gen := c.currentGeneration()
	logs, err := c.api.Logs(ctx)
	if err != nil {
		return fmt.Errorf("load logs: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return nil
	}

	entries := make([]model.LogEntry, len(logs))
	counts := model.Counts{}
	for i, raw := range logs {
		entries[i] = c.prepare(raw)
		countEntry(&counts, entries[i].Type)
	}
	switch {
	case len(logs) > c.lastSeen:
		counts.LastLogAt = c.now()
	case len(logs) > 0:
		counts.LastLogAt = c.counts.LastLogAt
	}

	c.buf.Replace(entries)
	c.counts = counts
	c.lastSeen = len(logs)

	c.renderer.DisplayAll(c.buf.Entries())
	c.renderer.DisplayStats(c.counts)
	return nil
}

// Ingest adds one entry, updates the counters and renders it. When the
// buffer is over capacity the oldest entries are dropped and the view is
// redrawn. Counters keep counting evicted entries.
func (c *Controller) Ingest(entry model.LogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ingestLocked(entry)
}

func (c *Controller) ingestLocked(raw model.LogEntry) {
	entry := c.prepare(raw)
	evicted := c.buf.Append(entry)
	countEntry(&c.counts, entry.Type)
	c.counts.LastLogAt = c.now()

	c.renderer.DisplayLog(entry)
	c.renderer.DisplayStats(c.counts)
	if evicted {
		c.renderer.DisplayAll(c.buf.Entries())
	}
}

func (c *Controller) prepare(raw model.LogEntry) model.LogEntry {
	return model.LogEntry{
		ID:        uuid.NewString(),
		Timestamp: raw.Timestamp,
		Content:   raw.Content,
		Type:      logparse.Resolve(raw.Type, raw.Content),
	}
}

func countEntry(counts *model.Counts, t model.LogType) {
	counts.Total++
	switch t {
	case model.LogError:
		counts.Errors++
	case model.LogSuccess:
		counts.Successes++
	}
}

// ApplyPoll ingests the suffix of logs beyond the last-seen count. The
// remote list is assumed to be append-only; a shorter list is ignored and
// the last-seen count is kept.
func (c *Controller) ApplyPoll(logs []model.LogEntry) int {
	return c.applyPoll(logs, c.currentGeneration())
}

func (c *Controller) applyPoll(logs []model.LogEntry, gen uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || len(logs) <= c.lastSeen {
		return 0
	}
	fresh := logs[c.lastSeen:]
	for _, e := range fresh {
		c.ingestLocked(e)
	}
	c.lastSeen = len(logs)
	return len(fresh)
}

// Poll fetches the remote list once and applies it. A list fetched before
// a concurrent Clear is discarded.
func (c *Controller) Poll(ctx context.Context) error {
	gen := c.currentGeneration()
	logs, err := c.api.Logs(ctx)
	if err != nil {
		return fmt.Errorf("poll logs: %w", err)
	}
	c.applyPoll(logs, gen)
	return nil
}

func (c *Controller) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Clear asks the backend to drop its logs and, on success, empties the
// local buffer and counters. A failure leaves local state untouched.
func (c *Controller) Clear(ctx context.Context) error {
	if err := c.api.ClearLogs(ctx); err != nil {
		return fmt.Errorf("clear logs: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	return nil
}

func (c *Controller) resetLocked() {
	c.buf.Reset()
	c.counts = model.Counts{}
	c.lastSeen = 0
	c.generation++
	c.renderer.DisplayAll(nil)
	c.renderer.DisplayStats(c.counts)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Entries:  c.buf.Entries(),
		Counts:   c.counts,
		LastSeen: c.lastSeen,
	}
}

// Run loads the history and then keeps the view current until ctx is
// cancelled or Close is called. Fetch and stream failures are logged and
// do not stop the loop.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	if err := c.LoadInitial(ctx); err != nil && ctx.Err() == nil {
		log.Printf("logview: initial load failed: %v", err)
	}

	if c.mode == model.ModeStream {
		c.runStream(ctx)
	} else {
		c.runTicker(ctx, c.pollInterval, c.Poll)
	}
	return nil
}

func (c *Controller) runTicker(ctx context.Context, every time.Duration, tick func(context.Context) error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := tick(ctx); err != nil && ctx.Err() == nil {
				log.Printf("logview: %v", err)
			}
		}
	}
}

func (c *Controller) runStream(ctx context.Context) {
	if c.newStream == nil {
		log.Printf("logview: no stream configured, polling every %s", c.fallbackInterval)
		c.runTicker(ctx, c.fallbackInterval, c.LoadInitial)
		return
	}

	src := c.newStream()
	defer src.Close()

	events := src.Start(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case stream.EventOpen:
				// The backend replays its history to each new subscriber.
				c.mu.Lock()
				c.resetLocked()
				c.mu.Unlock()
			case stream.EventMessage:
				c.Ingest(ev.Entry)
			case stream.EventDropped:
				log.Printf("logview: stream dropped, retrying: %v", ev.Err)
			case stream.EventUnavailable:
				log.Printf("logview: stream unavailable, polling every %s: %v", c.fallbackInterval, ev.Err)
				c.runTicker(ctx, c.fallbackInterval, c.LoadInitial)
				return
			}
		}
	}
}

// Close stops the running loop, its timers and the stream. It is safe to
// call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
}

// Package stream maintains the log push channel as an explicit reconnect
// state machine.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tinytelemetry/logdesk/internal/model"
)

// State is the connection state of a Stream.
type State int

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
	StateRetrying
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateRetrying:
		return "retrying"
	default:
		return "closed"
	}
}

// EventKind identifies what an Event reports.
type EventKind int

const (
	// EventOpen fires each time a connection is established.
	EventOpen EventKind = iota
	// EventMessage carries one decoded log entry.
	EventMessage
	// EventDropped reports a failure after the stream was open. A single
	// retry is scheduled.
	EventDropped
	// EventUnavailable reports that the stream could not be established on
	// the first attempt. No retry follows and the event channel closes.
	EventUnavailable
)

// Event is delivered on the channel returned by Start.
type Event struct {
	Kind  EventKind
	Entry model.LogEntry
	Err   error
}

// ErrBadResponse is returned when the endpoint answers with something other
// than an event stream.
var ErrBadResponse = errors.New("stream: unexpected response")

const eventBuffer = 64

// Stream owns at most one connection to the push endpoint. A single
// goroutine drives it, so there is never more than one reconnect pending.
type Stream struct {
	url        string
	httpClient *http.Client
	retry      backoff.BackOff

	mu    sync.Mutex
	state State

	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Stream.
type Option func(*Stream)

// WithHTTPClient sets the client used to dial. Its Timeout must be zero,
// since the response body stays open indefinitely.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Stream) {
		if hc != nil {
			s.httpClient = hc
		}
	}
}

// WithRetryDelay sets a fixed delay between reconnect attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Stream) {
		if d > 0 {
			s.retry = backoff.NewConstantBackOff(d)
		}
	}
}

// WithBackOff replaces the reconnect policy. Returning backoff.Stop ends
// the stream.
func WithBackOff(b backoff.BackOff) Option {
	return func(s *Stream) {
		if b != nil {
			s.retry = b
		}
	}
}

// New creates a stream for url. It does not connect until Start.
func New(url string, opts ...Option) *Stream {
	s := &Stream{
		url:        url,
		httpClient: &http.Client{},
		retry:      backoff.NewConstantBackOff(model.DefaultRetryDelay),
		state:      StateClosed,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current connection state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Stream) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Start launches the connection goroutine. The returned channel closes when
// ctx is cancelled, Close is called or the stream gives up. A Stream is
// single use: calling Start a second time returns nil.
func (s *Stream) Start(ctx context.Context) <-chan Event {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = StateConnecting
	s.mu.Unlock()

	events := make(chan Event, eventBuffer)
	go s.run(ctx, events)
	return events
}

// Close stops the stream and waits for its goroutine to exit.
func (s *Stream) Close() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Stream) run(ctx context.Context, events chan<- Event) {
	defer func() {
		s.setState(StateClosed)
		close(events)
		close(s.done)
	}()

	opened := false
	s.retry.Reset()

	for {
		s.setState(StateConnecting)
		resp, err := s.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !opened {
				log.Printf("stream: cannot establish %s: %v", s.url, err)
				s.emit(ctx, events, Event{Kind: EventUnavailable, Err: err})
				return
			}
			log.Printf("stream: reconnect to %s failed: %v", s.url, err)
		} else {
			opened = true
			s.retry.Reset()
			s.setState(StateOpen)
			if !s.emit(ctx, events, Event{Kind: EventOpen}) {
				resp.Body.Close()
				return
			}

			err = s.consume(ctx, resp, events)
			resp.Body.Close()
			if ctx.Err() != nil {
				return
			}
			if err == nil {
				err = errors.New("stream: closed by server")
			}
			log.Printf("stream: connection lost: %v", err)
			s.setState(StateClosed)
			if !s.emit(ctx, events, Event{Kind: EventDropped, Err: err}) {
				return
			}
		}

		delay := s.retry.NextBackOff()
		if delay == backoff.Stop {
			return
		}
		s.setState(StateRetrying)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Stream) dial(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("stream: create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stream: dial: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", ErrBadResponse, resp.StatusCode)
	}
	return resp, nil
}

// consume forwards decoded messages until the body ends. Malformed
// payloads are logged and skipped.
func (s *Stream) consume(ctx context.Context, resp *http.Response, events chan<- Event) error {
	return readEvents(resp.Body, func(data string) bool {
		var entry model.LogEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			log.Printf("stream: skipping malformed message %.80q: %v", data, err)
			return true
		}
		return s.emit(ctx, events, Event{Kind: EventMessage, Entry: entry})
	})
}

func (s *Stream) emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

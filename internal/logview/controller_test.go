package logview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tinytelemetry/logdesk/internal/apiclient"
	"github.com/tinytelemetry/logdesk/internal/apitest"
	"github.com/tinytelemetry/logdesk/internal/model"
	"github.com/tinytelemetry/logdesk/internal/stream"
)

type recordingRenderer struct {
	mu      sync.Mutex
	logs    []model.LogEntry
	redraws int
	last    []model.LogEntry
	stats   []model.Counts
}

func (r *recordingRenderer) DisplayLog(entry model.LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, entry)
}

func (r *recordingRenderer) DisplayAll(entries []model.LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redraws++
	r.last = entries
}

func (r *recordingRenderer) DisplayStats(counts model.Counts) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = append(r.stats, counts)
}

func (r *recordingRenderer) logCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.logs)
}

type fakeAPI struct {
	mu       sync.Mutex
	logs     []model.LogEntry
	fetchErr error
	clearErr error
	fetches  int
	clears   int

	// afterFetch runs once the list has been read, before it is returned.
	afterFetch func()
}

func (f *fakeAPI) Logs(context.Context) ([]model.LogEntry, error) {
	f.mu.Lock()
	f.fetches++
	if f.fetchErr != nil {
		f.mu.Unlock()
		return nil, f.fetchErr
	}
	logs := append([]model.LogEntry(nil), f.logs...)
	hook := f.afterFetch
	f.afterFetch = nil
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return logs, nil
}

func (f *fakeAPI) ClearLogs(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	if f.clearErr != nil {
		return f.clearErr
	}
	f.logs = nil
	return nil
}

func entries(contents ...string) []model.LogEntry {
	out := make([]model.LogEntry, len(contents))
	for i, c := range contents {
		out[i] = model.LogEntry{Timestamp: fmt.Sprintf("t%d", i), Content: c}
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestController_Classify(t *testing.T) {
	t.Parallel()

	c := NewController(&fakeAPI{}, &recordingRenderer{}, Options{})
	tests := []struct {
		content string
		want    model.LogType
	}{
		{"Request failed with 200", model.LogError},
		{"Operação concluída com sucesso", model.LogSuccess},
		{"GET /health 200", model.LogSuccess},
		{"worker started", model.LogInfo},
	}
	for _, tt := range tests {
		if got := c.Classify(tt.content); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.content, got, tt.want)
		}
	}
}

func TestController_LoadInitial(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{logs: entries("boot", "job success", "disk error")}
	r := &recordingRenderer{}
	c := NewController(api, r, Options{})

	if err := c.LoadInitial(context.Background()); err != nil {
		t.Fatalf("LoadInitial: %v", err)
	}

	snap := c.Snapshot()
	if snap.LastSeen != 3 {
		t.Fatalf("LastSeen = %d, want 3", snap.LastSeen)
	}
	if len(snap.Entries) != 3 {
		t.Fatalf("len(Entries) = %d, want 3", len(snap.Entries))
	}
	want := model.Counts{Total: 3, Errors: 1, Successes: 1}
	got := snap.Counts
	got.LastLogAt = time.Time{}
	if got != want {
		t.Fatalf("Counts = %+v, want %+v", got, want)
	}
	if r.redraws != 1 || len(r.last) != 3 {
		t.Fatalf("DisplayAll calls = %d with %d entries", r.redraws, len(r.last))
	}

	// A poll right after the load must not duplicate the history.
	if n := c.ApplyPoll(api.logs); n != 0 {
		t.Fatalf("ApplyPoll after load ingested %d entries", n)
	}
}

func TestController_LoadInitialFailureKeepsState(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{fetchErr: errors.New("connection refused")}
	c := NewController(api, &recordingRenderer{}, Options{})
	c.Ingest(model.LogEntry{Content: "kept"})

	if err := c.LoadInitial(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if snap := c.Snapshot(); len(snap.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(snap.Entries))
	}
}

func TestController_IngestAssignsIDAndType(t *testing.T) {
	t.Parallel()

	r := &recordingRenderer{}
	c := NewController(&fakeAPI{}, r, Options{})

	c.Ingest(model.LogEntry{Content: "upload failed"})
	c.Ingest(model.LogEntry{Content: "upload failed", Type: model.LogInfo})
	c.Ingest(model.LogEntry{Content: "plain", Type: "bogus"})

	snap := c.Snapshot()
	wantTypes := []model.LogType{model.LogError, model.LogInfo, model.LogInfo}
	seen := map[string]bool{}
	for i, e := range snap.Entries {
		if e.Type != wantTypes[i] {
			t.Errorf("entry %d type = %q, want %q", i, e.Type, wantTypes[i])
		}
		if e.ID == "" || seen[e.ID] {
			t.Errorf("entry %d has missing or duplicate id %q", i, e.ID)
		}
		seen[e.ID] = true
	}
	if snap.Counts.Total != 3 || snap.Counts.Errors != 1 || snap.Counts.Successes != 0 {
		t.Fatalf("Counts = %+v", snap.Counts)
	}
	if snap.Counts.LastLogAt.IsZero() {
		t.Fatal("LastLogAt not set")
	}
	if len(r.logs) != 3 || len(r.stats) != 3 {
		t.Fatalf("renders: logs=%d stats=%d", len(r.logs), len(r.stats))
	}
}

func TestController_BufferIsBounded(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		capacity int
		n        int
	}{
		{name: "below capacity", capacity: 5, n: 3},
		{name: "at capacity", capacity: 5, n: 5},
		{name: "over capacity", capacity: 5, n: 12},
		{name: "default capacity", capacity: 0, n: model.DefaultLogBuffer + 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := &recordingRenderer{}
			c := NewController(&fakeAPI{}, r, Options{Capacity: tt.capacity})
			for i := 0; i < tt.n; i++ {
				c.Ingest(model.LogEntry{Content: fmt.Sprintf("line %d", i)})
			}

			capacity := tt.capacity
			if capacity <= 0 {
				capacity = model.DefaultLogBuffer
			}
			want := min(tt.n, capacity)

			snap := c.Snapshot()
			if len(snap.Entries) != want {
				t.Fatalf("len = %d, want %d", len(snap.Entries), want)
			}
			for i, e := range snap.Entries {
				wantContent := fmt.Sprintf("line %d", tt.n-want+i)
				if e.Content != wantContent {
					t.Fatalf("entry %d = %q, want %q", i, e.Content, wantContent)
				}
			}
			if snap.Counts.Total != tt.n {
				t.Fatalf("Total = %d, want %d", snap.Counts.Total, tt.n)
			}
			if wantRedraws := tt.n - want; r.redraws != wantRedraws {
				t.Fatalf("redraws = %d, want %d", r.redraws, wantRedraws)
			}
		})
	}
}

func TestController_ApplyPollIngestsSuffix(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{logs: entries("a", "b", "c")}
	r := &recordingRenderer{}
	c := NewController(api, r, Options{})
	if err := c.LoadInitial(context.Background()); err != nil {
		t.Fatalf("LoadInitial: %v", err)
	}

	remote := entries("a", "b", "c", "d failed", "e")
	if n := c.ApplyPoll(remote); n != 2 {
		t.Fatalf("ingested %d, want 2", n)
	}
	if len(r.logs) != 2 || r.logs[0].Content != "d failed" || r.logs[1].Content != "e" {
		t.Fatalf("rendered %+v", r.logs)
	}
	snap := c.Snapshot()
	if snap.LastSeen != 5 || len(snap.Entries) != 5 {
		t.Fatalf("LastSeen = %d entries = %d", snap.LastSeen, len(snap.Entries))
	}
	if snap.Counts.Errors != 1 {
		t.Fatalf("Errors = %d, want 1", snap.Counts.Errors)
	}
}

func TestController_ApplyPollIgnoresShorterList(t *testing.T) {
	t.Parallel()

	c := NewController(&fakeAPI{}, &recordingRenderer{}, Options{})
	c.ApplyPoll(entries("a", "b", "c", "d"))

	if n := c.ApplyPoll(entries("x", "y")); n != 0 {
		t.Fatalf("ingested %d from a shorter list", n)
	}
	if snap := c.Snapshot(); snap.LastSeen != 4 || len(snap.Entries) != 4 {
		t.Fatalf("LastSeen = %d entries = %d", snap.LastSeen, len(snap.Entries))
	}
}

func TestController_Clear(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{logs: entries("a", "b failed", "c success")}
	r := &recordingRenderer{}
	c := NewController(api, r, Options{})
	if err := c.LoadInitial(context.Background()); err != nil {
		t.Fatalf("LoadInitial: %v", err)
	}

	if err := c.Clear(context.Background()); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	snap := c.Snapshot()
	if len(snap.Entries) != 0 || snap.Counts != (model.Counts{}) || snap.LastSeen != 0 {
		t.Fatalf("state after clear = %+v", snap)
	}
	if len(r.last) != 0 {
		t.Fatalf("view not cleared: %d entries", len(r.last))
	}

	// Logs written after a clear show up on the next poll.
	if n := c.ApplyPoll(entries("fresh")); n != 1 {
		t.Fatalf("ingested %d after clear, want 1", n)
	}
}

func TestController_ClearFailureKeepsState(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{logs: entries("a", "b"), clearErr: errors.New("boom")}
	c := NewController(api, &recordingRenderer{}, Options{})
	if err := c.LoadInitial(context.Background()); err != nil {
		t.Fatalf("LoadInitial: %v", err)
	}

	if err := c.Clear(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if snap := c.Snapshot(); len(snap.Entries) != 2 || snap.Counts.Total != 2 || snap.LastSeen != 2 {
		t.Fatalf("state changed on failed clear: %+v", snap)
	}
}

func TestController_RunPollsBackend(t *testing.T) {
	t.Parallel()

	srv := apitest.New()
	defer srv.Close()
	srv.AddLog("boot")

	r := &recordingRenderer{}
	c := NewController(apiclient.New(srv.URL()), r, Options{
		Mode:         model.ModePoll,
		PollInterval: 10 * time.Millisecond,
	})

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	waitFor(t, func() bool { return c.Snapshot().LastSeen == 1 })
	srv.AddLog("payment success")
	srv.AddLog("payment failed")
	waitFor(t, func() bool { return c.Snapshot().LastSeen == 3 })

	c.Close()
	c.Close()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := c.Snapshot()
	if snap.Counts.Total != 3 || snap.Counts.Errors != 1 || snap.Counts.Successes != 1 {
		t.Fatalf("Counts = %+v", snap.Counts)
	}
	if r.logCount() != 2 {
		t.Fatalf("DisplayLog calls = %d, want 2", r.logCount())
	}
	if err := c.Run(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Run after Close = %v, want ErrClosed", err)
	}
}

func TestController_RunSurvivesFetchErrors(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{fetchErr: errors.New("down")}
	c := NewController(api, &recordingRenderer{}, Options{PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	waitFor(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return api.fetches >= 3
	})
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func streamFactory(url string) func() EventSource {
	return func() EventSource {
		return stream.New(url, stream.WithRetryDelay(10*time.Millisecond))
	}
}

func TestController_RunStreamMode(t *testing.T) {
	t.Parallel()

	srv := apitest.New()
	defer srv.Close()
	srv.AddLog("boot")
	srv.AddLog("ready")

	client := apiclient.New(srv.URL())
	c := NewController(client, &recordingRenderer{}, Options{
		Mode:      model.ModeStream,
		NewStream: streamFactory(client.StreamURL()),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	// History arrives through the replay, not duplicated by the initial load.
	waitFor(t, func() bool { return srv.StreamCount() == 1 && len(c.Snapshot().Entries) == 2 })

	srv.AddLog("sync failed")
	waitFor(t, func() bool { return len(c.Snapshot().Entries) == 3 })

	srv.DropStreams()
	waitFor(t, func() bool { return srv.Requests(apiclient.PathLogsStream) == 2 && srv.StreamCount() == 1 })
	srv.AddLog("after reconnect")
	waitFor(t, func() bool { return len(c.Snapshot().Entries) == 4 })

	snap := c.Snapshot()
	if snap.Entries[2].Type != model.LogError {
		t.Fatalf("entry 2 type = %q", snap.Entries[2].Type)
	}
	if snap.Entries[3].Content != "after reconnect" {
		t.Fatalf("last entry = %q", snap.Entries[3].Content)
	}
}

func TestController_StreamUnavailableFallsBackToRefetch(t *testing.T) {
	t.Parallel()

	srv := apitest.New()
	defer srv.Close()
	srv.SetStreamEnabled(false)
	srv.AddLog("boot")

	client := apiclient.New(srv.URL())
	c := NewController(client, &recordingRenderer{}, Options{
		Mode:             model.ModeStream,
		FallbackInterval: 10 * time.Millisecond,
		NewStream:        streamFactory(client.StreamURL()),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	waitFor(t, func() bool { return srv.Requests(apiclient.PathLogs) >= 2 })
	srv.AddLog("late arrival")
	waitFor(t, func() bool { return len(c.Snapshot().Entries) == 2 })

	if got := srv.Requests(apiclient.PathLogsStream); got != 1 {
		t.Fatalf("stream requests = %d, want 1", got)
	}
}

func TestController_RefetchKeepsLastLogTimeWithoutNewEntries(t *testing.T) {
	t.Parallel()

	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	api := &fakeAPI{logs: entries("boot", "ready")}
	c := NewController(api, &recordingRenderer{}, Options{Now: func() time.Time { return clock }})

	if err := c.LoadInitial(context.Background()); err != nil {
		t.Fatalf("LoadInitial: %v", err)
	}
	first := clock

	clock = clock.Add(time.Minute)
	if err := c.LoadInitial(context.Background()); err != nil {
		t.Fatalf("LoadInitial: %v", err)
	}
	if got := c.Snapshot().Counts.LastLogAt; !got.Equal(first) {
		t.Fatalf("LastLogAt = %v after unchanged refetch, want %v", got, first)
	}

	api.mu.Lock()
	api.logs = entries("boot", "ready", "late")
	api.mu.Unlock()
	clock = clock.Add(time.Minute)
	if err := c.LoadInitial(context.Background()); err != nil {
		t.Fatalf("LoadInitial: %v", err)
	}
	if got := c.Snapshot().Counts.LastLogAt; !got.Equal(clock) {
		t.Fatalf("LastLogAt = %v after growth, want %v", got, clock)
	}
}

func TestController_PollDiscardsListFetchedBeforeClear(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		fetch func(*Controller) error
	}{
		{"poll", func(c *Controller) error { return c.Poll(context.Background()) }},
		{"refetch", func(c *Controller) error { return c.LoadInitial(context.Background()) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			api := &fakeAPI{logs: entries("a", "b", "c")}
			c := NewController(api, &recordingRenderer{}, Options{})
			api.afterFetch = func() {
				if err := c.Clear(context.Background()); err != nil {
					t.Errorf("Clear: %v", err)
				}
			}

			if err := tt.fetch(c); err != nil {
				t.Fatalf("fetch: %v", err)
			}
			snap := c.Snapshot()
			if len(snap.Entries) != 0 || snap.LastSeen != 0 || snap.Counts.Total != 0 {
				t.Fatalf("stale list applied after clear: %+v", snap)
			}

			// The next fetch sees the cleared backend and works normally.
			api.mu.Lock()
			api.logs = entries("fresh")
			api.mu.Unlock()
			if err := c.Poll(context.Background()); err != nil {
				t.Fatalf("Poll: %v", err)
			}
			if n := len(c.Snapshot().Entries); n != 1 {
				t.Fatalf("entries after clear = %d, want 1", n)
			}
		})
	}
}

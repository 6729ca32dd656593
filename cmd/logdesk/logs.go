package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/logdesk/internal/model"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Read and clear backend logs",
}

var logsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print logs as they arrive until interrupted",
	RunE:  runLogsTail,
}

var logsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every log on the backend",
	Args:  cobra.NoArgs,
	RunE:  runLogsClear,
}

func init() {
	addLogFlags(logsTailCmd)

	logsCmd.AddCommand(logsClearCmd)
	logsCmd.AddCommand(logsTailCmd)
}

// addLogFlags registers the log viewer tuning flags on cmd.
func addLogFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.String("mode", "", "update mode: poll or stream")
	fs.Duration("poll-interval", 0, "interval between polls in poll mode")
	fs.Duration("fallback-interval", 0, "refetch interval when the stream is unavailable")
	fs.Duration("retry-delay", 0, "delay before reconnecting a dropped stream")
	fs.Int("log-buffer", 0, "number of entries kept in memory")
}

func runLogsTail(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	out := newLineRenderer(cmd.OutOrStdout(), cfg.LogBuffer)
	client := newAPIClient(cfg)
	ctrl := newLogController(cfg, client, out)

	log.Printf("logs: tailing %s in %s mode", cfg.BaseURL, cfg.Mode)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ctrl.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		ctrl.Close()
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	snap := ctrl.Snapshot()
	fmt.Fprintf(cmd.ErrOrStderr(), "\n%d logs (%d errors, %d success)\n",
		snap.Counts.Total, snap.Counts.Errors, snap.Counts.Successes)
	return nil
}

func runLogsClear(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
	defer cancel()

	if err := newAPIClient(cfg).ClearLogs(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logs cleared")
	return nil
}

// lineRenderer prints log entries to a writer as coloured lines. Full
// re-renders only print entries the writer has not seen yet, since a
// terminal cannot be redrawn.
//
// A reset (DisplayAll with no entries) starts a replay: the stream backend
// resends its history to every new subscriber, so incoming entries that
// match what was already printed, in order, are swallowed. The first entry
// that diverges ends the replay.
type lineRenderer struct {
	mu    sync.Mutex
	w     io.Writer
	shown int

	printed int
	recent  []string
	keep    int

	replaying bool
	replayed  int

	styles map[model.LogType]lipgloss.Style
	stamp  lipgloss.Style
}

// newLineRenderer returns a renderer that remembers the last keep printed
// lines for replay matching.
func newLineRenderer(w io.Writer, keep int) *lineRenderer {
	if keep <= 0 {
		keep = model.DefaultLogBuffer
	}
	r := lipgloss.NewRenderer(w)
	return &lineRenderer{
		w:    w,
		keep: keep,
		styles: map[model.LogType]lipgloss.Style{
			model.LogInfo:    r.NewStyle().Foreground(lipgloss.Color("39")),
			model.LogSuccess: r.NewStyle().Foreground(lipgloss.Color("42")),
			model.LogError:   r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		},
		stamp: r.NewStyle().Foreground(lipgloss.Color("244")),
	}
}

func (r *lineRenderer) DisplayLog(entry model.LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown++
	if r.replaying && r.skipReplayed(entry) {
		return
	}
	r.emit(entry)
}

func (r *lineRenderer) DisplayAll(entries []model.LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(entries) == 0 {
		r.shown = 0
		r.replaying = r.printed > 0
		r.replayed = 0
		return
	}
	for i := r.shown; i < len(entries); i++ {
		r.emit(entries[i])
	}
	r.shown = len(entries)
}

func (r *lineRenderer) DisplayStats(model.Counts) {}

// skipReplayed reports whether entry repeats the next already printed
// line. Lines older than the remembered window are assumed to match.
func (r *lineRenderer) skipReplayed(entry model.LogEntry) bool {
	if r.replayed >= r.printed {
		r.replaying = false
		return false
	}
	base := r.printed - len(r.recent)
	if r.replayed >= base && r.recent[r.replayed-base] != lineKey(entry) {
		r.replaying = false
		return false
	}
	r.replayed++
	return true
}

func (r *lineRenderer) emit(e model.LogEntry) {
	r.print(e)
	r.printed++
	r.recent = append(r.recent, lineKey(e))
	if over := len(r.recent) - r.keep; over > 0 {
		r.recent = append(r.recent[:0], r.recent[over:]...)
	}
}

func lineKey(e model.LogEntry) string {
	return e.Timestamp + "\x00" + e.Content
}

func (r *lineRenderer) print(e model.LogEntry) {
	style, ok := r.styles[e.Type]
	if !ok {
		style = r.styles[model.LogInfo]
	}
	line := style.Render(e.Content)
	if e.Timestamp != "" {
		line = r.stamp.Render("["+e.Timestamp+"]") + " " + line
	}
	fmt.Fprintln(r.w, line)
}


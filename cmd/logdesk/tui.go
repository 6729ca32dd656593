package main

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/logdesk/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the dashboard",
	RunE:  runTUI,
}

func init() {
	addLogFlags(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	ctx, stop := signalContext(cmd.Context())
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bridge := tui.NewBridge()
	client := newAPIClient(cfg)
	logs := newLogController(cfg, client, bridge)
	defer logs.Close()
	lic := newLicenseController(cfg, client, bridge)
	defer lic.Close()

	app := tui.NewApp(
		tui.NewLogsPage(ctx, logs, cfg.Mode),
		tui.NewLicensePage(ctx, lic, cfg.LicenseAPIURL),
	)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.Attach(p)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		if _, err := p.Run(); err != nil && gctx.Err() == nil {
			if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
				return fmt.Errorf("TUI requires a real terminal")
			}
			return fmt.Errorf("error running TUI: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return logs.Run(gctx)
	})

	return g.Wait()
}

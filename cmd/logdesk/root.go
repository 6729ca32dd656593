package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tinytelemetry/logdesk/internal/apiclient"
	"github.com/tinytelemetry/logdesk/internal/license"
	"github.com/tinytelemetry/logdesk/internal/logview"
	"github.com/tinytelemetry/logdesk/internal/stream"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "logdesk",
	Short: "Terminal client for the log and license API",
	Long: `logdesk follows the log stream of a desktop service and manages its
license. Run without a subcommand to open the dashboard.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTUI,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("logdesk %s (commit %s, built %s)\n", version, commit, buildTime))

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is $HOME/.config/logdesk/config.yml)")
	rootCmd.PersistentFlags().String("base-url", "", "backend base URL")
	rootCmd.PersistentFlags().Duration("request-timeout", 0, "timeout for each API request")
	addLogFlags(rootCmd)

	// Add subcommands (alphabetical)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(licenseCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(tuiCmd)
}

// loadConfig reads the configuration for cmd, honouring its flags.
func loadConfig(cmd *cobra.Command) (cliConfig, error) {
	return loadCLIConfig(configPath, cmd)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newAPIClient(cfg cliConfig) *apiclient.Client {
	return apiclient.New(cfg.BaseURL, apiclient.WithTimeout(cfg.RequestTimeout))
}

func newLogController(cfg cliConfig, client *apiclient.Client, r logview.Renderer) *logview.Controller {
	streamURL := client.StreamURL()
	return logview.NewController(client, r, logview.Options{
		Mode:             cfg.Mode,
		PollInterval:     cfg.PollInterval,
		FallbackInterval: cfg.FallbackInterval,
		Capacity:         cfg.LogBuffer,
		NewStream: func() logview.EventSource {
			return stream.New(streamURL, stream.WithRetryDelay(cfg.RetryDelay))
		},
	})
}

func newLicenseController(cfg cliConfig, client *apiclient.Client, r license.Renderer) *license.Controller {
	return license.NewController(client, r, license.Options{
		RecheckDelay:    cfg.RecheckDelay,
		NotificationTTL: cfg.NotificationTTL,
		DefaultAPIURL:   cfg.LicenseAPIURL,
	})
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		out, err := marshalConfig(cfg)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	},
}

// marshalConfig renders cfg with durations in their string form so the
// output can be used as a config file.
func marshalConfig(cfg cliConfig) ([]byte, error) {
	doc := map[string]any{
		"base-url":          cfg.BaseURL,
		"mode":              string(cfg.Mode),
		"poll-interval":     cfg.PollInterval.String(),
		"fallback-interval": cfg.FallbackInterval.String(),
		"retry-delay":       cfg.RetryDelay.String(),
		"log-buffer":        cfg.LogBuffer,
		"request-timeout":   cfg.RequestTimeout.String(),
		"recheck-delay":     cfg.RecheckDelay.String(),
		"notification-ttl":  cfg.NotificationTTL.String(),
		"license-api-url":   cfg.LicenseAPIURL,
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return out, nil
}

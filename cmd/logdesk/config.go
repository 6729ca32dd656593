package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tinytelemetry/logdesk/internal/model"
)

// cliConfig holds every setting the commands read.
type cliConfig struct {
	BaseURL          string        `mapstructure:"base-url"`
	Mode             model.Mode    `mapstructure:"mode"`
	PollInterval     time.Duration `mapstructure:"poll-interval"`
	FallbackInterval time.Duration `mapstructure:"fallback-interval"`
	RetryDelay       time.Duration `mapstructure:"retry-delay"`
	LogBuffer        int           `mapstructure:"log-buffer"`
	RequestTimeout   time.Duration `mapstructure:"request-timeout"`
	RecheckDelay     time.Duration `mapstructure:"recheck-delay"`
	NotificationTTL  time.Duration `mapstructure:"notification-ttl"`
	LicenseAPIURL    string        `mapstructure:"license-api-url"`
}

// boundFlags are the flag names that override config keys of the same name
// when a command defines them.
var boundFlags = []string{
	"base-url",
	"mode",
	"poll-interval",
	"fallback-interval",
	"retry-delay",
	"log-buffer",
	"request-timeout",
	"license-api-url",
}

func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "logdesk", "config.yml"), nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("LOGDESK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("base-url", model.DefaultBaseURL)
	v.SetDefault("mode", string(model.DefaultMode))
	v.SetDefault("poll-interval", model.DefaultPollInterval)
	v.SetDefault("fallback-interval", model.DefaultFallbackInterval)
	v.SetDefault("retry-delay", model.DefaultRetryDelay)
	v.SetDefault("log-buffer", model.DefaultLogBuffer)
	v.SetDefault("request-timeout", model.DefaultRequestTimeout)
	v.SetDefault("recheck-delay", model.DefaultRecheckDelay)
	v.SetDefault("notification-ttl", model.DefaultNotificationTTL)
	v.SetDefault("license-api-url", model.DefaultLicenseAPIURL)
	return v
}

// loadCLIConfig merges defaults, the config file, LOGDESK_* environment
// variables and, when cmd is not nil, its explicitly set flags.
func loadCLIConfig(configPath string, cmd *cobra.Command) (cliConfig, error) {
	var cfg cliConfig

	v := newViper()

	if configPath == "" {
		p, err := defaultConfigPath()
		if err != nil {
			return cfg, err
		}
		configPath = p
	}
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("reading %s: %w", configPath, err)
		}
	}

	if cmd != nil {
		for _, name := range boundFlags {
			if f := cmd.Flags().Lookup(name); f != nil {
				if err := v.BindPFlag(name, f); err != nil {
					return cfg, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c cliConfig) validate() error {
	var errs []error

	if err := checkHTTPURL("base-url", c.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if err := checkHTTPURL("license-api-url", c.LicenseAPIURL); err != nil {
		errs = append(errs, err)
	}
	if c.Mode != model.ModePoll && c.Mode != model.ModeStream {
		errs = append(errs, fmt.Errorf("mode must be %q or %q, got %q", model.ModePoll, model.ModeStream, c.Mode))
	}
	if c.LogBuffer <= 0 {
		errs = append(errs, fmt.Errorf("log-buffer must be positive, got %d", c.LogBuffer))
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"poll-interval", c.PollInterval},
		{"fallback-interval", c.FallbackInterval},
		{"retry-delay", c.RetryDelay},
		{"request-timeout", c.RequestTimeout},
		{"recheck-delay", c.RecheckDelay},
		{"notification-ttl", c.NotificationTTL},
	}
	for _, d := range durations {
		if d.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", d.name, d.d))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func checkHTTPURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", name, raw)
	}
	return nil
}

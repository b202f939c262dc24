// Package cli provides flag binding and validation for the wavescape CLI.
package cli

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nellyag1/wavescape-portal222/internal/config"
)

// BindFlags registers the global flags on the root command. They are
// persistent so every subcommand accepts them. The flags directly modify
// fields in the provided config pointer. Call ValidateFlags after parsing.
func BindFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.PersistentFlags()
	def := config.NewDefaultConfig()

	// Backend
	flags.StringVar(&cfg.APIURL, "api-url", def.APIURL, "Session collection URL")
	flags.StringVar(&cfg.OwnerID, "owner", "", "Owner identifier recorded on new sessions")
	flags.DurationVar(&cfg.HTTPTimeout, "http-timeout", def.HTTPTimeout, "Per-request timeout")

	// Timers
	flags.DurationVar(&cfg.RefreshInterval, "refresh-interval", def.RefreshInterval, "Period between automatic refreshes")
	flags.DurationVar(&cfg.WarmupBudget, "warmup-budget", def.WarmupBudget, "Total time to wait for a new session to accept work")
	flags.DurationVar(&cfg.WarmupInterval, "warmup-interval", def.WarmupInterval, "Delay between warm-up attempts")

	// Output
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Print debug output")
	flags.StringVar(&cfg.NotifyCommand, "notify-command", "", "Command run with each notification as its last argument")

	flags.StringVar(&cfg.ConfigFile, "config", "", "Path to additional config file")
}

// ValidateFlags checks flag values after parsing.
func ValidateFlags(cfg *config.Config) error {
	if cfg.ConfigFile != "" {
		if _, err := os.Stat(cfg.ConfigFile); err != nil {
			return fmt.Errorf("--config: %w", err)
		}
	}
	return ValidateConfig(cfg)
}

// ValidateConfig checks a fully merged configuration.
func ValidateConfig(cfg *config.Config) error {
	u, err := url.Parse(cfg.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("--api-url must be an http(s) URL, got: %q", cfg.APIURL)
	}
	if cfg.RefreshInterval <= 0 || cfg.WarmupBudget <= 0 || cfg.WarmupInterval <= 0 || cfg.HTTPTimeout <= 0 {
		return fmt.Errorf("durations must be positive")
	}
	if cfg.WarmupInterval > cfg.WarmupBudget {
		return fmt.Errorf("--warmup-interval (%s) exceeds --warmup-budget (%s)", cfg.WarmupInterval, cfg.WarmupBudget)
	}
	return nil
}

// BuildOverrides creates a map of CLI flag overrides from the config.
// Uses Changed() to only include flags explicitly set by the user, so
// config file values are not overridden by flag defaults.
func BuildOverrides(cmd *cobra.Command, cfg *config.Config) map[string]string {
	overrides := make(map[string]string)
	flags := cmd.Flags()

	stringFlags := map[string]struct {
		key string
		val string
	}{
		"api-url":          {"API_URL", cfg.APIURL},
		"owner":            {"OWNER_ID", cfg.OwnerID},
		"notify-command":   {"NOTIFY_COMMAND", cfg.NotifyCommand},
		"http-timeout":     {"HTTP_TIMEOUT", cfg.HTTPTimeout.String()},
		"refresh-interval": {"REFRESH_INTERVAL", cfg.RefreshInterval.String()},
		"warmup-budget":    {"WARMUP_BUDGET", cfg.WarmupBudget.String()},
		"warmup-interval":  {"WARMUP_INTERVAL", cfg.WarmupInterval.String()},
		"verbose":          {"VERBOSE", strconv.FormatBool(cfg.Verbose)},
	}
	for flag, mapping := range stringFlags {
		if flags.Changed(flag) {
			overrides[mapping.key] = mapping.val
		}
	}
	return overrides
}

// Package config defines the wavescape configuration model and default values.
//
// Configuration is assembled from multiple sources with a strict precedence
// chain: built-in defaults < global config file < project config file <
// explicit config file < CLI flag overrides.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// WhitelistedVars lists every configuration variable name that may appear in
// config files. Variables not in this list are silently ignored during loading.
var WhitelistedVars = [8]string{
	"API_URL",
	"OWNER_ID",
	"REFRESH_INTERVAL",
	"WARMUP_BUDGET",
	"WARMUP_INTERVAL",
	"HTTP_TIMEOUT",
	"VERBOSE",
	"NOTIFY_COMMAND",
}

// ProjectPath is the project config file, relative to the working directory.
const ProjectPath = ".wavescape/config"

// Config holds every configuration field for the wavescape CLI.
type Config struct {
	// Backend.
	APIURL      string
	OwnerID     string
	HTTPTimeout time.Duration

	// Timers.
	RefreshInterval time.Duration
	WarmupBudget    time.Duration
	WarmupInterval  time.Duration

	// Runtime flags.
	Verbose bool

	// NotifyCommand, when set, is run with each notification as its last
	// argument.
	NotifyCommand string

	// CLI-only flags (not loaded from config files).
	ConfigFile string
}

// NewDefaultConfig returns a Config populated with all built-in default values.
func NewDefaultConfig() *Config {
	return &Config{
		APIURL:          "http://localhost:7071/api/sessions",
		HTTPTimeout:     30 * time.Second,
		RefreshInterval: 30 * time.Second,
		WarmupBudget:    30 * time.Second,
		WarmupInterval:  3 * time.Second,
	}
}

// GlobalPath returns the per-user config file, under $XDG_CONFIG_HOME when
// set. It returns "" when no config directory can be determined.
func GlobalPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "wavescape", "config")
}

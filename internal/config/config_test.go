package config_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nellyag1/wavescape-portal222/internal/config"
)

func TestNewDefaultConfigValues(t *testing.T) {
	cfg := config.NewDefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "http://localhost:7071/api/sessions", cfg.APIURL)
	assert.Empty(t, cfg.OwnerID)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)

	assert.Equal(t, 30*time.Second, cfg.RefreshInterval)
	assert.Equal(t, 30*time.Second, cfg.WarmupBudget)
	assert.Equal(t, 3*time.Second, cfg.WarmupInterval)

	assert.False(t, cfg.Verbose)
	assert.Empty(t, cfg.NotifyCommand)
	assert.Empty(t, cfg.ConfigFile)
}

func TestNewDefaultConfigReturnsFreshInstance(t *testing.T) {
	a := config.NewDefaultConfig()
	b := config.NewDefaultConfig()
	a.APIURL = "http://changed"
	assert.NotEqual(t, a.APIURL, b.APIURL)
}

func TestWhitelistedVarsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, v := range config.WhitelistedVars {
		assert.NotEmpty(t, v)
		assert.False(t, seen[v], "duplicate whitelisted var %s", v)
		seen[v] = true
	}
	assert.Len(t, seen, 8)
}

func TestGlobalPathHonoursXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	assert.Equal(t, filepath.Join(dir, "wavescape", "config"), config.GlobalPath())
}

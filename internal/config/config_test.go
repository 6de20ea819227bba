package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsMultipleErrors(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "bogus"
	cfg.Redis.Addr = ""
	cfg.Matcher.MinQuality = 2.0

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "log_level")
	require.Contains(t, err.Error(), "redis: addr")
	require.Contains(t, err.Error(), "min_quality")
}

func TestLoadMergesTomlOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"

[venue_a]
enabled = true
ws_url = "wss://venue-a.example.com/stream"

[matcher]
min_quality = 0.8
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "wss://venue-a.example.com/stream", cfg.VenueA.WsURL)
	require.Equal(t, 0.8, cfg.Matcher.MinQuality)
	// Untouched sections keep their defaults.
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestEnvOverridesWinOverToml(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`log_level = "debug"`), 0o644))

	t.Setenv("ARBWORKER_LOG_LEVEL", "error")
	t.Setenv("WORKER_HEARTBEAT_INTERVAL_MS", "2500")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "error", cfg.LogLevel)
	require.Equal(t, 2500*time.Millisecond, cfg.Lifecycle.HeartbeatInterval.Duration)
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.VenueA.APIKey = "secret-key"
	cfg.Redis.Password = "hunter2"

	redacted := RedactedConfig(&cfg)
	require.Equal(t, "***", redacted.VenueA.APIKey)
	require.Equal(t, "***", redacted.Redis.Password)
	// Original is untouched.
	require.Equal(t, "secret-key", cfg.VenueA.APIKey)
}

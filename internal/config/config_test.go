package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engage.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
  internal_token: secret
reservations:
  ttl: 15m
  reaper_interval: 30s
log:
  format: json
cloud_tasks:
  project: demo
  location: europe-west1
  queue: expiry
  callback_url: https://api.example.com/internal/reservations/expire
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.Reservations.TTL)
	assert.Equal(t, 30*time.Second, cfg.Reservations.ReaperInterval)
	assert.Equal(t, defaultReaperBatchSize, cfg.Reservations.ReaperBatchSize)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.CloudTasks.Enabled())
	assert.Equal(t, "projects/demo/locations/europe-west1/queues/expiry", cfg.CloudTasks.QueuePath())
	require.NoError(t, cfg.Validate())
}

func TestLoadFile_RejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
reservations:
  ttl: 15m
  hold_minutes: 10
`)

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hold_minutes")
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
reservations:
  ttl: 15m
  reaper_interval: 30s
`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("RESERVATION_TTL", "5m")
	t.Setenv("REAPER_BATCH_SIZE", "50")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Reservations.TTL)
	assert.Equal(t, 30*time.Second, cfg.Reservations.ReaperInterval)
	assert.Equal(t, 50, cfg.Reservations.ReaperBatchSize)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSOrigins)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("RESERVATION_TTL", "ten minutes")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RESERVATION_TTL")
}

func TestValidate_RequiresTTLAndInterval(t *testing.T) {
	cfg := Default()

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reservations.ttl")
	assert.Contains(t, err.Error(), "reservations.reaper_interval")

	cfg.Reservations.TTL = time.Minute
	cfg.Reservations.ReaperInterval = time.Minute
	require.NoError(t, cfg.Validate())
}

func TestValidate_CloudTasksNeedsToken(t *testing.T) {
	cfg := Default()
	cfg.Reservations.TTL = time.Minute
	cfg.Reservations.ReaperInterval = time.Minute
	cfg.CloudTasks = CloudTasksConfig{
		Project:     "demo",
		Location:    "europe-west1",
		Queue:       "expiry",
		CallbackURL: "https://api.example.com/internal/reservations/expire",
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "internal_token")
}

func TestParseEnvFile(t *testing.T) {
	t.Setenv("ENGAGE_PRESET", "kept")
	t.Setenv("ENGAGE_QUOTED", "")
	os.Unsetenv("ENGAGE_QUOTED")
	os.Unsetenv("ENGAGE_EXPORTED")
	t.Cleanup(func() {
		os.Unsetenv("ENGAGE_QUOTED")
		os.Unsetenv("ENGAGE_EXPORTED")
	})

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	input := strings.Join([]string{
		"# comment",
		"ENGAGE_PRESET=overwritten",
		`ENGAGE_QUOTED="hello world"`,
		"export ENGAGE_EXPORTED='x'",
		"not a pair",
	}, "\n")
	require.NoError(t, parseEnvFile(logger, strings.NewReader(input)))

	assert.Equal(t, "kept", os.Getenv("ENGAGE_PRESET"))
	assert.Equal(t, "hello world", os.Getenv("ENGAGE_QUOTED"))
	assert.Equal(t, "x", os.Getenv("ENGAGE_EXPORTED"))
}

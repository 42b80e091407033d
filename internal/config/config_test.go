package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 10*time.Second, cfg.Scanner.ProbeTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Scanner.ProbeDelay)
	assert.Equal(t, 24*time.Hour, cfg.Scanner.AlertCooldown)
	assert.Equal(t, 50, cfg.Scanner.BatchLimit)
	assert.Equal(t, 5*time.Second, cfg.Scanner.SingleScanInterval)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenDuration)
	assert.Empty(t, cfg.Schedule.Cron)
}

func TestLoad_YAMLValues(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	path := writeConfig(t, `
database:
  driver: sqlite
  path: /tmp/links.db
scanner:
  probe_timeout: 3s
  probe_delay: 250ms
  batch_limit: 20
schedule:
  cron: "@every 6h"
  workers: 4
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/links.db", cfg.Database.Path)
	assert.Equal(t, 3*time.Second, cfg.Scanner.ProbeTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Scanner.ProbeDelay)
	assert.Equal(t, 20, cfg.Scanner.BatchLimit)
	assert.Equal(t, 24*time.Hour, cfg.Scanner.AlertCooldown)
	assert.Equal(t, "@every 6h", cfg.Schedule.Cron)
	assert.Equal(t, 4, cfg.Schedule.Workers)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	t.Setenv("PORT", "9090")
	t.Setenv("SCAN_ALERT_COOLDOWN", "12h")
	t.Setenv("SCAN_BATCH_LIMIT", "10")
	t.Setenv("APP_DEBUG", "yes")
	path := writeConfig(t, "server:\n  port: \"7070\"\nscanner:\n  batch_limit: 30\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, 12*time.Hour, cfg.Scanner.AlertCooldown)
	assert.Equal(t, 10, cfg.Scanner.BatchLimit)
}

func TestLoad_EnvFile(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("RESEND_API_KEY=re_test\n"), 0o644))
	t.Setenv("ENV_FILE", envPath)
	t.Setenv("RESEND_API_KEY", "")
	require.NoError(t, os.Unsetenv("RESEND_API_KEY"))

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	assert.Equal(t, "re_test", cfg.Email.ResendAPIKey)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Database.Driver = "oracle"
	err := cfg.Validate()
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "database.driver", vErr.Field)

	cfg = Default()
	cfg.Scanner.BatchLimit = -1
	assert.Error(t, cfg.Validate())
}

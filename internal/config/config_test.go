package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SSR_CONFIG", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ssr.xlsx", filepath.Base(cfg.InputPath))
	assert.Equal(t, "data", filepath.Base(filepath.Dir(cfg.InputPath)))
	assert.Equal(t, "-", cfg.OutputPath)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "ssr.db", filepath.Base(cfg.DBDSN))
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5, cfg.FetchMaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.WatchDebounce())
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SSR_CONFIG", "")
	t.Setenv("SSR_DB_DRIVER", "pgx")
	t.Setenv("SSR_DB_DSN", "postgres://ssr@localhost/ssr")
	t.Setenv("SSR_SCHEDULE_YEAR", "2021-22")
	t.Setenv("SSR_FETCH_RATE_LIMIT_RPS", "9")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "pgx", cfg.DBDriver)
	assert.Equal(t, "postgres://ssr@localhost/ssr", cfg.DBDSN)
	assert.Equal(t, "2021-22", cfg.Year)
	assert.Equal(t, 9, cfg.FetchRateLimitRPS)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ssr.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profile:\n  path: /etc/ssr/phed.yaml\nlog:\n  format: json\n"), 0o644))
	t.Setenv("SSR_CONFIG", path)
	t.Setenv("SSR_LOG_FORMAT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/etc/ssr/phed.yaml", cfg.ProfilePath)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestRequire(t *testing.T) {
	var cfg Config
	assert.Error(t, cfg.Require("db.dsn", "  "))
	assert.NoError(t, cfg.Require("db.dsn", "x.db"))
}

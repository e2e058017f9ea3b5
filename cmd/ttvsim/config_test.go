package main

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tchin/transit-timing-variation/internal/auth"
	"github.com/tchin/transit-timing-variation/internal/epoch"
	"github.com/tchin/transit-timing-variation/internal/transit"
)

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil)), &buf
}

func TestLoadRunConfigDefaults(t *testing.T) {
	v, err := newViper("")
	require.NoError(t, err)
	logger, _ := captureLogger()

	sc := loadRunConfig(logger, v)
	assert.Equal(t, transit.DefaultStepTime, sc.StepTime)
	assert.Equal(t, transit.DefaultTolerance, sc.Tolerance)
	assert.Equal(t, transit.DefaultMaxSteps, sc.MaxSteps)
	assert.Equal(t, 100.0, sc.Timestep)
	assert.Equal(t, 1, sc.Interval)
	assert.True(t, sc.Epoch.Equal(epoch.J2000Time))
}

func TestLoadRunConfigFromEnv(t *testing.T) {
	t.Setenv("TTVSIM_RUN_STEP", "600")
	t.Setenv("TTVSIM_RUN_MAX_STEPS", "5000")
	t.Setenv("TTVSIM_RUN_EPOCH", "2451545.5")

	v, err := newViper("")
	require.NoError(t, err)
	logger, _ := captureLogger()

	sc := loadRunConfig(logger, v)
	assert.Equal(t, 600.0, sc.StepTime)
	assert.Equal(t, 5000, sc.MaxSteps)
	assert.True(t, sc.Epoch.Equal(epoch.J2000Time.Add(12*time.Hour)), "epoch = %v", sc.Epoch)
}

func TestLoadRunConfigInvalidValuesFallBack(t *testing.T) {
	t.Setenv("TTVSIM_RUN_STEP", "abc")
	t.Setenv("TTVSIM_RUN_MAX_STEPS", "-4")
	t.Setenv("TTVSIM_RUN_EPOCH", "yesterday")

	v, err := newViper("")
	require.NoError(t, err)
	logger, buf := captureLogger()

	sc := loadRunConfig(logger, v)
	assert.Equal(t, transit.DefaultStepTime, sc.StepTime)
	assert.Equal(t, transit.DefaultMaxSteps, sc.MaxSteps)
	assert.True(t, sc.Epoch.Equal(epoch.J2000Time))

	logs := buf.String()
	assert.Contains(t, logs, "invalid TTVSIM_RUN_STEP value")
	assert.Contains(t, logs, "invalid TTVSIM_RUN_MAX_STEPS value")
	assert.Contains(t, logs, "invalid TTVSIM_RUN_EPOCH value")
}

func TestLoadRunConfigToleranceBelowStep(t *testing.T) {
	t.Setenv("TTVSIM_RUN_STEP", "60")
	t.Setenv("TTVSIM_RUN_TOLERANCE", "120")

	v, err := newViper("")
	require.NoError(t, err)
	logger, _ := captureLogger()

	sc := loadRunConfig(logger, v)
	assert.Equal(t, transit.DefaultTolerance, sc.Tolerance)
}

func TestLoadAuthConfig(t *testing.T) {
	logger, _ := captureLogger()

	t.Run("disabled by default", func(t *testing.T) {
		v, _ := newViper("")
		cfg, err := loadAuthConfig(logger, v)
		require.NoError(t, err)
		assert.False(t, cfg.Enabled)
	})

	t.Run("enabled without token", func(t *testing.T) {
		t.Setenv("TTVSIM_AUTH_ENABLED", "true")
		v, _ := newViper("")
		_, err := loadAuthConfig(logger, v)
		assert.ErrorContains(t, err, "TTVSIM_AUTH_TOKEN is required")
	})

	t.Run("invalid boolean", func(t *testing.T) {
		t.Setenv("TTVSIM_AUTH_ENABLED", "maybe")
		v, _ := newViper("")
		_, err := loadAuthConfig(logger, v)
		assert.Error(t, err)
	})

	t.Run("enabled with token", func(t *testing.T) {
		t.Setenv("TTVSIM_AUTH_ENABLED", "1")
		t.Setenv("TTVSIM_AUTH_TOKEN", "s3cret")
		v, _ := newViper("")
		cfg, err := loadAuthConfig(logger, v)
		require.NoError(t, err)
		assert.True(t, cfg.Enabled)
		assert.Equal(t, "s3cret", cfg.Token)
	})
}

func TestLoadSinkConfig(t *testing.T) {
	logger, _ := captureLogger()

	v, _ := newViper("")
	_, ok := loadSinkConfig(logger, v)
	assert.False(t, ok)

	t.Setenv("TTVSIM_INFLUX_URL", "http://localhost:8086")
	v, _ = newViper("")
	_, ok = loadSinkConfig(logger, v)
	assert.False(t, ok, "org and bucket are required")

	t.Setenv("TTVSIM_INFLUX_ORG", "astro")
	t.Setenv("TTVSIM_INFLUX_BUCKET", "ttv")
	v, _ = newViper("")
	cfg, ok := loadSinkConfig(logger, v)
	assert.True(t, ok)
	assert.Equal(t, "ttv", cfg.Bucket)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ttvsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
		"http:",
		"  addr: \":9090\"",
		"run:",
		"  step: 1800",
		"  max-transits: 40",
		"stream:",
		"  max-concurrent-per-ip: 3",
		"cache:",
		"  size: 64",
	}, "\n")), 0o644))

	v, err := newViper(path)
	require.NoError(t, err)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	assert.Equal(t, 1800.0, loadRunConfig(logger, v).StepTime)
	srv := loadServerConfig(logger, v, auth.Config{})
	assert.Equal(t, ":9090", srv.Addr)
	assert.Equal(t, 40, srv.MaxTransits)
	assert.Equal(t, 3, loadStreamConfig(logger, v, srv.MaxTransits).MaxConcurrentPerIP)
	assert.Equal(t, 64, loadCacheConfig(logger, v).Size)

	// Environment wins over the file.
	t.Setenv("TTVSIM_RUN_STEP", "900")
	assert.Equal(t, 900.0, loadRunConfig(logger, v).StepTime)
}

func TestNewViperMissingFile(t *testing.T) {
	_, err := newViper(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{"": slog.LevelInfo, "debug": slog.LevelDebug, "WARN": slog.LevelWarn} {
		got, err := parseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := parseLevel("loud")
	assert.Error(t, err)
}

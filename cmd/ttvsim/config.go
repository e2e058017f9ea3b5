package main

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tchin/transit-timing-variation/internal/api"
	"github.com/tchin/transit-timing-variation/internal/auth"
	"github.com/tchin/transit-timing-variation/internal/cache"
	"github.com/tchin/transit-timing-variation/internal/epoch"
	"github.com/tchin/transit-timing-variation/internal/propagation"
	"github.com/tchin/transit-timing-variation/internal/runner"
	"github.com/tchin/transit-timing-variation/internal/sink"
	"github.com/tchin/transit-timing-variation/internal/stream"
	"github.com/tchin/transit-timing-variation/internal/transit"
)

const envPrefix = "TTVSIM"

// newViper reads TTVSIM_* environment variables and, when path is set, a config
// file. Keys are dotted ("run.step" is TTVSIM_RUN_STEP).
func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}
	return v, nil
}

// envName returns the environment variable that sets key.
func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

func positiveInt(logger *slog.Logger, v *viper.Viper, key string, def int) int {
	s := v.GetString(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		logger.Warn("invalid "+envName(key)+" value, using default", "value", s, "default", def)
		return def
	}
	return n
}

func positiveFloat(logger *slog.Logger, v *viper.Viper, key string, def float64) float64 {
	s := v.GetString(key)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		logger.Warn("invalid "+envName(key)+" value, using default", "value", s, "default", def)
		return def
	}
	return f
}

// seconds reads a whole number of seconds.
func seconds(logger *slog.Logger, v *viper.Viper, key string, def time.Duration) time.Duration {
	n := positiveInt(logger, v, key, int(def.Seconds()))
	return time.Duration(n) * time.Second
}

func boolValue(logger *slog.Logger, v *viper.Viper, key string, def bool) bool {
	s := v.GetString(key)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		logger.Warn("invalid "+envName(key)+" value, using default", "value", s, "default", def)
		return def
	}
	return b
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func loadAuthConfig(logger *slog.Logger, v *viper.Viper) (auth.Config, error) {
	cfg := auth.Config{}

	if s := v.GetString("auth.enabled"); s != "" {
		enabled, err := strconv.ParseBool(s)
		if err != nil {
			return cfg, errors.New(envName("auth.enabled") + " must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = v.GetString("auth.token")
		if cfg.Token == "" {
			return cfg, errors.New(envName("auth.token") + " is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

// loadRunConfig returns the scenario defaults every run starts from.
func loadRunConfig(logger *slog.Logger, v *viper.Viper) runner.Scenario {
	sc := runner.Scenario{
		Interval:  1,
		StepTime:  positiveFloat(logger, v, "run.step", transit.DefaultStepTime),
		Tolerance: positiveFloat(logger, v, "run.tolerance", transit.DefaultTolerance),
		Timestep:  positiveFloat(logger, v, "run.timestep", propagation.DefaultTimestep),
		MaxSteps:  positiveInt(logger, v, "run.max-steps", transit.DefaultMaxSteps),
		Epoch:     epoch.J2000Time,
	}

	if sc.Tolerance >= sc.StepTime {
		logger.Warn("run tolerance must be below the step, using default",
			"tolerance", sc.Tolerance, "step_seconds", sc.StepTime, "default", transit.DefaultTolerance)
		sc.Tolerance = transit.DefaultTolerance
	}

	if s := v.GetString("run.epoch"); s != "" {
		t, err := parseEpoch(s)
		if err != nil {
			logger.Warn("invalid "+envName("run.epoch")+" value, using J2000", "value", s, "error", err)
		} else {
			sc.Epoch = t
		}
	}

	logger.Info("run config",
		"step_seconds", sc.StepTime,
		"tolerance_seconds", sc.Tolerance,
		"timestep_seconds", sc.Timestep,
		"max_steps", sc.MaxSteps,
		"epoch", sc.Epoch.Format(time.RFC3339),
	)
	return sc
}

// parseEpoch accepts an RFC 3339 time or a Julian Date.
func parseEpoch(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	jd, err := strconv.ParseFloat(s, 64)
	if err != nil || jd <= 0 {
		return time.Time{}, fmt.Errorf("epoch %q is neither RFC 3339 nor a Julian Date", s)
	}
	return epoch.FromJulian(jd), nil
}

type catalogConfig struct {
	Source       string
	Refresh      time.Duration // zero disables periodic reloads
	SnapshotDir  string        // empty disables snapshots
	SnapshotKeep int
}

func loadCatalogConfig(logger *slog.Logger, v *viper.Viper) catalogConfig {
	cfg := catalogConfig{
		Source:       v.GetString("catalog.source"),
		SnapshotDir:  v.GetString("catalog.snapshot-dir"),
		SnapshotKeep: positiveInt(logger, v, "catalog.snapshot-keep", 5),
	}
	if v.GetString("catalog.refresh") != "" {
		cfg.Refresh = seconds(logger, v, "catalog.refresh", time.Hour)
	}
	logger.Info("catalog config",
		"source", cfg.Source,
		"refresh_seconds", cfg.Refresh.Seconds(),
		"snapshot_dir", cfg.SnapshotDir,
		"snapshot_keep", cfg.SnapshotKeep,
	)
	return cfg
}

func loadCacheConfig(logger *slog.Logger, v *viper.Viper) cache.Config {
	cfg := cache.Config{
		Size:     positiveInt(logger, v, "cache.size", cache.DefaultSize),
		PlotSize: positiveInt(logger, v, "cache.plot-size", 2*cache.DefaultSize),
	}
	logger.Info("cache config", "reports", cfg.Size, "plots", cfg.PlotSize)
	return cfg
}

// loadStorePath returns the run history database path; empty keeps history in memory.
func loadStorePath(logger *slog.Logger, v *viper.Viper) string {
	path := v.GetString("store.path")
	logger.Info("store config", "path", path, "in_memory", path == "")
	return path
}

// loadSinkConfig returns the InfluxDB settings and whether export is enabled.
func loadSinkConfig(logger *slog.Logger, v *viper.Viper) (sink.Config, bool) {
	cfg := sink.Config{
		URL:    v.GetString("influx.url"),
		Token:  v.GetString("influx.token"),
		Org:    v.GetString("influx.org"),
		Bucket: v.GetString("influx.bucket"),
	}
	if cfg.URL == "" {
		logger.Info("influx export disabled")
		return cfg, false
	}
	if cfg.Org == "" || cfg.Bucket == "" {
		logger.Warn("influx url set without org and bucket, export disabled", "url", cfg.URL)
		return cfg, false
	}
	logger.Info("influx config", "url", cfg.URL, "org", cfg.Org, "bucket", cfg.Bucket)
	return cfg, true
}

func loadStreamConfig(logger *slog.Logger, v *viper.Viper, maxTransits int) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: positiveInt(logger, v, "stream.max-concurrent-per-ip", 2),
		MaxConcurrent:      positiveInt(logger, v, "stream.max-concurrent", runtime.NumCPU()*4),
		MaxTransits:        maxTransits,
		KeepaliveInterval:  seconds(logger, v, "stream.keepalive-interval", 15*time.Second),
		TrustProxy:         boolValue(logger, v, "http.trust-proxy", false),
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"max_concurrent", cfg.MaxConcurrent,
		"max_transits", cfg.MaxTransits,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
		"trust_proxy", cfg.TrustProxy,
	)
	return cfg
}

func loadServerConfig(logger *slog.Logger, v *viper.Viper, authCfg auth.Config) api.Config {
	cfg := api.Config{
		Addr:        v.GetString("http.addr"),
		MaxTransits: positiveInt(logger, v, "run.max-transits", 200),
		RunTimeout:  seconds(logger, v, "run.timeout", 2*time.Minute),
		TrustProxy:  boolValue(logger, v, "http.trust-proxy", false),
		Auth:        authCfg,
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	logger.Info("server config",
		"addr", cfg.Addr,
		"max_transits", cfg.MaxTransits,
		"run_timeout_seconds", cfg.RunTimeout.Seconds(),
	)
	return cfg
}

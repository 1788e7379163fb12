// Package config loads liftlog settings from a YAML file and the environment.
package config

import "time"

// Config is the root application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Import   ImportConfig   `yaml:"import"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// DatabaseConfig holds embedded SQLite settings.
type DatabaseConfig struct {
	Path        string        `yaml:"path"         env:"LIFTLOG_DATABASE_PATH"         env-default:"liftlog.db"`
	BusyTimeout time.Duration `yaml:"busy_timeout" env:"LIFTLOG_DATABASE_BUSY_TIMEOUT" env-default:"5s"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LIFTLOG_LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LIFTLOG_LOG_FORMAT" env-default:"text"`
}

// ImportConfig holds snapshot import settings.
type ImportConfig struct {
	// MaxConflictsShown caps the conflicts printed per entity type; the
	// full report is always available in JSON output.
	MaxConflictsShown int `yaml:"max_conflicts_shown" env:"LIFTLOG_IMPORT_MAX_CONFLICTS_SHOWN" env-default:"20"`
}

// MetricsConfig toggles Prometheus instrumentation.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" env:"LIFTLOG_METRICS_ENABLED" env-default:"false"`
}

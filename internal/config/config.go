// Package config provides configuration loading for continuum.
//
// Configuration is assembled from defaults, an optional YAML file and
// CONTINUUM_* environment variables. See LoadWithFile for precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fyrsmithlabs/continuum/internal/loopdetect"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete continuum configuration.
type Config struct {
	Archive  ArchiveConfig  `koanf:"archive"`
	Adapters AdaptersConfig `koanf:"adapters"`
	Detector DetectorConfig `koanf:"detector"`
	Logging  LoggingConfig  `koanf:"logging"`
	Watch    WatchConfig    `koanf:"watch"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// ArchiveConfig controls where imported sessions are written.
type ArchiveConfig struct {
	Dir string `koanf:"dir"`
}

// AdaptersConfig locates each assistant's native logs.
type AdaptersConfig struct {
	ClaudeProjectsDir string `koanf:"claude_projects_dir"`
	CodexSessionsDir  string `koanf:"codex_sessions_dir"`
	GooseDBPath       string `koanf:"goose_db_path"`
}

// DetectorConfig holds loop detection thresholds.
type DetectorConfig struct {
	WarningMessageCount  int `koanf:"warning_message_count"`
	CriticalMessageCount int `koanf:"critical_message_count"`
	MinRepetitions       int `koanf:"min_repetitions"`
	MaxPatternSize       int `koanf:"max_pattern_size"`
}

// LoopConfig converts the thresholds to a loopdetect.Config.
func (d DetectorConfig) LoopConfig() loopdetect.Config {
	return loopdetect.Config{
		WarningMessageCount:  d.WarningMessageCount,
		CriticalMessageCount: d.CriticalMessageCount,
		MinRepetitions:       d.MinRepetitions,
		MaxPatternSize:       d.MaxPatternSize,
	}
}

// LoggingConfig selects log verbosity and encoding.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // trace, debug, info, warn, error
	Format string `koanf:"format"` // json or console
}

// WatchConfig controls the watch command.
type WatchConfig struct {
	Debounce Duration `koanf:"debounce"`
}

// MetricsConfig controls import metrics export.
type MetricsConfig struct {
	// Textfile is a node-exporter textfile collector path. Empty disables export.
	Textfile string `koanf:"textfile"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Archive.Dir == "" {
		return fmt.Errorf("%w: archive.dir is required", ErrInvalidConfig)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level must be one of trace, debug, info, warn, error; got %q",
			ErrInvalidConfig, c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("%w: logging.format must be 'json' or 'console', got %q", ErrInvalidConfig, c.Logging.Format)
	}

	if c.Watch.Debounce.Duration() <= 0 {
		return fmt.Errorf("%w: watch.debounce must be > 0", ErrInvalidConfig)
	}

	if err := c.Detector.LoopConfig().Validate(); err != nil {
		return fmt.Errorf("%w: detector: %w", ErrInvalidConfig, err)
	}

	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	home, _ := os.UserHomeDir()

	if cfg.Archive.Dir == "" {
		cfg.Archive.Dir = filepath.Join(home, "Assistants", "continuum-logs")
	}

	if cfg.Adapters.ClaudeProjectsDir == "" {
		cfg.Adapters.ClaudeProjectsDir = filepath.Join(home, ".claude", "projects")
	}
	if cfg.Adapters.CodexSessionsDir == "" {
		cfg.Adapters.CodexSessionsDir = filepath.Join(home, ".codex", "sessions")
	}
	if cfg.Adapters.GooseDBPath == "" {
		cfg.Adapters.GooseDBPath = filepath.Join(home, ".local", "share", "goose", "sessions", "sessions.db")
	}

	defaults := loopdetect.DefaultConfig()
	if cfg.Detector.WarningMessageCount == 0 {
		cfg.Detector.WarningMessageCount = defaults.WarningMessageCount
	}
	if cfg.Detector.CriticalMessageCount == 0 {
		cfg.Detector.CriticalMessageCount = defaults.CriticalMessageCount
	}
	if cfg.Detector.MinRepetitions == 0 {
		cfg.Detector.MinRepetitions = defaults.MinRepetitions
	}
	if cfg.Detector.MaxPatternSize == 0 {
		cfg.Detector.MaxPatternSize = defaults.MaxPatternSize
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = Duration(2 * time.Second)
	}

	cfg.Archive.Dir = ExpandHome(cfg.Archive.Dir)
	cfg.Adapters.ClaudeProjectsDir = ExpandHome(cfg.Adapters.ClaudeProjectsDir)
	cfg.Adapters.CodexSessionsDir = ExpandHome(cfg.Adapters.CodexSessionsDir)
	cfg.Adapters.GooseDBPath = ExpandHome(cfg.Adapters.GooseDBPath)
	cfg.Metrics.Textfile = ExpandHome(cfg.Metrics.Textfile)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Package config loads curator configuration from YAML files and
// environment variables via viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// Scan defaults.
const (
	// DefaultSmallBatchThreshold mirrors the engine's policy constant: an
	// import batch of this size or larger always forces a full rescan.
	DefaultSmallBatchThreshold = 50

	// DefaultDebounceMS is the watcher's event-coalescing window.
	DefaultDebounceMS = 250
)

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	MaxSizeMB  int               `mapstructure:"max_size_mb"`
	MaxBackups int               `mapstructure:"max_backups"`
	MaxAgeDays int               `mapstructure:"max_age_days"`
	Components map[string]string `mapstructure:"components"`
}

// ScanConfig configures the sync engine and watcher.
type ScanConfig struct {
	// Disabled turns off bucket resynchronization entirely; change batches
	// are ignored while set.
	Disabled bool `mapstructure:"disabled"`

	// SmallBatchThreshold is the import-batch size that always forces a
	// full rescan.
	SmallBatchThreshold int `mapstructure:"small_batch_threshold"`

	// DebounceMS is the watcher's coalescing window in milliseconds.
	DebounceMS int `mapstructure:"debounce_ms"`
}

// Config is the application configuration.
type Config struct {
	// LibraryRoot is the filesystem tree the asset library indexes.
	LibraryRoot string `mapstructure:"library_root"`

	// DataDir holds the Badger store. Empty uses the XDG data dir.
	DataDir string `mapstructure:"data_dir"`

	// PIDPath is the daemon PID file. Empty uses the XDG runtime dir.
	PIDPath string `mapstructure:"pid_path"`

	Scan    ScanConfig    `mapstructure:"scan"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// DefaultDataDir returns the Badger store location under the XDG data dir.
func DefaultDataDir() string {
	return filepath.Join(xdg.DataHome, "curator", "library")
}

// DefaultPIDPath returns the PID file location under the XDG runtime dir.
func DefaultPIDPath() string {
	return filepath.Join(xdg.RuntimeDir, "curatord.pid")
}

// Load loads configuration from file and environment variables. With a
// non-empty cfgFile only that file is read; otherwise the config file is
// searched for, in order of precedence:
//   - $XDG_CONFIG_HOME/curator/config.yaml
//   - $HOME/.config/curator/config.yaml
//
// Environment variables are prefixed with CURATOR_ (e.g.
// CURATOR_SCAN_DISABLED).
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, "curator"))
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		v.AddConfigPath(filepath.Join(homeDir, ".config", "curator"))
	}

	v.SetEnvPrefix("CURATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("library_root", "")
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("pid_path", DefaultPIDPath())

	v.SetDefault("scan.disabled", false)
	v.SetDefault("scan.small_batch_threshold", DefaultSmallBatchThreshold)
	v.SetDefault("scan.debounce_ms", DefaultDebounceMS)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.components", map[string]string{
		"engine":  "info",
		"watcher": "warn",
		"daemon":  "info",
	})

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ErrBadThreshold is returned for non-positive rescan thresholds.
var ErrBadThreshold = errors.New("scan.small_batch_threshold must be positive")

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Scan.SmallBatchThreshold <= 0 {
		return ErrBadThreshold
	}
	if c.Scan.DebounceMS <= 0 {
		c.Scan.DebounceMS = DefaultDebounceMS
	}
	return nil
}

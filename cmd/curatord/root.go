package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/curator/pkg/curator/config"
	"github.com/jamesainslie/curator/pkg/curator/logging"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "curatord",
		Short: "Keep auto-curated asset buckets in sync",
		Long: `Curatord maintains named buckets over an asset library: declaratively
defined collections that are resynchronized automatically as files change.

Examples:
  curatord serve                  # Watch the library and keep buckets synced
  curatord ingest                 # (Re)index the library root
  curatord buckets list           # Show buckets and their member counts
  curatord buckets sync textures  # Force a resync of one bucket
  curatord status                 # Library and store statistics`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/curator/config.yaml)")
	rootCmd.PersistentFlags().String("library", "", "library root to index and watch")
	rootCmd.PersistentFlags().String("data-dir", "", "Badger store directory")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")

	_ = viper.BindPFlag("library_root", rootCmd.PersistentFlags().Lookup("library"))
	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
}

// loadConfig loads the configuration and initializes logging for a command
// run.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if lib := viper.GetString("library_root"); lib != "" {
		cfg.LibraryRoot = lib
	}
	if dd := viper.GetString("data_dir"); dd != "" {
		cfg.DataDir = dd
	}

	level := cfg.Logging.Level
	if ok, _ := rootCmd.PersistentFlags().GetBool("verbose"); ok {
		level = "debug"
	}

	if err := logging.Init(logging.Config{
		Level:      level,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Components: cfg.Logging.Components,
	}); err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}

	return cfg, nil
}

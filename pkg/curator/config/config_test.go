package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/curator/pkg/curator/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("explicit file is honored", func(t *testing.T) {
		path := writeConfig(t, `
library_root: /srv/library
scan:
  small_batch_threshold: 10
  disabled: true
`)
		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/srv/library", cfg.LibraryRoot)
		assert.Equal(t, 10, cfg.Scan.SmallBatchThreshold)
		assert.True(t, cfg.Scan.Disabled)
	})

	t.Run("explicit file that does not exist is an error", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("defaults apply without a file", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv("HOME", t.TempDir())

		cfg, err := config.Load("")
		require.NoError(t, err)
		assert.Empty(t, cfg.LibraryRoot)
		assert.Equal(t, config.DefaultSmallBatchThreshold, cfg.Scan.SmallBatchThreshold)
		assert.Equal(t, config.DefaultDebounceMS, cfg.Scan.DebounceMS)
		assert.False(t, cfg.Scan.Disabled)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv("HOME", t.TempDir())
		t.Setenv("CURATOR_LIBRARY_ROOT", "/srv/env-library")

		cfg, err := config.Load("")
		require.NoError(t, err)
		assert.Equal(t, "/srv/env-library", cfg.LibraryRoot)
	})

	t.Run("bad threshold is rejected", func(t *testing.T) {
		path := writeConfig(t, `
scan:
  small_batch_threshold: 0
`)
		_, err := config.Load(path)
		assert.ErrorIs(t, err, config.ErrBadThreshold)
	})
}

func TestValidate(t *testing.T) {
	cfg := &config.Config{Scan: config.ScanConfig{SmallBatchThreshold: 5}}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, config.DefaultDebounceMS, cfg.Scan.DebounceMS)
}

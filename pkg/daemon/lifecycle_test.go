package daemon_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/curator/pkg/daemon"
)

func TestPIDFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curatord.pid")

	require.NoError(t, daemon.WritePIDFile(path))

	pid, err := daemon.ReadPIDFile(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, daemon.RemovePIDFile(path))
	_, err = daemon.ReadPIDFile(path)
	assert.Error(t, err)
}

func TestIsRunning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curatord.pid")

	t.Run("no file", func(t *testing.T) {
		assert.False(t, daemon.IsRunning(path))
	})

	t.Run("live process", func(t *testing.T) {
		require.NoError(t, daemon.WritePIDFile(path))
		assert.True(t, daemon.IsRunning(path))
	})

	t.Run("stale pid", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("999999999"), 0o644))
		assert.False(t, daemon.IsRunning(path))
	})

	t.Run("garbage content", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0o644))
		assert.False(t, daemon.IsRunning(path))
	})
}

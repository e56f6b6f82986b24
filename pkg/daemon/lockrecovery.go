package daemon

import (
	"os"
	"path/filepath"

	"github.com/jamesainslie/curator/pkg/curator/logging"
)

// RecoverStale cleans up artifacts left behind by a curatord that exited
// without removing its PID file: the PID file itself and the store's LOCK
// file, which would otherwise block reopening. Returns ErrAlreadyRunning
// when the recorded process is still alive.
func RecoverStale(pidPath, dataDir string) error {
	pid, err := ReadPIDFile(pidPath)
	if err != nil {
		return nil //nolint:nilerr // no PID file means nothing to recover
	}
	if processAlive(pid) {
		return ErrAlreadyRunning
	}

	logging.Get("daemon").Warn("cleaning up stale daemon files", "stale_pid", pid)
	_ = os.Remove(pidPath)
	_ = os.Remove(filepath.Join(dataDir, "LOCK"))
	return nil
}

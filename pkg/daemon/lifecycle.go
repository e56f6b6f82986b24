package daemon

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// ErrAlreadyRunning is returned when a live daemon already owns the PID file.
var ErrAlreadyRunning = errors.New("curatord already running")

// WritePIDFile records the current process ID at path.
func WritePIDFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// ReadPIDFile reads a PID from path.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// RemovePIDFile deletes the PID file.
func RemovePIDFile(path string) error {
	return os.Remove(path)
}

// IsRunning reports whether the process named by the PID file is alive.
func IsRunning(path string) bool {
	pid, err := ReadPIDFile(path)
	if err != nil {
		return false
	}
	return processAlive(pid)
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

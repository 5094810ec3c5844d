// Package lifecycle guards against two cleanup loops running on one host.
package lifecycle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrAlreadyRunning is returned when another live process holds the PID file.
var ErrAlreadyRunning = errors.New("docktool already running")

// PIDFile is a held PID file. Release removes it.
type PIDFile struct {
	path string
}

// Acquire writes the current PID to path unless a live process already
// holds it. A stale file left by a dead process is replaced.
func Acquire(path string) (*PIDFile, error) {
	if pid, running := RunningPID(path); running && pid != os.Getpid() {
		return nil, fmt.Errorf("%w (pid %d, %s)", ErrAlreadyRunning, pid, path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating pid directory: %w", err)
	}
	if err := WritePIDFile(path); err != nil {
		return nil, fmt.Errorf("writing pid file: %w", err)
	}
	return &PIDFile{path: path}, nil
}

// Path returns the file location.
func (p *PIDFile) Path() string {
	return p.path
}

// Release removes the PID file if it still holds our PID.
func (p *PIDFile) Release() error {
	pid, err := ReadPIDFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if pid != os.Getpid() {
		return nil
	}
	return RemovePIDFile(p.path)
}

// WritePIDFile writes the current process ID to a file.
func WritePIDFile(path string) error {
	pid := os.Getpid()
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

// ReadPIDFile reads a PID from a file.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, err
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid pid %d in %s", pid, path)
	}
	return pid, nil
}

// RemovePIDFile removes the PID file.
func RemovePIDFile(path string) error {
	return os.Remove(path)
}

// RunningPID reads the PID file at path and reports whether that process is
// alive.
func RunningPID(path string) (int, bool) {
	pid, err := ReadPIDFile(path)
	if err != nil {
		return 0, false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return pid, false
	}

	// Signal 0 probes for existence. EPERM means it exists under another user.
	err = process.Signal(syscall.Signal(0))
	return pid, err == nil || errors.Is(err, syscall.EPERM)
}

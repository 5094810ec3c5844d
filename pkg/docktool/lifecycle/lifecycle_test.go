package lifecycle_test

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/jamesainslie/docktool/pkg/docktool/lifecycle"
)

func TestWriteAndReadPID(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "docktool.pid")

	if err := lifecycle.WritePIDFile(pidPath); err != nil {
		t.Fatalf("WritePIDFile failed: %v", err)
	}

	pid, err := lifecycle.ReadPIDFile(pidPath)
	if err != nil {
		t.Fatalf("ReadPIDFile failed: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("Expected PID %d, got %d", os.Getpid(), pid)
	}
}

func TestReadPIDFileInvalid(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"garbage": "not-a-pid",
		"zero":    "0",
		"empty":   "",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".pid")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := lifecycle.ReadPIDFile(path); err == nil {
				t.Errorf("ReadPIDFile(%q) should fail", content)
			}
		})
	}
}

func TestRunningPID(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "docktool.pid")

	if _, running := lifecycle.RunningPID(pidPath); running {
		t.Error("Expected false when PID file doesn't exist")
	}

	if err := lifecycle.WritePIDFile(pidPath); err != nil {
		t.Fatal(err)
	}
	if pid, running := lifecycle.RunningPID(pidPath); !running || pid != os.Getpid() {
		t.Errorf("RunningPID() = %d, %v; want %d, true", pid, running, os.Getpid())
	}

	if err := os.WriteFile(pidPath, []byte("999999999"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, running := lifecycle.RunningPID(pidPath); running {
		t.Error("Expected false when PID is not a live process")
	}
}

func TestAcquireAndRelease(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "nested", "docktool.pid")

	pf, err := lifecycle.Acquire(pidPath)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if pf.Path() != pidPath {
		t.Errorf("Path() = %q, want %q", pf.Path(), pidPath)
	}
	if _, err := os.Stat(pidPath); err != nil {
		t.Fatalf("PID file should exist: %v", err)
	}

	if err := pf.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Error("PID file should have been removed")
	}

	if err := pf.Release(); err != nil {
		t.Errorf("second Release should be a no-op, got %v", err)
	}
}

func TestAcquireReplacesStaleFile(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "docktool.pid")
	if err := os.WriteFile(pidPath, []byte("999999999"), 0o644); err != nil {
		t.Fatal(err)
	}

	pf, err := lifecycle.Acquire(pidPath)
	if err != nil {
		t.Fatalf("Acquire over a stale file failed: %v", err)
	}
	defer pf.Release()

	pid, err := lifecycle.ReadPIDFile(pidPath)
	if err != nil || pid != os.Getpid() {
		t.Errorf("ReadPIDFile() = %d, %v; want own pid", pid, err)
	}
}

func TestAcquireDetectsLiveProcess(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "docktool.pid")

	// The parent of the test binary is alive for the duration of the test.
	parent := os.Getppid()
	if parent <= 1 {
		t.Skip("no usable parent process")
	}
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(parent)), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := lifecycle.Acquire(pidPath)
	if !errors.Is(err, lifecycle.ErrAlreadyRunning) {
		t.Errorf("Acquire() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestReleaseLeavesForeignFile(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "docktool.pid")

	pf, err := lifecycle.Acquire(pidPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pidPath, []byte("12345"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := pf.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(pidPath); err != nil {
		t.Error("Release must not remove a file owned by another process")
	}
}

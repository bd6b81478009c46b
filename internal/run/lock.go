package run

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// LockFile guards a run directory against concurrent runs.
const LockFile = ".ralph.lock"

// ErrLocked is returned when another run holds the run directory.
var ErrLocked = errors.New("another ralph run is active in this directory")

// RunLock provides an exclusive lock on a run directory.
type RunLock struct {
	file *os.File
}

// TryAcquireRunLock locks <runDir>/.ralph.lock without blocking.
func TryAcquireRunLock(runDir string) (*RunLock, error) {
	lockPath := filepath.Join(runDir, LockFile)
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, runDir)
		}
		return nil, fmt.Errorf("lock %s: %w", LockFile, err)
	}
	return &RunLock{file: file}, nil
}

// Release releases the lock.
func (l *RunLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		_ = l.file.Close()
		return err
	}
	return l.file.Close()
}

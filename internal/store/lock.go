package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrRunInProgress is returned when another process holds the run lock.
var ErrRunInProgress = errors.New("another run is in progress")

// RunLock is an advisory file lock giving one process at a time write access
// to the stores.
type RunLock struct {
	fl *flock.Flock
}

// NewRunLock returns a lock on path. The file is created on first acquire.
func NewRunLock(path string) *RunLock {
	return &RunLock{fl: flock.New(path)}
}

// Acquire takes the lock without blocking. It returns ErrRunInProgress when
// the lock is already held.
func (l *RunLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.fl.Path()), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	ok, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return ErrRunInProgress
	}
	return nil
}

// Release drops the lock.
func (l *RunLock) Release() error {
	return l.fl.Unlock()
}

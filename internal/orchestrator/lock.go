package orchestrator

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFile is created in the parent directory while a run is active.
const LockFile = ".go-parallel-groups.lock"

// ErrLocked is returned when another run holds the parent directory.
var ErrLocked = errors.New("another run holds the lock")

// runLock keeps two runs from building into the same parent directory.
type runLock struct {
	fl *flock.Flock
}

// acquireLock takes the run lock on dir without blocking.
func acquireLock(dir string) (*runLock, error) {
	path := filepath.Join(dir, LockFile)
	fl := flock.New(path)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}
	return &runLock{fl: fl}, nil
}

// Release unlocks. The lock file is left in place.
func (l *runLock) Release() error {
	if l == nil {
		return nil
	}
	return l.fl.Unlock()
}

// Package instance guards the data directory so only one player process
// recovers and writes the session journal at a time.
package instance

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	domainerrors "github.com/listenupapp/listenup-player/internal/errors"
)

// Lock is an exclusive advisory lock on a file inside the data directory.
type Lock struct {
	flock *flock.Flock
}

// Acquire takes the lock at path without blocking. A lock held by another
// process yields a Conflict error.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return nil, domainerrors.Conflict("another player is already using " + filepath.Dir(path))
	}

	return &Lock{flock: fl}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.flock.Path()
}

// Release unlocks. The lock file is left in place.
func (l *Lock) Release() error {
	return l.flock.Unlock()
}

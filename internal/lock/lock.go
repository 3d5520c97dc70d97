// Package lock wraps an advisory exclusive file lock that decides which
// process may act as the bb daemon.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// ErrAlreadyLocked reports that another holder owns the lock.
var ErrAlreadyLocked = errors.New("lock already held")

// Guard represents ownership of the lock by this process. The lock is
// released by Release or when the process exits.
type Guard struct {
	path string
	fl   *flock.Flock

	once sync.Once
	err  error
}

// Probe reports whether some other holder currently owns the lock at path.
// When the lock is free it is taken and released immediately, so a probe
// never leaves the lock held.
func Probe(path string) (bool, error) {
	fl, err := newFlock(path)
	if err != nil {
		return false, err
	}
	ok, err := fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe lock %s: %w", path, err)
	}
	if !ok {
		return true, nil
	}
	if err := fl.Unlock(); err != nil {
		return false, fmt.Errorf("release probe lock %s: %w", path, err)
	}
	return false, nil
}

// Acquire makes a single non-blocking attempt to take the lock. Contention is
// reported as ErrAlreadyLocked; any other failure is an I/O error.
func Acquire(path string) (*Guard, error) {
	fl, err := newFlock(path)
	if err != nil {
		return nil, err
	}
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyLocked, path)
	}
	return &Guard{path: path, fl: fl}, nil
}

// Path returns the lock file location.
func (g *Guard) Path() string {
	if g == nil {
		return ""
	}
	return g.path
}

// Release unlocks the file. Subsequent calls return the first result.
func (g *Guard) Release() error {
	if g == nil {
		return nil
	}
	g.once.Do(func() {
		if err := g.fl.Unlock(); err != nil {
			g.err = fmt.Errorf("release lock %s: %w", g.path, err)
		}
	})
	return g.err
}

func newFlock(path string) (*flock.Flock, error) {
	if path == "" {
		return nil, errors.New("lock path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create lock directory for %s: %w", path, err)
	}
	return flock.New(path), nil
}

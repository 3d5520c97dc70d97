package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"bb/internal/daemon"
	"bb/internal/lock"
	"bb/internal/runtimepaths"
)

// ErrDaemonNotRunning indicates no daemon holds the lock.
var ErrDaemonNotRunning = errors.New("daemon not running")

// DefaultStopTimeout bounds how long Stop waits for the lock to be released.
const DefaultStopTimeout = 10 * time.Second

const stopPollInterval = 50 * time.Millisecond

// StopResult captures the outcome of Stop.
type StopResult struct {
	PID int
}

// Stop sends SIGTERM to the daemon recorded in the pid file and waits until
// it releases the lock. The daemon removes its socket and pid file before
// the lock goes, so a nil error means the runtime directory is clean.
func Stop(ctx context.Context, paths runtimepaths.Paths, timeout time.Duration) (StopResult, error) {
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}
	if _, err := os.Stat(paths.Lock); errors.Is(err, os.ErrNotExist) {
		return StopResult{}, ErrDaemonNotRunning
	}
	held, err := lock.Probe(paths.Lock)
	if err != nil {
		return StopResult{}, err
	}
	if !held {
		return StopResult{}, ErrDaemonNotRunning
	}

	pid, err := daemon.ReadPIDFile(paths.PID)
	if err != nil {
		return StopResult{}, fmt.Errorf("locate daemon process: %w", err)
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		return StopResult{}, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}

	result := StopResult{PID: pid}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(stopPollInterval)
	defer ticker.Stop()
	for {
		held, err := lock.Probe(paths.Lock)
		if err != nil {
			return result, err
		}
		if !held {
			return result, nil
		}
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-deadline.C:
			return result, fmt.Errorf("daemon %d did not stop within %s", pid, timeout)
		case <-ticker.C:
		}
	}
}

package daemonctl

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"bb/internal/daemon"
	"bb/internal/ipc"
	"bb/internal/lock"
	"bb/internal/runtimepaths"
)

// Status is a read-only snapshot of the rendezvous files.
type Status struct {
	Paths runtimepaths.Paths

	LockHeld      bool
	PID           int
	PIDAlive      bool
	SocketPresent bool
	Reachable     bool
	// PingError holds the liveness failure when the socket exists but did
	// not answer.
	PingError error
}

// DaemonState summarises a Status.
type DaemonState string

const (
	DaemonRunning      DaemonState = "running"
	DaemonUnresponsive DaemonState = "unresponsive"
	DaemonStopped      DaemonState = "not running"
)

// Running reports whether a daemon owns the lock and answers on the socket.
func (s Status) Running() bool {
	return s.LockHeld && s.Reachable
}

// State is DaemonUnresponsive when the lock is held but nothing answers.
func (s Status) State() DaemonState {
	switch {
	case s.Running():
		return DaemonRunning
	case s.LockHeld:
		return DaemonUnresponsive
	default:
		return DaemonStopped
	}
}

// Inspect reports daemon state without spawning anything. A missing lock
// file counts as free so inspection never creates runtime files.
func Inspect(ctx context.Context, paths runtimepaths.Paths, dialTimeout time.Duration) (Status, error) {
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	status := Status{Paths: paths}

	if _, err := os.Stat(paths.Lock); err == nil {
		held, err := lock.Probe(paths.Lock)
		if err != nil {
			return status, err
		}
		status.LockHeld = held
	} else if !errors.Is(err, fs.ErrNotExist) {
		return status, err
	}

	if pid, err := daemon.ReadPIDFile(paths.PID); err == nil {
		status.PID = pid
		status.PIDAlive = daemon.ProcessAlive(pid)
	}

	if _, err := os.Lstat(paths.Socket); err == nil {
		status.SocketPresent = true
		if err := ipc.Ping(ctx, paths.Socket, dialTimeout); err != nil {
			status.PingError = err
		} else {
			status.Reachable = true
		}
	}
	return status, nil
}

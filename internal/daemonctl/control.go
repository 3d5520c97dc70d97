package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bb/internal/daemon"
	"bb/internal/ipc"
	"bb/internal/lock"
	"bb/internal/logging"
	"bb/internal/runtimepaths"
)

// Defaults for the connection poll.
const (
	DefaultAttempts    = 30
	DefaultDelay       = 100 * time.Millisecond
	DefaultDialTimeout = 100 * time.Millisecond
)

var (
	// ErrDaemonUnreachable reports that no daemon answered within the poll
	// budget.
	ErrDaemonUnreachable = errors.New("daemon unreachable")
	// ErrAutostartDisabled reports that no daemon is running and spawning
	// one was turned off.
	ErrAutostartDisabled = errors.New("daemon autostart disabled")
)

// State names a step of the ensure sequence.
type State string

const (
	StateCheckLock   State = "check_lock"
	StateSpawnDaemon State = "spawn_daemon"
	StatePollConnect State = "poll_connect"
	StateConnected   State = "connected"
	StateFailed      State = "failed"
)

// Spawner starts a detached daemon serving socketPath.
type Spawner func(executable, socketPath, pidPath string) error

// Options configures EnsureReachable. Zero values select the defaults.
type Options struct {
	Paths            runtimepaths.Paths
	Executable       string
	Spawn            Spawner
	Attempts         int
	Delay            time.Duration
	DialTimeout      time.Duration
	DisableAutostart bool
	Logger           *slog.Logger
}

// Result describes how a reachable daemon was found.
type Result struct {
	// LockHeld is true when a daemon already held the lock at check time.
	LockHeld bool
	// Spawned is true when this client launched the daemon.
	Spawned bool
	// Attempts counts connection attempts, including the successful one.
	Attempts int
}

// UnreachableError names both rendezvous paths so a user can inspect them.
type UnreachableError struct {
	LockPath   string
	SocketPath string
	Attempts   int
	Err        error
}

func (e *UnreachableError) Error() string {
	msg := fmt.Sprintf("daemon lock/socket check failed: lock_path=%s, socket_path=%s", e.LockPath, e.SocketPath)
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" (after %d attempts)", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnreachableError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDaemonUnreachable}
	}
	return []error{ErrDaemonUnreachable, e.Err}
}

// EnsureReachable guarantees that a daemon is serving at opts.Paths.Socket.
// If the lock is free the client spawns a daemon before polling; any number
// of concurrent callers may spawn, and the lock lets exactly one of those
// daemons survive. Polling then makes up to Attempts connection attempts
// spaced by Delay; each attempt must read a non-empty acknowledgement.
func EnsureReachable(ctx context.Context, opts Options) (Result, error) {
	opts = withDefaults(opts)
	logger := logging.NewComponentLogger(opts.Logger, "daemonctl")
	paths := opts.Paths
	var result Result

	logger.Debug("checking daemon lock",
		logging.String("state", string(StateCheckLock)),
		logging.String(logging.FieldLock, paths.Lock),
	)
	if err := paths.EnsureDir(); err != nil {
		return result, err
	}
	held, err := lock.Probe(paths.Lock)
	if err != nil {
		return result, err
	}
	result.LockHeld = held

	if !held {
		if opts.DisableAutostart {
			logger.Debug("daemon not running and autostart disabled", logging.String("state", string(StateFailed)))
			return result, &UnreachableError{
				LockPath:   paths.Lock,
				SocketPath: paths.Socket,
				Err:        ErrAutostartDisabled,
			}
		}
		logger.Debug("spawning daemon",
			logging.String("state", string(StateSpawnDaemon)),
			logging.String("executable", opts.Executable),
			logging.String(logging.FieldSocket, paths.Socket),
			logging.String(logging.FieldPIDFile, paths.PID),
		)
		if err := opts.Spawn(opts.Executable, paths.Socket, paths.PID); err != nil {
			return result, err
		}
		result.Spawned = true
	}

	attempts, err := pollConnect(ctx, opts, logger)
	result.Attempts = attempts
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		logger.Debug("daemon unreachable",
			logging.String("state", string(StateFailed)),
			logging.Int("attempts", attempts),
			logging.Error(err),
		)
		return result, &UnreachableError{
			LockPath:   paths.Lock,
			SocketPath: paths.Socket,
			Attempts:   attempts,
			Err:        err,
		}
	}

	logger.Debug("daemon reachable",
		logging.String("state", string(StateConnected)),
		logging.Int("attempts", attempts),
		logging.Bool("spawned", result.Spawned),
	)
	return result, nil
}

// pollConnect returns the number of attempts made and the last failure.
// There is no pause after the final attempt.
func pollConnect(ctx context.Context, opts Options, logger *slog.Logger) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		err := ipc.Ping(ctx, opts.Paths.Socket, opts.DialTimeout)
		if err == nil {
			return attempt, nil
		}
		lastErr = err
		logger.Debug("connect attempt failed",
			logging.String("state", string(StatePollConnect)),
			logging.Int("attempt", attempt),
			logging.Duration("attempt_timeout", opts.DialTimeout),
			logging.Error(err),
		)
		if attempt == opts.Attempts {
			return attempt, lastErr
		}

		timer := time.NewTimer(opts.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
	return opts.Attempts, lastErr
}

func withDefaults(opts Options) Options {
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.Spawn == nil {
		opts.Spawn = func(executable, socketPath, pidPath string) error {
			return daemon.Spawn(executable, socketPath, pidPath)
		}
	}
	return opts
}

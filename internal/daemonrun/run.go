// Package daemonrun hosts the daemon process: signal handling, log setup,
// and the hand-off to daemon.Run.
package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"bb/internal/config"
	"bb/internal/daemon"
	"bb/internal/logging"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// SocketPath and PIDPath override the configured locations. A spawning
	// client always passes both.
	SocketPath string
	PIDPath    string
	// Foreground also logs to stderr.
	Foreground  bool
	Development bool
}

// Run serves until SIGINT, SIGTERM, or cancellation of cmdCtx. Losing the
// lock race to another daemon is a clean exit.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	paths := cfg.RuntimePaths(nil).WithOverrides(opts.SocketPath, opts.PIDPath)
	if err := paths.EnsureDir(); err != nil {
		return err
	}

	outputs := []string{paths.LogPath()}
	if opts.Foreground {
		outputs = append(outputs, "stderr")
	}
	logger, err := logging.New(logging.Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      outputs,
		ErrorOutputPaths: outputs,
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(logging.String(logging.FieldSessionID, uuid.NewString()))

	logger.Debug("daemon starting",
		logging.String(logging.FieldEventType, "daemon_starting"),
		logging.Int(logging.FieldPID, os.Getpid()),
		logging.String("runtime_dir", paths.Dir),
		logging.String(logging.FieldSocket, paths.Socket),
		logging.String(logging.FieldPIDFile, paths.PID),
		logging.String(logging.FieldLock, paths.Lock),
		logging.Duration("shutdown_grace", cfg.ShutdownGrace()),
	)

	err = daemon.Run(signalCtx, daemon.Options{
		Paths:         paths,
		Handler:       daemon.AckHandler{},
		Logger:        logger,
		ShutdownGrace: cfg.ShutdownGrace(),
	})
	if err != nil {
		logger.Error("daemon exited with error",
			logging.String(logging.FieldEventType, "daemon_failed"),
			logging.Error(err),
		)
		return err
	}
	return nil
}

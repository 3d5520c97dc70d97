package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"bb/internal/ipc"
	"bb/internal/lock"
	"bb/internal/logging"
	"bb/internal/runtimepaths"
)

// DefaultShutdownGrace bounds how long shutdown waits for in-flight
// connections when Options leaves it unset.
const DefaultShutdownGrace = 5 * time.Second

// Handler serves one accepted connection. The daemon closes conn after
// ServeConn returns. ctx is cancelled when the shutdown grace period runs out.
type Handler interface {
	ServeConn(ctx context.Context, conn net.Conn) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, conn net.Conn) error

func (f HandlerFunc) ServeConn(ctx context.Context, conn net.Conn) error {
	return f(ctx, conn)
}

// AckHandler answers every connection with ipc.Ack.
type AckHandler struct{}

func (AckHandler) ServeConn(_ context.Context, conn net.Conn) error {
	_, err := io.WriteString(conn, ipc.Ack)
	return err
}

// Options configures Run.
type Options struct {
	Paths         runtimepaths.Paths
	Handler       Handler
	Logger        *slog.Logger
	ShutdownGrace time.Duration

	// listen replaces ipc.Listen in tests.
	listen func(path string) (net.Listener, error)
}

// Run is the daemon lifecycle. It takes the lock or, when another daemon
// holds it, returns nil without touching any file. Otherwise it writes the
// pid file, binds the socket, and serves connections until ctx is cancelled
// or accepting fails. The socket and pid file are removed before the lock is
// released on every path out of the accept loop.
func Run(ctx context.Context, opts Options) error {
	logger := logging.NewComponentLogger(opts.Logger, "daemon")
	paths := opts.Paths

	if err := paths.EnsureDir(); err != nil {
		return err
	}

	guard, err := lock.Acquire(paths.Lock)
	if errors.Is(err, lock.ErrAlreadyLocked) {
		logger.Info("daemon already running; exiting",
			logging.String(logging.FieldEventType, "daemon_already_running"),
			logging.String(logging.FieldLock, paths.Lock),
		)
		return nil
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := guard.Release(); err != nil {
			logging.WarnWithContext(logger, "failed to release daemon lock", "daemon_lock_release_failed",
				logging.Error(err),
				logging.String(logging.FieldLock, paths.Lock),
				logging.String(logging.FieldImpact, "lock is released when the process exits"),
			)
		}
	}()

	if err := os.MkdirAll(filepath.Dir(paths.PID), runtimepaths.DirMode); err != nil {
		return fmt.Errorf("create pid directory: %w", err)
	}
	if err := WritePIDFile(paths.PID); err != nil {
		_ = RemovePIDFile(paths.PID)
		return err
	}
	defer func() {
		if err := RemovePIDFile(paths.PID); err != nil {
			logging.WarnWithContext(logger, "failed to remove pid file", "daemon_pid_cleanup_failed",
				logging.Error(err),
				logging.String(logging.FieldPIDFile, paths.PID),
				logging.String(logging.FieldImpact, "status output may report a stale pid"),
				logging.String(logging.FieldErrorHint, "remove the pid file manually"),
			)
		}
	}()

	listen := opts.listen
	if listen == nil {
		listen = ipc.Listen
	}
	listener, err := listen(paths.Socket)
	if err != nil {
		return fmt.Errorf("bind daemon socket: %w", err)
	}
	defer func() {
		if err := ipc.RemoveSocket(paths.Socket); err != nil {
			logging.WarnWithContext(logger, "failed to remove socket", "daemon_socket_cleanup_failed",
				logging.Error(err),
				logging.String(logging.FieldSocket, paths.Socket),
				logging.String(logging.FieldImpact, "next daemon start replaces the stale socket"),
			)
		}
	}()

	logger.Info("daemon listening",
		logging.String(logging.FieldEventType, "daemon_listening"),
		logging.String(logging.FieldSocket, paths.Socket),
		logging.Int(logging.FieldPID, os.Getpid()),
		logging.String(logging.FieldPIDFile, paths.PID),
	)

	handler := opts.Handler
	if handler == nil {
		handler = AckHandler{}
	}
	grace := opts.ShutdownGrace
	if grace <= 0 {
		grace = DefaultShutdownGrace
	}
	srv := &server{
		socket:  paths.Socket,
		handler: handler,
		logger:  logger,
		grace:   grace,
		conns:   make(map[net.Conn]struct{}),
	}
	serveErr := srv.serve(ctx, listener)

	logger.Info("daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stopped"),
		logging.Bool("clean", serveErr == nil),
	)
	return serveErr
}

type server struct {
	socket  string
	handler Handler
	logger  *slog.Logger
	grace   time.Duration

	wg    sync.WaitGroup
	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func (s *server) serve(ctx context.Context, listener net.Listener) error {
	handlerCtx, cancelHandlers := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelHandlers()

	var closeOnce sync.Once
	closeListener := func() {
		closeOnce.Do(func() { _ = listener.Close() })
	}
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			closeListener()
		case <-stop:
		}
	}()

	var acceptErr error
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() == nil {
				acceptErr = fmt.Errorf("accept on %s: %w", s.socket, err)
			}
			break
		}
		s.track(conn)
		s.wg.Add(1)
		go s.handle(handlerCtx, conn)
	}
	close(stop)
	closeListener()

	s.drain(cancelHandlers)
	return acceptErr
}

func (s *server) handle(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)

	logger := s.logger.With(logging.String(logging.FieldConnID, uuid.NewString()))
	logger.Debug("connection accepted")

	defer func() {
		if r := recover(); r != nil {
			logger.Error("connection handler panicked",
				logging.String(logging.FieldEventType, "daemon_conn_panic"),
				logging.Any("panic", r),
			)
		}
	}()

	if err := s.handler.ServeConn(ctx, conn); err != nil {
		logging.WarnWithContext(logger, "connection handler failed", "daemon_conn_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "client did not receive a complete response"),
			logging.String(logging.FieldErrorHint, "the client retries on its next invocation"),
		)
	}
}

// drain waits for in-flight handlers up to the grace period, then cancels
// them and closes their connections.
func (s *server) drain(cancel context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(s.grace)
	defer timer.Stop()
	select {
	case <-done:
		return
	case <-timer.C:
	}

	s.mu.Lock()
	inFlight := len(s.conns)
	s.mu.Unlock()
	logging.WarnWithContext(s.logger, "shutdown grace period elapsed", "daemon_shutdown_timeout",
		logging.Int("in_flight", inFlight),
		logging.Duration("grace", s.grace),
		logging.String(logging.FieldImpact, "in-flight connections were closed"),
	)
	cancel()
	s.closeAll()
}

func (s *server) track(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	_ = conn.Close()
}

func (s *server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}

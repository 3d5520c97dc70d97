package daemon

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"bb/internal/ipc"
	"bb/internal/lock"
	"bb/internal/runtimepaths"
	"bb/internal/testsupport"
)

const spawnMarkerEnv = "BB_DAEMON_TEST_SPAWN_MARKER"

func TestMain(m *testing.M) {
	if marker := os.Getenv(spawnMarkerEnv); marker != "" {
		_ = os.WriteFile(marker, []byte(strings.Join(os.Args[1:], " ")), 0o644)
		os.Exit(0)
	}
	os.Exit(m.Run())
}

type running struct {
	cancel context.CancelFunc
	errc   chan error

	stopped bool
	err     error
}

func startRun(t *testing.T, opts Options) *running {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r := &running{cancel: cancel, errc: make(chan error, 1)}
	go func() { r.errc <- Run(ctx, opts) }()
	t.Cleanup(func() {
		if r.stopped {
			return
		}
		cancel()
		select {
		case <-r.errc:
		case <-time.After(10 * time.Second):
		}
	})
	return r
}

// stop cancels Run and returns its result. Run sends exactly once, so the
// result is kept for later calls and for cleanup.
func (r *running) stop(t *testing.T) error {
	t.Helper()
	if r.stopped {
		return r.err
	}
	r.cancel()
	select {
	case err := <-r.errc:
		r.stopped = true
		r.err = err
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
		return nil
	}
}

func waitServing(t *testing.T, socket string) {
	t.Helper()
	testsupport.Eventually(t, 5*time.Second, func() bool {
		return ipc.Ping(context.Background(), socket, 200*time.Millisecond) == nil
	}, "daemon never answered on %s", socket)
}

func lockFree(t *testing.T, path string) bool {
	t.Helper()
	held, err := lock.Probe(path)
	if err != nil {
		t.Fatalf("probe lock: %v", err)
	}
	return !held
}

func TestRunServesAckAndCleansUp(t *testing.T) {
	paths := testsupport.Paths(t)
	r := startRun(t, Options{Paths: paths})
	waitServing(t, paths.Socket)

	info, err := os.Stat(paths.Socket)
	if err != nil {
		t.Fatalf("stat socket: %v", err)
	}
	if perm := info.Mode().Perm(); perm != ipc.SocketMode {
		t.Fatalf("unexpected socket mode %o", perm)
	}
	pid, err := ReadPIDFile(paths.PID)
	if err != nil {
		t.Fatalf("read pid: %v", err)
	}
	if pid != os.Getpid() {
		t.Fatalf("pid file holds %d, want %d", pid, os.Getpid())
	}
	if lockFree(t, paths.Lock) {
		t.Fatal("expected lock to be held while serving")
	}

	if err := r.stop(t); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if testsupport.FileExists(paths.Socket) {
		t.Fatal("socket left behind after shutdown")
	}
	if testsupport.FileExists(paths.PID) {
		t.Fatal("pid file left behind after shutdown")
	}
	if !lockFree(t, paths.Lock) {
		t.Fatal("lock still held after shutdown")
	}
}

func TestRunExitsQuietlyWhenLockHeld(t *testing.T) {
	paths := testsupport.Paths(t)
	if err := paths.EnsureDir(); err != nil {
		t.Fatalf("ensure dir: %v", err)
	}
	guard, err := lock.Acquire(paths.Lock)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	t.Cleanup(func() { _ = guard.Release() })
	if err := os.WriteFile(paths.PID, []byte("12345\n"), 0o644); err != nil {
		t.Fatalf("seed pid file: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Run(ctx, Options{Paths: paths}); err != nil {
		t.Fatalf("expected quiet exit, got %v", err)
	}

	data, err := os.ReadFile(paths.PID)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	if string(data) != "12345\n" {
		t.Fatalf("pid file was modified: %q", data)
	}
	if testsupport.FileExists(paths.Socket) {
		t.Fatal("losing daemon must not bind the socket")
	}
}

func TestRunReplacesStaleSocket(t *testing.T) {
	paths := testsupport.Paths(t)
	if err := paths.EnsureDir(); err != nil {
		t.Fatalf("ensure dir: %v", err)
	}
	if err := os.WriteFile(paths.Socket, []byte("stale"), 0o600); err != nil {
		t.Fatalf("seed stale socket: %v", err)
	}

	r := startRun(t, Options{Paths: paths})
	waitServing(t, paths.Socket)
	if err := r.stop(t); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

type failingListener struct {
	closed atomic.Bool
}

func (l *failingListener) Accept() (net.Conn, error) {
	return nil, errors.New("accept exploded")
}

func (l *failingListener) Close() error {
	l.closed.Store(true)
	return nil
}

func (l *failingListener) Addr() net.Addr {
	return &net.UnixAddr{Name: "fake", Net: "unix"}
}

func TestStoppedRunDoesNotDelayCleanup(t *testing.T) {
	paths := testsupport.Paths(t)
	var r *running

	// t.Run returns after the subtest's cleanups have finished.
	start := time.Now()
	t.Run("serve", func(t *testing.T) {
		r = startRun(t, Options{Paths: paths})
		waitServing(t, paths.Socket)
		if err := r.stop(t); err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	})
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("serve and cleanup took %v", elapsed)
	}
	if err := r.stop(t); err != nil {
		t.Fatalf("repeated stop returned %v", err)
	}
}

func TestRunCleansUpOnAcceptError(t *testing.T) {
	paths := testsupport.Paths(t)
	fake := &failingListener{}
	opts := Options{
		Paths: paths,
		listen: func(path string) (net.Listener, error) {
			if err := os.WriteFile(path, nil, 0o600); err != nil {
				return nil, err
			}
			return fake, nil
		},
	}

	err := Run(context.Background(), opts)
	if err == nil || !strings.Contains(err.Error(), "accept exploded") {
		t.Fatalf("expected accept error, got %v", err)
	}
	if !fake.closed.Load() {
		t.Fatal("listener was not closed")
	}
	if testsupport.FileExists(paths.Socket) || testsupport.FileExists(paths.PID) {
		t.Fatal("socket or pid file left behind after accept failure")
	}
	if !lockFree(t, paths.Lock) {
		t.Fatal("lock still held after accept failure")
	}
}

func TestRunServesConnectionsConcurrently(t *testing.T) {
	paths := testsupport.Paths(t)
	release := make(chan struct{})
	var started atomic.Int32
	handler := HandlerFunc(func(ctx context.Context, conn net.Conn) error {
		started.Add(1)
		<-release
		return AckHandler{}.ServeConn(ctx, conn)
	})
	r := startRun(t, Options{Paths: paths, Handler: handler})
	testsupport.Eventually(t, 5*time.Second, func() bool {
		return testsupport.FileExists(paths.Socket)
	}, "socket never appeared")

	conns := make([]net.Conn, 0, 2)
	for i := 0; i < 2; i++ {
		conn, err := ipc.Dial(context.Background(), paths.Socket)
		if err != nil {
			t.Fatalf("dial %d: %v", i, err)
		}
		conns = append(conns, conn)
	}
	testsupport.Eventually(t, 5*time.Second, func() bool {
		return started.Load() == 2
	}, "handlers did not run concurrently: started=%d", started.Load())

	close(release)
	buf := make([]byte, len(ipc.Ack))
	for i, conn := range conns {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if _, err := conn.Read(buf); err != nil {
			t.Fatalf("read ack %d: %v", i, err)
		}
		_ = conn.Close()
	}
	if err := r.stop(t); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

func TestShutdownGraceClosesStuckConnections(t *testing.T) {
	paths := testsupport.Paths(t)
	entered := make(chan struct{}, 1)
	handler := HandlerFunc(func(ctx context.Context, conn net.Conn) error {
		entered <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	})
	r := startRun(t, Options{Paths: paths, Handler: handler, ShutdownGrace: 50 * time.Millisecond})
	testsupport.Eventually(t, 5*time.Second, func() bool {
		return testsupport.FileExists(paths.Socket)
	}, "socket never appeared")

	conn, err := ipc.Dial(context.Background(), paths.Socket)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("handler never ran")
	}

	start := time.Now()
	if err := r.stop(t); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("shutdown took %v despite a 50ms grace period", elapsed)
	}
}

func TestSpawnStartsDetachedProcessWithDaemonArgs(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "spawned")
	t.Setenv(spawnMarkerEnv, marker)

	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("resolve test binary: %v", err)
	}
	if err := Spawn(exe, "/tmp/x.sock", "/tmp/x.pid"); err != nil {
		t.Fatalf("Spawn returned error: %v", err)
	}

	var got string
	testsupport.Eventually(t, 5*time.Second, func() bool {
		data, err := os.ReadFile(marker)
		if err != nil || len(data) == 0 {
			return false
		}
		got = string(data)
		return true
	}, "spawned process never wrote its marker")
	if want := "--daemon --socket /tmp/x.sock --pid-file /tmp/x.pid"; got != want {
		t.Fatalf("unexpected daemon args: got %q want %q", got, want)
	}
}

func TestSpawnRejectsMissingBinary(t *testing.T) {
	if err := Spawn("", "a", "b"); err == nil {
		t.Fatal("expected error for empty executable")
	}
	missing := filepath.Join(t.TempDir(), "no-such-binary")
	if err := Spawn(missing, "a", "b"); err == nil {
		t.Fatal("expected error for missing executable")
	}
}

func TestPIDFileHelpers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, runtimepaths.PIDName)
	if err := WritePIDFile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != strconv.Itoa(os.Getpid())+"\n" {
		t.Fatalf("unexpected pid file content %q", data)
	}
	if !ProcessAlive(os.Getpid()) {
		t.Fatal("current process should be alive")
	}
	if ProcessAlive(0) || ProcessAlive(-1) {
		t.Fatal("non-positive pids are never alive")
	}

	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if _, err := ReadPIDFile(path); err == nil {
		t.Fatal("expected error for malformed pid file")
	}

	if err := RemovePIDFile(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := RemovePIDFile(path); err != nil {
		t.Fatalf("second remove should ignore missing file: %v", err)
	}
}

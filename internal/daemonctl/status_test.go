package daemonctl_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"bb/internal/daemonctl"
	"bb/internal/testsupport"
)

func TestInspectWithoutDaemon(t *testing.T) {
	paths := testsupport.Paths(t)

	status, err := daemonctl.Inspect(context.Background(), paths, 0)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if status.LockHeld || status.SocketPresent || status.Reachable || status.PID != 0 {
		t.Fatalf("expected empty status, got %+v", status)
	}
	if testsupport.FileExists(paths.Lock) {
		t.Fatal("inspect must not create the lock file")
	}
}

func TestInspectRunningDaemon(t *testing.T) {
	paths := testsupport.Paths(t)
	startInProcess(t, paths)

	status, err := daemonctl.Inspect(context.Background(), paths, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !status.Running() {
		t.Fatalf("expected running daemon, got %+v", status)
	}
	if status.PID != os.Getpid() || !status.PIDAlive {
		t.Fatalf("unexpected pid state %+v", status)
	}
}

func TestInspectReportsStaleSocket(t *testing.T) {
	paths := testsupport.Paths(t)
	if err := paths.EnsureDir(); err != nil {
		t.Fatalf("ensure dir: %v", err)
	}
	if err := os.WriteFile(paths.Socket, nil, 0o600); err != nil {
		t.Fatalf("seed socket: %v", err)
	}

	status, err := daemonctl.Inspect(context.Background(), paths, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !status.SocketPresent || status.Reachable || status.PingError == nil {
		t.Fatalf("expected unreachable stale socket, got %+v", status)
	}
}

func TestStopWithoutDaemon(t *testing.T) {
	paths := testsupport.Paths(t)
	if _, err := daemonctl.Stop(context.Background(), paths, time.Second); !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestStopRefusesOwnProcess(t *testing.T) {
	paths := testsupport.Paths(t)
	startInProcess(t, paths)

	_, err := daemonctl.Stop(context.Background(), paths, time.Second)
	if err == nil || !strings.Contains(err.Error(), "refusing") {
		t.Fatalf("expected refusal to signal self, got %v", err)
	}
}

package testsupport

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"bb/internal/runtimepaths"
)

// RuntimeDir returns a short temp directory removed at test cleanup.
// t.TempDir embeds the test name, which can push socket paths past the
// sun_path limit.
func RuntimeDir(t testing.TB) string {
	t.Helper()

	dir, err := os.MkdirTemp("", "bbt")
	if err != nil {
		t.Fatalf("create runtime dir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(dir)
	})
	return dir
}

// Paths returns runtime paths rooted in a fresh RuntimeDir. The runtime
// directory itself is not created.
func Paths(t testing.TB) runtimepaths.Paths {
	t.Helper()
	return runtimepaths.FromDir(filepath.Join(RuntimeDir(t), runtimepaths.AppName))
}

// XDGPaths points XDG_RUNTIME_DIR at a fresh RuntimeDir and returns the
// paths a bb process resolves from that environment. Child processes
// inherit the variable.
func XDGPaths(t testing.TB) runtimepaths.Paths {
	t.Helper()
	base := RuntimeDir(t)
	setenv(t, "XDG_RUNTIME_DIR", base)
	return runtimepaths.Resolve(nil)
}

// Eventually polls cond until it returns true or timeout elapses.
func Eventually(t testing.TB, timeout time.Duration, cond func() bool, format string, args ...any) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf(format, args...)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func setenv(t testing.TB, key, value string) {
	t.Helper()
	if tt, ok := t.(*testing.T); ok {
		tt.Setenv(key, value)
		return
	}
	old, had := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("set %s: %v", key, err)
	}
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
			return
		}
		_ = os.Unsetenv(key)
	})
}

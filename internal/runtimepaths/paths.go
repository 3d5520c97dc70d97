package runtimepaths

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	// AppName names the per-user runtime directory.
	AppName = "bb"

	SocketName = "bb.sock"
	PIDName    = "bb.pid"
	LockName   = "bb.lock"
	LogName    = "bb-daemon.log"

	// DirMode is applied to the runtime directory on creation.
	DirMode os.FileMode = 0o700
)

// LookupEnv mirrors os.LookupEnv so callers can resolve paths against a
// synthetic environment.
type LookupEnv func(key string) (string, bool)

// Paths holds the well-known rendezvous locations for one user.
type Paths struct {
	Dir    string
	Socket string
	PID    string
	Lock   string
}

// Resolve computes the runtime paths from the environment. A nil lookup uses
// the process environment.
func Resolve(lookup LookupEnv) Paths {
	return FromDir(ResolveDir(lookup))
}

// ResolveDir returns $XDG_RUNTIME_DIR/bb when the variable is set and
// non-empty, otherwise <tmp>/bb-<uid>.
func ResolveDir(lookup LookupEnv) string {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if base, ok := lookup("XDG_RUNTIME_DIR"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, AppName)
	}
	tmp := os.TempDir()
	if value, ok := lookup("TMPDIR"); ok && strings.TrimSpace(value) != "" {
		tmp = value
	}
	return filepath.Join(tmp, AppName+"-"+strconv.Itoa(unix.Getuid()))
}

// FromDir builds the default file layout inside dir.
func FromDir(dir string) Paths {
	return Paths{
		Dir:    dir,
		Socket: filepath.Join(dir, SocketName),
		PID:    filepath.Join(dir, PIDName),
		Lock:   filepath.Join(dir, LockName),
	}
}

// WithOverrides replaces the socket and pid paths when the values are
// non-empty. The lock path always stays inside the runtime directory.
func (p Paths) WithOverrides(socket, pid string) Paths {
	if s := strings.TrimSpace(socket); s != "" {
		p.Socket = s
	}
	if s := strings.TrimSpace(pid); s != "" {
		p.PID = s
	}
	return p
}

// LogPath is where a detached daemon writes its log.
func (p Paths) LogPath() string {
	return filepath.Join(p.Dir, LogName)
}

// EnsureDir creates the runtime directory with owner-only permissions.
// Existing directories are left as they are.
func (p Paths) EnsureDir() error {
	if strings.TrimSpace(p.Dir) == "" {
		return fmt.Errorf("runtime directory is empty")
	}
	if err := os.MkdirAll(p.Dir, DirMode); err != nil {
		return fmt.Errorf("create runtime directory %s: %w", p.Dir, err)
	}
	return nil
}

package daemon

import (
	"fmt"
	"os/exec"
	"strings"
	"syscall"
)

// Command-line contract between a client and the daemon it spawns.
const (
	FlagDaemon  = "--daemon"
	FlagSocket  = "--socket"
	FlagPIDFile = "--pid-file"
)

// SpawnArgs returns the arguments passed to a spawned daemon. extra follows
// the fixed daemon flags unchanged.
func SpawnArgs(socketPath, pidPath string, extra ...string) []string {
	args := []string{FlagDaemon, FlagSocket, socketPath, FlagPIDFile, pidPath}
	return append(args, extra...)
}

// Spawn launches binary in daemon mode, detached from the caller: standard
// streams go to /dev/null, the child leads a new session, and the process
// handle is released without waiting. It returns once the OS has created
// the process.
func Spawn(binary, socketPath, pidPath string, extra ...string) error {
	if strings.TrimSpace(binary) == "" {
		return fmt.Errorf("spawn daemon: executable path is empty")
	}

	proc := exec.Command(binary, SpawnArgs(socketPath, pidPath, extra...)...)
	proc.Stdin = nil
	proc.Stdout = nil
	proc.Stderr = nil
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := proc.Start(); err != nil {
		return fmt.Errorf("spawn daemon %s: %w", binary, err)
	}
	if err := proc.Process.Release(); err != nil {
		return fmt.Errorf("release daemon process: %w", err)
	}
	return nil
}

package ipc

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
)

// SocketMode restricts the socket to its owner.
const SocketMode os.FileMode = 0o600

// Ack is the liveness reply the daemon writes on every connection.
const Ack = "ok\n"

// Listen binds a Unix domain socket at path. Any file already at path is
// treated as stale and unlinked first; callers must hold the daemon lock.
func Listen(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create socket directory for %s: %w", path, err)
	}
	if err := RemoveSocket(path); err != nil {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket %s: %w", path, err)
	}
	if err := os.Chmod(path, SocketMode); err != nil {
		_ = listener.Close()
		_ = RemoveSocket(path)
		return nil, fmt.Errorf("restrict socket permissions %s: %w", path, err)
	}
	return listener, nil
}

// RemoveSocket unlinks path, ignoring a missing file.
func RemoveSocket(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

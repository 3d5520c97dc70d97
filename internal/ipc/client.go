package ipc

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"syscall"
	"time"
)

// ackReadSize bounds the liveness read.
const ackReadSize = 16

// Dial connects to the Unix domain socket at path.
func Dial(ctx context.Context, path string) (net.Conn, error) {
	var dialer net.Dialer
	return dialer.DialContext(ctx, "unix", path)
}

// Ping connects to path and reads once. A non-empty read within timeout
// proves a daemon is serving; connect and read are each bounded by timeout.
func Ping(ctx context.Context, path string, timeout time.Duration) error {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := Dial(dialCtx, path)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("set read deadline: %w", err)
	}
	buf := make([]byte, ackReadSize)
	n, err := conn.Read(buf)
	if n > 0 {
		return nil
	}
	if err == nil {
		err = errors.New("empty read")
	}
	return fmt.Errorf("read ack: %w", err)
}

// IsUnavailable reports whether err means nothing is listening at the
// socket path.
func IsUnavailable(err error) bool {
	return errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}

// Package connector opens the TCP control channel to a Miracast source,
// retrying across the window during which the peer's DHCP lease and P2P
// group formation may still be settling: a bounded number of dial attempts
// with a fixed pause between them.
package connector

import (
	"context"
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// ErrConnectTimeout is returned when Connect exhausts its retry budget
// without establishing a connection.
var ErrConnectTimeout = fmt.Errorf("connector: exhausted retry budget")

// Options controls Connect's retry policy.
type Options struct {
	Retries    int
	RetryPause time.Duration
}

// Connect dials peer:port, retrying up to opts.Retries times with
// opts.RetryPause between attempts. The returned connection has
// TCP_NODELAY set. ctx cancellation aborts the retry loop early.
func Connect(ctx context.Context, peer string, port int, opts Options) (net.Conn, error) {
	addr := net.JoinHostPort(peer, fmt.Sprintf("%d", port))
	dialer := net.Dialer{
		Timeout: opts.RetryPause * 5,
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	var lastErr error
	for attempt := 0; attempt < opts.Retries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			if tcpConn, ok := conn.(*net.TCPConn); ok {
				_ = tcpConn.SetNoDelay(true)
			}
			return conn, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.RetryPause):
		}
	}

	return nil, fmt.Errorf("%w: %s after %d attempts: %v", ErrConnectTimeout, addr, opts.Retries, lastErr)
}

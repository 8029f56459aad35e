package connector

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConnectSucceedsOnceListenerOpens(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	go func() {
		time.Sleep(30 * time.Millisecond)
		l, err := net.Listen("tcp", addr.String())
		if err != nil {
			return
		}
		defer l.Close()
		conn, err := l.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	conn, err := Connect(context.Background(), "127.0.0.1", addr.Port, Options{
		Retries:    50,
		RetryPause: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NotNil(t, conn)
	conn.Close()
}

func TestConnectExhaustsRetries(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	_, err = Connect(context.Background(), "127.0.0.1", addr.Port, Options{
		Retries:    3,
		RetryPause: 2 * time.Millisecond,
	})
	require.ErrorIs(t, err, ErrConnectTimeout)
}

func TestConnectRespectsContextCancellation(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = Connect(ctx, "127.0.0.1", addr.Port, Options{
		Retries:    1000,
		RetryPause: time.Second,
	})
	require.Error(t, err)
}

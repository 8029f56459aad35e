package session

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/wfd-sink/picast-go/internal/capability"
	"github.com/wfd-sink/picast-go/internal/config"
	"github.com/wfd-sink/picast-go/internal/player"
	"github.com/wfd-sink/picast-go/internal/rtsp"
)

// scriptedPeer drives the far end of a net.Pipe as a misbehaving or
// well-behaved Miracast source, driving the sink through its handshake.
type scriptedPeer struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func newScriptedPeer(t *testing.T, conn net.Conn) *scriptedPeer {
	return &scriptedPeer{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

func (p *scriptedPeer) send(msg *rtsp.Message) {
	_, err := p.conn.Write(rtsp.Compose(msg))
	require.NoError(p.t, err)
}

func (p *scriptedPeer) recv() *rtsp.Message {
	_ = p.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msg, err := rtsp.ParseMessage(p.reader)
	require.NoError(p.t, err)
	return msg
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.PeerAddress = "192.168.173.80"
	cfg.RTPPort = 1028
	cfg.HandshakeTimeout = 2 * time.Second
	cfg.WatchdogThreshold = 100 * time.Millisecond
	return cfg
}

func testCaps() capability.Set {
	return capability.New(1028, nil)
}

func runHandshakeToStreaming(t *testing.T, peer *scriptedPeer) {
	peer.send(rtsp.NewRequest(rtsp.OPTIONS, "*", 1))
	m1resp := peer.recv()
	require.True(t, m1resp.IsResponse)
	require.Equal(t, uint64(1), m1resp.CSeq)
	pub, _ := m1resp.Headers.Get("Public")
	require.Equal(t, publicMethods, pub)

	m2 := peer.recv()
	require.False(t, m2.IsResponse)
	require.Equal(t, rtsp.OPTIONS, m2.Method)
	require.Equal(t, uint64(100), m2.CSeq)
	peer.send(rtsp.NewResponse(200, "OK", m2.CSeq))

	m3req := rtsp.NewRequest(rtsp.GET_PARAMETER, "rtsp://192.168.173.1/wfd1.0", 2)
	m3req.Body = []byte("wfd_client_rtp_ports\nwfd_video_formats\nwfd_audio_codecs\nwfd_content_protection\n")
	peer.send(m3req)
	m3resp := peer.recv()
	require.True(t, m3resp.IsResponse)
	require.Contains(t, string(m3resp.Body), "wfd_content_protection: none")
	require.Contains(t, string(m3resp.Body), "wfd_client_rtp_ports: RTP/AVP/UDP;unicast 1028 0 mode=play")

	m4 := rtsp.NewRequest(rtsp.SET_PARAMETER, "rtsp://192.168.173.1/wfd1.0", 3)
	m4.Body = []byte("wfd_video_formats: 00 00 01 02 00000001 00000000 00000000 00 0000 0000 00 none none\r\n")
	peer.send(m4)
	m4resp := peer.recv()
	require.Equal(t, 200, m4resp.StatusCode)

	m5 := rtsp.NewRequest(rtsp.SET_PARAMETER, "rtsp://192.168.173.1/wfd1.0", 4)
	m5.Body = []byte("wfd_trigger_method: SETUP\r\n")
	peer.send(m5)
	m5resp := peer.recv()
	require.Equal(t, 200, m5resp.StatusCode)

	setup := peer.recv()
	require.Equal(t, rtsp.SETUP, setup.Method)
	require.Equal(t, uint64(101), setup.CSeq)
	require.Equal(t, "rtsp://192.168.173.80/wfd1.0/streamid=0", setup.URL)
	setupOK := rtsp.NewResponse(200, "OK", setup.CSeq)
	setupOK.Headers.Set("Session", "7C9C5678;timeout=30")
	setupOK.Headers.Set("Transport", "RTP/AVP/UDP;unicast;client_port=1028;server_port=5000-5001")
	peer.send(setupOK)

	play := peer.recv()
	require.Equal(t, rtsp.PLAY, play.Method)
	require.Equal(t, uint64(102), play.CSeq)
	sessionHeader, _ := play.Headers.Get("Session")
	require.Equal(t, "7C9C5678", sessionHeader)
	peer.send(rtsp.NewResponse(200, "OK", play.CSeq))
}

func TestHappyPathReachesStreamingAndStartsPlayerOnce(t *testing.T) {
	sinkConn, peerConn := net.Pipe()
	defer peerConn.Close()

	ctrl := &player.NoopController{}
	sess, err := New(sinkConn, testCaps(), ctrl, testConfig(), zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	peer := newScriptedPeer(t, peerConn)
	runHandshakeToStreaming(t, peer)

	// Trigger a clean teardown so Run returns promptly.
	teardown := rtsp.NewRequest(rtsp.SET_PARAMETER, "rtsp://192.168.173.1/wfd1.0", 5)
	teardown.Body = []byte("wfd_trigger_method: TEARDOWN\r\n")
	peer.send(teardown)
	teardownResp := peer.recv()
	require.Equal(t, 200, teardownResp.StatusCode)

	// The sink follows its 200 OK with its own TEARDOWN before closing.
	sinkTeardown := peer.recv()
	require.Equal(t, rtsp.TEARDOWN, sinkTeardown.Method)
	require.Equal(t, uint64(103), sinkTeardown.CSeq)
	sessID, _ := sinkTeardown.Headers.Get("Session")
	require.Equal(t, "7C9C5678", sessID)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate after TEARDOWN")
	}

	require.Equal(t, 1, ctrl.Starts)
	require.Equal(t, 1, ctrl.Stops)
}

func TestMalformedM3AbortsSessionBeforePlayerStarts(t *testing.T) {
	sinkConn, peerConn := net.Pipe()
	defer peerConn.Close()

	ctrl := &player.NoopController{}
	sess, err := New(sinkConn, testCaps(), ctrl, testConfig(), zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	peer := newScriptedPeer(t, peerConn)
	peer.send(rtsp.NewRequest(rtsp.OPTIONS, "*", 1))
	_ = peer.recv()
	m2 := peer.recv()
	peer.send(rtsp.NewResponse(200, "OK", m2.CSeq))

	// Instead of a GET_PARAMETER, send garbage.
	_, err = peerConn.Write([]byte("not an rtsp message at all\r\n\r\n"))
	require.NoError(t, err)

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not abort on malformed M3")
	}
	require.Equal(t, 0, ctrl.Starts)
}

func TestWatchdogExpiryStopsPlayerAndTerminates(t *testing.T) {
	sinkConn, peerConn := net.Pipe()
	defer peerConn.Close()

	ctrl := &player.NoopController{}
	sess, err := New(sinkConn, testCaps(), ctrl, testConfig(), zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	peer := newScriptedPeer(t, peerConn)
	runHandshakeToStreaming(t, peer)

	// Go silent; the watchdog threshold in testConfig is 100ms.
	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrWatchdogExpired)
	case <-time.After(3 * time.Second):
		t.Fatal("watchdog did not expire session")
	}
	require.Equal(t, 1, ctrl.Starts)
	require.Equal(t, 1, ctrl.Stops)
}

func TestIDRRefreshEmitsSetParameterWithCSeq103(t *testing.T) {
	sinkConn, peerConn := net.Pipe()
	defer peerConn.Close()

	ctrl := &player.NoopController{}
	sess, err := New(sinkConn, testCaps(), ctrl, testConfig(), zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	peer := newScriptedPeer(t, peerConn)
	runHandshakeToStreaming(t, peer)

	idrAddr := sess.IDRAddr()
	sock, err := net.Dial("udp", idrAddr.String())
	require.NoError(t, err)
	_, err = sock.Write([]byte("x"))
	require.NoError(t, err)
	sock.Close()

	idrReq := peer.recv()
	require.Equal(t, rtsp.SET_PARAMETER, idrReq.Method)
	require.Equal(t, "rtsp://localhost/wfd1.0", idrReq.URL)
	require.Equal(t, uint64(103), idrReq.CSeq)
	require.Equal(t, "wfd-idr-request\r\n", string(idrReq.Body))
	peer.send(rtsp.NewResponse(200, "OK", idrReq.CSeq))

	teardown := rtsp.NewRequest(rtsp.SET_PARAMETER, "rtsp://192.168.173.1/wfd1.0", 99)
	teardown.Body = []byte("wfd_trigger_method: TEARDOWN\r\n")
	peer.send(teardown)
	_ = peer.recv()
	sinkTeardown := peer.recv()
	require.Equal(t, rtsp.TEARDOWN, sinkTeardown.Method)
	require.Equal(t, uint64(104), sinkTeardown.CSeq)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate after IDR+TEARDOWN")
	}
}

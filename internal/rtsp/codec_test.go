package rtsp

import (
	"bufio"
	"bytes"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMessageRequest(t *testing.T) {
	raw := "OPTIONS * RTSP/1.0\r\nCSeq: 1\r\nRequire: org.wfa.wfd1.0\r\n\r\n"
	msg, err := ParseMessage(bufio.NewReader(bytes.NewBufferString(raw)))
	require.NoError(t, err)
	require.False(t, msg.IsResponse)
	require.Equal(t, OPTIONS, msg.Method)
	require.Equal(t, "*", msg.URL)
	require.Equal(t, uint64(1), msg.CSeq)
	v, ok := msg.Headers.Get("require")
	require.True(t, ok)
	require.Equal(t, "org.wfa.wfd1.0", v)
}

func TestParseMessageResponseWithBody(t *testing.T) {
	body := "wfd_video_formats: none\r\n"
	raw := "RTSP/1.0 200 OK\r\nCSeq: 3\r\nContent-Length: " +
		strconv.Itoa(len(body)) + "\r\nContent-Type: text/parameters\r\n\r\n" + body
	msg, err := ParseMessage(bufio.NewReader(bytes.NewBufferString(raw)))
	require.NoError(t, err)
	require.True(t, msg.IsResponse)
	require.Equal(t, 200, msg.StatusCode)
	require.Equal(t, "OK", msg.Reason)
	require.Equal(t, uint64(3), msg.CSeq)
	require.Equal(t, body, string(msg.Body))
}

func TestParseMessageMalformedStartLine(t *testing.T) {
	_, err := ParseMessage(bufio.NewReader(bytes.NewBufferString("not a request\r\nCSeq: 1\r\n\r\n")))
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestParseMessageMissingCSeq(t *testing.T) {
	_, err := ParseMessage(bufio.NewReader(bytes.NewBufferString("OPTIONS * RTSP/1.0\r\n\r\n")))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestParseMessageConnectionClosed(t *testing.T) {
	_, err := ParseMessage(bufio.NewReader(bytes.NewBufferString("")))
	require.ErrorIs(t, err, ErrConnectionClosed)
}

func TestComposeParseRoundTrip(t *testing.T) {
	req := NewRequest(SETUP, "rtsp://192.168.173.80/wfd1.0/streamid=0", 101)
	req.Headers.Set("Transport", "RTP/AVP/UDP;unicast;client_port=1028")
	wire := ComposeRequest(req.Method, req.URL, req.CSeq, req.Headers, req.Body)

	parsed, err := ParseMessage(bufio.NewReader(bytes.NewReader(wire)))
	require.NoError(t, err)
	require.Equal(t, req.Method, parsed.Method)
	require.Equal(t, req.URL, parsed.URL)
	require.Equal(t, req.CSeq, parsed.CSeq)
	v, _ := parsed.Headers.Get("Transport")
	require.Equal(t, "RTP/AVP/UDP;unicast;client_port=1028", v)
}

func TestComposeResponseOK(t *testing.T) {
	req := NewRequest(OPTIONS, "*", 5)
	resp := OK(req)
	wire := Compose(resp)
	parsed, err := ParseMessage(bufio.NewReader(bytes.NewReader(wire)))
	require.NoError(t, err)
	require.True(t, parsed.IsResponse)
	require.Equal(t, 200, parsed.StatusCode)
	require.Equal(t, req.CSeq, parsed.CSeq)
}

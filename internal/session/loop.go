package session

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/wfd-sink/picast-go/internal/rtsp"
)

// pollInterval is the steady-state loop's cooperative sleep between polls
// of the control connection and the IDR-request socket.
const pollInterval = 10 * time.Millisecond

// controlPeekTimeout bounds how long one loop iteration waits for the
// first byte of a new control-channel message before concluding none is
// available yet.
const controlPeekTimeout = 5 * time.Millisecond

// steadyState runs after the handshake reaches Streaming: multiplex the
// control connection and the IDR-request socket, answer requests, emit IDR
// refreshes, and watch for inactivity or teardown.
func (s *Session) steadyState(ctx context.Context) error {
	watchdogTicks := int(s.cfg.WatchdogThreshold / pollInterval)
	if watchdogTicks <= 0 {
		watchdogTicks = 1
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, hasMessage, err := s.tryReadControl()
		if err != nil {
			return err
		}
		if hasMessage {
			s.watchdogTicks = 0
			done, err := s.handleSteadyMessage(msg)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
			continue
		}

		if s.tryReadIDR() {
			if err := s.sendIDRRequest(); err != nil {
				return err
			}
			s.watchdogTicks = 0
			continue
		}

		time.Sleep(pollInterval)
		s.watchdogTicks++
		if s.watchdogTicks >= watchdogTicks {
			return ErrWatchdogExpired
		}
	}
}

// tryReadControl checks whether a full message is already waiting on the
// control connection without blocking more than controlPeekTimeout. It
// distinguishes "nothing arrived yet" (not an error) from a genuine
// transport/protocol failure once the first byte of a message is seen.
func (s *Session) tryReadControl() (*rtsp.Message, bool, error) {
	_ = s.conn.SetReadDeadline(time.Now().Add(controlPeekTimeout))
	_, peekErr := s.reader.Peek(1)
	if peekErr != nil {
		if ne, ok := peekErr.(net.Error); ok && ne.Timeout() {
			return nil, false, nil
		}
		return nil, false, rtsp.ErrConnectionClosed
	}

	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	msg, err := rtsp.ParseMessage(s.reader)
	_ = s.conn.SetReadDeadline(time.Time{})
	if err != nil {
		return nil, false, err
	}
	s.messagesHandled++
	return msg, true, nil
}

// tryReadIDR checks, without blocking, whether a local datagram requesting
// an IDR refresh has arrived.
func (s *Session) tryReadIDR() bool {
	_ = s.idr.SetReadDeadline(time.Now().Add(time.Millisecond))
	buf := make([]byte, 16)
	_, _, err := s.idr.ReadFrom(buf)
	return err == nil
}

func (s *Session) sendIDRRequest() error {
	cseq := s.nextSinkCSeq()
	req := rtsp.NewRequest(rtsp.SET_PARAMETER, "rtsp://localhost/wfd1.0", cseq)
	req.Body = []byte("wfd-idr-request\r\n")
	req.Headers.Set("Content-Type", "text/parameters")
	if err := s.writeMessage(req); err != nil {
		return err
	}
	s.idrRequestsSent++
	return nil
}

// sendTeardown emits the sink's own TEARDOWN request after acknowledging a
// peer-triggered teardown. The peer is already shutting the session down,
// so no response is awaited.
func (s *Session) sendTeardown() error {
	req := rtsp.NewRequest(rtsp.TEARDOWN, "rtsp://localhost/wfd1.0", s.nextSinkCSeq())
	if s.sessionID != "" {
		req.Headers.Set("Session", s.sessionID)
	}
	return s.writeMessage(req)
}

// handleSteadyMessage processes one message received while Streaming.
// Returns done=true when the session should terminate (peer-requested
// teardown).
func (s *Session) handleSteadyMessage(msg *rtsp.Message) (bool, error) {
	if msg.IsResponse {
		// A response to a sink-initiated request (e.g. an IDR refresh);
		// nothing further to do once its CSeq has been observed.
		return false, nil
	}

	if msg.Method == rtsp.SET_PARAMETER && strings.Contains(string(msg.Body), "wfd_trigger_method: TEARDOWN") {
		if err := s.respondOK(msg); err != nil {
			return false, err
		}
		if err := s.sendTeardown(); err != nil {
			return false, err
		}
		return true, nil
	}

	if err := s.respondOK(msg); err != nil {
		return false, err
	}
	return false, nil
}

// Package session implements the Session Core: the M1-M7 Miracast
// handshake state machine and the steady-state loop that follows it, in
// the sink (server) role - answering peer-initiated requests and issuing
// its own in turn.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wfd-sink/picast-go/internal/capability"
	"github.com/wfd-sink/picast-go/internal/config"
	"github.com/wfd-sink/picast-go/internal/player"
	"github.com/wfd-sink/picast-go/internal/rtsp"
)

// publicMethods is the Public header value advertised in the M1 response.
const publicMethods = "org.wfa.wfd1.0, SET_PARAMETER, GET_PARAMETER"

// Stats is a point-in-time snapshot of one session's progress, exposed for
// logging and tests.
type Stats struct {
	State            State
	SessionID        string
	MessagesHandled  uint64
	IDRRequestsSent  uint64
	WatchdogTicks    int
	PlayerStarted    bool
	ReachedStreaming bool
}

// Session drives one Miracast negotiation and streaming run on one
// connection. It owns the control connection, the IDR-request UDP socket,
// and the player handle for its lifetime.
type Session struct {
	conn   net.Conn
	reader *bufio.Reader
	idr    net.PacketConn

	caps   capability.Set
	player player.Controller
	cfg    config.Config
	log    zerolog.Logger

	state            State
	sinkCSeq         uint64
	sessionID        string
	serverRTPPort    int
	playerStarted    bool
	reachedStreaming bool

	messagesHandled uint64
	idrRequestsSent uint64
	watchdogTicks   int

	closed bool
}

// New creates a Session over an already-connected control channel. It binds
// the local loopback IDR-request socket on an ephemeral port.
func New(conn net.Conn, caps capability.Set, ctrl player.Controller, cfg config.Config, log zerolog.Logger) (*Session, error) {
	idr, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("session: bind idr socket: %w", err)
	}
	return &Session{
		conn:   conn,
		reader: bufio.NewReader(conn),
		idr:    idr,
		caps:   caps,
		player: ctrl,
		cfg:    cfg,
		log:    log.With().Str("component", "session").Logger(),
		state:  Connected,
	}, nil
}

// IDRAddr returns the address a local collaborator (the media pipeline)
// should send an empty datagram to in order to request a fresh IDR frame.
func (s *Session) IDRAddr() net.Addr {
	return s.idr.LocalAddr()
}

// Stats returns a snapshot of the session's progress.
func (s *Session) Stats() Stats {
	return Stats{
		State:            s.state,
		SessionID:        s.sessionID,
		MessagesHandled:  s.messagesHandled,
		IDRRequestsSent:  s.idrRequestsSent,
		WatchdogTicks:    s.watchdogTicks,
		PlayerStarted:    s.playerStarted,
		ReachedStreaming: s.reachedStreaming,
	}
}

// Run drives the session through the full handshake and, on success, the
// steady-state loop, until termination. It always tears down player and
// sockets on the way out, regardless of how it exits.
func (s *Session) Run(ctx context.Context) error {
	defer s.teardown()

	if err := s.handshake(ctx); err != nil {
		s.log.Warn().Err(err).Str("state", s.state.String()).Msg("handshake aborted")
		s.transition(Terminating)
		return err
	}

	err := s.steadyState(ctx)
	s.transition(Terminating)
	return err
}

func (s *Session) transition(next State) {
	s.log.Debug().Str("from", s.state.String()).Str("to", next.String()).Msg("session transition")
	s.state = next
}

func (s *Session) teardown() {
	if s.closed {
		return
	}
	s.closed = true
	if s.playerStarted {
		if err := s.player.Stop(); err != nil {
			s.log.Warn().Err(err).Msg("player stop failed")
		}
		s.playerStarted = false
	}
	_ = s.conn.Close()
	_ = s.idr.Close()
	s.transition(Closed)
}

func (s *Session) maybeStartPlayer() {
	if s.playerStarted {
		return
	}
	if err := s.player.Start(); err != nil {
		s.log.Warn().Err(err).Msg("player start failed")
		return
	}
	s.playerStarted = true
}

// nextSinkCSeq assigns 100 to the first sink-initiated request (M2), 101
// to the second (M6), 102 to the third (M7), then +1 for each subsequent
// one (IDR refreshes).
func (s *Session) nextSinkCSeq() uint64 {
	if s.sinkCSeq == 0 {
		s.sinkCSeq = 100
	} else {
		s.sinkCSeq++
	}
	return s.sinkCSeq
}

func (s *Session) setHandshakeDeadline() {
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
}

func (s *Session) clearDeadline() {
	_ = s.conn.SetReadDeadline(time.Time{})
}

func (s *Session) readHandshakeMessage() (*rtsp.Message, error) {
	s.setHandshakeDeadline()
	msg, err := rtsp.ParseMessage(s.reader)
	s.clearDeadline()
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, ErrHandshakeTimeout
		}
		return nil, err
	}
	s.messagesHandled++
	return msg, nil
}

func (s *Session) writeMessage(msg *rtsp.Message) error {
	_, err := s.conn.Write(rtsp.Compose(msg))
	return err
}

// expectRequest reads one message during the handshake and verifies it is
// a request for the given method.
func (s *Session) expectRequest(method rtsp.Method) (*rtsp.Message, error) {
	msg, err := s.readHandshakeMessage()
	if err != nil {
		return nil, err
	}
	if msg.IsResponse || msg.Method != method {
		return nil, ErrUnexpectedMethod
	}
	return msg, nil
}

// sendAndAwait sends a sink-initiated request and blocks for its matching
// response, validating CSeq and status.
func (s *Session) sendAndAwait(method rtsp.Method, url string, headers rtsp.Header, body []byte) (*rtsp.Message, error) {
	cseq := s.nextSinkCSeq()
	req := rtsp.NewRequest(method, url, cseq)
	req.Headers = headers
	req.Body = body
	if err := s.writeMessage(req); err != nil {
		return nil, fmt.Errorf("session: write %s: %w", method, err)
	}

	resp, err := s.readHandshakeMessage()
	if err != nil {
		return nil, err
	}
	if !resp.IsResponse || resp.CSeq != cseq {
		return nil, ErrUnexpectedResponse
	}
	if resp.StatusCode != 200 {
		return nil, ErrNonOKResponse
	}
	return resp, nil
}

func (s *Session) respondOK(req *rtsp.Message) error {
	return s.writeMessage(rtsp.OK(req))
}

func (s *Session) respondWithBody(req *rtsp.Message, body string, contentType string) error {
	resp := rtsp.OK(req)
	resp.Body = []byte(body)
	resp.Headers.Set("Content-Type", contentType)
	return s.writeMessage(resp)
}

// handshake drives the state machine from Connected through Streaming.
func (s *Session) handshake(ctx context.Context) error {
	// M1: peer sends OPTIONS, sink answers with its Public header.
	m1, err := s.expectRequest(rtsp.OPTIONS)
	if err != nil {
		return fmt.Errorf("m1: %w", err)
	}
	resp := rtsp.OK(m1)
	resp.Headers.Set("Public", publicMethods)
	if err := s.writeMessage(resp); err != nil {
		return fmt.Errorf("m1: %w", err)
	}
	s.transition(M1Done)

	// M2: sink sends OPTIONS, awaits 200 OK.
	m2Headers := rtsp.Header{}
	m2Headers.Set("Require", "org.wfa.wfd1.0")
	s.transition(AwaitM2Response)
	if _, err := s.sendAndAwait(rtsp.OPTIONS, "*", m2Headers, nil); err != nil {
		return fmt.Errorf("m2: %w", err)
	}
	s.transition(M2Done)

	// M3: peer sends GET_PARAMETER listing the keys it wants; sink answers
	// with the Capability Set's rendering of those keys.
	m3, err := s.expectRequest(rtsp.GET_PARAMETER)
	if err != nil {
		return fmt.Errorf("m3: %w", err)
	}
	keys := parseParameterKeys(m3.Body)
	body := s.caps.RenderM3Response(keys)
	if err := s.respondWithBody(m3, body, "text/parameters"); err != nil {
		return fmt.Errorf("m3: %w", err)
	}
	s.transition(M3Done)

	// M4: peer sends SET_PARAMETER with its chosen video format. Player may
	// start here already if the body carries wfd_video_formats.
	m4, err := s.expectRequest(rtsp.SET_PARAMETER)
	if err != nil {
		return fmt.Errorf("m4: %w", err)
	}
	if strings.Contains(string(m4.Body), "wfd_video_formats") {
		s.maybeStartPlayer()
	}
	if err := s.respondOK(m4); err != nil {
		return fmt.Errorf("m4: %w", err)
	}
	s.transition(M4Done)

	// M5: peer sends SET_PARAMETER with wfd_trigger_method: SETUP.
	m5, err := s.expectRequest(rtsp.SET_PARAMETER)
	if err != nil {
		return fmt.Errorf("m5: %w", err)
	}
	if err := s.respondOK(m5); err != nil {
		return fmt.Errorf("m5: %w", err)
	}
	s.transition(M5Done)

	// Sink sends SETUP, awaits Session id and server_port.
	setupURL := fmt.Sprintf("rtsp://%s/wfd1.0/streamid=0", s.cfg.PeerAddress)
	setupHeaders := rtsp.Header{}
	setupHeaders.Set("Transport", fmt.Sprintf("RTP/AVP/UDP;unicast;client_port=%d", s.cfg.RTPPort))
	s.transition(AwaitM6Response)
	m6resp, err := s.sendAndAwait(rtsp.SETUP, setupURL, setupHeaders, nil)
	if err != nil {
		return fmt.Errorf("m6: %w", err)
	}
	sessionHeader, ok := m6resp.Headers.Get("Session")
	if !ok {
		return ErrMissingSessionID
	}
	s.sessionID = sessionIDFromHeader(sessionHeader)
	if transportVal, ok := m6resp.Headers.Get("Transport"); ok {
		s.serverRTPPort = parseTransport(transportVal).ServerPort
	}
	s.transition(M6Done)

	// Sink sends PLAY, awaits 200 OK, then enters Streaming.
	playHeaders := rtsp.Header{}
	playHeaders.Set("Session", s.sessionID)
	s.transition(AwaitM7Response)
	if _, err := s.sendAndAwait(rtsp.PLAY, setupURL, playHeaders, nil); err != nil {
		return fmt.Errorf("m7: %w", err)
	}
	s.transition(Streaming)
	s.reachedStreaming = true
	s.maybeStartPlayer()

	return nil
}

// parseParameterKeys splits a GET_PARAMETER body into the requested
// parameter names, one per line.
func parseParameterKeys(body []byte) []string {
	lines := strings.Split(string(body), "\n")
	keys := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(strings.TrimRight(l, "\r"))
		if l != "" {
			keys = append(keys, l)
		}
	}
	return keys
}

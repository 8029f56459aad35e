package session

import "errors"

// Sentinel errors for the handshake and steady-state failure kinds this
// package surfaces. Protocol and transport errors are reported as whatever
// the rtsp/net layer returned, wrapped with one of these where the session
// layer adds meaning the codec can't know about on its own.
var (
	// ErrUnexpectedMethod means a request arrived during the handshake
	// whose method did not match what that state expects.
	ErrUnexpectedMethod = errors.New("session: unexpected method for current state")

	// ErrUnexpectedResponse means the message read while awaiting a
	// sink-initiated request's answer was not its response: either a
	// request, or a response whose CSeq did not match.
	ErrUnexpectedResponse = errors.New("session: response CSeq mismatch")

	// ErrNonOKResponse means the peer answered a sink-initiated request
	// with a status other than 200.
	ErrNonOKResponse = errors.New("session: non-200 response")

	// ErrHandshakeTimeout means a per-step read exceeded HandshakeTimeout.
	ErrHandshakeTimeout = errors.New("session: handshake read timeout")

	// ErrMissingSessionID means the M6 response carried no Session header.
	ErrMissingSessionID = errors.New("session: missing Session header in M6 response")

	// ErrWatchdogExpired means the steady-state loop saw no traffic for
	// WatchdogThreshold.
	ErrWatchdogExpired = errors.New("session: watchdog expired")
)

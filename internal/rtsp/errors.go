package rtsp

import "errors"

// Sentinel errors for the three parse failure kinds this codec surfaces.
// A transport-level failure is whatever the underlying net.Conn returns
// and is not wrapped here.
var (
	// ErrMalformed means the input was not a syntactically valid RTSP
	// request or response line, or a header line could not be parsed.
	ErrMalformed = errors.New("rtsp: malformed message")

	// ErrUnsupportedVersion means the request/response line named a
	// protocol version other than RTSP/1.0.
	ErrUnsupportedVersion = errors.New("rtsp: unsupported version")

	// ErrConnectionClosed means EOF was seen before the next message was
	// complete: before its start line, inside its headers, or inside its
	// Content-Length body.
	ErrConnectionClosed = errors.New("rtsp: connection closed")
)

package session

import "strings"

// transportDescriptor holds the fields parsed from a Transport header
// value that the session core actually consumes. For this sink, protocol
// is always UDP unicast.
type transportDescriptor struct {
	ClientPort int
	ServerPort int
}

// parseTransport extracts client_port and server_port from a Transport
// header value such as:
//
//	RTP/AVP/UDP;unicast;client_port=1028;server_port=5000-5001
func parseTransport(value string) transportDescriptor {
	var td transportDescriptor
	for _, part := range strings.Split(value, ";") {
		part = strings.TrimSpace(part)
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		val := strings.TrimSpace(kv[1])
		if idx := strings.IndexByte(val, '-'); idx >= 0 {
			val = val[:idx]
		}
		n := atoiSafe(val)
		switch key {
		case "client_port":
			td.ClientPort = n
		case "server_port":
			td.ServerPort = n
		}
	}
	return td
}

// sessionIDFromHeader extracts the session id from a Session header value
// such as "7C9C5678;timeout=30": everything before the first ';'.
func sessionIDFromHeader(value string) string {
	if idx := strings.IndexByte(value, ';'); idx >= 0 {
		return strings.TrimSpace(value[:idx])
	}
	return strings.TrimSpace(value)
}

func atoiSafe(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return n
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// Package stats aggregates session lifecycle counters across the
// Supervisor's accept-run-teardown loop: session outcomes and
// message-handling counts from the one session the Supervisor runs at a
// time.
package stats

import "sync/atomic"

// Aggregator collects process-lifetime counters. Safe for concurrent use,
// though in practice only the Supervisor's single goroutine writes to it.
type Aggregator struct {
	sessionsStarted  atomic.Uint64
	sessionsStreamed atomic.Uint64
	sessionsFailed   atomic.Uint64
	messagesHandled  atomic.Uint64
	idrRequestsSent  atomic.Uint64
	connectTimeouts  atomic.Uint64
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

func (a *Aggregator) AddSessionStarted() { a.sessionsStarted.Add(1) }

func (a *Aggregator) AddSessionStreamed() { a.sessionsStreamed.Add(1) }

func (a *Aggregator) AddSessionFailed() { a.sessionsFailed.Add(1) }

func (a *Aggregator) AddMessagesHandled(n uint64) {
	if n > 0 {
		a.messagesHandled.Add(n)
	}
}
func (a *Aggregator) AddIDRRequestsSent(n uint64) {
	if n > 0 {
		a.idrRequestsSent.Add(n)
	}
}
func (a *Aggregator) AddConnectTimeout() { a.connectTimeouts.Add(1) }

// Snapshot is a point-in-time copy of the aggregate counters.
type Snapshot struct {
	SessionsStarted  uint64
	SessionsStreamed uint64
	SessionsFailed   uint64
	MessagesHandled  uint64
	IDRRequestsSent  uint64
	ConnectTimeouts  uint64
}

func (a *Aggregator) Snapshot() Snapshot {
	return Snapshot{
		SessionsStarted:  a.sessionsStarted.Load(),
		SessionsStreamed: a.sessionsStreamed.Load(),
		SessionsFailed:   a.sessionsFailed.Load(),
		MessagesHandled:  a.messagesHandled.Load(),
		IDRRequestsSent:  a.idrRequestsSent.Load(),
		ConnectTimeouts:  a.connectTimeouts.Load(),
	}
}

// StreamRate returns the percentage (0-100) of started sessions that
// reached Streaming, or 0 if none have started yet.
func (s Snapshot) StreamRate() float64 {
	if s.SessionsStarted == 0 {
		return 0
	}
	return float64(s.SessionsStreamed) * 100.0 / float64(s.SessionsStarted)
}

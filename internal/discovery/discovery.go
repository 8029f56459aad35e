// Package discovery advertises the sink's RTSP service over mDNS/DNS-SD so
// a Miracast source on the local P2P group can find it. The Registrar takes
// a pluggable publish function so whatever mDNS responder the platform has
// can be swapped in.
package discovery

import "fmt"

// Record is one DNS-SD service advertisement.
type Record struct {
	ServiceName string // e.g. the configured device name
	ServiceType string // "_rtsp._tcp"
	Port        int
}

// Publisher performs the actual mDNS/DNS-SD registration. Implementations
// wrap whatever platform mDNS responder is available; tests use a recording
// stub.
type Publisher func(Record) (unregister func() error, err error)

// Registrar owns the lifecycle of zero-or-one active advertisement.
type Registrar struct {
	publish    Publisher
	unregister func() error
}

// NewRegistrar builds a Registrar around the given Publisher.
func NewRegistrar(publish Publisher) *Registrar {
	return &Registrar{publish: publish}
}

// Register advertises the given service, replacing any previous
// advertisement.
func (r *Registrar) Register(rec Record) error {
	if r.unregister != nil {
		_ = r.unregister()
		r.unregister = nil
	}
	unregister, err := r.publish(rec)
	if err != nil {
		return fmt.Errorf("discovery: register %s: %w", rec.ServiceName, err)
	}
	r.unregister = unregister
	return nil
}

// Close withdraws any active advertisement.
func (r *Registrar) Close() error {
	if r.unregister == nil {
		return nil
	}
	err := r.unregister()
	r.unregister = nil
	return err
}

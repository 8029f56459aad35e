// Package supervisor runs the sink's single long-running loop: bring up
// the Wi-Fi Direct network prerequisites, advertise the RTSP service, then
// repeatedly accept one session, run it to completion, and loop - backing
// off between connect failures and keeping a running tally of outcomes.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/wfd-sink/picast-go/internal/capability"
	"github.com/wfd-sink/picast-go/internal/config"
	"github.com/wfd-sink/picast-go/internal/connector"
	"github.com/wfd-sink/picast-go/internal/dhcpd"
	"github.com/wfd-sink/picast-go/internal/discovery"
	"github.com/wfd-sink/picast-go/internal/player"
	"github.com/wfd-sink/picast-go/internal/session"
	"github.com/wfd-sink/picast-go/internal/stats"
	"github.com/wfd-sink/picast-go/internal/wpacli"
)

// ErrExternalCommand wraps a supplicant/DHCP bring-up failure - a
// configuration error that stops the Supervisor rather than triggering a
// retry.
var ErrExternalCommand = errors.New("supervisor: external command failed")

// Network groups the external collaborators the Supervisor brings up
// before it starts accepting sessions.
type Network struct {
	Supplicant *wpacli.Client
	DHCP       *dhcpd.Server
	Registrar  *discovery.Registrar
	Interface  string
}

// Supervisor owns the accept-run-teardown loop and the process-lifetime
// stats aggregator.
type Supervisor struct {
	cfg           config.Config
	caps          capability.Set
	net           Network
	newController func() player.Controller
	log           zerolog.Logger
	stats         *stats.Aggregator
	backoff       *rate.Limiter
}

// New builds a Supervisor. newController is called once per session so
// each session gets its own Controller instance.
func New(cfg config.Config, caps capability.Set, net Network, newController func() player.Controller, log zerolog.Logger) *Supervisor {
	return &Supervisor{
		cfg:           cfg,
		caps:          caps,
		net:           net,
		newController: newController,
		log:           log.With().Str("component", "supervisor").Logger(),
		stats:         stats.NewAggregator(),
		backoff:       rate.NewLimiter(rate.Every(cfg.ConnectBackoff), 1),
	}
}

// Stats returns the running process-lifetime counters.
func (sv *Supervisor) Stats() stats.Snapshot {
	return sv.stats.Snapshot()
}

// Run brings the network up, advertises the service, and loops accepting
// sessions until ctx is cancelled.
func (sv *Supervisor) Run(ctx context.Context) error {
	if err := sv.bringUpNetwork(); err != nil {
		return err
	}
	defer sv.net.DHCP.Stop()
	defer sv.net.Registrar.Close()

	if err := sv.net.Registrar.Register(discovery.Record{
		ServiceName: sv.cfg.DeviceName,
		ServiceType: "_rtsp._tcp",
		Port:        sv.cfg.RTSPPort,
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrExternalCommand, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := sv.armWPS(); err != nil {
			return err
		}

		if err := sv.runOneSession(ctx); err != nil {
			if errors.Is(err, connector.ErrConnectTimeout) {
				sv.stats.AddConnectTimeout()
				sv.log.Warn().Err(err).Dur("backoff", sv.cfg.ConnectBackoff).Msg("connect exhausted, backing off")
				if waitErr := sv.backoff.Wait(ctx); waitErr != nil {
					return nil
				}
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			sv.log.Warn().Err(err).Msg("session ended with error")
		}
	}
}

func (sv *Supervisor) bringUpNetwork() error {
	if err := sv.net.Supplicant.StartP2PFind(); err != nil {
		return fmt.Errorf("%w: %v", ErrExternalCommand, err)
	}
	if err := sv.net.Supplicant.SetDeviceName(sv.cfg.DeviceName); err != nil {
		return fmt.Errorf("%w: %v", ErrExternalCommand, err)
	}
	if err := sv.net.Supplicant.SetDeviceType(sv.cfg.DeviceType); err != nil {
		return fmt.Errorf("%w: %v", ErrExternalCommand, err)
	}
	if err := sv.net.Supplicant.SetP2PGoHT40(); err != nil {
		return fmt.Errorf("%w: %v", ErrExternalCommand, err)
	}
	if err := sv.net.Supplicant.ConfigureWFD(wpacli.DeviceInfo{
		ControlPort:       sv.cfg.RTSPPort,
		MaxThroughputMbps: 300,
		SessionAvailable:  true,
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrExternalCommand, err)
	}
	if err := sv.net.Supplicant.P2PGroupAdd(sv.cfg.GroupName); err != nil {
		return fmt.Errorf("%w: %v", ErrExternalCommand, err)
	}
	if err := sv.net.DHCP.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrExternalCommand, err)
	}
	return nil
}

func (sv *Supervisor) armWPS() error {
	iface := sv.net.Interface
	timeout := int(sv.cfg.WPSPinTimeout / time.Second)
	if err := sv.net.Supplicant.ArmWPSPin(iface, sv.cfg.WPSPin, timeout); err != nil {
		return fmt.Errorf("%w: %v", ErrExternalCommand, err)
	}
	return nil
}

func (sv *Supervisor) runOneSession(ctx context.Context) error {
	conn, err := connector.Connect(ctx, sv.cfg.PeerAddress, sv.cfg.RTSPPort, connector.Options{
		Retries:    sv.cfg.ConnectRetries,
		RetryPause: sv.cfg.ConnectRetryPause,
	})
	if err != nil {
		return err
	}

	sv.stats.AddSessionStarted()
	correlationID := uuid.NewString()
	sessionLog := sv.log.With().Str("correlation_id", correlationID).Logger()

	sess, err := session.New(conn, sv.caps, sv.newController(), sv.cfg, sessionLog)
	if err != nil {
		_ = conn.Close()
		sv.stats.AddSessionFailed()
		return err
	}

	sessionLog.Info().Str("peer", conn.RemoteAddr().String()).Msg("session accepted")
	runErr := sess.Run(ctx)
	snap := sess.Stats()
	sv.stats.AddMessagesHandled(snap.MessagesHandled)
	sv.stats.AddIDRRequestsSent(snap.IDRRequestsSent)
	if snap.ReachedStreaming {
		sv.stats.AddSessionStreamed()
	}
	if runErr != nil {
		sv.stats.AddSessionFailed()
	}
	return runErr
}

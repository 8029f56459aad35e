// Command picastd runs the Miracast sink daemon: it brings up the local
// Wi-Fi Direct network, advertises the RTSP control service, and serves
// one Miracast session at a time until terminated.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wfd-sink/picast-go/internal/capability"
	"github.com/wfd-sink/picast-go/internal/config"
	"github.com/wfd-sink/picast-go/internal/dhcpd"
	"github.com/wfd-sink/picast-go/internal/discovery"
	"github.com/wfd-sink/picast-go/internal/logging"
	"github.com/wfd-sink/picast-go/internal/player"
	"github.com/wfd-sink/picast-go/internal/supervisor"
	"github.com/wfd-sink/picast-go/internal/wpacli"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON config file overriding defaults")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "picastd: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(logging.Config{
		Level:  cfg.LogLevel,
		Format: logging.Format(cfg.LogFormat),
	})

	probe := capability.DisplayProbe(nil)
	if cfg.DisplayProbeCommand != "" {
		probe = capability.CommandProbe{Command: cfg.DisplayProbeCommand}
	}
	caps := capability.New(cfg.RTPPort, probe)

	wpa := wpacli.New()
	iface := "p2p0"
	if p2pIface, err := wpa.P2PInterface(); err == nil && p2pIface != "" {
		iface = p2pIface
	}
	dhcp := &dhcpd.Server{
		Interface: iface,
		LeaseAddr: cfg.PeerAddress,
		Netmask:   cfg.Netmask,
		LeaseTime: cfg.LeaseTimeout,
	}
	registrar := discovery.NewRegistrar(func(rec discovery.Record) (func() error, error) {
		log.Info().Str("service", rec.ServiceName).Int("port", rec.Port).Msg("advertising rtsp service")
		return func() error { return nil }, nil
	})

	newController := func() player.Controller {
		if cfg.PlayerCommand == "" {
			return &player.NoopController{}
		}
		ctrl, err := player.NewCommandController(cfg.PlayerCommand)
		if err != nil {
			log.Warn().Err(err).Msg("invalid player_command, falling back to no-op")
			return &player.NoopController{}
		}
		return ctrl
	}

	sv := supervisor.New(cfg, caps, supervisor.Network{
		Supplicant: wpa,
		DHCP:       dhcp,
		Registrar:  registrar,
		Interface:  iface,
	}, newController, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("supervisor exited with error")
		os.Exit(1)
	}
}

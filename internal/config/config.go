// Package config holds the sink's process-wide settings: built-in
// defaults, optionally overridden from a JSON file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config is the immutable set of parameters the rest of the sink is built
// from. It is read once at startup and passed down explicitly - there is no
// package-level singleton.
type Config struct {
	// Wi-Fi P2P / WPS identity (consumed by the wpacli collaborator).
	DeviceName   string        `json:"device_name"`
	DeviceType   string        `json:"device_type"`
	GroupName     string        `json:"group_name"`
	WPSPin        string        `json:"wps_pin"`
	WPSPinTimeout time.Duration `json:"wps_pin_timeout"`
	LeaseTimeout  time.Duration `json:"lease_timeout"`

	// Network.
	RTSPPort    int    `json:"rtsp_port"`
	RTPPort     int    `json:"rtp_port"`
	SinkAddress string `json:"sink_address"`
	PeerAddress string `json:"peer_address"`
	Netmask     string `json:"netmask"`

	// Protocol timing, exposed as config rather than hardcoded.
	WatchdogThreshold time.Duration `json:"watchdog_threshold"`
	HandshakeTimeout  time.Duration `json:"handshake_timeout"`
	ConnectRetries    int           `json:"connect_retries"`
	ConnectRetryPause time.Duration `json:"connect_retry_pause"`
	ConnectBackoff    time.Duration `json:"connect_backoff"`

	// Display probe, used by the capability model to build the advertised
	// mode table.
	DisplayProbeCommand string `json:"display_probe_command"`

	// Media player launch command. Empty means no-op, used in tests and
	// environments with no downstream media pipeline configured.
	PlayerCommand string `json:"player_command"`

	// Logging.
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
	LogFile   string `json:"log_file"`
}

// Default returns the configuration the sink ships with out of the box.
func Default() Config {
	return Config{
		DeviceName:   "picast",
		DeviceType:   "7-0050F204-1",
		GroupName:     "persistent",
		WPSPin:        "12345678",
		WPSPinTimeout: 300 * time.Second,
		LeaseTimeout:  300 * time.Second,

		RTSPPort:    7236,
		RTPPort:     1028,
		SinkAddress: "192.168.173.1",
		PeerAddress: "192.168.173.80",
		Netmask:     "255.255.255.0",

		WatchdogThreshold: 70 * time.Second,
		HandshakeTimeout:  30 * time.Second,
		ConnectRetries:    1200,
		ConnectRetryPause: 100 * time.Millisecond,
		ConnectBackoff:    30 * time.Second,

		LogLevel:  "info",
		LogFormat: "console",
	}
}

// Load returns the default configuration, optionally overridden by the JSON
// file at path. A missing file is not an error - it just means "use
// defaults".
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the sink cannot run with.
func (c Config) Validate() error {
	if c.RTSPPort <= 0 || c.RTSPPort > 65535 {
		return fmt.Errorf("invalid rtsp_port %d", c.RTSPPort)
	}
	if c.RTPPort <= 0 || c.RTPPort > 65535 {
		return fmt.Errorf("invalid rtp_port %d", c.RTPPort)
	}
	if c.PeerAddress == "" {
		return fmt.Errorf("peer_address must not be empty")
	}
	if c.WatchdogThreshold <= 0 {
		return fmt.Errorf("watchdog_threshold must be positive")
	}
	if c.ConnectRetries <= 0 {
		return fmt.Errorf("connect_retries must be positive")
	}
	return nil
}

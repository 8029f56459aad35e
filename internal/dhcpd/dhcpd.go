// Package dhcpd manages a udhcpd child process serving the single-address
// lease the Miracast source picks up after P2P group formation. The config
// file it generates is ephemeral and removed on Stop.
package dhcpd

import (
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Server owns one udhcpd child process and its generated config file.
type Server struct {
	Interface   string
	LeaseAddr   string
	Netmask     string
	LeaseTime   time.Duration
	CommandName string // defaults to "udhcpd" if empty

	confPath string
	cmd      *exec.Cmd
}

// Start writes the udhcpd config file and spawns the server.
func (s *Server) Start() error {
	if s.cmd != nil {
		return nil
	}
	cmdName := s.CommandName
	if cmdName == "" {
		cmdName = "udhcpd"
	}

	f, err := os.CreateTemp("", "picast-dhcpd-*.conf")
	if err != nil {
		return fmt.Errorf("dhcpd: create config: %w", err)
	}
	conf := fmt.Sprintf(
		"start %s\nend %s\ninterface %s\noption subnet %s\noption lease %d\n",
		s.LeaseAddr, s.LeaseAddr, s.Interface, s.Netmask, int(s.LeaseTime.Seconds()),
	)
	if _, err := f.WriteString(conf); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("dhcpd: write config: %w", err)
	}
	f.Close()
	s.confPath = f.Name()

	cmd := exec.Command(cmdName, s.confPath)
	if err := cmd.Start(); err != nil {
		os.Remove(s.confPath)
		return fmt.Errorf("dhcpd: start %s: %w", cmdName, err)
	}
	s.cmd = cmd
	return nil
}

// Stop terminates the udhcpd process and removes its config file. Safe to
// call when Start was never called or has already been undone.
func (s *Server) Stop() error {
	if s.cmd == nil {
		return nil
	}
	err := s.cmd.Process.Kill()
	_ = s.cmd.Wait()
	s.cmd = nil

	if s.confPath != "" {
		if rmErr := os.Remove(s.confPath); rmErr != nil && err == nil {
			err = rmErr
		}
		s.confPath = ""
	}
	if err != nil {
		return fmt.Errorf("dhcpd: stop: %w", err)
	}
	return nil
}

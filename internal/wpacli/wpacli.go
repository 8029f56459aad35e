// Package wpacli wraps the wpa_supplicant control utility used to bring up
// the Wi-Fi Direct (P2P) group the Miracast source connects through.
// Most commands succeed only when the utility prints a line reading exactly
// "OK"; P2PGroupAdd, ArmWPSPin and Interfaces do not look for it and fail
// only when the utility itself cannot be run or exits non-zero.
package wpacli

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
)

// Client runs wpa_cli commands against the supplicant control interface.
type Client struct {
	// Command is the control binary, "wpa_cli" by default. Tests override
	// it with a stub script.
	Command string
}

// New returns a Client using the system wpa_cli binary.
func New() *Client {
	return &Client{Command: "wpa_cli"}
}

// run invokes wpa_cli with argv and returns its stdout, one line per entry.
func (c *Client) run(argv ...string) ([]string, error) {
	cmd := exec.Command(c.Command, argv...)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("wpacli: %v %v: %w", c.Command, argv, err)
	}
	var lines []string
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, nil
}

func containsOK(lines []string) bool {
	for _, l := range lines {
		if l == "OK" {
			return true
		}
	}
	return false
}

// StartP2PFind begins a progressive P2P device discovery scan.
func (c *Client) StartP2PFind() error {
	lines, err := c.run("p2p_find", "type=progressive")
	if err != nil {
		return err
	}
	if !containsOK(lines) {
		return fmt.Errorf("wpacli: p2p_find failed: %v", lines)
	}
	return nil
}

// StopP2PFind stops an in-progress P2P discovery scan.
func (c *Client) StopP2PFind() error {
	lines, err := c.run("p2p_stop_find")
	if err != nil {
		return err
	}
	if !containsOK(lines) {
		return fmt.Errorf("wpacli: p2p_stop_find failed: %v", lines)
	}
	return nil
}

// SetDeviceName sets the advertised P2P device name.
func (c *Client) SetDeviceName(name string) error {
	lines, err := c.run("set", "device_name", name)
	if err != nil {
		return err
	}
	if !containsOK(lines) {
		return fmt.Errorf("wpacli: set device_name %s failed: %v", name, lines)
	}
	return nil
}

// SetDeviceType sets the advertised WFD primary device type.
func (c *Client) SetDeviceType(deviceType string) error {
	lines, err := c.run("set", "device_type", deviceType)
	if err != nil {
		return err
	}
	if !containsOK(lines) {
		return fmt.Errorf("wpacli: set device_type %s failed: %v", deviceType, lines)
	}
	return nil
}

// SetP2PGoHT40 enables 40 MHz channel width for the P2P group owner.
func (c *Client) SetP2PGoHT40() error {
	lines, err := c.run("set", "p2p_go_ht40", "1")
	if err != nil {
		return err
	}
	if !containsOK(lines) {
		return fmt.Errorf("wpacli: set p2p_go_ht40 failed: %v", lines)
	}
	return nil
}

// WFDSubelemSet sets one WFD information subelement.
func (c *Client) WFDSubelemSet(key int, value string) error {
	lines, err := c.run("wfd_subelem_set", strconv.Itoa(key), value)
	if err != nil {
		return err
	}
	if !containsOK(lines) {
		return fmt.Errorf("wpacli: wfd_subelem_set %d failed: %v", key, lines)
	}
	return nil
}

// P2PGroupAdd creates a P2P group with the given persistence name.
func (c *Client) P2PGroupAdd(name string) error {
	_, err := c.run("p2p_group_add", name)
	return err
}

// ArmWPSPin arms interface to accept the given WPS PIN for timeout seconds.
func (c *Client) ArmWPSPin(iface, pin string, timeoutSeconds int) error {
	_, err := c.run("-i", iface, "wps_pin", "any", pin, strconv.Itoa(timeoutSeconds))
	return err
}

var selectedInterfaceRe = regexp.MustCompile(`^Selected interface\s+'(.+)'$`)

// Interfaces returns the currently selected interface name and the full
// list of interfaces the supplicant knows about.
func (c *Client) Interfaces() (selected string, all []string, err error) {
	lines, err := c.run("interface")
	if err != nil {
		return "", nil, err
	}
	for _, l := range lines {
		switch {
		case selectedInterfaceRe.MatchString(l):
			selected = selectedInterfaceRe.FindStringSubmatch(l)[1]
		case l == "Available interfaces:":
			// header line, nothing to record
		default:
			all = append(all, l)
		}
	}
	return selected, all, nil
}

// P2PInterface returns the name of the p2p-wl* interface, if present.
func (c *Client) P2PInterface() (string, error) {
	_, ifaces, err := c.Interfaces()
	if err != nil {
		return "", err
	}
	for _, it := range ifaces {
		if len(it) >= 6 && it[:6] == "p2p-wl" {
			return it, nil
		}
	}
	return "", nil
}

package wpacli

import "fmt"

// WFD information subelement IDs the sink advertises through
// wfd_subelem_set before group formation.
const (
	subelemDeviceInfo = 0
	subelemBSSID      = 1
	subelemSinkInfo   = 6
)

// Device-information bitfield layout (WFD spec table 5-2 subset).
const (
	devinfoPrimarySink       = 0b01
	devinfoSessionAvailable  = 0b01 << 4
	devinfoWSDSupported      = 0b01 << 6
	devinfoContentProtection = 0b01 << 8
)

// DeviceInfo is the sink's WFD device-information advertisement: what role
// it plays, on which control port it listens, and how much throughput it
// claims. Encoded into the three wfd_subelem_set values the supplicant
// broadcasts in P2P probe responses.
type DeviceInfo struct {
	// ControlPort is the RTSP control port the source should connect to.
	ControlPort int
	// MaxThroughputMbps is the advertised link throughput ceiling.
	MaxThroughputMbps int
	// SessionAvailable advertises readiness to accept a new WFD session.
	SessionAvailable bool
	// ContentProtection advertises HDCP capability. The session core does
	// not implement HDCP, so leave this false unless a downstream pipeline
	// handles it.
	ContentProtection bool
}

// deviceInfoSubelement renders subelement 0: a 6-byte body of the device
// info bitfield, control port, and max throughput, each as a 16-bit
// big-endian hex field behind the 0006 length prefix.
func (d DeviceInfo) deviceInfoSubelement() string {
	bits := devinfoPrimarySink | devinfoWSDSupported
	if d.SessionAvailable {
		bits |= devinfoSessionAvailable
	}
	if d.ContentProtection {
		bits |= devinfoContentProtection
	}
	return fmt.Sprintf("0006%04x%04x%04x", bits, d.ControlPort, d.MaxThroughputMbps)
}

// bssidSubelement renders subelement 1: the associated BSSID, zero before
// any group exists.
func bssidSubelement(bssid uint64) string {
	return fmt.Sprintf("0006%012x", bssid)
}

// sinkInfoSubelement renders subelement 6: coupled-sink status and the
// coupled peer's MAC, both zero for a standalone sink.
func sinkInfoSubelement(status uint8, mac uint64) string {
	return fmt.Sprintf("0007%02x%012x", status, mac)
}

// ConfigureWFD pushes the sink's three WFD information subelements to the
// supplicant. Called once during bring-up, before the P2P group is created.
func (c *Client) ConfigureWFD(info DeviceInfo) error {
	if err := c.WFDSubelemSet(subelemDeviceInfo, info.deviceInfoSubelement()); err != nil {
		return err
	}
	if err := c.WFDSubelemSet(subelemBSSID, bssidSubelement(0)); err != nil {
		return err
	}
	return c.WFDSubelemSet(subelemSinkInfo, sinkInfoSubelement(0, 0))
}

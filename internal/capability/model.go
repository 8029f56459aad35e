// Package capability builds the sink's WFD Capability Set - the set of
// video/audio formats the sink advertises during capability negotiation -
// and serializes it into the WFD parameter strings the RTSP session core
// sends back.
package capability

import (
	"fmt"
	"sort"
	"strings"
)

// AudioCodec is one entry of the wfd_audio_codecs parameter: a codec name,
// a sample-rate/channel bitmask, and a latency byte, per the WFD audio
// codec table.
type AudioCodec struct {
	Name      string
	Modes     uint32
	LatencyMs uint8
}

func (a AudioCodec) String() string {
	return fmt.Sprintf("%s %08X %02X", a.Name, a.Modes, a.LatencyMs)
}

// Set is the sink's immutable capability set, built once at startup from a
// platform display probe and the running Config. All derived
// serializations (RenderM3Response) are computed from these fields.
type Set struct {
	RTPPort int

	NativeModeID int
	Preferred    bool
	Profile      uint32
	Level        uint32
	CEABitmap    uint32
	VESABitmap   uint32
	HHBitmap     uint32

	AudioCodecs []AudioCodec
}

// H.264 profile bits.
const (
	ProfileConstrainedBaseline uint32 = 0x01
	ProfileConstrainedHigh     uint32 = 0x02
)

// New builds the sink's Capability Set: probes the platform for supported
// display modes (falling back to the generic "assert everything" bitmap
// when the probe is absent or fails), maps each probed mode to a WFD
// resolution-table entry, and folds the result into CEA/VESA/HH bitmaps.
// Bit 0 of CEA (640x480p60) is always set; every WFD sink must support it.
func New(rtpPort int, probe DisplayProbe) Set {
	s := Set{
		RTPPort:      rtpPort,
		NativeModeID: 0,
		Preferred:    false,
		Profile:      ProfileConstrainedBaseline | ProfileConstrainedHigh,
		CEABitmap:    1, // bit 0 mandatory
		AudioCodecs: []AudioCodec{
			{Name: "AAC", Modes: 0x00000001, LatencyMs: 0x00},
			{Name: "LPCM", Modes: 0x00000002, LatencyMs: 0x00},
		},
	}
	s.Level = Level31

	var modes []DisplayMode
	var err error
	if probe != nil {
		modes, err = probe.Probe()
	}
	if probe == nil || err != nil || len(modes) == 0 {
		s.CEABitmap, s.VESABitmap, s.HHBitmap = genericFallback()
		s.CEABitmap |= 1
		s.Level = allLevels()
		s.finalizeNative()
		return s
	}

	for _, m := range modes {
		match := selectMode(lookup(m.Width, m.Height, m.Refresh, m.Progressive))
		if match == nil {
			continue
		}
		switch match.Group {
		case CEA:
			s.CEABitmap |= 1 << uint(match.ModeID)
		case VESA:
			s.VESABitmap |= 1 << uint(match.ModeID)
		case HH:
			s.HHBitmap |= 1 << uint(match.ModeID)
		}
		s.Level |= match.Level
	}
	s.finalizeNative()
	return s
}

// selectMode prefers VESA over CEA when both groups match the same pixel
// layout; otherwise it takes the first match.
func selectMode(candidates []ResolutionMode) *ResolutionMode {
	if len(candidates) == 0 {
		return nil
	}
	for i := range candidates {
		if candidates[i].Group == VESA {
			return &candidates[i]
		}
	}
	return &candidates[0]
}

func allLevels() uint32 {
	return Level31 | Level32 | Level40 | Level41 | Level42
}

// finalizeNative picks the lowest set CEA bit as the native-resolution
// index, since the mandatory 640x480p60 mode (bit 0) is always a safe,
// always-present choice of "native" when nothing more specific is known.
func (s *Set) finalizeNative() {
	for i := 0; i < 32; i++ {
		if s.CEABitmap&(1<<uint(i)) != 0 {
			s.NativeModeID = i
			return
		}
	}
}

// VideoFormats renders the wfd_video_formats value:
// "<native> <preferred> <profile> <level> <CEA> <VESA> <HH> 00 0000 0000 00 none none",
// each numeric field a fixed-width uppercase hex byte or word.
func (s Set) VideoFormats() string {
	preferred := 0
	if s.Preferred {
		preferred = 1
	}
	return fmt.Sprintf(
		"%02X %02X %02X %02X %08X %08X %08X 00 0000 0000 00 none none",
		s.NativeModeID, preferred, s.Profile, s.Level, s.CEABitmap, s.VESABitmap, s.HHBitmap,
	)
}

// ClientRTPPorts renders wfd_client_rtp_ports.
func (s Set) ClientRTPPorts() string {
	return fmt.Sprintf("RTP/AVP/UDP;unicast %d 0 mode=play", s.RTPPort)
}

// AudioCodecsValue renders wfd_audio_codecs, comma-joining each codec
// descriptor.
func (s Set) AudioCodecsValue() string {
	parts := make([]string, len(s.AudioCodecs))
	for i, c := range s.AudioCodecs {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}

// staticKnownValues are WFD parameter keys the sink has a real answer for
// beyond "none". wfd_connector_type 05 means HDMI.
var staticKnownValues = map[string]string{
	"wfd_connector_type": "05",
}

// RenderM3Response builds the M3 GET_PARAMETER response body: one line per
// requested key. Unknown keys get "none".
func (s Set) RenderM3Response(requestedKeys []string) string {
	var b strings.Builder
	for _, key := range requestedKeys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		var value string
		switch key {
		case "wfd_client_rtp_ports":
			value = s.ClientRTPPorts()
		case "wfd_video_formats":
			value = s.VideoFormats()
		case "wfd_audio_codecs":
			value = s.AudioCodecsValue()
		default:
			if v, ok := staticKnownValues[key]; ok {
				value = v
			} else {
				value = "none"
			}
		}
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}
	return b.String()
}

// SupportedModeIDs returns the sorted list of set bit positions in the
// bitmap of group g, used only for diagnostics/logging.
func (s Set) SupportedModeIDs(g Group) []int {
	var bitmap uint32
	switch g {
	case CEA:
		bitmap = s.CEABitmap
	case VESA:
		bitmap = s.VESABitmap
	case HH:
		bitmap = s.HHBitmap
	}
	var ids []int
	for i := 0; i < 32; i++ {
		if bitmap&(1<<uint(i)) != 0 {
			ids = append(ids, i)
		}
	}
	sort.Ints(ids)
	return ids
}

package capability

// Group identifies one of the three WFD resolution-mode groups. Each group
// is its own bitmap, bit i enabling WFD mode-id i within that group.
type Group int

const (
	CEA Group = iota
	VESA
	HH
)

func (g Group) String() string {
	switch g {
	case CEA:
		return "cea"
	case VESA:
		return "vesa"
	case HH:
		return "hh"
	default:
		return "unknown"
	}
}

// ResolutionMode is one entry of the static WFD resolution table: a
// (group, mode-id) pair and the display mode it represents.
type ResolutionMode struct {
	Group       Group
	ModeID      int
	Width       int
	Height      int
	Refresh     int
	Progressive bool
	// Level is the minimum H.264 level (as a wfd_video_formats level
	// bitmask bit) this mode requires the sink to declare support for.
	Level uint32
}

// H.264 level bits used in wfd_video_formats (WFD spec table 3D, abridged
// to the subset picast declares support for).
const (
	Level31 uint32 = 0x01
	Level32 uint32 = 0x02
	Level40 uint32 = 0x04
	Level41 uint32 = 0x08
	Level42 uint32 = 0x10
)

// resolutionTable is the static WFD mode table: for each mode-id in each
// of the CEA, VESA, and HH groups, the display mode it stands for and the
// minimum H.264 level a sink advertising it must declare.
var resolutionTable = []ResolutionMode{
	{CEA, 0, 640, 480, 60, true, Level31},
	{CEA, 1, 720, 480, 60, true, Level31},
	{CEA, 2, 720, 480, 60, false, Level31},
	{CEA, 3, 720, 480, 50, true, Level31},
	{CEA, 4, 720, 576, 50, false, Level31},
	{CEA, 5, 1280, 720, 30, true, Level31},
	{CEA, 6, 1280, 720, 60, true, Level32},
	{CEA, 7, 1280, 1080, 30, true, Level31},
	{CEA, 8, 1920, 1080, 60, true, Level42},
	{CEA, 9, 1920, 1080, 60, false, Level40},
	{CEA, 10, 1280, 720, 25, true, Level31},
	{CEA, 11, 1280, 720, 50, true, Level32},
	{CEA, 12, 1920, 1080, 25, true, Level31},
	{CEA, 13, 1920, 1080, 50, true, Level41},
	{CEA, 14, 1920, 1080, 50, false, Level40},
	{CEA, 15, 1280, 720, 24, true, Level31},
	{CEA, 16, 1920, 1080, 24, true, Level41},
	{CEA, 17, 3840, 2160, 30, true, Level41},
	{CEA, 18, 3840, 2160, 60, true, Level42},
	{CEA, 19, 4096, 2160, 30, true, Level41},
	{CEA, 20, 4096, 2160, 60, true, Level42},
	{CEA, 21, 3840, 2160, 25, true, Level41},
	{CEA, 22, 3840, 2160, 50, true, Level41},
	{CEA, 23, 4096, 2160, 25, true, Level41},
	{CEA, 24, 4086, 2160, 50, true, Level41},
	{CEA, 25, 4096, 2160, 24, true, Level41},
	{CEA, 26, 4096, 2160, 24, true, Level41},

	{VESA, 0, 800, 600, 30, true, Level31},
	{VESA, 1, 800, 600, 60, true, Level31},
	{VESA, 2, 1024, 768, 30, true, Level31},
	{VESA, 3, 1024, 768, 60, true, Level31},
	{VESA, 4, 1152, 854, 30, true, Level31},
	{VESA, 5, 1152, 854, 60, true, Level31},
	{VESA, 6, 1280, 768, 30, true, Level31},
	{VESA, 7, 1280, 768, 60, true, Level31},
	{VESA, 8, 1280, 800, 30, true, Level31},
	{VESA, 9, 1280, 800, 60, true, Level31},
	{VESA, 10, 1360, 768, 30, true, Level31},
	{VESA, 11, 1360, 768, 60, true, Level31},
	{VESA, 12, 1366, 768, 30, true, Level31},
	{VESA, 13, 1366, 768, 60, true, Level31},
	{VESA, 14, 1280, 1024, 30, true, Level31},
	{VESA, 15, 1280, 1024, 60, true, Level32},
	{VESA, 16, 1440, 1050, 30, true, Level31},
	{VESA, 17, 1440, 1050, 60, true, Level32},
	{VESA, 18, 1440, 900, 30, true, Level31},
	{VESA, 19, 1440, 900, 60, true, Level31},
	{VESA, 20, 1600, 900, 30, true, Level31},
	{VESA, 21, 1600, 900, 60, true, Level32},
	{VESA, 22, 1600, 1200, 30, true, Level31},
	{VESA, 23, 1600, 1200, 60, true, Level32},
	{VESA, 24, 1680, 1024, 30, true, Level31},
	{VESA, 25, 1680, 1024, 60, true, Level31},
	{VESA, 26, 1680, 1050, 30, true, Level31},
	{VESA, 27, 1680, 1050, 60, true, Level32},
	{VESA, 28, 1920, 1200, 30, true, Level31},

	{HH, 0, 800, 400, 30, true, Level31},
	{HH, 1, 800, 480, 60, true, Level31},
	{HH, 2, 854, 480, 30, true, Level31},
	{HH, 3, 854, 480, 60, true, Level31},
	{HH, 4, 864, 480, 30, true, Level31},
	{HH, 5, 864, 480, 60, true, Level31},
	{HH, 6, 640, 360, 30, true, Level31},
	{HH, 7, 640, 360, 60, true, Level31},
	{HH, 8, 960, 540, 30, true, Level31},
	{HH, 9, 960, 540, 60, true, Level31},
	{HH, 10, 848, 480, 30, true, Level31},
	{HH, 11, 848, 480, 60, true, Level31},
}

// lookup returns every resolution-table entry matching the given display
// mode (width/height/refresh/progressive), in table order. A platform mode
// can legally match more than one WFD mode-id (e.g. an identical pixel
// layout listed in both CEA and VESA); selectMode applies the VESA-over-CEA
// tie-break to whatever lookup returns.
func lookup(width, height, refresh int, progressive bool) []ResolutionMode {
	var matches []ResolutionMode
	for _, r := range resolutionTable {
		if r.Width == width && r.Height == height && r.Refresh == refresh && r.Progressive == progressive {
			matches = append(matches, r)
		}
	}
	return matches
}

package dam

import (
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// BuildInfo is what a GL node builder wrote into the GL label lump.
type BuildInfo struct {
	Level    string
	Builder  string
	Time     string
	Checksum string
}

// parseBuildInfo reads the KEY=value lines of a GL label lump. The text is
// code page 437, like the rest of a WAD. Unknown keys are ignored.
func parseBuildInfo(data []byte) *BuildInfo {
	if len(data) == 0 {
		return nil
	}
	text, err := charmap.CodePage437.NewDecoder().String(string(data))
	if err != nil {
		text = string(data)
	}

	info := &BuildInfo{}
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(strings.TrimRight(line, "\r\x00"), "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "LEVEL":
			info.Level = value
		case "BUILDER":
			info.Builder = value
		case "TIME":
			info.Time = value
		case "CHECKSUM":
			info.Checksum = value
		}
	}
	return info
}

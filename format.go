package dam

import (
	"strings"

	"github.com/pkg/errors"
)

// MapFormat selects the THINGS and LINEDEFS record layouts.
type MapFormat int

const (
	FormatDoom MapFormat = iota
	FormatHexen
)

func (f MapFormat) String() string {
	if f == FormatHexen {
		return "HEXEN"
	}
	return "DOOM"
}

// Format describes the record layouts detected for a map.
type Format struct {
	Map MapFormat
	// GLNodes is the GL node format generation (1-5), 0 without GL data.
	GLNodes int
	// ExtendedNodes is set when NODES carries a ZDoom extended node stream.
	ExtendedNodes bool
}

type lumpVersion struct {
	version int
	magic   string
}

type glNodeFormat struct {
	name      string
	lumps     [4]lumpVersion // indexed like glNodeClasses
	supported bool
}

var glNodeClasses = [4]LumpClass{LumpGLVert, LumpGLSegs, LumpGLSSect, LumpGLNodes}

// GL node generations, oldest first. Version numbers are record layouts, see
// records.go.
var glNodeFormats = [...]glNodeFormat{
	{"V1", [4]lumpVersion{{1, ""}, {2, ""}, {1, ""}, {1, ""}}, true},
	{"V2", [4]lumpVersion{{2, "gNd2"}, {2, ""}, {1, ""}, {1, ""}}, true},
	{"V3", [4]lumpVersion{{2, "gNd2"}, {3, "gNd3"}, {3, "gNd3"}, {1, ""}}, true},
	{"V4", [4]lumpVersion{{4, "gNd4"}, {4, ""}, {4, ""}, {4, ""}}, false},
	{"V5", [4]lumpVersion{{5, "gNd5"}, {5, ""}, {3, ""}, {4, ""}}, true},
}

const glMagicSize = 4

// ZDoom extended node signatures.
const (
	xnodMagic = "XNOD"
	znodMagic = "ZNOD"
)

func glClassSlot(c LumpClass) int {
	for i, gc := range glNodeClasses {
		if gc == c {
			return i
		}
	}
	return -1
}

// matchGLMagic compares a lump header against every magic the class can
// carry, newest version first.
func matchGLMagic(c LumpClass, magic string) (int, bool) {
	slot := glClassSlot(c)
	if slot < 0 || magic == "" {
		return 0, false
	}
	for g := len(glNodeFormats) - 1; g >= 0; g-- {
		lv := glNodeFormats[g].lumps[slot]
		if lv.magic != "" && lv.magic == magic {
			return lv.version, true
		}
	}
	return 0, false
}

// matchGLGeneration finds the newest generation every GL lump agrees with.
func matchGLGeneration(lumps []mapLump) (int, bool) {
next:
	for g := len(glNodeFormats) - 1; g >= 0; g-- {
		gen := glNodeFormats[g]
		for _, l := range lumps {
			slot := glClassSlot(l.Class)
			if slot < 0 {
				continue
			}
			want := gen.lumps[slot]
			if l.Pinned {
				if l.Version != want.version {
					continue next
				}
			} else if want.magic != "" {
				continue next
			}
		}
		return g + 1, true
	}
	return 0, false
}

// classVersion is the record layout a lump of class c uses when nothing
// about the lump itself pinned it.
func classVersion(f Format, c LumpClass) int {
	if slot := glClassSlot(c); slot >= 0 && f.GLNodes > 0 {
		return glNodeFormats[f.GLNodes-1].lumps[slot].version
	}
	if f.Map == FormatHexen && (c == LumpThings || c == LumpLinedefs) {
		return 2
	}
	return 1
}

func readMagic(c Container, lump int) (string, error) {
	if c.LumpLength(lump) < glMagicSize {
		return "", nil
	}
	b, err := c.ReadLumpSection(lump, 0, glMagicSize)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// detectFormat pins the record layout of every lump and works out the map
// and GL node formats. The lumps slice is updated in place.
func detectFormat(c Container, lumps []mapLump) (Format, []Defect, error) {
	var (
		f       Format
		defects []Defect
		glData  bool
	)
	for i := range lumps {
		l := &lumps[i]
		magic, err := readMagic(c, l.Lump)
		if err != nil {
			return f, defects, errors.Wrapf(err, "read %v header", l.Class)
		}
		switch {
		case l.Class == LumpBehavior:
			f.Map = FormatHexen
		case l.Class == LumpNodes && (magic == xnodMagic || magic == znodMagic):
			f.ExtendedNodes = true
		case glClassSlot(l.Class) >= 0:
			glData = true
			if v, ok := matchGLMagic(l.Class, magic); ok {
				l.Version, l.Header, l.Pinned = v, glMagicSize, true
			} else if strings.HasPrefix(magic, "gNd") {
				defects = append(defects, Defect{
					Kind: DefectNoGLMagic, Class: l.Class, Index: -1,
					Detail: "unsupported magic " + magic + ", assuming no header",
				})
			}
		}
	}

	if glData {
		gen, ok := matchGLGeneration(lumps)
		if !ok {
			return f, defects, ErrFormatIndeterminate
		}
		f.GLNodes = gen
		if !glNodeFormats[gen-1].supported {
			return f, defects, errors.Wrapf(ErrUnsupportedGLFormat, "GL nodes %s", glNodeFormats[gen-1].name)
		}
	}

	for i := range lumps {
		if !lumps[i].Pinned {
			lumps[i].Version = classVersion(f, lumps[i].Class)
		}
	}
	return f, defects, nil
}

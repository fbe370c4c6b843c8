package dam

import (
	"fmt"
	"strings"
)

// LumpClass identifies the kind of map data a lump carries.
type LumpClass int

const (
	LumpThings LumpClass = iota
	LumpLinedefs
	LumpSidedefs
	LumpVertexes
	LumpSegs
	LumpSSectors
	LumpNodes
	LumpSectors
	LumpReject
	LumpBlockmap
	LumpBehavior
	LumpGLVert
	LumpGLSegs
	LumpGLSSect
	LumpGLNodes
	LumpGLPVS
	LumpLabel
	numLumpClasses
)

// LumpGroup tells how the loader copes with a missing lump.
type LumpGroup int

const (
	GroupMapData  LumpGroup = iota // needed to build the map at all
	GroupBSPBuild                  // node builder output
	GroupDerived                   // may be synthesized
	GroupOther
)

func (g LumpGroup) String() string {
	switch g {
	case GroupMapData:
		return "MAPDATA"
	case GroupBSPBuild:
		return "BSPBUILD"
	case GroupDerived:
		return "DERIVED"
	}
	return "OTHER"
}

type lumpClassInfo struct {
	name  string
	gl    bool
	group LumpGroup
}

var lumpClasses = [numLumpClasses]lumpClassInfo{
	LumpThings:   {"THINGS", false, GroupMapData},
	LumpLinedefs: {"LINEDEFS", false, GroupMapData},
	LumpSidedefs: {"SIDEDEFS", false, GroupMapData},
	LumpVertexes: {"VERTEXES", false, GroupMapData},
	LumpSegs:     {"SEGS", false, GroupBSPBuild},
	LumpSSectors: {"SSECTORS", false, GroupBSPBuild},
	LumpNodes:    {"NODES", false, GroupBSPBuild},
	LumpSectors:  {"SECTORS", false, GroupMapData},
	LumpReject:   {"REJECT", false, GroupDerived},
	LumpBlockmap: {"BLOCKMAP", false, GroupDerived},
	LumpBehavior: {"BEHAVIOR", false, GroupOther},
	LumpGLVert:   {"GL_VERT", true, GroupBSPBuild},
	LumpGLSegs:   {"GL_SEGS", true, GroupBSPBuild},
	LumpGLSSect:  {"GL_SSECT", true, GroupBSPBuild},
	LumpGLNodes:  {"GL_NODES", true, GroupBSPBuild},
	LumpGLPVS:    {"GL_PVS", true, GroupOther},
	LumpLabel:    {"label", false, GroupOther},
}

func (c LumpClass) String() string {
	if inRange(c, len(lumpClasses)) {
		return lumpClasses[c].name
	}
	return fmt.Sprintf("LumpClass(%d)", int(c))
}

// Group returns the group the class belongs to.
func (c LumpClass) Group() LumpGroup {
	if inRange(c, len(lumpClasses)) {
		return lumpClasses[c].group
	}
	return GroupOther
}

// IsGL reports whether c is one of the GL node classes.
func (c LumpClass) IsGL() bool {
	return inRange(c, len(lumpClasses)) && lumpClasses[c].gl
}

const glPrefix = "GL_"

// lumpName normalizes a lump name the way WAD directories compare them.
func lumpName(name string) string {
	if len(name) > 8 {
		name = name[:8]
	}
	return strings.ToUpper(name)
}

// glLabelName returns the label of the GL node run that belongs to a map.
func glLabelName(mapID string) string {
	return lumpName(glPrefix + mapID)
}

// lumpClassForName finds the class of a lump in a base run (gl false) or a
// GL run (gl true).
func lumpClassForName(name string, gl bool) (LumpClass, bool) {
	name = lumpName(name)
	for c := LumpClass(0); c < LumpLabel; c++ {
		if lumpClasses[c].gl == gl && lumpClasses[c].name == name {
			return c, true
		}
	}
	return 0, false
}

// mapLump is one lump of a map together with what format detection pinned
// down about it.
type mapLump struct {
	Lump    int
	Class   LumpClass
	Version int  // record layout version
	Header  int  // bytes of magic to skip before the records
	Pinned  bool // version came from a magic number
}

// classifyLumps collects the map data lumps following the label lump. The
// run ends at the first name that is not a known class.
func classifyLumps(c Container, label int) []mapLump {
	gl := strings.HasPrefix(lumpName(c.LumpName(label)), glPrefix)
	var lumps []mapLump
	for i := label + 1; i < c.NumLumps(); i++ {
		class, ok := lumpClassForName(c.LumpName(i), gl)
		if !ok {
			break
		}
		lumps = append(lumps, mapLump{Lump: i, Class: class})
	}
	return lumps
}

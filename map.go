// Package dam loads Doom format maps from WAD-style lump containers and
// builds the derived structures the game and renderer need: resolved line and
// seg sectors, per-sector line and subsector lists, sector bounds, a blockmap
// and a reject matrix.
//
// Binary layouts follow the Unofficial DOOM Specs and the glBSP GL-Nodes
// formats, versions 1 to 5.
package dam

// Index types. Records refer to each other by index; the finisher fills in
// separate resolved fields rather than rewriting these.
type (
	VertexID    int32
	LineID      int32
	SideID      int32
	SectorID    int32
	SegID       int32
	SubsectorID int32
	NodeID      int32
)

// "No reference" values for each index type.
const (
	NoVertex    VertexID    = -1
	NoLine      LineID      = -1
	NoSide      SideID      = -1
	NoSector    SectorID    = -1
	NoSeg       SegID       = -1
	NoSubsector SubsectorID = -1
	NoNode      NodeID      = -1
)

type Vertex struct {
	X, Y Fixed
}

type Point struct {
	X, Y, Z Fixed
}

// BoundBox is an axis aligned box in fixed point map coordinates.
type BoundBox struct {
	Top, Bottom, Left, Right Fixed
}

// emptyBoundBox returns a box that any point will grow.
func emptyBoundBox() BoundBox {
	return BoundBox{Top: -1 << 31, Bottom: 1<<31 - 1, Left: 1<<31 - 1, Right: -1 << 31}
}

func (b *BoundBox) add(v Vertex) {
	b.Left = min(b.Left, v.X)
	b.Right = max(b.Right, v.X)
	b.Bottom = min(b.Bottom, v.Y)
	b.Top = max(b.Top, v.Y)
}

// BlockBox is a box in blockmap cell coordinates, inclusive.
type BlockBox struct {
	Top, Bottom, Left, Right int
}

// BlendMode is how a wall section is composited.
type BlendMode int

const (
	BlendNormal BlendMode = iota
	BlendAdd
	BlendSubtract
)

// RGBA is a color tint, components in [0, 1].
type RGBA [4]float32

// SideSection is one of the top, middle and bottom parts of a side.
type SideSection int

const (
	SectionTop SideSection = iota
	SectionMiddle
	SectionBottom
)

func (s SideSection) String() string {
	switch s {
	case SectionTop:
		return "top"
	case SectionMiddle:
		return "middle"
	}
	return "bottom"
}

// Surface is what gets drawn on a side section.
type Surface struct {
	Material MaterialID
	Tint     RGBA
	Blend    BlendMode
}

type Side struct {
	XOffset, YOffset Fixed
	Sections         [3]Surface // indexed by SideSection
	Sector           SectorID
}

// newSide returns a side with the render defaults set.
func newSide() Side {
	s := Side{Sector: NoSector}
	for i := range s.Sections {
		s.Sections[i] = Surface{Material: NoMaterial, Tint: RGBA{1, 1, 1, 1}, Blend: BlendNormal}
	}
	return s
}

// Plane is a sector floor or ceiling.
type Plane struct {
	Height Fixed
	// TargetHeight starts equal to Height; movers change it later.
	TargetHeight Fixed
	Material     MaterialID
	SoundOrigin  Point
}

type Sector struct {
	Floor, Ceiling Plane
	LightLevel     int

	// Derived by the finisher
	LineCount      int
	SubsectorCount int
	Lines          []LineID      // in line index order
	Subsectors     []SubsectorID // in subsector index order
	BoundingBox    BoundBox
	SoundOrigin    Point    // origin for any sounds played by the sector
	BlockBox       BlockBox // blockmap bounding box for height changes
}

type Thing struct {
	X, Y    Fixed
	Height  Fixed // HEXEN only
	Angle   int   // degrees
	Type    int
	Options int
}

// BAM returns the thing's facing as a binary angle.
func (t *Thing) BAM() Angle {
	return degreesToAngle(t.Angle)
}

// Unset markers for seg angle and offset, filled in by the finisher when the
// seg record did not carry them. Stored angles always have a zero low word
// and stored offsets are whole map units, so neither value can come from a
// lump.
const (
	unsetAngle  Angle   = 0xFFFFFFFF
	unsetOffset float64 = -0.5
)

type Seg struct {
	V       [2]VertexID
	Line    LineID  // NoLine for minisegs
	Side    int     // 0 front, 1 back of Line
	Partner SegID   // GL nodes only
	Offset  float64 // map units along the line to the start of the seg
	Angle   Angle

	// Derived by the finisher
	Length      float32
	SideDef     SideID
	FrontSector SectorID
	BackSector  SectorID
}

func newSeg() Seg {
	return Seg{
		V:           [2]VertexID{NoVertex, NoVertex},
		Line:        NoLine,
		Partner:     NoSeg,
		Offset:      unsetOffset,
		Angle:       unsetAngle,
		SideDef:     NoSide,
		FrontSector: NoSector,
		BackSector:  NoSector,
	}
}

type Subsector struct {
	SegCount int
	FirstSeg SegID
	Sector   SectorID // sector of the first seg with a side
}

// Child is a node child: another node or, when Subsector is set, a leaf.
type Child struct {
	Index     int32 // -1 when the reference was invalid
	Subsector bool
}

type Node struct {
	X, Y     Fixed // partition line
	DX, DY   Fixed
	BBox     [2]BoundBox // right, left
	Children [2]Child    // right, left
}

// Map is one loaded level. It owns every record collection.
type Map struct {
	ID        string
	Format    Format
	BuildInfo *BuildInfo

	Vertexes []Vertex
	// FirstGLVertex is the index of the first vertex read from GL_VERT.
	FirstGLVertex int
	Lines         []Line
	Sides         []Side
	Sectors       []Sector
	Things        []Thing
	Segs          []Seg
	Subsectors    []Subsector
	Nodes         []Node
	Blockmap      *Blockmap
	Reject        *Reject

	// MissingFronts counts lines without a usable front side.
	MissingFronts int
	Defects       []Defect

	sectorLines      []LineID
	sectorSubsectors []SubsectorID
}

// Vertex returns the vertex with the given id. The id must be valid.
func (m *Map) Vertex(id VertexID) Vertex {
	return m.Vertexes[id]
}

// RootNode returns the index of the BSP root, NoNode if the map has no nodes.
func (m *Map) RootNode() NodeID {
	return NodeID(len(m.Nodes) - 1)
}

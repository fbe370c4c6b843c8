package dam

// LineFlags is the linedef flags word.
type LineFlags uint16

const (
	LineBlocking      LineFlags = 0x0001 // blocks players and monsters
	LineBlockMonsters LineFlags = 0x0002
	LineTwoSided      LineFlags = 0x0004
	LineDontPegTop    LineFlags = 0x0008 // upper texture unpegged
	LineDontPegBottom LineFlags = 0x0010 // lower texture unpegged
	LineSecret        LineFlags = 0x0020 // shown as one-sided on the automap
	LineSoundBlock    LineFlags = 0x0040
	LineDontDraw      LineFlags = 0x0080 // never shown on the automap
	LineMapped        LineFlags = 0x0100 // always shown on the automap
)

type Line struct {
	V     [2]VertexID
	Flags LineFlags
	Sides [2]SideID // front, back; back is NoSide on one-sided lines

	// Derived by the finisher
	DX, DY       float64 // map units
	SlopeType    SlopeType
	BoundingBox  BoundBox
	FrontSector  SectorID
	BackSector   SectorID
	MissingFront bool // no usable front side; the line is kept but flagged
}

// TwoSided reports whether the line is flagged two-sided.
func (l *Line) TwoSided() bool {
	return l.Flags&LineTwoSided != 0
}

// FrontSide returns the front side id.
func (l *Line) FrontSide() SideID {
	return l.Sides[0]
}

// BackSide returns the back side id, NoSide on one-sided lines.
func (l *Line) BackSide() SideID {
	return l.Sides[1]
}

type SlopeType int

const (
	SlopeTypeHorizontal SlopeType = iota
	SlopeTypeVertical
	SlopeTypePositive
	SlopeTypeNegative
)

func (s SlopeType) String() string {
	switch s {
	case SlopeTypeHorizontal:
		return "horizontal"
	case SlopeTypeVertical:
		return "vertical"
	case SlopeTypePositive:
		return "positive"
	}
	return "negative"
}

// slopeTypeOf classifies a line direction.
func slopeTypeOf(dx, dy float64) SlopeType {
	switch {
	case dx == 0:
		return SlopeTypeVertical
	case dy == 0:
		return SlopeTypeHorizontal
	case (dy > 0) == (dx > 0):
		return SlopeTypePositive
	}
	return SlopeTypeNegative
}

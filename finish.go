package dam

import (
	"fmt"
	"math"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

// zeroSegLength stands in for the length of degenerate legacy segs, which
// the renderer divides by.
const zeroSegLength = 0.01

// finish cross-references the records read and derives everything the lumps
// do not store. Each step depends on the ones before it.
func (ctx *loadContext) finish() error {
	ctx.log.Debug("Finishing map ...")
	if err := ctx.finishSideMaterials(); err != nil {
		return err
	}
	ctx.finishLines()
	ctx.finishSegs()
	if err := ctx.groupSectors(); err != nil {
		return err
	}
	ctx.finishSectors()
	return nil
}

// finishSideMaterials resolves the sidedef texture names, which the reader
// leaves alone so that the hooks see every name.
func (ctx *loadContext) finishSideMaterials() error {
	l, ok := ctx.lump(LumpSidedefs)
	if !ok || len(ctx.m.Sides) == 0 {
		return nil
	}
	format, ok := recordFormat(l.Class, l.Version)
	if !ok {
		return ctx.lumpError(errors.Wrapf(ErrMalformedRecord, "no %v record layout version %d", l.Class, l.Version), l)
	}
	data, err := ctx.readLump(l)
	if err != nil {
		return err
	}

	n := min(len(ctx.m.Sides), len(data)/format.Size)
	for i := 0; i < n; i++ {
		rec := data[i*format.Size : (i+1)*format.Size]
		for j := range format.Fields {
			f := &format.Fields[j]
			if !f.Deferred || f.Kind != FieldMaterial {
				continue
			}
			v, err := decodeField(rec, l.Class, f)
			if err != nil {
				return ctx.lumpError(errors.WithMessagef(err, "record %d", i), l)
			}
			ctx.m.Sides[i].Sections[f.Slot].Material = ctx.sideMaterial(SideID(i), SideSection(f.Slot), v.NameString())
		}
	}
	return nil
}

func (ctx *loadContext) sideMaterial(side SideID, section SideSection, name string) MaterialID {
	id, ok := resolveMaterial(ctx.resolver, name, false)
	if ok {
		return id
	}
	if ctx.hooks.SideMaterial != nil {
		if id, ok := ctx.hooks.SideMaterial(side, section, name); ok {
			return id
		}
	}
	ctx.missingMaterial(LumpSidedefs, int(side), name)
	return MissingMaterial
}

// sideSector returns the sector of a side, NoSector for no side.
func (m *Map) sideSector(s SideID) SectorID {
	if !inRange(s, len(m.Sides)) {
		return NoSector
	}
	return m.Sides[s].Sector
}

// finishLines derives line geometry, resolves the sectors on either side and
// counts the lines of each sector.
func (ctx *loadContext) finishLines() {
	m := ctx.m
	for i := range m.Lines {
		l := &m.Lines[i]
		if inRange(l.V[0], len(m.Vertexes)) && inRange(l.V[1], len(m.Vertexes)) {
			v1, v2 := m.Vertexes[l.V[0]], m.Vertexes[l.V[1]]
			l.DX, l.DY = vertexDelta(v1, v2)
			l.SlopeType = slopeTypeOf(l.DX, l.DY)
			l.BoundingBox = emptyBoundBox()
			l.BoundingBox.add(v1)
			l.BoundingBox.add(v2)
		}

		l.FrontSector = m.sideSector(l.Sides[0])
		l.BackSector = m.sideSector(l.Sides[1])
		if l.FrontSector == NoSector {
			l.MissingFront = true
			m.MissingFronts++
			ctx.defect(DefectMissingFrontSide, LumpLinedefs, i, "line has no front sector")
		} else {
			m.Sectors[l.FrontSector].LineCount++
		}
		if l.BackSector != NoSector && l.BackSector != l.FrontSector {
			m.Sectors[l.BackSector].LineCount++
		}
	}
}

// finishSegs resolves seg sides and sectors and fills in what GL segs do
// not store.
func (ctx *loadContext) finishSegs() {
	m := ctx.m
	for i := range m.Segs {
		s := &m.Segs[i]
		validV := inRange(s.V[0], len(m.Vertexes)) && inRange(s.V[1], len(m.Vertexes))
		var v1, v2 Vertex
		if validV {
			v1, v2 = m.Vertexes[s.V[0]], m.Vertexes[s.V[1]]
		}

		if s.Line != NoLine {
			l := &m.Lines[s.Line]
			s.SideDef = l.Sides[s.Side]
			s.FrontSector = m.sideSector(s.SideDef)
			if other := l.Sides[s.Side^1]; other != NoSide && l.TwoSided() {
				s.BackSector = m.sideSector(other)
			} else {
				if l.TwoSided() {
					l.Flags &^= LineTwoSided
					ctx.defect(DefectTwoSidedWithoutBack, LumpLinedefs, int(s.Line), "two-sided flag cleared")
				}
				s.BackSector = NoSector
			}

			if s.Offset == unsetOffset && validV && inRange(l.V[s.Side], len(m.Vertexes)) {
				o := m.Vertexes[l.V[s.Side]]
				s.Offset = math.Hypot(vertexDelta(o, v1))
			}
		}
		if s.Offset == unsetOffset {
			s.Offset = 0
		}

		if validV {
			dx, dy := vertexDelta(v1, v2)
			if s.Angle == unsetAngle {
				s.Angle = PointToAngle(dx, dy)
			}
			s.Length = segLength(dx, dy)
		} else if s.Angle == unsetAngle {
			s.Angle = 0
		}
		if s.Length == 0 && ctx.legacySegs {
			s.Length = zeroSegLength
		}
	}
}

// vertexDelta returns b - a in map units. Vertexes far enough apart overflow
// a Fixed difference, so the subtraction is done in float64.
func vertexDelta(a, b Vertex) (dx, dy float64) {
	return b.X.Float() - a.X.Float(), b.Y.Float() - a.Y.Float()
}

// segLength is the length of (dx, dy) in map units.
func segLength(dx, dy float64) float32 {
	x, y := float32(dx), float32(dy)
	return math32.Sqrt(x*x + y*y)
}

// groupSectors assigns each subsector to a sector and builds the per sector
// line and subsector lists. The lists share two buffers sized from the
// counts, so a list outgrowing its count is an error.
func (ctx *loadContext) groupSectors() error {
	m := ctx.m

	for i := range m.Subsectors {
		ss := &m.Subsectors[i]
		ss.Sector = NoSector
		for j := 0; j < ss.SegCount; j++ {
			seg := &m.Segs[int(ss.FirstSeg)+j]
			if sec := m.sideSector(seg.SideDef); sec != NoSector {
				ss.Sector = sec
				break
			}
		}
		if ss.Sector == NoSector {
			ctx.defect(DefectUnownedSubsector, LumpSSectors, i, "no seg with a sidedef")
			continue
		}
		m.Sectors[ss.Sector].SubsectorCount++
	}

	lines, subsectors := 0, 0
	for i := range m.Sectors {
		lines += m.Sectors[i].LineCount
		subsectors += m.Sectors[i].SubsectorCount
	}
	m.sectorLines = make([]LineID, lines)
	m.sectorSubsectors = make([]SubsectorID, subsectors)
	lines, subsectors = 0, 0
	for i := range m.Sectors {
		s := &m.Sectors[i]
		s.Lines = m.sectorLines[lines:lines:lines+s.LineCount]
		lines += s.LineCount
		s.Subsectors = m.sectorSubsectors[subsectors:subsectors:subsectors+s.SubsectorCount]
		subsectors += s.SubsectorCount
	}

	addLine := func(sec SectorID, id LineID) error {
		s := &m.Sectors[sec]
		if len(s.Lines) == cap(s.Lines) {
			return errors.Wrapf(ErrMiscountedLines, "sector %d: more than %d lines", sec, s.LineCount)
		}
		s.Lines = append(s.Lines, id)
		return nil
	}
	for i := range m.Lines {
		l := &m.Lines[i]
		if l.FrontSector != NoSector {
			if err := addLine(l.FrontSector, LineID(i)); err != nil {
				return err
			}
		}
		if l.BackSector != NoSector && l.BackSector != l.FrontSector {
			if err := addLine(l.BackSector, LineID(i)); err != nil {
				return err
			}
		}
	}

	for i := range m.Subsectors {
		sec := m.Subsectors[i].Sector
		if sec == NoSector {
			continue
		}
		s := &m.Sectors[sec]
		if len(s.Subsectors) == cap(s.Subsectors) {
			return errors.Wrapf(ErrMiscountedSubsectors, "sector %d: more than %d subsectors", sec, s.SubsectorCount)
		}
		s.Subsectors = append(s.Subsectors, SubsectorID(i))
	}

	for i := range m.Sectors {
		s := &m.Sectors[i]
		if len(s.Lines) != s.LineCount {
			return errors.Wrapf(ErrMiscountedLines, "sector %d: %d lines, counted %d", i, len(s.Lines), s.LineCount)
		}
		if len(s.Subsectors) != s.SubsectorCount {
			return errors.Wrapf(ErrMiscountedSubsectors, "sector %d: %d subsectors, counted %d", i, len(s.Subsectors), s.SubsectorCount)
		}
	}
	return nil
}

// finishSectors derives sector bounds, sound origins and block boxes.
func (ctx *loadContext) finishSectors() {
	m := ctx.m
	for i := range m.Sectors {
		s := &m.Sectors[i]
		s.Floor.TargetHeight = s.Floor.Height
		s.Ceiling.TargetHeight = s.Ceiling.Height

		if len(s.Lines) == 0 {
			ctx.defect(DefectBenignSector, LumpSectors, i, "sector has no lines")
			if ctx.hooks.BenignSector != nil {
				ctx.hooks.BenignSector(SectorID(i))
			}
			continue
		}

		bbox := emptyBoundBox()
		for _, id := range s.Lines {
			for _, v := range m.Lines[id].V {
				if inRange(v, len(m.Vertexes)) {
					bbox.add(m.Vertexes[v])
				}
			}
		}
		s.BoundingBox = bbox

		// set the sound origin to the middle of the bounding box
		s.SoundOrigin = Point{
			X: Fixed((int64(bbox.Right) + int64(bbox.Left)) / 2),
			Y: Fixed((int64(bbox.Top) + int64(bbox.Bottom)) / 2),
			Z: Fixed((int64(s.Ceiling.Height) - int64(s.Floor.Height)) / 2),
		}
		s.Floor.SoundOrigin = s.SoundOrigin
		s.Ceiling.SoundOrigin = s.SoundOrigin

		if m.Blockmap != nil {
			s.BlockBox = m.Blockmap.blockBox(bbox)
		}
	}
}

// String summarizes a map.
func (m *Map) String() string {
	return fmt.Sprintf("%s (%v, GL nodes %d): %d vertexes, %d lines, %d sides, %d sectors, %d things, %d segs, %d subsectors, %d nodes",
		m.ID, m.Format.Map, m.Format.GLNodes, len(m.Vertexes), len(m.Lines), len(m.Sides), len(m.Sectors),
		len(m.Things), len(m.Segs), len(m.Subsectors), len(m.Nodes))
}

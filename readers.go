package dam

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// readOrder is the order record classes are read in. Each class only refers
// to classes read before it, apart from seg partners.
var readOrder = [...]LumpClass{
	LumpVertexes,
	LumpSectors,
	LumpSidedefs,
	LumpLinedefs,
	LumpBlockmap,
	LumpThings,
	LumpSegs,
	LumpSSectors,
	LumpNodes,
	LumpReject,
}

// effectiveClasses returns the lump classes that supply a requested class.
// With GL data the BSP classes come from the GL lumps instead, and the GL
// vertexes are appended to the map's own.
func effectiveClasses(class LumpClass, gl bool) []LumpClass {
	if gl {
		switch class {
		case LumpVertexes:
			return []LumpClass{LumpVertexes, LumpGLVert}
		case LumpSegs:
			return []LumpClass{LumpGLSegs}
		case LumpSSectors:
			return []LumpClass{LumpGLSSect}
		case LumpNodes:
			return []LumpClass{LumpGLNodes}
		}
	}
	return []LumpClass{class}
}

func (ctx *loadContext) readMapData() error {
	for _, class := range readOrder {
		var err error
		switch class {
		case LumpBlockmap:
			err = ctx.loadBlockmap()
		case LumpReject:
			err = ctx.loadReject()
		default:
			err = ctx.readClass(class)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readClass reads every lump supplying class. The destination slice is
// grown once for all of them so indices handed out stay valid.
func (ctx *loadContext) readClass(class LumpClass) error {
	gl := ctx.m.Format.GLNodes > 0
	if class.Group() == GroupBSPBuild && ctx.m.Format.ExtendedNodes && !gl {
		ctx.defect(DefectExtendedNodes, class, -1, "ZDoom extended nodes not decoded")
		return nil
	}

	var lumps []mapLump
	for _, c := range effectiveClasses(class, gl) {
		l, ok := ctx.lump(c)
		if !ok {
			if c.Group() == GroupMapData && c != LumpThings {
				return errors.Wrapf(ErrMissingLump, "map %s: %v (%v)", ctx.m.ID, c, c.Group())
			}
			ctx.defect(DefectMissingLump, c, -1, c.Group().String()+" lump not present")
			continue
		}
		lumps = append(lumps, l)
	}

	counts := make([]int, len(lumps))
	total := 0
	for i, l := range lumps {
		n, err := ctx.recordCount(l)
		if err != nil {
			return ctx.lumpError(err, l)
		}
		counts[i] = n
		total += n
	}
	ctx.reserve(class, total)

	for i, l := range lumps {
		ctx.log.Debugf("Reading %v ...", l.Class)
		data, err := ctx.readLump(l)
		if err != nil {
			return err
		}
		base := ctx.grow(l.Class, counts[i])
		if err := ctx.decodeLump(l, data, base, counts[i]); err != nil {
			return ctx.lumpError(err, l)
		}
		switch l.Class {
		case LumpVertexes:
			ctx.m.FirstGLVertex = len(ctx.m.Vertexes)
		case LumpSegs:
			ctx.legacySegs = true
		}
		ctx.log.Debugf("Read %v %v", counts[i], l.Class)
	}

	ctx.validate(class)
	return nil
}

// recordCount returns the number of whole records in a lump.
func (ctx *loadContext) recordCount(l mapLump) (int, error) {
	format, ok := recordFormat(l.Class, l.Version)
	if !ok {
		return 0, errors.Wrapf(ErrMalformedRecord, "no %v record layout version %d", l.Class, l.Version)
	}
	payload := max(ctx.c.LumpLength(l.Lump)-l.Header, 0)
	if rem := payload % format.Size; rem != 0 {
		ctx.defect(DefectTrailingBytes, l.Class, -1,
			fmt.Sprintf("%d bytes after the last %d byte record", rem, format.Size))
	}
	return payload / format.Size, nil
}

// reserve makes room for n more records of class.
func (ctx *loadContext) reserve(class LumpClass, n int) {
	m := ctx.m
	switch class {
	case LumpVertexes, LumpGLVert:
		m.Vertexes = slices.Grow(m.Vertexes, n)
	case LumpSectors:
		m.Sectors = slices.Grow(m.Sectors, n)
	case LumpSidedefs:
		m.Sides = slices.Grow(m.Sides, n)
	case LumpLinedefs:
		m.Lines = slices.Grow(m.Lines, n)
	case LumpThings:
		m.Things = slices.Grow(m.Things, n)
	case LumpSegs, LumpGLSegs:
		m.Segs = slices.Grow(m.Segs, n)
	case LumpSSectors, LumpGLSSect:
		m.Subsectors = slices.Grow(m.Subsectors, n)
	case LumpNodes, LumpGLNodes:
		m.Nodes = slices.Grow(m.Nodes, n)
	}
}

// grow appends n records of class, each with its defaults set, and returns
// the index of the first.
func (ctx *loadContext) grow(class LumpClass, n int) int {
	m := ctx.m
	var base int
	switch class {
	case LumpVertexes, LumpGLVert:
		base = len(m.Vertexes)
		m.Vertexes = append(m.Vertexes, make([]Vertex, n)...)
	case LumpSectors:
		base = len(m.Sectors)
		m.Sectors = append(m.Sectors, make([]Sector, n)...)
	case LumpSidedefs:
		base = len(m.Sides)
		for i := 0; i < n; i++ {
			m.Sides = append(m.Sides, newSide())
		}
	case LumpLinedefs:
		base = len(m.Lines)
		for i := 0; i < n; i++ {
			m.Lines = append(m.Lines, Line{
				V:           [2]VertexID{NoVertex, NoVertex},
				Sides:       [2]SideID{NoSide, NoSide},
				FrontSector: NoSector,
				BackSector:  NoSector,
			})
		}
	case LumpThings:
		base = len(m.Things)
		m.Things = append(m.Things, make([]Thing, n)...)
	case LumpSegs, LumpGLSegs:
		base = len(m.Segs)
		for i := 0; i < n; i++ {
			m.Segs = append(m.Segs, newSeg())
		}
	case LumpSSectors, LumpGLSSect:
		base = len(m.Subsectors)
		for i := 0; i < n; i++ {
			m.Subsectors = append(m.Subsectors, Subsector{Sector: NoSector})
		}
	case LumpNodes, LumpGLNodes:
		base = len(m.Nodes)
		m.Nodes = append(m.Nodes, make([]Node, n)...)
	}
	return base
}

// decodeLump decodes up to n records of a lump into the records starting at
// base. Deferred fields are left for the finisher.
func (ctx *loadContext) decodeLump(l mapLump, data []byte, base, n int) error {
	format, ok := recordFormat(l.Class, l.Version)
	if !ok {
		return errors.Wrapf(ErrMalformedRecord, "no %v record layout version %d", l.Class, l.Version)
	}
	apply := ctx.applier(l.Class)
	payload := data[min(l.Header, len(data)):]
	n = min(n, len(payload)/format.Size)
	for i := 0; i < n; i++ {
		rec := payload[i*format.Size : (i+1)*format.Size]
		for j := range format.Fields {
			f := &format.Fields[j]
			if f.Deferred {
				continue
			}
			v, err := decodeField(rec, l.Class, f)
			if err != nil {
				return errors.WithMessagef(err, "record %d", i)
			}
			if f.Prop == PropGame {
				if ctx.hooks.GameProperty != nil {
					ctx.hooks.GameProperty(l.Class, base+i, f.Name, v.Int)
				}
				continue
			}
			apply(base+i, f, v)
		}
	}
	return nil
}

type applyFunc func(i int, f *FieldSpec, v Value)

func (ctx *loadContext) applier(class LumpClass) applyFunc {
	switch class {
	case LumpVertexes, LumpGLVert:
		return ctx.applyVertex
	case LumpSectors:
		return ctx.applySector
	case LumpSidedefs:
		return ctx.applySide
	case LumpLinedefs:
		return ctx.applyLine
	case LumpThings:
		return ctx.applyThing
	case LumpSegs, LumpGLSegs:
		return ctx.applySeg
	case LumpSSectors, LumpGLSSect:
		return ctx.applySubsector
	case LumpNodes, LumpGLNodes:
		return ctx.applyNode
	}
	return func(int, *FieldSpec, Value) {}
}

// ref checks an index read from class record i against a collection of n
// records. Out of range indices become -1.
func (ctx *loadContext) ref(v int64, n int, class LumpClass, i int, what string) int32 {
	if v < 0 {
		return -1
	}
	if !inRange(v, n) {
		ctx.defect(DefectBadIndex, class, i, fmt.Sprintf("%s %d out of range [0,%d)", what, v, n))
		return -1
	}
	return int32(v)
}

// material resolves a name, reporting each unknown name once.
func (ctx *loadContext) material(class LumpClass, i int, name string, flat bool) MaterialID {
	id, ok := resolveMaterial(ctx.resolver, name, flat)
	if !ok {
		ctx.missingMaterial(class, i, name)
	}
	return id
}

func (ctx *loadContext) missingMaterial(class LumpClass, i int, name string) {
	if ctx.missingMaterials[name] {
		return
	}
	ctx.missingMaterials[name] = true
	ctx.defect(DefectMissingMaterial, class, i, fmt.Sprintf("unknown material %q", name))
}

func (ctx *loadContext) applyVertex(i int, f *FieldSpec, v Value) {
	vx := &ctx.m.Vertexes[i]
	switch f.Prop {
	case PropX:
		vx.X = Fixed(v.Int)
	case PropY:
		vx.Y = Fixed(v.Int)
	}
}

func (ctx *loadContext) applySector(i int, f *FieldSpec, v Value) {
	s := &ctx.m.Sectors[i]
	switch f.Prop {
	case PropFloorHeight:
		s.Floor.Height = Fixed(v.Int)
		s.Floor.TargetHeight = s.Floor.Height
	case PropCeilingHeight:
		s.Ceiling.Height = Fixed(v.Int)
		s.Ceiling.TargetHeight = s.Ceiling.Height
	case PropFloorMaterial:
		s.Floor.Material = ctx.material(LumpSectors, i, v.NameString(), true)
	case PropCeilingMaterial:
		s.Ceiling.Material = ctx.material(LumpSectors, i, v.NameString(), true)
	case PropLightLevel:
		s.LightLevel = int(v.Int)
	}
}

func (ctx *loadContext) applySide(i int, f *FieldSpec, v Value) {
	s := &ctx.m.Sides[i]
	switch f.Prop {
	case PropXOffset:
		s.XOffset = Fixed(v.Int)
	case PropYOffset:
		s.YOffset = Fixed(v.Int)
	case PropSector:
		s.Sector = SectorID(ctx.ref(v.Int, len(ctx.m.Sectors), LumpSidedefs, i, "sector"))
	}
}

func (ctx *loadContext) applyLine(i int, f *FieldSpec, v Value) {
	l := &ctx.m.Lines[i]
	switch f.Prop {
	case PropVertex:
		l.V[f.Slot] = VertexID(ctx.ref(v.Int, len(ctx.m.Vertexes), LumpLinedefs, i, f.Name))
	case PropFlags:
		l.Flags = LineFlags(v.Int)
	case PropSide:
		l.Sides[f.Slot] = SideID(ctx.ref(v.Int, len(ctx.m.Sides), LumpLinedefs, i, f.Name))
	}
}

func (ctx *loadContext) applyThing(i int, f *FieldSpec, v Value) {
	t := &ctx.m.Things[i]
	switch f.Prop {
	case PropX:
		t.X = Fixed(v.Int)
	case PropY:
		t.Y = Fixed(v.Int)
	case PropHeight:
		t.Height = Fixed(v.Int)
	case PropAngle:
		t.Angle = int(v.Int)
	case PropType:
		t.Type = int(v.Int)
	case PropOptions:
		t.Options = int(v.Int)
	}
}

func (ctx *loadContext) applySeg(i int, f *FieldSpec, v Value) {
	m := ctx.m
	s := &m.Segs[i]
	switch f.Prop {
	case PropVertex:
		idx := v.Int
		if v.Flag {
			idx += int64(m.FirstGLVertex)
		}
		s.V[f.Slot] = VertexID(ctx.ref(idx, len(m.Vertexes), LumpSegs, i, f.Name))
	case PropAngle:
		s.Angle = Angle(v.Int)
	case PropLine:
		s.Line = LineID(ctx.ref(v.Int, len(m.Lines), LumpSegs, i, "linedef"))
	case PropSide:
		s.Side = int(v.Int)
	case PropOffset:
		s.Offset = Fixed(v.Int).Float()
	case PropPartner:
		// Checked once every seg is read.
		s.Partner = SegID(v.Int)
	}
}

func (ctx *loadContext) applySubsector(i int, f *FieldSpec, v Value) {
	ss := &ctx.m.Subsectors[i]
	switch f.Prop {
	case PropSegCount:
		ss.SegCount = int(v.Int)
	case PropFirstSeg:
		ss.FirstSeg = SegID(v.Int)
	}
}

func (ctx *loadContext) applyNode(i int, f *FieldSpec, v Value) {
	n := &ctx.m.Nodes[i]
	switch f.Prop {
	case PropX:
		n.X = Fixed(v.Int)
	case PropY:
		n.Y = Fixed(v.Int)
	case PropDX:
		n.DX = Fixed(v.Int)
	case PropDY:
		n.DY = Fixed(v.Int)
	case PropBBox:
		box := &n.BBox[f.Slot/4]
		switch f.Slot % 4 {
		case 0:
			box.Top = Fixed(v.Int)
		case 1:
			box.Bottom = Fixed(v.Int)
		case 2:
			box.Left = Fixed(v.Int)
		case 3:
			box.Right = Fixed(v.Int)
		}
	case PropChild:
		n.Children[f.Slot] = Child{Index: int32(v.Int), Subsector: v.Flag}
	}
}

// validate checks references that could not be checked while reading.
func (ctx *loadContext) validate(class LumpClass) {
	m := ctx.m
	switch class {
	case LumpSegs:
		for i := range m.Segs {
			s := &m.Segs[i]
			if s.Partner != NoSeg && !inRange(s.Partner, len(m.Segs)) {
				ctx.defect(DefectBadIndex, LumpSegs, i, fmt.Sprintf("partner %d out of range", s.Partner))
				s.Partner = NoSeg
			}
			if s.Side != 0 && s.Side != 1 {
				ctx.defect(DefectBadIndex, LumpSegs, i, fmt.Sprintf("side %d", s.Side))
				s.Side = 0
			}
		}

	case LumpSSectors:
		for i := range m.Subsectors {
			ss := &m.Subsectors[i]
			if ss.SegCount == 0 {
				continue
			}
			switch {
			case !inRange(ss.FirstSeg, len(m.Segs)):
				ctx.defect(DefectBadIndex, LumpSSectors, i, fmt.Sprintf("first seg %d out of range", ss.FirstSeg))
				ss.FirstSeg, ss.SegCount = 0, 0
			case int(ss.FirstSeg)+ss.SegCount > len(m.Segs):
				ctx.defect(DefectBadIndex, LumpSSectors, i, fmt.Sprintf("%d segs from %d overrun %d", ss.SegCount, ss.FirstSeg, len(m.Segs)))
				ss.SegCount = len(m.Segs) - int(ss.FirstSeg)
			}
		}

	case LumpNodes:
		for i := range m.Nodes {
			for side := range m.Nodes[i].Children {
				c := &m.Nodes[i].Children[side]
				n := len(m.Nodes)
				if c.Subsector {
					n = len(m.Subsectors)
				}
				if c.Index >= 0 && !inRange(c.Index, n) {
					ctx.defect(DefectBadIndex, LumpNodes, i, fmt.Sprintf("child %d out of range", c.Index))
					c.Index = -1
				}
			}
		}
	}
}

// loadBlockmap reads the BLOCKMAP lump or builds a blockmap, as the config
// allows.
func (ctx *loadContext) loadBlockmap() error {
	m, cfg := ctx.m, ctx.config
	l, ok := ctx.lump(LumpBlockmap)
	switch {
	case cfg.ForceBlockmapRegeneration:
		ctx.log.Debug("Blockmap regeneration forced")
	case !ok:
		ctx.defect(DefectMissingLump, LumpBlockmap, -1, GroupDerived.String()+" lump not present")
	case ctx.c.LumpLength(l.Lump)/2 >= maxBlockmapWords && cfg.AllowBlockmapRegeneration:
		ctx.log.Debug("Blockmap too large for signed offsets, rebuilding")
	default:
		ctx.log.Debug("Reading blockmap ...")
		data, err := ctx.readLump(l)
		if err != nil {
			return err
		}
		b, err := parseBlockmap(data, len(m.Lines))
		if err == nil {
			m.Blockmap = b
			ctx.log.Debugf("Read %v blocks", len(b.Blocks))
			return nil
		}
		ctx.defect(DefectBlockmap, LumpBlockmap, -1, err.Error())
	}

	if !cfg.ForceBlockmapRegeneration && !cfg.AllowBlockmapRegeneration {
		ctx.defect(DefectBlockmap, LumpBlockmap, -1, "no usable blockmap and regeneration disabled")
		return nil
	}
	m.Blockmap = BuildBlockmap(m.Vertexes, m.Lines)
	ctx.log.Debugf("Built %vx%v blockmap", m.Blockmap.Columns, m.Blockmap.Rows)
	return nil
}

// loadReject reads or synthesizes the reject matrix.
func (ctx *loadContext) loadReject() error {
	l, ok := ctx.lump(LumpReject)
	var data []byte
	if !ok {
		ctx.defect(DefectMissingLump, LumpReject, -1, GroupDerived.String()+" lump not present")
	} else if !ctx.config.ForceRejectRegeneration {
		var err error
		if data, err = ctx.readLump(l); err != nil {
			return err
		}
	}
	r, err := checkReject(data, ok, len(ctx.m.Sectors), ctx.config)
	if err != nil {
		return ctx.lumpError(err, l)
	}
	ctx.m.Reject = r
	if r != nil && r.Generated {
		ctx.log.Debugf("Synthesized reject for %v sectors", r.NumSectors)
	}
	return nil
}

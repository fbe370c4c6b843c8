package dam

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestLoadSquare(t *testing.T) {
	loader := NewLoader(squareMap(), testResolver, DefaultConfig(), Hooks{})
	m, err := loader.Load("e1m1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loader.Current() != m {
		t.Error("loaded map is not current")
	}
	if m.Format.Map != FormatDoom || m.Format.GLNodes != 0 {
		t.Errorf("format = %+v, want DOOM without GL nodes", m.Format)
	}

	for _, c := range []LumpClass{LumpSegs, LumpSSectors, LumpNodes, LumpBlockmap, LumpReject} {
		if !hasDefect(m, DefectMissingLump, c) {
			t.Errorf("no missing lump defect for %v", c)
		}
	}

	if len(m.Vertexes) != 4 || len(m.Lines) != 4 || len(m.Sides) != 4 || len(m.Sectors) != 1 || len(m.Things) != 1 {
		t.Fatalf("counts: %v", m)
	}

	s := &m.Sectors[0]
	if s.LineCount != 4 {
		t.Errorf("LineCount = %d, want 4", s.LineCount)
	}
	for i, id := range s.Lines {
		if id != LineID(i) {
			t.Errorf("Lines = %v, want line index order", s.Lines)
			break
		}
	}
	if s.BlockBox != (BlockBox{}) {
		t.Errorf("BlockBox = %+v, want all zero", s.BlockBox)
	}
	want := Point{X: IntToFixed(32), Y: IntToFixed(32), Z: IntToFixed(64)}
	if s.SoundOrigin != want {
		t.Errorf("SoundOrigin = %+v, want %+v", s.SoundOrigin, want)
	}
	if s.Floor.SoundOrigin != want || s.Ceiling.SoundOrigin != want {
		t.Error("plane sound origins differ from the sector's")
	}
	if s.Floor.Material != 3 || s.Ceiling.Material != 4 {
		t.Errorf("flats = %v, %v, want 3, 4", s.Floor.Material, s.Ceiling.Material)
	}
	if s.Ceiling.TargetHeight != s.Ceiling.Height || s.Ceiling.Height != IntToFixed(128) {
		t.Errorf("ceiling = %+v", s.Ceiling)
	}
	if s.LightLevel != 160 {
		t.Errorf("LightLevel = %d, want 160", s.LightLevel)
	}

	side := &m.Sides[2]
	if side.Sections[SectionMiddle].Material != 7 {
		t.Errorf("middle material = %v, want 7", side.Sections[SectionMiddle].Material)
	}
	if side.Sections[SectionTop].Material != NoMaterial || side.Sections[SectionBottom].Material != NoMaterial {
		t.Errorf("top, bottom = %v, %v, want NoMaterial", side.Sections[SectionTop].Material, side.Sections[SectionBottom].Material)
	}
	if side.Sections[SectionTop].Tint != (RGBA{1, 1, 1, 1}) {
		t.Errorf("tint = %v", side.Sections[SectionTop].Tint)
	}

	l := &m.Lines[1]
	if l.SlopeType != SlopeTypeVertical || l.DY != 64 || l.FrontSector != 0 || l.BackSector != NoSector {
		t.Errorf("line 1 = %+v", l)
	}

	b := m.Blockmap
	if b == nil || !b.Generated || b.Columns != 1 || b.Rows != 1 {
		t.Fatalf("Blockmap = %+v, want a generated 1x1 grid", b)
	}
	if got := b.Block(0, 0).Lines; len(got) != 4 {
		t.Errorf("block lines = %v, want all four", got)
	}

	if m.Reject == nil || !m.Reject.Generated || len(m.Reject.Data) != 1 || m.Reject.Data[0] != 0 {
		t.Errorf("Reject = %+v, want one zero byte", m.Reject)
	}

	th := m.Things[0]
	if th.X != IntToFixed(32) || th.Angle != 90 || th.BAM() != Angle90 || th.Type != 1 || th.Options != 7 {
		t.Errorf("thing = %+v", th)
	}
}

// glSquareMap adds version 2 GL nodes to the square. Line 0 is split at a GL
// vertex at (32, 0); one subsector holds every seg.
func glSquareMap() *memContainer {
	c := squareMap()
	c.add("GL_E1M1", []byte("LEVEL=E1M1\nBUILDER=glBSP 2.24\nTIME=2007-05-01\nCHECKSUM=0x1234\n"))
	c.add("GL_VERT", cat([]byte("gNd2"), le32(32<<16, 0)))
	c.add("GL_SEGS", cat(
		le16(0, 0x8000, 0, 0, 0xFFFF),
		le16(0x8000, 1, 0, 0, 0xFFFF),
		le16(1, 2, 1, 0, 0xFFFF),
		le16(2, 3, 2, 0, 0xFFFF),
		le16(3, 0, 3, 0, 0xFFFF),
	))
	c.add("GL_SSECT", le16(5, 0))
	c.add("GL_NODES", nil)
	return c
}

func TestLoadGLNodes(t *testing.T) {
	m, err := NewLoader(glSquareMap(), testResolver, DefaultConfig(), Hooks{}).Load("E1M1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Format.GLNodes != 2 {
		t.Errorf("GLNodes = %d, want 2", m.Format.GLNodes)
	}
	if m.BuildInfo == nil || m.BuildInfo.Builder != "glBSP 2.24" || m.BuildInfo.Level != "E1M1" {
		t.Errorf("BuildInfo = %+v", m.BuildInfo)
	}
	if hasDefect(m, DefectMissingLump, LumpSegs) {
		t.Error("GL segs should stand in for SEGS")
	}

	if len(m.Vertexes) != 5 || m.FirstGLVertex != 4 {
		t.Fatalf("vertexes = %d, first GL = %d, want 5, 4", len(m.Vertexes), m.FirstGLVertex)
	}
	if v := m.Vertex(4); v.X != IntToFixed(32) || v.Y != 0 {
		t.Errorf("GL vertex = %+v", v)
	}

	if len(m.Segs) != 5 {
		t.Fatalf("segs = %d, want 5", len(m.Segs))
	}
	s0, s1, s2 := &m.Segs[0], &m.Segs[1], &m.Segs[2]
	if s0.V[1] != 4 || s1.V[0] != 4 {
		t.Errorf("GL vertex refs = %v, %v", s0.V, s1.V)
	}
	if s0.Offset != 0 || s1.Offset != 32 {
		t.Errorf("offsets = %v, %v, want 0, 32", s0.Offset, s1.Offset)
	}
	if s0.Angle != 0 || s2.Angle != Angle90 {
		t.Errorf("angles = %#x, %#x", s0.Angle, s2.Angle)
	}
	if s1.Length != 32 || s2.Length != 64 {
		t.Errorf("lengths = %v, %v, want 32, 64", s1.Length, s2.Length)
	}
	if s0.SideDef != 0 || s0.FrontSector != 0 || s0.BackSector != NoSector {
		t.Errorf("seg 0 = %+v", s0)
	}

	if m.Subsectors[0].Sector != 0 || m.Sectors[0].SubsectorCount != 1 {
		t.Errorf("subsector sector = %d, count = %d", m.Subsectors[0].Sector, m.Sectors[0].SubsectorCount)
	}
	if got := m.Sectors[0].Subsectors; len(got) != 1 || got[0] != 0 {
		t.Errorf("sector subsectors = %v", got)
	}
}

// glV5SquareMap adds version 5 GL nodes to the square: 32-bit seg vertex
// refs, two subsectors and one node splitting the room at y = 32.
func glV5SquareMap() *memContainer {
	const gl = 0x80000000
	c := squareMap()
	c.add("GL_E1M1", nil)
	c.add("GL_VERT", cat([]byte("gNd5"), le32(32<<16, 0)))
	c.add("GL_SEGS", cat(
		le32(0, gl|0), le16(0, 0), le32(0xFFFFFFFF),
		le32(gl|0, 1), le16(0, 0), le32(0xFFFFFFFF),
		le32(1, 2), le16(1, 0), le32(0xFFFFFFFF),
		le32(2, 3), le16(2, 0), le32(0xFFFFFFFF),
		le32(3, 0), le16(3, 0), le32(0xFFFFFFFF),
	))
	c.add("GL_SSECT", le32(3, 0, 2, 3))
	c.add("GL_NODES", cat(
		le16(0, 32, 64, 0),
		le16(64, 32, 0, 64),
		le16(32, 0, 0, 64),
		le32(gl|0, gl|1),
	))
	return c
}

func TestLoadGLNodesV5(t *testing.T) {
	m, err := NewLoader(glV5SquareMap(), testResolver, DefaultConfig(), Hooks{}).Load("E1M1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Format.GLNodes != 5 {
		t.Errorf("GLNodes = %d, want 5", m.Format.GLNodes)
	}
	if hasDefect(m, DefectBadIndex, LumpSegs) || hasDefect(m, DefectBadIndex, LumpSSectors) || hasDefect(m, DefectBadIndex, LumpNodes) {
		t.Errorf("defects = %v", m.Defects)
	}

	if len(m.Vertexes) != 5 || m.FirstGLVertex != 4 {
		t.Fatalf("vertexes = %d, first GL = %d, want 5, 4", len(m.Vertexes), m.FirstGLVertex)
	}
	if len(m.Segs) != 5 {
		t.Fatalf("segs = %d, want 5", len(m.Segs))
	}
	s0, s1 := &m.Segs[0], &m.Segs[1]
	if s0.V != [2]VertexID{0, 4} || s1.V != [2]VertexID{4, 1} {
		t.Errorf("GL vertex refs = %v, %v", s0.V, s1.V)
	}
	if s1.Offset != 32 || s1.Length != 32 || s0.Partner != NoSeg {
		t.Errorf("seg 1 = %+v", s1)
	}
	if s := &m.Segs[4]; s.Line != 3 || s.Angle != 0xC0000000 || s.Length != 64 {
		t.Errorf("seg 4 = %+v", s)
	}

	if len(m.Subsectors) != 2 {
		t.Fatalf("subsectors = %d, want 2", len(m.Subsectors))
	}
	if ss := m.Subsectors[1]; ss.FirstSeg != 3 || ss.SegCount != 2 || ss.Sector != 0 {
		t.Errorf("subsector 1 = %+v", ss)
	}
	if m.Sectors[0].SubsectorCount != 2 {
		t.Errorf("sector subsectors = %d, want 2", m.Sectors[0].SubsectorCount)
	}

	if len(m.Nodes) != 1 {
		t.Fatalf("nodes = %d, want 1", len(m.Nodes))
	}
	n := &m.Nodes[0]
	if n.Y != IntToFixed(32) || n.DX != IntToFixed(64) || n.BBox[0].Bottom != IntToFixed(32) || n.BBox[1].Top != IntToFixed(32) {
		t.Errorf("node = %+v", n)
	}
	if n.Children != [2]Child{{Index: 0, Subsector: true}, {Index: 1, Subsector: true}} {
		t.Errorf("children = %+v", n.Children)
	}
}

func TestLoadMapNotFound(t *testing.T) {
	loader := NewLoader(squareMap(), testResolver, DefaultConfig(), Hooks{})
	first, err := loader.Load("E1M1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := loader.Load("E1M2"); !errors.Is(err, ErrMapNotFound) {
		t.Errorf("err = %v, want ErrMapNotFound", err)
	}
	if loader.Current() != first {
		t.Error("failed load replaced the current map")
	}
}

func TestLoadMissingRequiredLump(t *testing.T) {
	c := new(memContainer).
		add("MAP01", nil).
		add("THINGS", squareThings).
		add("LINEDEFS", squareLines).
		add("SIDEDEFS", squareSides).
		add("VERTEXES", squareVertexes)
	_, err := NewLoader(c, testResolver, DefaultConfig(), Hooks{}).Load("MAP01")
	if !errors.Is(err, ErrMissingLump) {
		t.Fatalf("err = %v, want ErrMissingLump", err)
	}
	if !strings.Contains(err.Error(), "SECTORS") {
		t.Errorf("error %q does not name the lump", err)
	}
}

func TestLoadShortRejectWithoutRegeneration(t *testing.T) {
	c := squareMap().add("REJECT", nil)
	cfg := DefaultConfig()
	cfg.AllowRejectRegeneration = false
	loader := NewLoader(c, testResolver, cfg, Hooks{})
	_, err := loader.Load("E1M1")
	if !errors.Is(err, ErrInvalidRejectData) {
		t.Fatalf("err = %v, want ErrInvalidRejectData", err)
	}
	if !strings.Contains(err.Error(), "REJECT") {
		t.Errorf("error %q does not name the lump", err)
	}
	if loader.Current() != nil {
		t.Error("failed load installed a map")
	}
}

func TestLoadWithoutBlockmapRegeneration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowBlockmapRegeneration = false
	m, err := NewLoader(squareMap(), testResolver, cfg, Hooks{}).Load("E1M1")
	if err != nil {
		t.Fatal(err)
	}
	if m.Blockmap != nil {
		t.Error("blockmap built with regeneration disabled")
	}
	if !hasDefect(m, DefectBlockmap, LumpBlockmap) {
		t.Error("no blockmap defect")
	}
	if m.Sectors[0].BlockBox != (BlockBox{}) {
		t.Errorf("BlockBox = %+v without a blockmap", m.Sectors[0].BlockBox)
	}
}

func TestLoadBlockmapLump(t *testing.T) {
	built := BuildBlockmap([]Vertex{{0, 0}, {IntToFixed(64), IntToFixed(64)}}, []Line{{V: [2]VertexID{0, 1}}, {V: [2]VertexID{1, 0}}, {V: [2]VertexID{0, 1}}, {V: [2]VertexID{1, 0}}})
	lump, err := built.Bytes()
	if err != nil {
		t.Fatal(err)
	}

	c := squareMap().add("BLOCKMAP", lump)
	m, err := NewLoader(c, testResolver, DefaultConfig(), Hooks{}).Load("E1M1")
	if err != nil {
		t.Fatal(err)
	}
	if m.Blockmap == nil || m.Blockmap.Generated {
		t.Fatalf("Blockmap = %+v, want the lump's", m.Blockmap)
	}
	if len(m.Blockmap.Block(0, 0).Lines) != 4 {
		t.Errorf("block lines = %v", m.Blockmap.Block(0, 0).Lines)
	}

	cfg := DefaultConfig()
	cfg.ForceBlockmapRegeneration = true
	m, err = NewLoader(c, testResolver, cfg, Hooks{}).Load("E1M1")
	if err != nil {
		t.Fatal(err)
	}
	if !m.Blockmap.Generated {
		t.Error("forced regeneration used the lump")
	}
}

func TestLoadBadBlockmapIsRebuilt(t *testing.T) {
	c := squareMap().add("BLOCKMAP", le16(0, 0, 4, 4))
	m, err := NewLoader(c, testResolver, DefaultConfig(), Hooks{}).Load("E1M1")
	if err != nil {
		t.Fatal(err)
	}
	if !hasDefect(m, DefectBlockmap, LumpBlockmap) || m.Blockmap == nil || !m.Blockmap.Generated {
		t.Errorf("Blockmap = %+v, want a rebuilt one and a defect", m.Blockmap)
	}
}

func TestLoadHexenGameProperties(t *testing.T) {
	c := new(memContainer).
		add("MAP01", nil).
		add("THINGS", cat(le16(5, 32, 32, 8, 180, 3001, 7), []byte{80, 1, 2, 3, 4, 5})).
		add("LINEDEFS", cat(
			le16(0, 1, 1), []byte{12, 9, 0, 0, 0, 0}, le16(0, 0xFFFF),
			le16(1, 2, 1), []byte{0, 0, 0, 0, 0, 0}, le16(1, 0xFFFF),
			le16(2, 3, 1), []byte{0, 0, 0, 0, 0, 0}, le16(2, 0xFFFF),
			le16(3, 0, 1), []byte{0, 0, 0, 0, 0, 0}, le16(3, 0xFFFF),
		)).
		add("SIDEDEFS", squareSides).
		add("VERTEXES", squareVertexes).
		add("SECTORS", squareSectors).
		add("BEHAVIOR", []byte("ACS\x00"))

	props := map[string]int64{}
	hooks := Hooks{GameProperty: func(class LumpClass, index int, name string, value int64) {
		if index == 0 {
			props[class.String()+" "+name] = value
		}
	}}
	m, err := NewLoader(c, testResolver, DefaultConfig(), hooks).Load("MAP01")
	if err != nil {
		t.Fatal(err)
	}
	if m.Format.Map != FormatHexen {
		t.Fatalf("format = %v, want HEXEN", m.Format.Map)
	}
	th := m.Things[0]
	if th.X != IntToFixed(32) || th.Height != IntToFixed(8) || th.Angle != 180 || th.Type != 3001 || th.Options != 7 {
		t.Errorf("thing = %+v", th)
	}
	want := map[string]int64{
		"THINGS tid": 5, "THINGS special": 80, "THINGS arg1": 1, "THINGS arg5": 5,
		"LINEDEFS special": 12, "LINEDEFS arg1": 9,
	}
	for k, v := range want {
		if props[k] != v {
			t.Errorf("%s = %d, want %d", k, props[k], v)
		}
	}
	if m.Lines[0].Sides[0] != 0 || m.Lines[0].Sides[1] != NoSide {
		t.Errorf("line sides = %v", m.Lines[0].Sides)
	}
}

func TestLoadHooks(t *testing.T) {
	sides := cat(
		cat(le16(0, 0), name8("-"), name8("-"), name8("SW1BRN1"), le16(0)),
		squareSide, squareSide, squareSide,
	)
	c := new(memContainer).
		add("E1M1", nil).
		add("THINGS", squareThings).
		add("LINEDEFS", squareLines).
		add("SIDEDEFS", sides).
		add("VERTEXES", squareVertexes).
		add("SECTORS", cat(squareSectors, squareSectors))

	var asked []string
	var benign []SectorID
	hooks := Hooks{
		SideMaterial: func(side SideID, section SideSection, name string) (MaterialID, bool) {
			asked = append(asked, name)
			return 99, name == "SW1BRN1"
		},
		BenignSector: func(s SectorID) { benign = append(benign, s) },
	}
	m, err := NewLoader(c, testResolver, DefaultConfig(), hooks).Load("E1M1")
	if err != nil {
		t.Fatal(err)
	}
	if len(asked) != 1 || asked[0] != "SW1BRN1" {
		t.Errorf("SideMaterial asked about %v", asked)
	}
	if m.Sides[0].Sections[SectionMiddle].Material != 99 {
		t.Errorf("material = %v, want 99", m.Sides[0].Sections[SectionMiddle].Material)
	}
	if len(benign) != 1 || benign[0] != 1 {
		t.Errorf("benign sectors = %v, want [1]", benign)
	}
	if !hasDefect(m, DefectBenignSector, LumpSectors) {
		t.Error("no benign sector defect")
	}
}

func TestLoadMissingMaterial(t *testing.T) {
	m, err := NewLoader(squareMap(), nil, DefaultConfig(), Hooks{}).Load("E1M1")
	if err != nil {
		t.Fatal(err)
	}
	if m.Sides[0].Sections[SectionMiddle].Material != MissingMaterial {
		t.Errorf("material = %v, want MissingMaterial", m.Sides[0].Sections[SectionMiddle].Material)
	}
	if m.Sectors[0].Floor.Material != MissingMaterial {
		t.Errorf("floor = %v, want MissingMaterial", m.Sectors[0].Floor.Material)
	}
	n := 0
	for _, d := range m.Defects {
		if d.Kind == DefectMissingMaterial {
			n++
		}
	}
	if n != 3 {
		t.Errorf("%d missing material defects, want one per name", n)
	}
}

func TestLoadExtendedNodes(t *testing.T) {
	c := squareMap().
		add("SEGS", nil).
		add("SSECTORS", nil).
		add("NODES", []byte("XNOD\x00\x00\x00\x00"))
	m, err := NewLoader(c, testResolver, DefaultConfig(), Hooks{}).Load("E1M1")
	if err != nil {
		t.Fatal(err)
	}
	if !m.Format.ExtendedNodes {
		t.Error("extended nodes not detected")
	}
	if !hasDefect(m, DefectExtendedNodes, LumpNodes) || len(m.Nodes) != 0 {
		t.Errorf("nodes = %d, defects = %v", len(m.Nodes), m.Defects)
	}
}

func TestLoadBadIndexes(t *testing.T) {
	lines := cat(squareLines, le16(0, 9, 1, 0, 0, 7, 0xFFFF))
	c := new(memContainer).
		add("E1M1", nil).
		add("THINGS", squareThings).
		add("LINEDEFS", lines).
		add("SIDEDEFS", squareSides).
		add("VERTEXES", squareVertexes).
		add("SECTORS", squareSectors)
	m, err := NewLoader(c, testResolver, DefaultConfig(), Hooks{}).Load("E1M1")
	if err != nil {
		t.Fatal(err)
	}
	l := &m.Lines[4]
	if l.V[1] != NoVertex || l.Sides[0] != NoSide {
		t.Errorf("line 4 = %+v, want invalid refs dropped", l)
	}
	if !l.MissingFront || m.MissingFronts != 1 {
		t.Errorf("MissingFront = %v, MissingFronts = %d", l.MissingFront, m.MissingFronts)
	}
	if m.Sectors[0].LineCount != 4 {
		t.Errorf("LineCount = %d, want 4", m.Sectors[0].LineCount)
	}
	if !hasDefect(m, DefectBadIndex, LumpLinedefs) || !hasDefect(m, DefectMissingFrontSide, LumpLinedefs) {
		t.Errorf("defects = %v", m.Defects)
	}
}

func TestLoadTrailingBytes(t *testing.T) {
	c := new(memContainer).
		add("E1M1", nil).
		add("THINGS", squareThings).
		add("LINEDEFS", squareLines).
		add("SIDEDEFS", squareSides).
		add("VERTEXES", cat(squareVertexes, []byte{1, 2})).
		add("SECTORS", squareSectors)
	m, err := NewLoader(c, testResolver, DefaultConfig(), Hooks{}).Load("E1M1")
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Vertexes) != 4 || !hasDefect(m, DefectTrailingBytes, LumpVertexes) {
		t.Errorf("vertexes = %d, defects = %v", len(m.Vertexes), m.Defects)
	}
}

func TestEffectiveClasses(t *testing.T) {
	tests := []struct {
		class LumpClass
		gl    bool
		want  []LumpClass
	}{
		{LumpVertexes, false, []LumpClass{LumpVertexes}},
		{LumpVertexes, true, []LumpClass{LumpVertexes, LumpGLVert}},
		{LumpSegs, true, []LumpClass{LumpGLSegs}},
		{LumpSSectors, true, []LumpClass{LumpGLSSect}},
		{LumpNodes, true, []LumpClass{LumpGLNodes}},
		{LumpNodes, false, []LumpClass{LumpNodes}},
		{LumpThings, true, []LumpClass{LumpThings}},
	}
	for _, tt := range tests {
		got := effectiveClasses(tt.class, tt.gl)
		if len(got) != len(tt.want) {
			t.Errorf("effectiveClasses(%v, %v) = %v, want %v", tt.class, tt.gl, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("effectiveClasses(%v, %v) = %v, want %v", tt.class, tt.gl, got, tt.want)
			}
		}
	}
}

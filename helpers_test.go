package dam

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

type memLump struct {
	name string
	data []byte
}

// memContainer is an in-memory lump directory.
type memContainer struct {
	lumps []memLump
}

func (c *memContainer) add(name string, data []byte) *memContainer {
	c.lumps = append(c.lumps, memLump{lumpName(name), data})
	return c
}

func (c *memContainer) NumLumps() int            { return len(c.lumps) }
func (c *memContainer) LumpName(lump int) string { return c.lumps[lump].name }
func (c *memContainer) LumpLength(lump int) int  { return len(c.lumps[lump].data) }
func (c *memContainer) ReadLump(lump int) ([]byte, error) {
	return append([]byte(nil), c.lumps[lump].data...), nil
}

func (c *memContainer) ReadLumpSection(lump, offset, length int) ([]byte, error) {
	data := c.lumps[lump].data
	if offset+length > len(data) {
		return nil, errors.New("read past end of lump")
	}
	return append([]byte(nil), data[offset:offset+length]...), nil
}

func (c *memContainer) CheckNumForName(name string) int {
	name = lumpName(name)
	for i := len(c.lumps) - 1; i >= 0; i-- {
		if c.lumps[i].name == name {
			return i
		}
	}
	return -1
}

type memResolver struct {
	textures map[string]int
	flats    map[string]int
}

func (r memResolver) TextureNumForName(name string) (int, bool) {
	n, ok := r.textures[name]
	return n, ok
}

func (r memResolver) FlatNumForName(name string) (int, bool) {
	n, ok := r.flats[name]
	return n, ok
}

var testResolver = memResolver{
	textures: map[string]int{"STARTAN3": 7, "DOOR3": 8},
	flats:    map[string]int{"FLOOR4_8": 3, "CEIL3_5": 4},
}

func le16(vs ...int) []byte {
	b := make([]byte, 2*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(v))
	}
	return b
}

func le32(vs ...int) []byte {
	b := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(b[4*i:], uint32(v))
	}
	return b
}

func name8(s string) []byte {
	b := make([]byte, 8)
	copy(b, s)
	return b
}

func cat(parts ...[]byte) []byte {
	var b []byte
	for _, p := range parts {
		b = append(b, p...)
	}
	return b
}

// Records of a 64x64 square room: four one-sided lines, four sides, one
// sector.
var (
	squareVertexes = le16(0, 0, 64, 0, 64, 64, 0, 64)
	squareSectors  = cat(le16(0, 128), name8("FLOOR4_8"), name8("CEIL3_5"), le16(160, 0, 0))
	squareSide     = cat(le16(0, 0), name8("-"), name8("-"), name8("STARTAN3"), le16(0))
	squareSides    = cat(squareSide, squareSide, squareSide, squareSide)
	squareLines    = cat(
		le16(0, 1, 1, 0, 0, 0, 0xFFFF),
		le16(1, 2, 1, 0, 0, 1, 0xFFFF),
		le16(2, 3, 1, 0, 0, 2, 0xFFFF),
		le16(3, 0, 1, 0, 0, 3, 0xFFFF),
	)
	squareThings = le16(32, 32, 90, 1, 7)
)

// squareMap returns a DOOM format E1M1 with no node builder output,
// blockmap or reject.
func squareMap() *memContainer {
	return new(memContainer).
		add("E1M1", nil).
		add("THINGS", squareThings).
		add("LINEDEFS", squareLines).
		add("SIDEDEFS", squareSides).
		add("VERTEXES", squareVertexes).
		add("SECTORS", squareSectors)
}

// testContext returns a load context around m, for running single steps.
func testContext(m *Map) *loadContext {
	ctx := newLoadContext(NewLoader(new(memContainer), testResolver, DefaultConfig(), Hooks{}), m.ID)
	ctx.m = m
	return ctx
}

func hasDefect(m *Map, kind DefectKind, class LumpClass) bool {
	for _, d := range m.Defects {
		if d.Kind == kind && d.Class == class {
			return true
		}
	}
	return false
}

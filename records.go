package dam

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"
)

// FieldKind says how the bytes of a field turn into a value.
type FieldKind int

const (
	FieldInt       FieldKind = iota // 1, 2 or 4 byte integer
	FieldFixed                      // integer shifted into fixed point
	FieldAngle                      // 2 byte binary angle, high word of an Angle
	FieldIndex                      // index, all bits set means no reference
	FieldVertexRef                  // vertex index, Mask bits mark a GL vertex
	FieldChild                      // node child, Mask bits mark a subsector
	FieldMaterial                   // 8 byte texture or flat name
)

// Property is the destination of a decoded field.
type Property int

const (
	PropX Property = iota
	PropY
	PropHeight
	PropAngle
	PropType
	PropOptions
	PropVertex // Slot: 0 start, 1 end
	PropFlags
	PropSide // Slot: 0 front, 1 back
	PropXOffset
	PropYOffset
	PropMaterial // Slot: SideSection
	PropSector
	PropFloorHeight
	PropCeilingHeight
	PropFloorMaterial
	PropCeilingMaterial
	PropLightLevel
	PropLine
	PropOffset
	PropPartner
	PropSegCount
	PropFirstSeg
	PropDX
	PropDY
	PropBBox  // Slot: right top, bottom, left, right, then the same for left
	PropChild // Slot: 0 right, 1 left
	PropGame  // not interpreted, passed to Hooks.GameProperty
)

// FieldSpec describes one field of a fixed size record.
type FieldSpec struct {
	Name     string
	Kind     FieldKind
	Offset   int
	Size     int
	Unsigned bool
	Shift    uint   // FieldFixed
	Mask     uint32 // FieldVertexRef, FieldChild
	Flat     bool   // FieldMaterial: look up a flat, not a wall texture
	Deferred bool   // decoded by the finisher rather than the reader
	Prop     Property
	Slot     int
}

// RecordFormat is the layout of one record class in one version.
type RecordFormat struct {
	Class   LumpClass
	Version int
	Size    int
	Fields  []FieldSpec
}

// Value is a decoded field.
type Value struct {
	Int  int64
	Flag bool // FieldVertexRef, FieldChild: a mask bit was set
	Name [8]byte
}

// NameString returns a material name the way lookups want it.
func (v Value) NameString() string {
	n := v.Name[:]
	if i := bytes.IndexByte(n, 0); i >= 0 {
		n = n[:i]
	}
	return strings.ToUpper(string(n))
}

func intField(name string, off, size int, unsigned bool, p Property) FieldSpec {
	return FieldSpec{Name: name, Kind: FieldInt, Offset: off, Size: size, Unsigned: unsigned, Prop: p}
}

func fixedField(name string, off, size int, p Property, slot int) FieldSpec {
	shift := uint(FracBits)
	if size == 4 {
		shift = 0
	}
	return FieldSpec{Name: name, Kind: FieldFixed, Offset: off, Size: size, Shift: shift, Prop: p, Slot: slot}
}

func indexField(name string, off, size int, p Property, slot int) FieldSpec {
	return FieldSpec{Name: name, Kind: FieldIndex, Offset: off, Size: size, Unsigned: true, Prop: p, Slot: slot}
}

func vertexField(name string, off, size int, mask uint32, slot int) FieldSpec {
	return FieldSpec{Name: name, Kind: FieldVertexRef, Offset: off, Size: size, Unsigned: true, Mask: mask, Prop: PropVertex, Slot: slot}
}

func childField(name string, off, size int, mask uint32, slot int) FieldSpec {
	return FieldSpec{Name: name, Kind: FieldChild, Offset: off, Size: size, Unsigned: true, Mask: mask, Prop: PropChild, Slot: slot}
}

func materialField(name string, off int, p Property, slot int, flat, deferred bool) FieldSpec {
	return FieldSpec{Name: name, Kind: FieldMaterial, Offset: off, Size: 8, Flat: flat, Deferred: deferred, Prop: p, Slot: slot}
}

func gameField(name string, off, size int, unsigned bool) FieldSpec {
	return FieldSpec{Name: name, Kind: FieldInt, Offset: off, Size: size, Unsigned: unsigned, Prop: PropGame}
}

const (
	glVertexBit16 = 0x8000
	glVertexBits  = 0xC0000000
	childBit16    = 0x8000
	childBits     = 0xC0000000
)

var (
	vertexesV1 = []FieldSpec{
		fixedField("x", 0, 2, PropX, 0),
		fixedField("y", 2, 2, PropY, 0),
	}
	glVertexesV2 = []FieldSpec{
		fixedField("x", 0, 4, PropX, 0),
		fixedField("y", 4, 4, PropY, 0),
	}
	glSegsV3 = []FieldSpec{
		vertexField("v1", 0, 4, glVertexBits, 0),
		vertexField("v2", 4, 4, glVertexBits, 1),
		indexField("linedef", 8, 2, PropLine, 0),
		intField("side", 10, 2, true, PropSide),
		indexField("partner", 12, 4, PropPartner, 0),
	}
	subsectorsV1 = []FieldSpec{
		intField("numsegs", 0, 2, true, PropSegCount),
		intField("firstseg", 2, 2, true, PropFirstSeg),
	}
	subsectorsV3 = []FieldSpec{
		intField("numsegs", 0, 4, true, PropSegCount),
		intField("firstseg", 4, 4, true, PropFirstSeg),
	}
)

func nodeFields(childSize int, mask uint32) []FieldSpec {
	fs := []FieldSpec{
		fixedField("x", 0, 2, PropX, 0),
		fixedField("y", 2, 2, PropY, 0),
		fixedField("dx", 4, 2, PropDX, 0),
		fixedField("dy", 6, 2, PropDY, 0),
	}
	names := [4]string{"top", "bottom", "left", "right"}
	for i := 0; i < 8; i++ {
		side := "right"
		if i >= 4 {
			side = "left"
		}
		fs = append(fs, fixedField("bbox "+side+" "+names[i%4], 8+2*i, 2, PropBBox, i))
	}
	return append(fs,
		childField("right child", 24, childSize, mask, 0),
		childField("left child", 24+childSize, childSize, mask, 1))
}

var recordFormats = []RecordFormat{
	{LumpThings, 1, 10, []FieldSpec{
		fixedField("x", 0, 2, PropX, 0),
		fixedField("y", 2, 2, PropY, 0),
		intField("angle", 4, 2, false, PropAngle),
		intField("type", 6, 2, true, PropType),
		intField("options", 8, 2, true, PropOptions),
	}},
	{LumpThings, 2, 20, []FieldSpec{
		gameField("tid", 0, 2, false),
		fixedField("x", 2, 2, PropX, 0),
		fixedField("y", 4, 2, PropY, 0),
		fixedField("height", 6, 2, PropHeight, 0),
		intField("angle", 8, 2, false, PropAngle),
		intField("type", 10, 2, true, PropType),
		intField("options", 12, 2, true, PropOptions),
		gameField("special", 14, 1, true),
		gameField("arg1", 15, 1, true),
		gameField("arg2", 16, 1, true),
		gameField("arg3", 17, 1, true),
		gameField("arg4", 18, 1, true),
		gameField("arg5", 19, 1, true),
	}},
	{LumpLinedefs, 1, 14, []FieldSpec{
		indexField("v1", 0, 2, PropVertex, 0),
		indexField("v2", 2, 2, PropVertex, 1),
		intField("flags", 4, 2, true, PropFlags),
		gameField("special", 6, 2, false),
		gameField("tag", 8, 2, false),
		indexField("front sidedef", 10, 2, PropSide, 0),
		indexField("back sidedef", 12, 2, PropSide, 1),
	}},
	{LumpLinedefs, 2, 16, []FieldSpec{
		indexField("v1", 0, 2, PropVertex, 0),
		indexField("v2", 2, 2, PropVertex, 1),
		intField("flags", 4, 2, true, PropFlags),
		gameField("special", 6, 1, true),
		gameField("arg1", 7, 1, true),
		gameField("arg2", 8, 1, true),
		gameField("arg3", 9, 1, true),
		gameField("arg4", 10, 1, true),
		gameField("arg5", 11, 1, true),
		indexField("front sidedef", 12, 2, PropSide, 0),
		indexField("back sidedef", 14, 2, PropSide, 1),
	}},
	{LumpSidedefs, 1, 30, []FieldSpec{
		fixedField("x offset", 0, 2, PropXOffset, 0),
		fixedField("y offset", 2, 2, PropYOffset, 0),
		materialField("top texture", 4, PropMaterial, int(SectionTop), false, true),
		materialField("bottom texture", 12, PropMaterial, int(SectionBottom), false, true),
		materialField("middle texture", 20, PropMaterial, int(SectionMiddle), false, true),
		indexField("sector", 28, 2, PropSector, 0),
	}},
	{LumpVertexes, 1, 4, vertexesV1},
	{LumpGLVert, 1, 4, vertexesV1},
	{LumpGLVert, 2, 8, glVertexesV2},
	{LumpGLVert, 4, 8, glVertexesV2},
	{LumpGLVert, 5, 8, glVertexesV2},
	{LumpSectors, 1, 26, []FieldSpec{
		fixedField("floor height", 0, 2, PropFloorHeight, 0),
		fixedField("ceiling height", 2, 2, PropCeilingHeight, 0),
		materialField("floor flat", 4, PropFloorMaterial, 0, true, false),
		materialField("ceiling flat", 12, PropCeilingMaterial, 0, true, false),
		intField("light level", 20, 2, false, PropLightLevel),
		gameField("special", 22, 2, false),
		gameField("tag", 24, 2, false),
	}},
	{LumpSegs, 1, 12, []FieldSpec{
		vertexField("v1", 0, 2, 0, 0),
		vertexField("v2", 2, 2, 0, 1),
		{Name: "angle", Kind: FieldAngle, Offset: 4, Size: 2, Unsigned: true, Prop: PropAngle},
		indexField("linedef", 6, 2, PropLine, 0),
		intField("side", 8, 2, true, PropSide),
		fixedField("offset", 10, 2, PropOffset, 0),
	}},
	{LumpGLSegs, 2, 10, []FieldSpec{
		vertexField("v1", 0, 2, glVertexBit16, 0),
		vertexField("v2", 2, 2, glVertexBit16, 1),
		indexField("linedef", 4, 2, PropLine, 0),
		intField("side", 6, 2, true, PropSide),
		indexField("partner", 8, 2, PropPartner, 0),
	}},
	{LumpGLSegs, 3, 16, glSegsV3},
	{LumpGLSegs, 4, 16, glSegsV3},
	{LumpGLSegs, 5, 16, glSegsV3},
	{LumpSSectors, 1, 4, subsectorsV1},
	{LumpGLSSect, 1, 4, subsectorsV1},
	{LumpGLSSect, 3, 8, subsectorsV3},
	{LumpGLSSect, 4, 8, subsectorsV3},
	{LumpNodes, 1, 28, nodeFields(2, childBit16)},
	{LumpGLNodes, 1, 28, nodeFields(2, childBit16)},
	{LumpGLNodes, 4, 32, nodeFields(4, childBits)},
}

// recordFormat returns the layout of class in the given version.
func recordFormat(class LumpClass, version int) (*RecordFormat, bool) {
	for i := range recordFormats {
		if recordFormats[i].Class == class && recordFormats[i].Version == version {
			return &recordFormats[i], true
		}
	}
	return nil, false
}

func malformed(class LumpClass, f *FieldSpec, format string, args ...any) error {
	return errors.Wrapf(ErrMalformedRecord, "%v field %q: "+format, append([]any{class, f.Name}, args...)...)
}

func allOnes(size int) uint64 {
	return 1<<(8*uint(size)) - 1
}

// decodeField reads one field of rec.
func decodeField(rec []byte, class LumpClass, f *FieldSpec) (Value, error) {
	var v Value
	if f.Offset < 0 || f.Offset+f.Size > len(rec) {
		return v, malformed(class, f, "bytes %d-%d outside %d byte record", f.Offset, f.Offset+f.Size, len(rec))
	}
	b := rec[f.Offset : f.Offset+f.Size]

	if f.Kind == FieldMaterial {
		if f.Size != len(v.Name) {
			return v, malformed(class, f, "name field of %d bytes", f.Size)
		}
		copy(v.Name[:], b)
		return v, nil
	}

	var (
		u uint64
		s int64
	)
	switch f.Size {
	case 1:
		u, s = uint64(b[0]), int64(int8(b[0]))
	case 2:
		x := binary.LittleEndian.Uint16(b)
		u, s = uint64(x), int64(int16(x))
	case 4:
		x := binary.LittleEndian.Uint32(b)
		u, s = uint64(x), int64(int32(x))
	default:
		return v, malformed(class, f, "unsupported size %d", f.Size)
	}
	n := s
	if f.Unsigned {
		n = int64(u)
	}

	switch f.Kind {
	case FieldInt:
		v.Int = n
	case FieldFixed:
		v.Int = n << f.Shift
	case FieldAngle:
		if f.Size != 2 {
			return v, malformed(class, f, "angle of %d bytes", f.Size)
		}
		v.Int = int64(u << 16)
	case FieldIndex:
		if u == allOnes(f.Size) {
			v.Int = -1
		} else {
			v.Int = int64(u)
		}
	case FieldVertexRef, FieldChild:
		if u&uint64(f.Mask) != 0 {
			v.Flag = true
			u &^= uint64(f.Mask)
		}
		v.Int = int64(u)
	default:
		return v, malformed(class, f, "unknown kind %d", f.Kind)
	}
	return v, nil
}

// encodeField is the inverse of decodeField.
func encodeField(rec []byte, class LumpClass, f *FieldSpec, v Value) error {
	if f.Offset < 0 || f.Offset+f.Size > len(rec) {
		return malformed(class, f, "bytes %d-%d outside %d byte record", f.Offset, f.Offset+f.Size, len(rec))
	}
	b := rec[f.Offset : f.Offset+f.Size]

	if f.Kind == FieldMaterial {
		if f.Size != len(v.Name) {
			return malformed(class, f, "name field of %d bytes", f.Size)
		}
		copy(b, v.Name[:])
		return nil
	}

	var u uint64
	switch f.Kind {
	case FieldInt:
		u = uint64(v.Int)
	case FieldFixed:
		u = uint64(v.Int >> f.Shift)
	case FieldAngle:
		u = uint64(v.Int) >> 16
	case FieldIndex:
		if v.Int < 0 {
			u = allOnes(f.Size)
		} else {
			u = uint64(v.Int)
		}
	case FieldVertexRef, FieldChild:
		u = uint64(v.Int)
		if v.Flag {
			u |= uint64(f.Mask)
		}
	default:
		return malformed(class, f, "unknown kind %d", f.Kind)
	}

	switch f.Size {
	case 1:
		b[0] = byte(u)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(u))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(u))
	default:
		return malformed(class, f, "unsupported size %d", f.Size)
	}
	return nil
}

// decodeRecord reads every field of rec, deferred ones included.
func decodeRecord(format *RecordFormat, rec []byte) ([]Value, error) {
	values := make([]Value, len(format.Fields))
	for i := range format.Fields {
		v, err := decodeField(rec, format.Class, &format.Fields[i])
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// encodeRecord writes values, parallel to format.Fields, as one record.
func encodeRecord(format *RecordFormat, values []Value) ([]byte, error) {
	if len(values) != len(format.Fields) {
		return nil, errors.Wrapf(ErrMalformedRecord, "%v: %d values for %d fields", format.Class, len(values), len(format.Fields))
	}
	rec := make([]byte, format.Size)
	for i := range format.Fields {
		if err := encodeField(rec, format.Class, &format.Fields[i], values[i]); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

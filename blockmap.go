package dam

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	blockShift = 7 // map units
	blockSize  = 1 << blockShift
	blockMask  = blockSize - 1

	// blockMargin widens a generated grid on every side, in map units.
	blockMargin = 0

	// maxBlockmapWords is the most 16-bit words a BLOCKMAP lump can hold
	// before its offsets stop fitting in a signed short.
	maxBlockmapWords = 0x10000
)

// maxRadius is for precalculated sector block boxes.
// The spider demon is larger, but don't have any moving sectors nearby.
const maxRadius = 32 << FracBits

// Block is one blockmap cell.
type Block struct {
	Lines []LineID
}

// Blockmap is the uniform grid used to find lines near a point.
type Blockmap struct {
	OriginX, OriginY Fixed
	Columns, Rows    int
	Blocks           []Block // row major

	// Data is the lump form: origin, size, one offset per block, then each
	// block's list as 0, lines..., -1.
	Data []int32

	// Generated is set when the blockmap was built rather than read.
	Generated bool
}

// Block returns the cell at column x, row y.
func (b *Blockmap) Block(x, y int) *Block {
	return &b.Blocks[y*b.Columns+x]
}

// CellAt returns the cell containing a map position.
func (b *Blockmap) CellAt(x, y Fixed) (cx, cy int, ok bool) {
	cx = int((int64(x) - int64(b.OriginX)) >> (FracBits + blockShift))
	cy = int((int64(y) - int64(b.OriginY)) >> (FracBits + blockShift))
	return cx, cy, cx >= 0 && cx < b.Columns && cy >= 0 && cy < b.Rows
}

// blockBox returns the cells a sector with the given bounds can affect,
// clamped to the grid.
func (b *Blockmap) blockBox(box BoundBox) BlockBox {
	const shift = FracBits + blockShift
	top := (int64(box.Top) - int64(b.OriginY) + maxRadius) >> shift
	bottom := (int64(box.Bottom) - int64(b.OriginY) - maxRadius) >> shift
	right := (int64(box.Right) - int64(b.OriginX) + maxRadius) >> shift
	left := (int64(box.Left) - int64(b.OriginX) - maxRadius) >> shift
	return BlockBox{
		Top:    int(min(top, int64(b.Rows-1))),
		Bottom: int(max(bottom, 0)),
		Right:  int(min(right, int64(b.Columns-1))),
		Left:   int(max(left, 0)),
	}
}

// Bytes encodes the blockmap as a BLOCKMAP lump.
func (b *Blockmap) Bytes() ([]byte, error) {
	out := make([]byte, 2*len(b.Data))
	lists := 4 + len(b.Blocks)
	for i, v := range b.Data {
		var w uint16
		switch {
		case i < 2:
			if v < -0x8000 || v > 0x7FFF {
				return nil, errors.Errorf("blockmap origin %d does not fit in a lump", v)
			}
			w = uint16(int16(v))
		case i >= lists && v == -1:
			w = 0xFFFF
		case v < 0 || v > 0xFFFF:
			return nil, errors.Errorf("blockmap word %d (%d) does not fit in a lump", i, v)
		default:
			w = uint16(v)
		}
		binary.LittleEndian.PutUint16(out[2*i:], w)
	}
	return out, nil
}

type binBlockmapHeader struct {
	OriginX int16
	OriginY int16
	Columns uint16
	Rows    uint16
}

// parseBlockmap reads a BLOCKMAP lump. Offsets and line numbers are read
// unsigned, which lets lumps past the signed limit still load.
func parseBlockmap(lump []byte, numLines int) (*Blockmap, error) {
	var header binBlockmapHeader
	if err := binary.Read(bytes.NewReader(lump), binary.LittleEndian, &header); err != nil {
		return nil, errors.Wrap(err, "blockmap header")
	}

	b := &Blockmap{
		OriginX: IntToFixed(header.OriginX),
		OriginY: IntToFixed(header.OriginY),
		Columns: int(header.Columns),
		Rows:    int(header.Rows),
	}
	n := b.Columns * b.Rows
	words := len(lump) / 2
	lists := 4 + n
	if lists > words {
		return nil, errors.Errorf("blockmap offsets for %dx%d grid truncated", b.Columns, b.Rows)
	}

	b.Data = make([]int32, words)
	b.Data[0], b.Data[1] = int32(header.OriginX), int32(header.OriginY)
	for i := 2; i < words; i++ {
		w := binary.LittleEndian.Uint16(lump[2*i:])
		if i >= lists && w == 0xFFFF {
			b.Data[i] = -1
		} else {
			b.Data[i] = int32(w)
		}
	}

	b.Blocks = make([]Block, n)
	for i := range b.Blocks {
		off := int(b.Data[4+i])
		if off < lists || off >= words {
			return nil, errors.Errorf("block %d list offset %d out of range", i, off)
		}
		var lines []LineID
		for j := off; ; j++ {
			if j >= words {
				return nil, errors.Errorf("block %d list not terminated", i)
			}
			e := b.Data[j]
			if e == -1 {
				break
			}
			if j == off && e == 0 {
				continue // leading placeholder
			}
			if !inRange(e, numLines) {
				return nil, errors.Errorf("block %d refers to line %d of %d", i, e, numLines)
			}
			lines = append(lines, LineID(e))
		}
		b.Blocks[i].Lines = lines
	}
	return b, nil
}

// blockmapBuilder collects the lines of each cell of a new blockmap.
type blockmapBuilder struct {
	cols, rows int
	lists      [][]LineID
	last       []LineID // line most recently added to each cell
	line       LineID
}

func newBlockmapBuilder(cols, rows int) *blockmapBuilder {
	bb := &blockmapBuilder{
		cols:  cols,
		rows:  rows,
		lists: make([][]LineID, cols*rows),
		last:  make([]LineID, cols*rows),
		line:  NoLine,
	}
	for i := range bb.last {
		bb.last[i] = NoLine
	}
	return bb
}

// begin starts collecting cells for a line.
func (bb *blockmapBuilder) begin(id LineID) {
	bb.line = id
}

// add puts the current line in a cell, once.
func (bb *blockmapBuilder) add(cell int) {
	if bb.last[cell] == bb.line {
		return
	}
	bb.last[cell] = bb.line
	bb.lists[cell] = append(bb.lists[cell], bb.line)
}

// addLine finds every cell the line from (x1, y1) to (x2, y2) touches,
// coordinates in whole map units. The grid lines the segment crosses are
// walked column by column and then row by row; where it passes exactly
// through a grid corner the neighbouring cells it grazes are added too.
func (bb *blockmapBuilder) addLine(id LineID, x1, y1, x2, y2, xorg, yorg int) {
	cols, rows := bb.cols, bb.rows
	dx, dy := x2-x1, y2-y1
	vert := dx == 0
	horiz := dy == 0
	spos := dx^dy > 0
	sneg := dx^dy < 0
	minx, maxx := min(x1, x2), max(x1, x2)
	miny, maxy := min(y1, y2), max(y1, y2)

	bb.begin(id)
	bb.add(((y1-yorg)>>blockShift)*cols + ((x1 - xorg) >> blockShift))
	bb.add(((y2-yorg)>>blockShift)*cols + ((x2 - xorg) >> blockShift))

	if !vert {
		for j := 0; j < cols; j++ {
			x := xorg + j<<blockShift
			y := dy*(x-x1)/dx + y1
			yb := (y - yorg) >> blockShift
			yp := (y - yorg) & blockMask
			if yb < 0 || yb > rows-1 {
				continue
			}
			if x < minx || x > maxx {
				continue
			}
			bb.add(cols*yb + j)
			if yp == 0 {
				switch {
				case sneg:
					if yb > 0 && miny < y {
						bb.add(cols*(yb-1) + j)
					}
					if j > 0 && minx < x {
						bb.add(cols*yb + j - 1)
					}
				case spos:
					if yb > 0 && j > 0 && minx < x {
						bb.add(cols*(yb-1) + j - 1)
					}
				case horiz:
					if j > 0 && minx < x {
						bb.add(cols*yb + j - 1)
					}
				}
			} else if j > 0 && minx < x {
				bb.add(cols*yb + j - 1)
			}
		}
	}

	if !horiz {
		for j := 0; j < rows; j++ {
			y := yorg + j<<blockShift
			x := dx*(y-y1)/dy + x1
			xb := (x - xorg) >> blockShift
			xp := (x - xorg) & blockMask
			if xb < 0 || xb > cols-1 {
				continue
			}
			if y < miny || y > maxy {
				continue
			}
			bb.add(cols*j + xb)
			if xp == 0 {
				switch {
				case sneg:
					if j > 0 && miny < y {
						bb.add(cols*(j-1) + xb)
					}
					if xb > 0 && minx < x {
						bb.add(cols*j + xb - 1)
					}
				case vert:
					if j > 0 && miny < y {
						bb.add(cols*(j-1) + xb)
					}
				case spos:
					if xb > 0 && j > 0 && miny < y {
						bb.add(cols*(j-1) + xb - 1)
					}
				}
			} else if j > 0 && miny < y {
				bb.add(cols*(j-1) + xb)
			}
		}
	}
}

// blockmap lays the collected lists out in lump form. Each list is written
// in reverse order of insertion, as the original builder does.
func (bb *blockmapBuilder) blockmap(xorg, yorg int) *Blockmap {
	n := bb.cols * bb.rows
	size := 4 + n
	for _, l := range bb.lists {
		size += len(l) + 2
	}
	data := make([]int32, 4+n, size)
	data[0], data[1], data[2], data[3] = int32(xorg), int32(yorg), int32(bb.cols), int32(bb.rows)

	blocks := make([]Block, n)
	for i, l := range bb.lists {
		data[4+i] = int32(len(data))
		data = append(data, 0)
		lines := make([]LineID, len(l))
		for k := range l {
			lines[k] = l[len(l)-1-k]
			data = append(data, int32(lines[k]))
		}
		data = append(data, -1)
		blocks[i].Lines = lines
	}

	return &Blockmap{
		OriginX:   IntToFixed(xorg),
		OriginY:   IntToFixed(yorg),
		Columns:   bb.cols,
		Rows:      bb.rows,
		Blocks:    blocks,
		Data:      data,
		Generated: true,
	}
}

// BuildBlockmap generates a blockmap covering every vertex. Lines with an
// invalid vertex reference are left out.
func BuildBlockmap(vertexes []Vertex, lines []Line) *Blockmap {
	if len(vertexes) == 0 {
		return newBlockmapBuilder(0, 0).blockmap(0, 0)
	}
	minx, miny := vertexes[0].X.Int(), vertexes[0].Y.Int()
	maxx, maxy := minx, miny
	for _, v := range vertexes[1:] {
		minx, maxx = min(minx, v.X.Int()), max(maxx, v.X.Int())
		miny, maxy = min(miny, v.Y.Int()), max(maxy, v.Y.Int())
	}

	xorg, yorg := minx-blockMargin, miny-blockMargin
	cols := (maxx + blockMargin - xorg + 1 + blockMask) >> blockShift
	rows := (maxy + blockMargin - yorg + 1 + blockMask) >> blockShift

	bb := newBlockmapBuilder(cols, rows)
	for i := range lines {
		l := &lines[i]
		if !inRange(l.V[0], len(vertexes)) || !inRange(l.V[1], len(vertexes)) {
			continue
		}
		v1, v2 := vertexes[l.V[0]], vertexes[l.V[1]]
		bb.addLine(LineID(i), v1.X.Int(), v1.Y.Int(), v2.X.Int(), v2.Y.Int(), xorg, yorg)
	}
	return bb.blockmap(xorg, yorg)
}

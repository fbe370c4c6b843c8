// Package wad provides access to Doom's data archives also known as WAD files,
// and to PK3 (zip) archives laid out the way ZDoom ports expect. Either kind is
// presented as one flat directory of named lumps.
// The WAD format is documented in The Unofficial DOOM Specs:
// http://www.gamers.org/dhs/helpdocs/dmsp1666.html
package wad

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrLumpNotFound is returned for lump names the archive does not have.
var ErrLumpNotFound = errors.New("lump not found")

// WAD is an archive of named lumps.
type WAD struct {
	header    *Header // nil for PK3 archives
	closer    io.Closer
	lumpInfos []LumpInfo
	lumpNums  map[string]int // last lump with each name
	levels    map[string]int
}

type binHeader struct {
	Magic        [4]byte
	NumLumps     int32
	InfoTableOfs int32
}

type Header struct {
	Magic        string
	NumLumps     int
	InfoTableOfs int
}

type binLumpInfo struct {
	Filepos int32
	Size    int32
	Name    String8
}

type LumpInfo struct {
	Name    string
	Filepos int
	Size    int
	src     io.ReaderAt
}

// WAD eight-character string type. Null-terminated for short strings.
type String8 [8]byte

// String converts String8 to string
func (s String8) String() string {
	i := bytes.IndexByte(s[:], 0)
	if i == -1 {
		i = len(s)
	}
	return string(s[0:i])
}

// normalizeName makes a lump name comparable: upper case, eight characters.
func normalizeName(name string) string {
	if len(name) > 8 {
		name = name[:8]
	}
	return strings.ToUpper(name)
}

// Open opens a WAD file, or a PK3 archive when the name says so.
func Open(filename string) (*WAD, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pk3", ".zip":
		return OpenPK3(filename)
	}
	return NewWAD(filename)
}

// NewWAD reads WAD metadata to memory. It returns a WAD object that
// can be used to read individual lumps.
func NewWAD(filename string) (*WAD, error) {
	logger.Debugf("Start reading WAD %v", filename)

	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	w, err := NewWADFromReader(file)
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, filename)
	}
	w.closer = file
	return w, nil
}

// NewWADFromReader reads the directory of a WAD held by r.
func NewWADFromReader(r io.ReaderAt) (*WAD, error) {
	header, infos, err := readWAD(r)
	if err != nil {
		return nil, err
	}
	w := &WAD{header: header, lumpInfos: infos}
	w.index()
	logger.Debugf("Read %v lumps", len(w.lumpInfos))
	return w, nil
}

// readWAD reads the header and directory of a WAD.
func readWAD(r io.ReaderAt) (*Header, []LumpInfo, error) {
	var binHeader binHeader
	if err := binary.Read(io.NewSectionReader(r, 0, 12), binary.LittleEndian, &binHeader); err != nil {
		return nil, nil, errors.Wrap(err, "read header")
	}
	magic := string(binHeader.Magic[:])
	if magic != "IWAD" && magic != "PWAD" {
		return nil, nil, errors.Errorf("bad magic: %q", magic)
	}
	if binHeader.NumLumps < 0 || binHeader.InfoTableOfs < 0 {
		return nil, nil, errors.Errorf("bad directory: %d lumps at %d", binHeader.NumLumps, binHeader.InfoTableOfs)
	}
	header := &Header{magic, int(binHeader.NumLumps), int(binHeader.InfoTableOfs)}

	infos, err := readInfoTables(r, header)
	if err != nil {
		return nil, nil, err
	}
	return header, infos, nil
}

func readInfoTables(r io.ReaderAt, header *Header) ([]LumpInfo, error) {
	const entrySize = 16
	section := io.NewSectionReader(r, int64(header.InfoTableOfs), int64(header.NumLumps)*entrySize)
	binInfos := make([]binLumpInfo, header.NumLumps)
	if err := binary.Read(section, binary.LittleEndian, binInfos); err != nil {
		return nil, errors.Wrap(err, "read directory")
	}
	lumpInfos := make([]LumpInfo, header.NumLumps)
	for i, bi := range binInfos {
		if bi.Filepos < 0 || bi.Size < 0 {
			return nil, errors.Errorf("lump %d %q: bad position %d size %d", i, bi.Name, bi.Filepos, bi.Size)
		}
		lumpInfos[i] = LumpInfo{
			Name:    normalizeName(bi.Name.String()),
			Filepos: int(bi.Filepos),
			Size:    int(bi.Size),
			src:     r,
		}
	}
	return lumpInfos, nil
}

// index builds the name lookups. Later lumps win, as they do when a PWAD
// is loaded over an IWAD. A level is the lump before each THINGS.
func (w *WAD) index() {
	w.lumpNums = make(map[string]int, len(w.lumpInfos))
	w.levels = make(map[string]int)
	for i, info := range w.lumpInfos {
		if info.Name == "THINGS" && i > 0 {
			w.levels[w.lumpInfos[i-1].Name] = i - 1
		}
		w.lumpNums[info.Name] = i
	}
}

// Header returns the WAD header, nil for PK3 archives.
func (w *WAD) Header() *Header {
	return w.header
}

// Close releases the underlying file.
func (w *WAD) Close() error {
	if w.closer == nil {
		return nil
	}
	err := w.closer.Close()
	w.closer = nil
	return err
}

// NumLumps returns the number of lumps in the directory.
func (w *WAD) NumLumps() int {
	return len(w.lumpInfos)
}

// LumpName returns the name of a lump, "" for a bad index.
func (w *WAD) LumpName(lump int) string {
	if lump < 0 || lump >= len(w.lumpInfos) {
		return ""
	}
	return w.lumpInfos[lump].Name
}

// LumpLength returns the size of a lump in bytes, 0 for a bad index.
func (w *WAD) LumpLength(lump int) int {
	if lump < 0 || lump >= len(w.lumpInfos) {
		return 0
	}
	return w.lumpInfos[lump].Size
}

// CheckNumForName returns the index of the last lump with the given name,
// or -1.
func (w *WAD) CheckNumForName(name string) int {
	if i, ok := w.lumpNums[normalizeName(name)]; ok {
		return i
	}
	return -1
}

// ReadLump reads an entire lump.
func (w *WAD) ReadLump(lump int) ([]byte, error) {
	if lump < 0 || lump >= len(w.lumpInfos) {
		return nil, errors.Errorf("lump %d out of range", lump)
	}
	return w.readLump(&w.lumpInfos[lump], 0, w.lumpInfos[lump].Size)
}

// ReadLumpSection reads length bytes of a lump starting at offset. Reading
// past the end of the lump is an error.
func (w *WAD) ReadLumpSection(lump, offset, length int) ([]byte, error) {
	if lump < 0 || lump >= len(w.lumpInfos) {
		return nil, errors.Errorf("lump %d out of range", lump)
	}
	info := &w.lumpInfos[lump]
	if offset < 0 || length < 0 || offset+length > info.Size {
		return nil, errors.Errorf("lump %s: %d bytes at %d past end (%d)", info.Name, length, offset, info.Size)
	}
	return w.readLump(info, offset, length)
}

// ReadLumpName reads the last lump with the given name.
func (w *WAD) ReadLumpName(name string) ([]byte, error) {
	i := w.CheckNumForName(name)
	if i < 0 {
		return nil, errors.Wrap(ErrLumpNotFound, name)
	}
	return w.ReadLump(i)
}

// Read part of a lump
func (w *WAD) readLump(info *LumpInfo, offset, length int) ([]byte, error) {
	lump := make([]byte, length)
	n, err := info.src.ReadAt(lump, int64(info.Filepos+offset))
	if n == length {
		return lump, nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return nil, errors.Wrapf(err, "truncated lump %s", info.Name)
}

// LevelNames returns a slice of level names found in the WAD archive.
func (w *WAD) LevelNames() []string {
	result := make([]string, 0, len(w.levels))
	for name := range w.levels {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

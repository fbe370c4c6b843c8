package wad

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

type binTextureHeader struct {
	TextureName String8
	Masked      int32
	Width       int16
	Height      int16
	Unused      int32 // ColumnDirectory
	NumPatches  int16
}

// Texture is a wall texture as listed by a TEXTUREx lump.
type Texture struct {
	Name          string
	Index         int // id handed to the map loader
	IsMasked      bool
	Width, Height int
}

// Flat is a floor or ceiling picture between the flat markers.
type Flat struct {
	Name  string
	Index int
	Lump  int
}

// TextureNames maps texture and flat names to ids. Texture ids follow
// TEXTURE1 then TEXTURE2 order; flat ids follow lump order.
type TextureNames struct {
	Textures []Texture
	Flats    []Flat

	textureNums map[string]int
	flatNums    map[string]int
}

// LoadTextureNames reads the texture and flat directories of w. A WAD
// without either is not an error: the lookups just fail.
func LoadTextureNames(w *WAD) (*TextureNames, error) {
	t := &TextureNames{
		textureNums: make(map[string]int),
		flatNums:    make(map[string]int),
	}
	if err := t.readTextures(w); err != nil {
		return nil, err
	}
	t.readFlats(w)
	return t, nil
}

// TextureNumForName returns the id of a wall texture.
func (t *TextureNames) TextureNumForName(name string) (int, bool) {
	n, ok := t.textureNums[normalizeName(name)]
	return n, ok
}

// FlatNumForName returns the id of a flat.
func (t *TextureNames) FlatNumForName(name string) (int, bool) {
	n, ok := t.flatNums[normalizeName(name)]
	return n, ok
}

func (t *TextureNames) readTextures(w *WAD) error {
	logger.Debug("Loading textures ...")

	for i := 1; i < 10; i++ {
		name := fmt.Sprintf("TEXTURE%v", i)
		lumpNum := w.CheckNumForName(name)
		if lumpNum < 0 {
			continue
		}
		lump, err := w.ReadLump(lumpNum)
		if err != nil {
			return err
		}
		logger.Debugf("Loading %v ...", name)

		// Read header
		buffer := bytes.NewReader(lump)
		var count uint32
		if err := binary.Read(buffer, binary.LittleEndian, &count); err != nil {
			return errors.Wrap(err, name)
		}
		if int64(count)*4 > int64(len(lump)) {
			return errors.Errorf("%s: %d textures in %d bytes", name, count, len(lump))
		}
		offsets := make([]int32, count)
		if err := binary.Read(buffer, binary.LittleEndian, offsets); err != nil {
			return errors.Wrap(err, name)
		}

		// For each offset...
		for _, offset := range offsets {
			if offset < 0 || int(offset) >= len(lump) {
				return errors.Errorf("%s: texture offset %d out of range", name, offset)
			}
			var binHeader binTextureHeader
			if err := binary.Read(bytes.NewReader(lump[offset:]), binary.LittleEndian, &binHeader); err != nil {
				return errors.Wrap(err, name)
			}
			texture := Texture{
				Name:     normalizeName(binHeader.TextureName.String()),
				Index:    len(t.Textures),
				IsMasked: binHeader.Masked != 0,
				Width:    int(binHeader.Width),
				Height:   int(binHeader.Height),
			}
			// The first texture with a name is the one the game finds
			if _, ok := t.textureNums[texture.Name]; !ok {
				t.textureNums[texture.Name] = texture.Index
			}
			t.Textures = append(t.Textures, texture)
		}
	}
	logger.Debugf("Loaded %v textures", len(t.Textures))
	return nil
}

// readFlats collects the lumps between the flat markers. Nested markers and
// other empty lumps are skipped. A later flat with the same name replaces an
// earlier one, like any other lump.
func (t *TextureNames) readFlats(w *WAD) {
	logger.Debug("Loading flats ...")

	inside := false
	for i, info := range w.lumpInfos {
		switch info.Name {
		case "F_START", "FF_START":
			inside = true
			continue
		case "F_END", "FF_END":
			inside = false
			continue
		}
		if !inside || info.Size == 0 {
			continue
		}
		flat := Flat{Name: info.Name, Index: len(t.Flats), Lump: i}
		t.flatNums[flat.Name] = flat.Index
		t.Flats = append(t.Flats, flat)
	}
	logger.Debugf("Loaded %v flats", len(t.Flats))
}

package wad

import (
	"bytes"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
)

// OpenPK3 reads a PK3 archive into memory.
func OpenPK3(filename string) (*WAD, error) {
	logger.Debugf("Start reading PK3 %v", filename)

	zr, err := zip.OpenReader(filename)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	w, err := readPK3(&zr.Reader)
	if err != nil {
		return nil, errors.Wrap(err, filename)
	}
	return w, nil
}

// NewPK3FromReader reads a PK3 archive of the given size held by r.
func NewPK3FromReader(r io.ReaderAt, size int64) (*WAD, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	return readPK3(zr)
}

// readPK3 turns every file of the archive into a lump named after its base
// name. WADs under maps/ have their own lumps spliced in, so their levels
// load like any other. Files under flats/ are placed between F_START and
// F_END markers.
func readPK3(zr *zip.Reader) (*WAD, error) {
	files := make([]*zip.File, 0, len(zr.File))
	for _, f := range zr.File {
		if !f.FileInfo().IsDir() {
			files = append(files, f)
		}
	}
	sort.SliceStable(files, func(i, j int) bool {
		return strings.ToLower(files[i].Name) < strings.ToLower(files[j].Name)
	})

	w := &WAD{}
	var flats []LumpInfo
	for _, f := range files {
		data, err := readZipFile(f)
		if err != nil {
			return nil, err
		}
		name := strings.ToLower(f.Name)
		dir := path.Dir(name)
		switch {
		case dir == "maps" && path.Ext(name) == ".wad":
			_, infos, err := readWAD(bytes.NewReader(data))
			if err != nil {
				return nil, errors.Wrap(err, f.Name)
			}
			w.lumpInfos = append(w.lumpInfos, infos...)
		case strings.HasPrefix(dir, "flats"):
			flats = append(flats, memLump(f.Name, data))
		default:
			w.lumpInfos = append(w.lumpInfos, memLump(f.Name, data))
		}
	}
	if len(flats) > 0 {
		w.lumpInfos = append(w.lumpInfos, memLump("F_START", nil))
		w.lumpInfos = append(w.lumpInfos, flats...)
		w.lumpInfos = append(w.lumpInfos, memLump("F_END", nil))
	}

	w.index()
	logger.Debugf("Read %v lumps", len(w.lumpInfos))
	return w, nil
}

// memLump makes a lump from a file name, dropping directory and extension.
func memLump(filename string, data []byte) LumpInfo {
	base := path.Base(filename)
	base = strings.TrimSuffix(base, path.Ext(base))
	return LumpInfo{Name: normalizeName(base), Size: len(data), src: bytes.NewReader(data)}
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, errors.Wrap(err, f.Name)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrap(err, f.Name)
	}
	return data, nil
}

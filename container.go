package dam

// Container is the lump directory the loader reads from. Lump names compare
// case-insensitively on their first eight characters.
type Container interface {
	NumLumps() int
	LumpName(lump int) string
	LumpLength(lump int) int
	ReadLump(lump int) ([]byte, error)
	ReadLumpSection(lump, offset, length int) ([]byte, error)
	// CheckNumForName returns the index of the named lump, or -1.
	CheckNumForName(name string) int
}

// MaterialResolver maps texture and flat names to ids.
type MaterialResolver interface {
	TextureNumForName(name string) (int, bool)
	FlatNumForName(name string) (int, bool)
}

// MaterialID identifies a wall texture or flat.
type MaterialID int32

const (
	// NoMaterial is the "-" name: nothing is drawn.
	NoMaterial MaterialID = -1
	// MissingMaterial stands in for names the resolver does not know.
	MissingMaterial MaterialID = -2
)

// resolveMaterial never fails: unknown names come back as MissingMaterial.
func resolveMaterial(r MaterialResolver, name string, flat bool) (MaterialID, bool) {
	if name == "" || name == "-" {
		return NoMaterial, true
	}
	if r == nil {
		return MissingMaterial, false
	}
	var (
		n  int
		ok bool
	)
	if flat {
		n, ok = r.FlatNumForName(name)
	} else {
		n, ok = r.TextureNumForName(name)
	}
	if !ok {
		return MissingMaterial, false
	}
	return MaterialID(n), true
}

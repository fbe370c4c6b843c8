package dam

import "github.com/pkg/errors"

// Reject is the sector to sector visibility matrix. A set bit means no
// monster in the first sector can see into the second.
type Reject struct {
	NumSectors int
	Data       []byte

	// Generated is set when the matrix was synthesized rather than read.
	Generated bool
}

// rejectSize is the number of bytes a REJECT lump needs for n sectors.
func rejectSize(numSectors int) int {
	return (numSectors*numSectors + 7) / 8
}

// newReject returns an all zero matrix: every sector can see every other.
func newReject(numSectors int) *Reject {
	return &Reject{
		NumSectors: numSectors,
		Data:       make([]byte, rejectSize(numSectors)),
		Generated:  true,
	}
}

// Rejected reports whether sector i is known not to see sector j.
func (r *Reject) Rejected(i, j SectorID) bool {
	if r == nil || !inRange(i, r.NumSectors) || !inRange(j, r.NumSectors) {
		return false
	}
	bit := int(i)*r.NumSectors + int(j)
	return r.Data[bit>>3]&(1<<(bit&7)) != 0
}

// checkReject decides what to do with a REJECT lump. A nil matrix with no
// error means the map has no reject data.
func checkReject(lump []byte, present bool, numSectors int, cfg Config) (*Reject, error) {
	need := rejectSize(numSectors)
	switch {
	case cfg.ForceRejectRegeneration:
		return newReject(numSectors), nil
	case !present:
		if cfg.AllowRejectRegeneration {
			return newReject(numSectors), nil
		}
		return nil, nil
	case len(lump) < need:
		if cfg.AllowRejectRegeneration {
			return newReject(numSectors), nil
		}
		return nil, errors.Wrapf(ErrInvalidRejectData, "%d bytes for %d sectors, need %d", len(lump), numSectors, need)
	}
	return &Reject{NumSectors: numSectors, Data: lump}, nil
}

package dam

import (
	"fmt"

	"github.com/pkg/errors"
)

// Fatal load errors. Returned errors wrap one of these, so test with errors.Is.
var (
	ErrMapNotFound          = errors.New("map not found")
	ErrMissingLump          = errors.New("required map lump missing")
	ErrUnsupportedGLFormat  = errors.New("unsupported GL node format")
	ErrFormatIndeterminate  = errors.New("cannot determine GL node format")
	ErrMalformedRecord      = errors.New("malformed record")
	ErrInvalidRejectData    = errors.New("invalid REJECT data (enable reject regeneration)")
	ErrMiscountedLines      = errors.New("sector line lists miscounted")
	ErrMiscountedSubsectors = errors.New("sector subsector lists miscounted")
)

// DefectKind classifies a non-fatal problem found while loading.
type DefectKind int

const (
	DefectMissingLump DefectKind = iota
	DefectMissingFrontSide
	DefectBenignSector
	DefectMissingMaterial
	DefectBadIndex
	DefectNoGLMagic
	DefectTrailingBytes
	DefectTwoSidedWithoutBack
	DefectUnownedSubsector
	DefectExtendedNodes
	DefectBlockmap
	DefectDuplicateLump
)

var defectNames = [...]string{
	DefectMissingLump:         "missing lump",
	DefectMissingFrontSide:    "missing front sidedef",
	DefectBenignSector:        "benign sector",
	DefectMissingMaterial:     "missing material",
	DefectBadIndex:            "bad index",
	DefectNoGLMagic:           "no GL magic",
	DefectTrailingBytes:       "trailing bytes",
	DefectTwoSidedWithoutBack: "two-sided line without back side",
	DefectUnownedSubsector:    "subsector without sector",
	DefectExtendedNodes:       "extended nodes",
	DefectBlockmap:            "blockmap",
	DefectDuplicateLump:       "duplicate lump",
}

func (k DefectKind) String() string {
	if inRange(k, len(defectNames)) {
		return defectNames[k]
	}
	return fmt.Sprintf("DefectKind(%d)", int(k))
}

// Defect is a non-fatal problem. The load carries on and the map stays
// internally consistent; the defect is kept for diagnostics.
type Defect struct {
	Kind   DefectKind
	Class  LumpClass
	Index  int // record index within Class, -1 when not about a record
	Detail string
}

func (d Defect) String() string {
	if d.Index >= 0 {
		return fmt.Sprintf("%v: %v #%d: %s", d.Kind, d.Class, d.Index, d.Detail)
	}
	return fmt.Sprintf("%v: %v: %s", d.Kind, d.Class, d.Detail)
}

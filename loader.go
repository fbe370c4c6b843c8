package dam

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Hooks lets the game see data the loader does not interpret. Every field is
// optional.
type Hooks struct {
	// GameProperty receives every game specific field (specials, tags, thing
	// ids, action args) with the record it belongs to.
	GameProperty func(class LumpClass, index int, name string, value int64)
	// SideMaterial is asked about sidedef texture names the resolver did not
	// know. Returning false keeps MissingMaterial.
	SideMaterial func(side SideID, section SideSection, name string) (MaterialID, bool)
	// BenignSector is told about sectors that own no lines.
	BenignSector func(sector SectorID)
}

// Loader loads maps from one container. It keeps the last map it loaded
// successfully.
type Loader struct {
	container Container
	resolver  MaterialResolver
	config    Config
	hooks     Hooks
	current   *Map
}

// NewLoader returns a loader reading from c. resolver may be nil, in which
// case every named texture and flat is missing.
func NewLoader(c Container, resolver MaterialResolver, cfg Config, hooks Hooks) *Loader {
	return &Loader{container: c, resolver: resolver, config: cfg, hooks: hooks}
}

// Current returns the map installed by the last successful Load, or nil.
func (l *Loader) Current() *Map {
	return l.current
}

// Load reads and finishes the map with the given label. On failure the
// previously loaded map stays current.
func (l *Loader) Load(mapID string) (*Map, error) {
	ctx := newLoadContext(l, mapID)
	m, err := ctx.load()
	if err != nil {
		return nil, err
	}
	l.current = m
	return m, nil
}

// loadContext is the state of one load. It is thrown away when the load
// ends, whatever the outcome.
type loadContext struct {
	id       uuid.UUID
	log      *logrus.Entry
	c        Container
	resolver MaterialResolver
	config   Config
	hooks    Hooks

	m     *Map
	lumps []mapLump

	// legacySegs is set when segs came from the DOOM SEGS lump.
	legacySegs bool
	// missingMaterials holds names already reported.
	missingMaterials map[string]bool
}

func newLoadContext(l *Loader, mapID string) *loadContext {
	id := uuid.New()
	return &loadContext{
		id:               id,
		log:              logger.WithFields(logrus.Fields{"map": mapID, "load": id.String()}),
		c:                l.container,
		resolver:         l.resolver,
		config:           l.config,
		hooks:            l.hooks,
		m:                &Map{ID: mapID},
		missingMaterials: make(map[string]bool),
	}
}

func (ctx *loadContext) load() (*Map, error) {
	start := time.Now()
	ctx.log.Info("Loading map ...")

	if err := ctx.locate(); err != nil {
		return nil, err
	}

	f, defects, err := detectFormat(ctx.c, ctx.lumps)
	ctx.m.Format = f
	for _, d := range defects {
		ctx.report(d)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "map %s", ctx.m.ID)
	}
	ctx.log.WithFields(logrus.Fields{
		"format":   f.Map,
		"glNodes":  f.GLNodes,
		"extended": f.ExtendedNodes,
	}).Debug("Detected format")

	if err := ctx.readMapData(); err != nil {
		return nil, err
	}
	if err := ctx.finish(); err != nil {
		return nil, errors.Wrapf(err, "map %s", ctx.m.ID)
	}

	m := ctx.m
	ctx.log.WithFields(logrus.Fields{
		"vertexes":   len(m.Vertexes),
		"lines":      len(m.Lines),
		"sides":      len(m.Sides),
		"sectors":    len(m.Sectors),
		"things":     len(m.Things),
		"segs":       len(m.Segs),
		"subsectors": len(m.Subsectors),
		"nodes":      len(m.Nodes),
		"defects":    len(m.Defects),
		"elapsed":    time.Since(start),
	}).Info("Loaded map")
	return m, nil
}

// locate finds the label lump of the map and of its GL nodes, if any, and
// classifies the lumps that follow each.
func (ctx *loadContext) locate() error {
	label := ctx.c.CheckNumForName(ctx.m.ID)
	if label < 0 {
		return errors.Wrapf(ErrMapNotFound, "map %s", ctx.m.ID)
	}
	ctx.lumps = ctx.dedupe(classifyLumps(ctx.c, label))

	gl := ctx.c.CheckNumForName(glLabelName(ctx.m.ID))
	if gl < 0 || gl == label {
		return nil
	}
	if ctx.c.LumpLength(gl) > 0 {
		data, err := ctx.c.ReadLump(gl)
		if err != nil {
			return errors.Wrapf(err, "map %s: read lump %s", ctx.m.ID, ctx.c.LumpName(gl))
		}
		ctx.m.BuildInfo = parseBuildInfo(data)
	}
	ctx.lumps = append(ctx.lumps, ctx.dedupe(classifyLumps(ctx.c, gl))...)
	return nil
}

// dedupe keeps the first lump of each class in a run.
func (ctx *loadContext) dedupe(run []mapLump) []mapLump {
	var seen [numLumpClasses]bool
	out := run[:0]
	for _, l := range run {
		if seen[l.Class] {
			ctx.defect(DefectDuplicateLump, l.Class, -1, fmt.Sprintf("lump %d ignored", l.Lump))
			continue
		}
		seen[l.Class] = true
		out = append(out, l)
	}
	return out
}

// lump returns the lump of the given class.
func (ctx *loadContext) lump(class LumpClass) (mapLump, bool) {
	for _, l := range ctx.lumps {
		if l.Class == class {
			return l, true
		}
	}
	return mapLump{}, false
}

// readLump reads a whole lump, naming it in any error.
func (ctx *loadContext) readLump(l mapLump) ([]byte, error) {
	data, err := ctx.c.ReadLump(l.Lump)
	if err != nil {
		return nil, ctx.lumpError(err, l)
	}
	return data, nil
}

func (ctx *loadContext) lumpError(err error, l mapLump) error {
	return errors.Wrapf(err, "map %s: lump %d %q (%v)", ctx.m.ID, l.Lump, ctx.c.LumpName(l.Lump), l.Class)
}

func (ctx *loadContext) report(d Defect) {
	ctx.m.Defects = append(ctx.m.Defects, d)
	ctx.log.WithFields(logrus.Fields{
		"defect": d.Kind.String(),
		"class":  d.Class.String(),
		"index":  d.Index,
	}).Warn(d.Detail)
}

func (ctx *loadContext) defect(kind DefectKind, class LumpClass, index int, detail string) {
	ctx.report(Defect{Kind: kind, Class: class, Index: index, Detail: detail})
}

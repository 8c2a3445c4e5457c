// Package normalize reduces heterogeneous source records to point
// entities in the canonical CRS (EPSG:4326 lon/lat).
//
// Sources disagree about everything: some carry point geometry, some
// polygons, some only lat/lon text columns with hemisphere suffixes, and
// registry extracts mix NAD27/NAD83/WGS84 datums within one file. All of
// that is resolved here so downstream stages see one representation.
package normalize

import (
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/carceral-ecologies/pfas-cli/internal/ingest"
	"github.com/carceral-ecologies/pfas-cli/internal/model"
)

// Proj4 definitions for the datums that occur in the source registries,
// plus the planar CRS used for centroid computation. Centroids taken in
// geographic coordinates are distorted, so polygons are projected to a
// CONUS Lambert conformal conic first.
const (
	CRSWGS84 = "+proj=longlat +datum=WGS84 +no_defs"
	CRSNAD83 = "+proj=longlat +datum=NAD83 +no_defs"
	CRSNAD27 = "+proj=longlat +datum=NAD27 +no_defs"

	CRSConusLCC = "+proj=lcc +lat_1=33 +lat_2=45 +lat_0=40 +lon_0=-97 +x_0=0 +y_0=0 +datum=WGS84 +units=m +no_defs"
)

// Classifier maps a record to the proj4 string of its originating CRS.
type Classifier func(rec ingest.Record) string

// FixedCRS returns a classifier that assigns every record the same CRS.
func FixedCRS(proj4 string) Classifier {
	return func(ingest.Record) string { return proj4 }
}

// DatumField returns a classifier that reads a datum-name attribute
// (e.g. "NAD83") and falls back to fallback when the value is unknown.
func DatumField(field, fallback string) Classifier {
	return func(rec ingest.Record) string {
		switch rec.Get(field) {
		case "WGS84", "WGS 84":
			return CRSWGS84
		case "NAD83", "NAD 83":
			return CRSNAD83
		case "NAD27", "NAD 27":
			return CRSNAD27
		default:
			return fallback
		}
	}
}

// Options configures normalization for one source type.
type Options struct {
	SourceType string

	// Attribute column names. Lat/Lon are consulted only when the record
	// carries no geometry of its own.
	IDField         string
	NameField       string
	LatField        string
	LonField        string
	StatusField     string
	TypeField       string
	PopulationField string
	AccuracyField   string

	// Classify maps each record to its source CRS. Defaults to FixedCRS(CRSWGS84).
	Classify Classifier
}

// Normalize converts raw records to point entities in EPSG:4326,
// preserving input order. Records with degenerate or unparseable
// coordinates are dropped and counted, never fatal.
func Normalize(records []ingest.Record, opts Options) ([]model.PointEntity, error) {
	classify := opts.Classify
	if classify == nil {
		classify = FixedCRS(CRSWGS84)
	}

	target, err := proj.Parse(CRSWGS84)
	if err != nil {
		return nil, eris.Wrap(err, "normalize: parse target CRS")
	}

	type pending struct {
		index  int
		point  geom.Point
		entity model.PointEntity
	}

	// Group records by source CRS so each subgroup reprojects through one
	// transform, then reassemble in input order by index.
	groups := make(map[string][]pending)
	order := make([]string, 0, 4)
	var dropped int

	for i, rec := range records {
		pt, ok := extractPoint(rec, opts, classify(rec))
		if !ok {
			dropped++
			continue
		}

		crs := classify(rec)
		if _, seen := groups[crs]; !seen {
			order = append(order, crs)
		}
		groups[crs] = append(groups[crs], pending{
			index:  i,
			point:  pt,
			entity: buildEntity(rec, opts),
		})
	}

	out := make([]model.PointEntity, len(records))
	present := make([]bool, len(records))

	for _, crs := range order {
		src, err := proj.Parse(crs)
		if err != nil {
			return nil, eris.Wrapf(err, "normalize: parse source CRS %q", crs)
		}
		trans, err := src.NewTransform(target)
		if err != nil {
			return nil, eris.Wrapf(err, "normalize: build transform from %q", crs)
		}

		for _, p := range groups[crs] {
			g, err := p.point.Transform(trans)
			if err != nil {
				dropped++
				continue
			}
			pt := g.(geom.Point)
			p.entity.Lon = pt.X
			p.entity.Lat = pt.Y
			out[p.index] = p.entity
			present[p.index] = true
		}
	}

	result := make([]model.PointEntity, 0, len(records)-dropped)
	for i := range out {
		if present[i] {
			result = append(result, out[i])
		}
	}

	if dropped > 0 {
		zap.L().Debug("normalize: dropped records",
			zap.String("source", opts.SourceType),
			zap.Int("dropped", dropped),
		)
	}

	return result, nil
}

// extractPoint produces the representative point of a record in its
// source CRS. Polygons are reduced to their area centroid computed in a
// planar CRS; tabular records parse their coordinate columns.
func extractPoint(rec ingest.Record, opts Options, srcCRS string) (geom.Point, bool) {
	switch {
	case rec.Point != nil:
		pt := *rec.Point
		if degenerate(pt.X, pt.Y) {
			return geom.Point{}, false
		}
		return pt, true

	case rec.Polygon != nil:
		pt, err := planarCentroid(rec.Polygon, srcCRS)
		if err != nil {
			return geom.Point{}, false
		}
		return pt, true

	default:
		lat, okLat := ParseCoordinate(rec.Get(opts.LatField))
		lon, okLon := ParseCoordinate(rec.Get(opts.LonField))
		if !okLat || !okLon || degenerate(lon, lat) {
			return geom.Point{}, false
		}
		return geom.Point{X: lon, Y: lat}, true
	}
}

// planarCentroid projects the polygon to the CONUS LCC CRS, takes the
// area centroid there, and reprojects the centroid back to the source
// CRS so it rejoins the record's normal reprojection path.
func planarCentroid(poly geom.Polygonal, srcCRS string) (geom.Point, error) {
	src, err := proj.Parse(srcCRS)
	if err != nil {
		return geom.Point{}, eris.Wrap(err, "normalize: parse polygon CRS")
	}
	planar, err := proj.Parse(CRSConusLCC)
	if err != nil {
		return geom.Point{}, eris.Wrap(err, "normalize: parse planar CRS")
	}

	forward, err := src.NewTransform(planar)
	if err != nil {
		return geom.Point{}, eris.Wrap(err, "normalize: forward transform")
	}
	back, err := planar.NewTransform(src)
	if err != nil {
		return geom.Point{}, eris.Wrap(err, "normalize: inverse transform")
	}

	projected, err := poly.Transform(forward)
	if err != nil {
		return geom.Point{}, eris.Wrap(err, "normalize: project polygon")
	}
	pp, ok := projected.(geom.Polygonal)
	if !ok {
		return geom.Point{}, eris.New("normalize: projected geometry is not polygonal")
	}

	c := pp.Centroid()
	g, err := c.Transform(back)
	if err != nil {
		return geom.Point{}, eris.Wrap(err, "normalize: reproject centroid")
	}
	return g.(geom.Point), nil
}

// degenerate reports coordinates that cannot be a real facility location:
// the (0,0) null island placeholder, out-of-range values, and the ±999
// style sentinels some registries use for "not geocoded".
func degenerate(lon, lat float64) bool {
	if lon == 0 && lat == 0 {
		return true
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return true
	}
	return false
}

func buildEntity(rec ingest.Record, opts Options) model.PointEntity {
	e := model.PointEntity{
		SourceType: opts.SourceType,
		ID:         rec.Get(opts.IDField),
		Name:       rec.Get(opts.NameField),
		Status:     rec.Get(opts.StatusField),
		Attrs:      rec.Fields,
	}
	if opts.TypeField != "" {
		e.FacilityType = rec.Get(opts.TypeField)
	}
	if opts.PopulationField != "" {
		e.Population = parseFloat(rec.Get(opts.PopulationField), model.PopulationSentinel)
	}
	if opts.AccuracyField != "" {
		e.AccuracyScore = parseFloat(rec.Get(opts.AccuracyField), 0)
	}
	return e
}

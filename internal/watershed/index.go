// Package watershed assigns HUC-12 watershed codes to points by spatial
// join against the national Watershed Boundary Dataset.
package watershed

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/carceral-ecologies/pfas-cli/internal/ingest"
	"github.com/carceral-ecologies/pfas-cli/internal/model"
)

// Boundary is one watershed polygon keyed by its 12-digit HUC code.
type Boundary struct {
	HUC12 string
	Poly  geom.Polygonal
}

// node is the r-tree entry: a repaired boundary plus its load order,
// which breaks ties when overlapping polygons both contain a point. The
// embedded geometry makes the node itself insertable into the tree.
type node struct {
	geom.Polygonal
	huc12 string
	order int
}

// Index is a read-only spatial index over watershed boundaries. It is
// safe for concurrent use once built.
type Index struct {
	tree     *rtree.Rtree
	size     int
	excluded int
}

// NewIndex repairs the given boundaries and builds an R-tree over their
// bounding boxes. Boundaries that cannot be repaired are excluded from
// containment tests and counted; points falling only inside excluded
// polygons come back unattributed.
func NewIndex(boundaries []Boundary) *Index {
	ix := &Index{tree: rtree.NewTree(25, 50)}

	for _, b := range boundaries {
		repaired, ok := Repair(b.Poly)
		if !ok {
			ix.excluded++
			continue
		}
		ix.tree.Insert(&node{Polygonal: repaired, huc12: b.HUC12, order: ix.size})
		ix.size++
	}

	if ix.excluded > 0 {
		zap.L().Warn("watershed: excluded unrepairable polygons",
			zap.Int("excluded", ix.excluded),
			zap.Int("kept", ix.size),
		)
	}

	return ix
}

// Load reads HUC-12 boundaries from a WBD shapefile and indexes them.
// hucField names the DBF attribute holding the 12-digit code.
func Load(path, hucField string) (*Index, error) {
	records, err := ingest.ReadShapefile(path)
	if err != nil {
		return nil, eris.Wrap(err, "watershed: read boundary shapefile")
	}

	boundaries := make([]Boundary, 0, len(records))
	for _, rec := range records {
		if rec.Polygon == nil {
			continue
		}
		huc := rec.Get(hucField)
		if huc == "" {
			continue
		}
		boundaries = append(boundaries, Boundary{HUC12: huc, Poly: rec.Polygon})
	}

	if len(boundaries) == 0 {
		return nil, eris.Errorf("watershed: no usable boundaries in %s", path)
	}

	ix := NewIndex(boundaries)
	zap.L().Info("watershed: boundary index built",
		zap.String("path", path),
		zap.Int("polygons", ix.Size()),
		zap.Int("excluded", ix.Excluded()),
	)
	return ix, nil
}

// Size returns the number of indexed polygons.
func (ix *Index) Size() int { return ix.size }

// Excluded returns the number of polygons dropped during repair.
func (ix *Index) Excluded() int { return ix.excluded }

// Attribute assigns each point the HUC-12 of the first boundary (by load
// order) that contains or touches it, or the empty string when none
// does. The empty string is the explicit unattributed marker read by the
// linker, which never joins on it.
func (ix *Index) Attribute(points []model.PointEntity) []model.EnrichedPoint {
	out := make([]model.EnrichedPoint, len(points))
	for i, p := range points {
		out[i] = model.EnrichedPoint{
			PointEntity: p,
			HUC12:       ix.lookup(geom.Point{X: p.Lon, Y: p.Lat}),
		}
	}
	return out
}

// lookup returns the HUC-12 containing pt, empty if none.
func (ix *Index) lookup(pt geom.Point) string {
	best := -1
	huc := ""
	for _, item := range ix.tree.SearchIntersect(pt.Bounds()) {
		n := item.(*node)
		if best != -1 && n.order >= best {
			continue
		}
		if w := pt.Within(n.Polygonal); w == geom.Inside || w == geom.OnEdge {
			best = n.order
			huc = n.huc12
		}
	}
	return huc
}

// Repair makes a polygon usable for containment tests: rings with fewer
// than three distinct vertices or effectively zero area are dropped. The
// second return is false when nothing usable remains.
func Repair(p geom.Polygonal) (geom.Polygonal, bool) {
	if p == nil {
		return nil, false
	}

	var out geom.Polygon
	for _, poly := range p.Polygons() {
		for _, ring := range poly {
			r := dedupeRing(ring)
			if len(r) < 3 {
				continue
			}
			if math.Abs(ringArea(r)) < 1e-12 {
				continue
			}
			out = append(out, r)
		}
	}

	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// dedupeRing removes consecutive duplicate vertices and a closing vertex
// equal to the first.
func dedupeRing(ring []geom.Point) []geom.Point {
	if len(ring) == 0 {
		return nil
	}
	out := make([]geom.Point, 0, len(ring))
	for _, pt := range ring {
		if len(out) > 0 && out[len(out)-1] == pt {
			continue
		}
		out = append(out, pt)
	}
	if len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}

// ringArea is the signed shoelace area of a ring.
func ringArea(ring []geom.Point) float64 {
	var sum float64
	for i, pt := range ring {
		next := ring[(i+1)%len(ring)]
		sum += pt.X*next.Y - next.X*pt.Y
	}
	return sum / 2
}

package watershed

import (
	"fmt"
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carceral-ecologies/pfas-cli/internal/model"
)

func square(minX, minY, maxX, maxY float64) geom.Polygon {
	return geom.Polygon{{
		{X: minX, Y: minY},
		{X: maxX, Y: minY},
		{X: maxX, Y: maxY},
		{X: minX, Y: maxY},
		{X: minX, Y: minY},
	}}
}

func points(coords ...[2]float64) []model.PointEntity {
	out := make([]model.PointEntity, len(coords))
	for i, c := range coords {
		out[i] = model.PointEntity{ID: fmt.Sprintf("p%d", i), Lon: c[0], Lat: c[1]}
	}
	return out
}

func TestAttributeSinglePolygon(t *testing.T) {
	ix := NewIndex([]Boundary{
		{HUC12: "020600030101", Poly: square(-77, 38, -76, 39)},
	})
	require.Equal(t, 1, ix.Size())

	enriched := ix.Attribute(points(
		[2]float64{-76.5, 38.5}, // inside
		[2]float64{-75.0, 38.5}, // outside
	))
	assert.Equal(t, "020600030101", enriched[0].HUC12)
	assert.Equal(t, "", enriched[1].HUC12)
}

func TestAttributeOverlapFirstByLoadOrder(t *testing.T) {
	// Two overlapping squares; a point in the overlap takes the first.
	ix := NewIndex([]Boundary{
		{HUC12: "020600030101", Poly: square(0, 0, 2, 2)},
		{HUC12: "020600030102", Poly: square(1, 1, 3, 3)},
	})

	enriched := ix.Attribute(points([2]float64{1.5, 1.5}))
	assert.Equal(t, "020600030101", enriched[0].HUC12)

	// Point only inside the second polygon.
	enriched = ix.Attribute(points([2]float64{2.5, 2.5}))
	assert.Equal(t, "020600030102", enriched[0].HUC12)
}

func TestAttributeIdempotent(t *testing.T) {
	ix := NewIndex([]Boundary{
		{HUC12: "020600030101", Poly: square(0, 0, 2, 2)},
		{HUC12: "020600030102", Poly: square(1, 1, 3, 3)},
	})
	pts := points([2]float64{0.5, 0.5}, [2]float64{1.5, 1.5}, [2]float64{9, 9})

	first := ix.Attribute(pts)
	second := ix.Attribute(pts)
	for i := range first {
		assert.Equal(t, first[i].HUC12, second[i].HUC12)
	}
}

func TestAttributeBoundaryTouchCounts(t *testing.T) {
	ix := NewIndex([]Boundary{
		{HUC12: "020600030101", Poly: square(0, 0, 2, 2)},
	})
	enriched := ix.Attribute(points([2]float64{0, 1})) // on the edge
	assert.Equal(t, "020600030101", enriched[0].HUC12)
}

func TestRepairDropsDegenerateRings(t *testing.T) {
	// A valid ring plus a zero-area sliver and a two-vertex ring.
	poly := geom.Polygon{
		{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 2}, {X: 0, Y: 0}},
		{{X: 5, Y: 5}, {X: 6, Y: 6}, {X: 5, Y: 5}},
		{{X: 7, Y: 7}, {X: 8, Y: 8}},
	}
	repaired, ok := Repair(poly)
	require.True(t, ok)
	assert.Len(t, repaired.Polygons()[0], 1)
}

func TestRepairUnusablePolygonExcluded(t *testing.T) {
	_, ok := Repair(geom.Polygon{{{X: 1, Y: 1}, {X: 2, Y: 2}}})
	assert.False(t, ok)

	ix := NewIndex([]Boundary{
		{HUC12: "020600030101", Poly: geom.Polygon{{{X: 1, Y: 1}, {X: 2, Y: 2}}}},
		{HUC12: "020600030102", Poly: square(0, 0, 2, 2)},
	})
	assert.Equal(t, 1, ix.Size())
	assert.Equal(t, 1, ix.Excluded())

	// Attribution falls through to the surviving polygon.
	enriched := ix.Attribute(points([2]float64{1.5, 1.5}))
	assert.Equal(t, "020600030102", enriched[0].HUC12)
}

func TestAudit(t *testing.T) {
	enriched := []model.EnrichedPoint{
		{
			PointEntity: model.PointEntity{SourceType: "prisons", ID: "1", Attrs: map[string]string{"HUC8": "02060003"}},
			HUC12:       "020600030101",
		},
		{
			PointEntity: model.PointEntity{SourceType: "prisons", ID: "2", Attrs: map[string]string{"HUC8": "02060004"}},
			HUC12:       "020600030101", // disagrees
		},
		{
			PointEntity: model.PointEntity{SourceType: "prisons", ID: "3", Attrs: map[string]string{"HUC8": ""}},
			HUC12:       "020600030101", // no reported code
		},
		{
			PointEntity: model.PointEntity{SourceType: "prisons", ID: "4", Attrs: map[string]string{"HUC8": "02060004"}},
			HUC12:       "", // unattributed
		},
	}

	rows := Audit(enriched, "HUC8")
	require.Len(t, rows, 1)
	assert.Equal(t, "2", rows[0].ID)
	assert.Equal(t, "02060004", rows[0].ReportedHUC8)
	assert.Equal(t, "020600030101", rows[0].DerivedHUC12)
}

package normalize

import (
	"testing"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carceral-ecologies/pfas-cli/internal/ingest"
)

func TestParseCoordinate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"38.8895", 38.8895, true},
		{"-77.0353", -77.0353, true},
		{"77.1539W", -77.1539, true},
		{"77.1539 W", -77.1539, true},
		{"38.8895N", 38.8895, true},
		{"12.5S", -12.5, true},
		{"120.3e", 120.3, true},
		{"1,234.5", 1234.5, true},
		{"", 0, false},
		{"N", 0, false},
		{"not-a-number", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseCoordinate(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		if tt.ok {
			assert.InDelta(t, tt.want, got, 1e-9, "input %q", tt.in)
		}
	}
}

func TestDegenerate(t *testing.T) {
	assert.True(t, degenerate(0, 0))
	assert.True(t, degenerate(-999, -999))
	assert.True(t, degenerate(-77, 99))
	assert.True(t, degenerate(181, 39))
	assert.False(t, degenerate(-76.6122, 39.2904))
}

func tabularRecord(id, lat, lon string) ingest.Record {
	return ingest.Record{Fields: map[string]string{
		"ID": id, "LATITUDE": lat, "LONGITUDE": lon,
	}}
}

func testOpts() Options {
	return Options{
		SourceType: "wwtp",
		IDField:    "ID",
		LatField:   "LATITUDE",
		LonField:   "LONGITUDE",
	}
}

func TestNormalizeTabular(t *testing.T) {
	records := []ingest.Record{
		tabularRecord("a", "39.2904", "-76.6122"),
		tabularRecord("b", "", "-76.0"),      // missing lat: dropped
		tabularRecord("c", "0", "0"),         // null island: dropped
		tabularRecord("d", "38.9072", "77.0369W"),
	}

	points, err := Normalize(records, testOpts())
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, "a", points[0].ID)
	assert.InDelta(t, -76.6122, points[0].Lon, 1e-6)
	assert.InDelta(t, 39.2904, points[0].Lat, 1e-6)

	assert.Equal(t, "d", points[1].ID)
	assert.InDelta(t, -77.0369, points[1].Lon, 1e-6)
}

func TestNormalizePreservesOrderAcrossDatumGroups(t *testing.T) {
	recs := []ingest.Record{
		{Fields: map[string]string{"ID": "1", "DATUM": "NAD83", "LATITUDE": "39.1", "LONGITUDE": "-76.1"}},
		{Fields: map[string]string{"ID": "2", "DATUM": "WGS84", "LATITUDE": "39.2", "LONGITUDE": "-76.2"}},
		{Fields: map[string]string{"ID": "3", "DATUM": "NAD83", "LATITUDE": "39.3", "LONGITUDE": "-76.3"}},
		{Fields: map[string]string{"ID": "4", "DATUM": "WGS84", "LATITUDE": "39.4", "LONGITUDE": "-76.4"}},
	}

	opts := testOpts()
	opts.Classify = DatumField("DATUM", CRSWGS84)

	points, err := Normalize(recs, opts)
	require.NoError(t, err)
	require.Len(t, points, 4)
	for i, want := range []string{"1", "2", "3", "4"} {
		assert.Equal(t, want, points[i].ID)
	}
	// NAD83 and WGS84 agree to well under a meter in CONUS.
	assert.InDelta(t, 39.1, points[0].Lat, 1e-4)
	assert.InDelta(t, -76.3, points[2].Lon, 1e-4)
}

func TestNormalizePolygonCentroid(t *testing.T) {
	// 0.2 degree square centered on (-77.0, 39.0).
	square := geom.Polygon{{
		{X: -77.1, Y: 38.9},
		{X: -76.9, Y: 38.9},
		{X: -76.9, Y: 39.1},
		{X: -77.1, Y: 39.1},
		{X: -77.1, Y: 38.9},
	}}
	records := []ingest.Record{{
		Fields:  map[string]string{"ID": "base1"},
		Polygon: square,
	}}

	points, err := Normalize(records, Options{SourceType: "military", IDField: "ID"})
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.InDelta(t, -77.0, points[0].Lon, 0.01)
	assert.InDelta(t, 39.0, points[0].Lat, 0.01)
}

func TestNormalizeAttributes(t *testing.T) {
	records := []ingest.Record{{Fields: map[string]string{
		"FACILITYID": "104",
		"NAME":       "EASTERN CORRECTIONAL",
		"STATUS":     "OPEN",
		"TYPE":       "STATE",
		"POPULATION": "1,250",
		"SCORE":      "312.5",
		"LATITUDE":   "38.3",
		"LONGITUDE":  "-75.8",
	}}}

	points, err := Normalize(records, Options{
		SourceType:      "prisons",
		IDField:         "FACILITYID",
		NameField:       "NAME",
		LatField:        "LATITUDE",
		LonField:        "LONGITUDE",
		StatusField:     "STATUS",
		TypeField:       "TYPE",
		PopulationField: "POPULATION",
		AccuracyField:   "SCORE",
	})
	require.NoError(t, err)
	require.Len(t, points, 1)

	p := points[0]
	assert.Equal(t, "104", p.ID)
	assert.Equal(t, "EASTERN CORRECTIONAL", p.Name)
	assert.Equal(t, "OPEN", p.Status)
	assert.Equal(t, "STATE", p.FacilityType)
	assert.InDelta(t, 1250, p.Population, 1e-9)
	assert.InDelta(t, 312.5, p.AccuracyScore, 1e-9)
}

// Reprojecting to the planar CRS and back must reproduce the original
// coordinates within a tight tolerance.
func TestReprojectionRoundTrip(t *testing.T) {
	wgs84, err := proj.Parse(CRSWGS84)
	require.NoError(t, err)
	lcc, err := proj.Parse(CRSConusLCC)
	require.NoError(t, err)

	forward, err := wgs84.NewTransform(lcc)
	require.NoError(t, err)
	back, err := lcc.NewTransform(wgs84)
	require.NoError(t, err)

	for _, pt := range []geom.Point{
		{X: -76.6122, Y: 39.2904},
		{X: -118.2437, Y: 34.0522},
		{X: -87.6298, Y: 41.8781},
	} {
		g, err := pt.Transform(forward)
		require.NoError(t, err)
		g2, err := g.Transform(back)
		require.NoError(t, err)
		rt := g2.(geom.Point)
		assert.InDelta(t, pt.X, rt.X, 1e-6)
		assert.InDelta(t, pt.Y, rt.Y, 1e-6)
	}
}

func TestDatumFieldFallback(t *testing.T) {
	c := DatumField("DATUM", CRSNAD83)
	assert.Equal(t, CRSWGS84, c(ingest.Record{Fields: map[string]string{"DATUM": "WGS84"}}))
	assert.Equal(t, CRSNAD27, c(ingest.Record{Fields: map[string]string{"DATUM": "NAD27"}}))
	assert.Equal(t, CRSNAD83, c(ingest.Record{Fields: map[string]string{"DATUM": "UNKNOWN"}}))
	assert.Equal(t, CRSNAD83, c(ingest.Record{Fields: map[string]string{}}))
}

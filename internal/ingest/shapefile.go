package ingest

import (
	"strings"

	"github.com/ctessum/geom"
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ReadShapefile reads all records from a shapefile, converting point and
// polygon shapes to geometries. Records whose shape cannot be converted
// are skipped, not fatal.
func ReadShapefile(path string) ([]Record, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	var records []Record
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		rec := Record{Fields: make(map[string]string, len(names))}
		for i, name := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			rec.Fields[name] = val
		}

		switch s := shape.(type) {
		case *shp.Point:
			rec.Point = &geom.Point{X: s.X, Y: s.Y}
		case *shp.PointZ:
			rec.Point = &geom.Point{X: s.X, Y: s.Y}
		case *shp.PointM:
			rec.Point = &geom.Point{X: s.X, Y: s.Y}
		case *shp.Polygon:
			poly := polygonFromParts(s.NumParts, s.Parts, s.Points)
			if poly == nil {
				skipped++
				continue
			}
			rec.Polygon = poly
		case *shp.PolygonZ:
			poly := polygonFromParts(s.NumParts, s.Parts, s.Points)
			if poly == nil {
				skipped++
				continue
			}
			rec.Polygon = poly
		case nil:
			skipped++
			continue
		default:
			// Line layers carry nothing the pipeline can use as a facility.
			skipped++
			continue
		}

		records = append(records, rec)
	}

	if skipped > 0 {
		zap.L().Debug("ingest: skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}

	return records, nil
}

// polygonFromParts converts shapefile part-indexed points into a polygon.
// Each part becomes one ring. Parts with fewer than three vertices are
// dropped; a polygon with no usable rings is nil.
func polygonFromParts(numParts int32, parts []int32, points []shp.Point) geom.Polygon {
	if numParts == 0 || len(points) == 0 {
		return nil
	}

	var poly geom.Polygon
	for i := int32(0); i < numParts; i++ {
		start := parts[i]
		end := int32(len(points))
		if i+1 < numParts {
			end = parts[i+1]
		}
		if end-start < 3 {
			continue
		}

		ring := make([]geom.Point, 0, end-start)
		for j := start; j < end; j++ {
			ring = append(ring, geom.Point{X: points[j].X, Y: points[j].Y})
		}
		poly = append(poly, ring)
	}

	if len(poly) == 0 {
		return nil
	}
	return poly
}

// Package ingest reads source datasets (shapefile, CSV, XLSX) into raw
// records for normalization. Readers are format collaborators only: no
// coordinate handling happens here beyond carrying geometry through.
package ingest

import (
	"strings"

	"github.com/ctessum/geom"
)

// Record is one raw source row: its attribute fields plus whatever
// geometry the format carried. Point and Polygon are nil for purely
// tabular sources; coordinates then live in the attribute fields.
type Record struct {
	Fields  map[string]string
	Point   *geom.Point
	Polygon geom.Polygonal
}

// Get returns the value of the named field, matching case-insensitively.
// Shapefile DBF headers and agency CSV extracts disagree on casing for
// the same columns, so lookups must not be case-sensitive.
func (r Record) Get(name string) string {
	if v, ok := r.Fields[name]; ok {
		return v
	}
	for k, v := range r.Fields {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

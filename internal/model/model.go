// Package model defines the entities shared across the proximity pipeline.
package model

import "time"

// PopulationSentinel is the magic value registry sources use for an
// unknown facility population. It must never be summed as a literal.
const PopulationSentinel = -999

// StatusClosed marks a facility that is no longer operating.
const StatusClosed = "CLOSED"

// AccuracyThreshold is the maximum geocoding accuracy score (meters,
// lower is better) for a record to count as geocoding-confident.
const AccuracyThreshold = 1000

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	RunStatusQueued      RunStatus = "queued"
	RunStatusIngesting   RunStatus = "ingesting"
	RunStatusAttributing RunStatus = "attributing"
	RunStatusEnriching   RunStatus = "enriching"
	RunStatusLinking     RunStatus = "linking"
	RunStatusAggregating RunStatus = "aggregating"
	RunStatusComplete    RunStatus = "complete"
	RunStatusFailed      RunStatus = "failed"
)

// Run represents a single end-to-end pipeline execution.
type Run struct {
	ID        string    `json:"id"`
	Status    RunStatus `json:"status"`
	Sources   []string  `json:"sources"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PointEntity is a normalized source record: one facility reduced to a
// single lon/lat point in the canonical CRS (EPSG:4326), plus the
// attributes downstream stages read. Attrs carries everything else from
// the source row untouched.
type PointEntity struct {
	SourceType    string            `json:"source_type"`
	ID            string            `json:"id"`
	Lon           float64           `json:"lon"`
	Lat           float64           `json:"lat"`
	Name          string            `json:"name,omitempty"`
	Status        string            `json:"status,omitempty"`
	FacilityType  string            `json:"facility_type,omitempty"`
	Population    float64           `json:"population,omitempty"`
	AccuracyScore float64           `json:"accuracy_score,omitempty"`
	Attrs         map[string]string `json:"attrs,omitempty"`
}

// Key returns the identity used for deduplication across link records.
func (p PointEntity) Key() string {
	return p.SourceType + "|" + p.ID
}

// Active reports whether the facility is not marked closed.
func (p PointEntity) Active() bool {
	return p.Status != StatusClosed
}

// EnrichedPoint is a PointEntity with its derived watershed code and
// ground elevation appended. HUC12 is the empty string when no watershed
// polygon contains the point.
type EnrichedPoint struct {
	PointEntity
	HUC12         string  `json:"huc12"`
	Elevation     float64 `json:"elevation"`
	ElevationUnit string  `json:"elevation_unit,omitempty"`
}

// LinkRecord pairs one target facility with one point source in the same
// HUC-12 watershed where the target sits at strictly lower elevation.
type LinkRecord struct {
	Target        EnrichedPoint `json:"target"`
	Source        EnrichedPoint `json:"source"`
	SourceLabel   string        `json:"source_label"`
	Population    float64       `json:"population"`
	HasPopulation bool          `json:"has_population"`
	Confident     bool          `json:"confident"`
}

// AggregateRow summarizes linked targets for one source-type label.
// The three metric groups are: all deduplicated targets, the subset still
// active, and the active subset that is also geocoding-confident.
type AggregateRow struct {
	Label               string  `json:"label"`
	Count               int     `json:"count"`
	Pct                 float64 `json:"pct"`
	Population          float64 `json:"population"`
	ActiveCount         int     `json:"active_count"`
	ActivePct           float64 `json:"active_pct"`
	ActivePopulation    float64 `json:"active_population"`
	ConfidentCount      int     `json:"confident_count"`
	ConfidentPct        float64 `json:"confident_pct"`
	ConfidentPopulation float64 `json:"confident_population"`
}

// TypeRow summarizes linked facilities for one facility-type category.
// JuvenilePct uses the juvenile-only count as its denominator, giving the
// row two independent percentage bases.
type TypeRow struct {
	FacilityType  string  `json:"facility_type"`
	Count         int     `json:"count"`
	Pct           float64 `json:"pct"`
	JuvenileCount int     `json:"juvenile_count"`
	JuvenilePct   float64 `json:"juvenile_pct"`
}

// ElevationBatch is the durable artifact for one completed elevation
// service call: the elevations for input indexes [Start, End). Completed
// batches survive a later batch's failure and are reused on resume.
type ElevationBatch struct {
	Index      int       `json:"index"`
	Start      int       `json:"start"`
	End        int       `json:"end"`
	Elevations []float64 `json:"elevations"`
	Unit       string    `json:"unit"`
}

// AuditRow flags a record whose independently reported coarse watershed
// code disagrees with the HUC-12 derived by spatial join.
type AuditRow struct {
	SourceType    string `json:"source_type"`
	ID            string `json:"id"`
	Name          string `json:"name,omitempty"`
	ReportedHUC8  string `json:"reported_huc8"`
	DerivedHUC12  string `json:"derived_huc12"`
}

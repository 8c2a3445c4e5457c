// Package store persists pipeline runs and their stage outputs to
// SQLite or PostgreSQL. SQLite is the default for local research runs;
// Postgres adds a PostGIS-friendly geometry column for mapping work.
package store

import (
	"context"

	"github.com/carceral-ecologies/pfas-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the pipeline. Elevation
// batch methods satisfy elevation.BatchStore, which is what makes an
// interrupted enrichment stage resumable.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, sources []string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	FailRun(ctx context.Context, runID string, cause error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Stage outputs
	SaveEnrichedPoints(ctx context.Context, runID, source string, points []model.EnrichedPoint) error
	EnrichedPoints(ctx context.Context, runID, source string) ([]model.EnrichedPoint, error)

	SaveElevationBatch(ctx context.Context, runID, source string, batch model.ElevationBatch) error
	ElevationBatches(ctx context.Context, runID, source string) ([]model.ElevationBatch, error)

	SaveLinks(ctx context.Context, runID string, links []model.LinkRecord) error
	Links(ctx context.Context, runID string) ([]model.LinkRecord, error)

	SaveSummary(ctx context.Context, runID string, rows []model.AggregateRow) error
	Summary(ctx context.Context, runID string) ([]model.AggregateRow, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

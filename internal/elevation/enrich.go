// Package elevation fills in ground elevation for enriched points,
// batching calls to the external elevation service and persisting each
// completed batch so a failed run can resume without re-querying.
package elevation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/carceral-ecologies/pfas-cli/internal/model"
	"github.com/carceral-ecologies/pfas-cli/pkg/elevation"
)

// BatchStore persists per-batch elevation artifacts. The SQLite and
// Postgres stores implement it; a nil store disables resumability.
type BatchStore interface {
	SaveElevationBatch(ctx context.Context, runID, source string, batch model.ElevationBatch) error
	ElevationBatches(ctx context.Context, runID, source string) ([]model.ElevationBatch, error)
}

// BatchError reports which slice of the input failed, so the caller can
// retry that batch or abort. Points in the failed range never receive a
// substituted elevation.
type BatchError struct {
	Index int
	Start int
	End   int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("elevation batch %d (points %d-%d): %v", e.Index, e.Start, e.End, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Enricher batches points through an elevation client.
type Enricher struct {
	client elevation.Client
	store  BatchStore
}

// NewEnricher creates an Enricher. store may be nil to skip batch
// persistence.
func NewEnricher(client elevation.Client, store BatchStore) *Enricher {
	return &Enricher{client: client, store: store}
}

// Enrich looks up elevation for every point in batches of at most
// batchSize, preserving input order. Batches already persisted for this
// (run, source) pair are reused rather than re-queried. On failure the
// returned error is a *BatchError identifying the affected index range;
// batches completed before the failure remain persisted.
func (e *Enricher) Enrich(ctx context.Context, runID, source string, points []model.EnrichedPoint, batchSize int) ([]model.EnrichedPoint, error) {
	if batchSize <= 0 || batchSize > elevation.MaxBatchSize {
		batchSize = elevation.MaxBatchSize
	}
	if len(points) == 0 {
		return points, nil
	}

	log := zap.L().With(
		zap.String("component", "elevation.enrich"),
		zap.String("run", runID),
		zap.String("source", source),
	)

	saved := e.loadSaved(ctx, runID, source)

	out := make([]model.EnrichedPoint, len(points))
	copy(out, points)

	numBatches := (len(points) + batchSize - 1) / batchSize
	for b := 0; b < numBatches; b++ {
		start := b * batchSize
		end := start + batchSize
		if end > len(points) {
			end = len(points)
		}

		if prior, ok := saved[b]; ok && prior.Start == start && prior.End == end {
			for i, elev := range prior.Elevations {
				out[start+i].Elevation = elev
				out[start+i].ElevationUnit = prior.Unit
			}
			log.Debug("reusing persisted batch", zap.Int("batch", b))
			continue
		}

		req := make([]elevation.Point, end-start)
		for i := start; i < end; i++ {
			req[i-start] = elevation.Point{Lon: points[i].Lon, Lat: points[i].Lat}
		}

		results, err := e.client.Lookup(ctx, req)
		if err != nil {
			return nil, &BatchError{Index: b, Start: start, End: end, Err: err}
		}

		batch := model.ElevationBatch{
			Index:      b,
			Start:      start,
			End:        end,
			Elevations: make([]float64, len(results)),
		}
		for i, r := range results {
			out[start+i].Elevation = r.Elevation
			out[start+i].ElevationUnit = r.Unit
			batch.Elevations[i] = r.Elevation
			batch.Unit = r.Unit
		}

		if e.store != nil {
			if err := e.store.SaveElevationBatch(ctx, runID, source, batch); err != nil {
				log.Warn("failed to persist elevation batch", zap.Int("batch", b), zap.Error(err))
			}
		}

		log.Debug("batch complete", zap.Int("batch", b), zap.Int("points", end-start))
	}

	return out, nil
}

func (e *Enricher) loadSaved(ctx context.Context, runID, source string) map[int]model.ElevationBatch {
	saved := make(map[int]model.ElevationBatch)
	if e.store == nil {
		return saved
	}
	batches, err := e.store.ElevationBatches(ctx, runID, source)
	if err != nil {
		zap.L().Warn("elevation: could not load persisted batches", zap.Error(err))
		return saved
	}
	for _, b := range batches {
		saved[b.Index] = b
	}
	return saved
}

// Package pipeline orchestrates the two-stage study: per-source
// ingest/normalize/attribute/enrich fan-out, then the watershed link and
// aggregation over the combined results.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/carceral-ecologies/pfas-cli/internal/aggregate"
	"github.com/carceral-ecologies/pfas-cli/internal/config"
	elevenrich "github.com/carceral-ecologies/pfas-cli/internal/elevation"
	"github.com/carceral-ecologies/pfas-cli/internal/fetch"
	"github.com/carceral-ecologies/pfas-cli/internal/ingest"
	"github.com/carceral-ecologies/pfas-cli/internal/link"
	"github.com/carceral-ecologies/pfas-cli/internal/model"
	"github.com/carceral-ecologies/pfas-cli/internal/normalize"
	"github.com/carceral-ecologies/pfas-cli/internal/registry"
	"github.com/carceral-ecologies/pfas-cli/internal/report"
	"github.com/carceral-ecologies/pfas-cli/internal/store"
	"github.com/carceral-ecologies/pfas-cli/internal/watershed"
	"github.com/carceral-ecologies/pfas-cli/pkg/elevation"
)

// juvenileType is the HIFLD facility-type value marking juvenile
// detention facilities.
const juvenileType = "JUVENILE"

// Result collects everything a completed run produced.
type Result struct {
	RunID     string
	Summary   []model.AggregateRow
	TypeRows  []model.TypeRow
	TypeTotal model.TypeRow
	Audit     []model.AuditRow
	LinkCount int
	Duration  time.Duration
}

// Runner executes the full pipeline for a configured source registry.
type Runner struct {
	cfg     *config.Config
	store   store.Store
	elev    elevation.Client
	fetcher *fetch.Fetcher
	sources []registry.Source
	index   *watershed.Index
}

// Option configures a Runner.
type Option func(*Runner)

// WithIndex injects a pre-built watershed index instead of loading the
// configured shapefile.
func WithIndex(ix *watershed.Index) Option {
	return func(r *Runner) { r.index = ix }
}

// WithFetcher enables downloading sources that declare a URL.
func WithFetcher(f *fetch.Fetcher) Option {
	return func(r *Runner) { r.fetcher = f }
}

// New creates a Runner. The source list must validate: unique keys and
// exactly one target dataset.
func New(cfg *config.Config, st store.Store, elev elevation.Client, sources []registry.Source, opts ...Option) (*Runner, error) {
	if err := registry.Validate(sources); err != nil {
		return nil, eris.Wrap(err, "pipeline: invalid sources")
	}
	r := &Runner{cfg: cfg, store: st, elev: elev, sources: sources}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run executes ingest through report generation and returns the run's
// aggregate results. The run record is marked failed before any error
// is returned.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	log := zap.L().With(zap.String("component", "pipeline"))

	target, ok := registry.Target(r.sources)
	if !ok {
		return nil, eris.New("pipeline: no target source configured")
	}
	pointSources := registry.Enabled(r.sources)

	keys := make([]string, 0, len(pointSources)+1)
	keys = append(keys, target.Key)
	for _, s := range pointSources {
		keys = append(keys, s.Key)
	}

	run, err := r.store.CreateRun(ctx, keys)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log = log.With(zap.String("run_id", run.ID))
	log.Info("pipeline: starting run", zap.Strings("sources", keys))

	res, err := r.run(ctx, log, run.ID, target, pointSources)
	if err != nil {
		if failErr := r.store.FailRun(ctx, run.ID, err); failErr != nil {
			log.Warn("pipeline: failed to mark run failed", zap.Error(failErr))
		}
		return nil, err
	}

	if err := r.store.UpdateRunStatus(ctx, run.ID, model.RunStatusComplete); err != nil {
		log.Warn("pipeline: failed to mark run complete", zap.Error(err))
	}

	res.RunID = run.ID
	res.Duration = time.Since(start)
	log.Info("pipeline: run complete",
		zap.Int("links", res.LinkCount),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

func (r *Runner) run(ctx context.Context, log *zap.Logger, runID string, target registry.Source, pointSources []registry.Source) (*Result, error) {
	setStatus := func(status model.RunStatus) {
		if err := r.store.UpdateRunStatus(ctx, runID, status); err != nil {
			log.Warn("pipeline: failed to update status", zap.Error(err))
		}
	}

	all := append([]registry.Source{target}, pointSources...)
	limit := r.cfg.Pipeline.MaxConcurrent
	if limit <= 0 {
		limit = 1
	}

	// Ingest and normalize every dataset concurrently.
	setStatus(model.RunStatusIngesting)
	normalized := make(map[string][]model.PointEntity, len(all))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, src := range all {
		g.Go(func() error {
			points, err := r.ingestSource(gctx, src)
			if err != nil {
				return eris.Wrapf(err, "pipeline: source %s", src.Key)
			}
			mu.Lock()
			normalized[src.Key] = points
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Spatial join of each point against the HUC-12 boundaries. The
	// index is read-only once built, so attribution needs no locking.
	setStatus(model.RunStatusAttributing)
	index := r.index
	if index == nil {
		var err error
		index, err = watershed.Load(r.cfg.Watershed.ShapefilePath, r.cfg.Watershed.HUCField)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: load watershed boundaries")
		}
		log.Info("pipeline: watershed index ready",
			zap.Int("boundaries", index.Size()),
			zap.Int("excluded", index.Excluded()),
		)
	}
	attributed := make(map[string][]model.EnrichedPoint, len(all))
	for _, src := range all {
		attributed[src.Key] = index.Attribute(normalized[src.Key])
	}

	// Per-source elevation enrichment, rate-limited by the shared client.
	setStatus(model.RunStatusEnriching)
	enriched := make(map[string][]model.EnrichedPoint, len(all))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, src := range all {
		g.Go(func() error {
			points, err := r.enrichSource(gctx, runID, src, attributed[src.Key])
			if err != nil {
				return eris.Wrapf(err, "pipeline: source %s", src.Key)
			}
			mu.Lock()
			enriched[src.Key] = points
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	targetPoints := enriched[target.Key]
	audit := watershed.Audit(targetPoints, target.HUC8Field)

	// Join every point source against the target on shared watershed and
	// downhill elevation.
	setStatus(model.RunStatusLinking)
	var allLinks []model.LinkRecord
	perSource := make(map[string][]model.LinkRecord, len(pointSources))
	for _, src := range pointSources {
		links := link.Link(targetPoints, enriched[src.Key], link.Options{
			SourceLabel:     src.Label,
			RequireAccuracy: src.RequireAccuracy,
		})
		perSource[src.Key] = links
		allLinks = append(allLinks, links...)
		log.Info("pipeline: linked source",
			zap.String("source", src.Key),
			zap.Int("links", len(links)),
		)
	}
	if err := r.store.SaveLinks(ctx, runID, allLinks); err != nil {
		return nil, eris.Wrap(err, "pipeline: save links")
	}

	setStatus(model.RunStatusAggregating)
	denom := r.cfg.Link.TotalFacilities
	summary := make([]model.AggregateRow, 0, len(pointSources)+2)
	for _, src := range pointSources {
		summary = append(summary, aggregate.One(perSource[src.Key], src.Label, denom))
	}
	summary = append(summary, aggregate.One(allLinks, "Any source", denom))

	threshold := r.cfg.Link.Threshold
	summary = append(summary, aggregate.Threshold(
		allLinks,
		fmt.Sprintf("More than %d sources", threshold),
		denom,
		threshold,
	))

	typeRows, typeTotal := aggregate.ByFacilityType(allLinks, aggregate.JuvenileFlag(target.TypeField, juvenileType))

	if err := r.store.SaveSummary(ctx, runID, summary); err != nil {
		return nil, eris.Wrap(err, "pipeline: save summary")
	}

	if err := r.writeReports(summary, typeRows, typeTotal, audit, allLinks); err != nil {
		return nil, err
	}

	return &Result{
		Summary:   summary,
		TypeRows:  typeRows,
		TypeTotal: typeTotal,
		Audit:     audit,
		LinkCount: len(allLinks),
	}, nil
}

// ingestSource reads one dataset and normalizes it to canonical
// lon/lat point entities.
func (r *Runner) ingestSource(ctx context.Context, src registry.Source) ([]model.PointEntity, error) {
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("source", src.Key))

	path, err := r.resolvePath(ctx, src)
	if err != nil {
		return nil, err
	}

	records, err := readRecords(path, src)
	if err != nil {
		return nil, err
	}
	log.Info("pipeline: ingested records", zap.Int("count", len(records)))

	points, err := normalize.Normalize(records, src.NormalizeOptions())
	if err != nil {
		return nil, eris.Wrap(err, "normalize")
	}
	log.Info("pipeline: normalized points",
		zap.Int("kept", len(points)),
		zap.Int("dropped", len(records)-len(points)),
	)
	return points, nil
}

// enrichSource adds elevations to one source's attributed points and
// persists the result.
func (r *Runner) enrichSource(ctx context.Context, runID string, src registry.Source, attributed []model.EnrichedPoint) ([]model.EnrichedPoint, error) {
	enricher := elevenrich.NewEnricher(r.elev, r.store)
	enriched, err := enricher.Enrich(ctx, runID, src.Key, attributed, r.cfg.Elevation.BatchSize)
	if err != nil {
		return nil, eris.Wrap(err, "enrich")
	}

	if err := r.store.SaveEnrichedPoints(ctx, runID, src.Key, enriched); err != nil {
		return nil, eris.Wrap(err, "save points")
	}
	return enriched, nil
}

func (r *Runner) resolvePath(ctx context.Context, src registry.Source) (string, error) {
	if r.fetcher != nil {
		path, err := r.fetcher.Fetch(ctx, src)
		if err != nil {
			return "", eris.Wrap(err, "fetch")
		}
		return path, nil
	}
	return filepath.Join(r.cfg.Data.Dir, src.Path), nil
}

func (r *Runner) writeReports(summary []model.AggregateRow, typeRows []model.TypeRow, typeTotal model.TypeRow, audit []model.AuditRow, links []model.LinkRecord) error {
	outDir := r.cfg.Data.OutDir
	if outDir == "" {
		return nil
	}

	if err := report.WriteSummaryCSV(filepath.Join(outDir, "summary.csv"), summary); err != nil {
		return eris.Wrap(err, "pipeline: write summary")
	}
	if err := report.WriteTypeCSV(filepath.Join(outDir, "facility_types.csv"), append(typeRows, typeTotal)); err != nil {
		return eris.Wrap(err, "pipeline: write facility types")
	}
	if err := report.WriteAuditCSV(filepath.Join(outDir, "audit.csv"), audit); err != nil {
		return eris.Wrap(err, "pipeline: write audit")
	}
	if err := report.WriteLinksCSV(filepath.Join(outDir, "links.csv"), links); err != nil {
		return eris.Wrap(err, "pipeline: write links")
	}
	if err := report.WriteWorkbook(filepath.Join(outDir, "report.xlsx"), summary, append(typeRows, typeTotal)); err != nil {
		return eris.Wrap(err, "pipeline: write workbook")
	}
	return nil
}

// readRecords dispatches to the format-specific reader.
func readRecords(path string, src registry.Source) ([]ingest.Record, error) {
	switch src.Format {
	case registry.FormatCSV:
		return ingest.ReadCSV(path)
	case registry.FormatXLSX:
		return ingest.ReadXLSX(path, ingest.XLSXOptions{SheetName: src.Sheet, SkipRows: src.SkipRows})
	case registry.FormatShapefile:
		return ingest.ReadShapefile(path)
	default:
		return nil, eris.Errorf("unknown format %q for source %s", src.Format, src.Key)
	}
}

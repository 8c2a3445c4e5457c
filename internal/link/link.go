// Package link joins carceral facilities (targets) to potential PFAS
// point sources on shared HUC-12 watershed, keeping only pairs where the
// facility sits at strictly lower elevation than the source. Elevation
// difference is a coarse downhill-flow proxy, not a hydrological model.
package link

import (
	"go.uber.org/zap"

	"github.com/carceral-ecologies/pfas-cli/internal/model"
)

// Options configures one linking pass.
type Options struct {
	// SourceLabel is the human-readable label stamped on each record
	// (e.g. "Wastewater Treatment Plants").
	SourceLabel string

	// RequireAccuracy derives the confidence flag from the source
	// record's geocoding accuracy score. When false, the source type has
	// no accuracy scoring and every pair is confident.
	RequireAccuracy bool
}

// Link returns one record per (target, source instance) pair sharing a
// non-empty HUC-12 with target elevation strictly below source
// elevation. Duplicate targets across source instances are expected and
// preserved; deduplication belongs to the aggregator. Duplicate join
// keys within either input keep the first occurrence only.
func Link(targets, sources []model.EnrichedPoint, opts Options) []model.LinkRecord {
	targets = dedupeByID(targets)
	sources = dedupeByID(sources)

	byHUC := make(map[string][]model.EnrichedPoint)
	for _, s := range sources {
		if s.HUC12 == "" {
			continue
		}
		byHUC[s.HUC12] = append(byHUC[s.HUC12], s)
	}

	var out []model.LinkRecord
	for _, t := range targets {
		if t.HUC12 == "" {
			continue
		}
		for _, s := range byHUC[t.HUC12] {
			// A facility can appear in its own source registry; it is
			// never a contamination source for itself.
			if t.Key() == s.Key() {
				continue
			}
			if !(t.Elevation < s.Elevation) {
				continue
			}

			rec := model.LinkRecord{
				Target:      t,
				Source:      s,
				SourceLabel: opts.SourceLabel,
				Confident:   true,
			}
			if opts.RequireAccuracy {
				rec.Confident = s.AccuracyScore <= model.AccuracyThreshold
			}
			rec.Population, rec.HasPopulation = normalizePopulation(t.Population)
			out = append(out, rec)
		}
	}

	zap.L().Debug("link: pass complete",
		zap.String("source", opts.SourceLabel),
		zap.Int("targets", len(targets)),
		zap.Int("sources", len(sources)),
		zap.Int("links", len(out)),
	)

	return out
}

// normalizePopulation maps the -999 registry sentinel to an explicit
// missing marker so downstream sums exclude it instead of subtracting.
func normalizePopulation(pop float64) (float64, bool) {
	if pop == model.PopulationSentinel {
		return 0, false
	}
	return pop, true
}

// dedupeByID keeps the first occurrence per join key, preserving order.
// Registry sources repeat a facility once per regulatory program record.
func dedupeByID(points []model.EnrichedPoint) []model.EnrichedPoint {
	seen := make(map[string]bool, len(points))
	out := make([]model.EnrichedPoint, 0, len(points))
	for _, p := range points {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}

// Package aggregate collapses link records into the study's summary
// tables: per-source-type rows, multi-source threshold rows, and a
// facility-type breakdown.
package aggregate

import (
	"sort"

	"github.com/carceral-ecologies/pfas-cli/internal/model"
)

// dedupTarget is one distinct target with its match bookkeeping across
// all link records that named it.
type dedupTarget struct {
	entity           model.EnrichedPoint
	population       float64
	hasPopulation    bool
	matches          int
	confidentMatches int
}

// dedupe collapses link records by target identity, preserving first-seen
// order.
func dedupe(links []model.LinkRecord) []*dedupTarget {
	byKey := make(map[string]*dedupTarget, len(links))
	var order []*dedupTarget
	for _, l := range links {
		key := l.Target.Key()
		d, ok := byKey[key]
		if !ok {
			d = &dedupTarget{
				entity:        l.Target,
				population:    l.Population,
				hasPopulation: l.HasPopulation,
			}
			byKey[key] = d
			order = append(order, d)
		}
		d.matches++
		if l.Confident {
			d.confidentMatches++
		}
	}
	return order
}

// One summarizes links for a single source-type label. Each target
// counts once no matter how many source instances matched it; the
// confidence flag is true if any matching instance was confident. denom
// is the fixed total-known-targets denominator for percentages.
func One(links []model.LinkRecord, label string, denom int) model.AggregateRow {
	return summarize(dedupe(links), label, denom, func(d *dedupTarget) bool {
		return d.confidentMatches > 0
	})
}

// Threshold is One restricted to targets matched by more than threshold
// distinct source instances. Unlike One, the confidence flag requires
// more than threshold confident matches: a multi-source claim needs
// proportionally more corroborating accurate instances.
func Threshold(links []model.LinkRecord, label string, denom, threshold int) model.AggregateRow {
	var kept []*dedupTarget
	for _, d := range dedupe(links) {
		if d.matches > threshold {
			kept = append(kept, d)
		}
	}
	return summarize(kept, label, denom, func(d *dedupTarget) bool {
		return d.confidentMatches > threshold
	})
}

func summarize(targets []*dedupTarget, label string, denom int, confident func(*dedupTarget) bool) model.AggregateRow {
	row := model.AggregateRow{Label: label}

	for _, d := range targets {
		row.Count++
		if d.hasPopulation {
			row.Population += d.population
		}

		if !d.entity.Active() {
			continue
		}
		row.ActiveCount++
		if d.hasPopulation {
			row.ActivePopulation += d.population
		}

		if !confident(d) {
			continue
		}
		row.ConfidentCount++
		if d.hasPopulation {
			row.ConfidentPopulation += d.population
		}
	}

	row.Pct = pct(row.Count, denom)
	row.ActivePct = pct(row.ActiveCount, denom)
	row.ConfidentPct = pct(row.ConfidentCount, denom)
	return row
}

// ByFacilityType groups the deduplicated active+confident targets by
// facility type. Each row carries two independent percentage bases: Pct
// against all grouped targets, JuvenilePct against the juvenile-flagged
// subset alone. The second return is the totals row.
func ByFacilityType(links []model.LinkRecord, isJuvenile func(model.EnrichedPoint) bool) ([]model.TypeRow, model.TypeRow) {
	if isJuvenile == nil {
		isJuvenile = func(model.EnrichedPoint) bool { return false }
	}

	type bucket struct {
		count    int
		juvenile int
	}
	buckets := make(map[string]*bucket)
	total := 0
	totalJuvenile := 0

	for _, d := range dedupe(links) {
		if !d.entity.Active() || d.confidentMatches == 0 {
			continue
		}
		typ := d.entity.FacilityType
		if typ == "" {
			typ = "UNKNOWN"
		}
		b, ok := buckets[typ]
		if !ok {
			b = &bucket{}
			buckets[typ] = b
		}
		b.count++
		total++
		if isJuvenile(d.entity) {
			b.juvenile++
			totalJuvenile++
		}
	}

	types := make([]string, 0, len(buckets))
	for typ := range buckets {
		types = append(types, typ)
	}
	sort.Strings(types)

	rows := make([]model.TypeRow, 0, len(types))
	for _, typ := range types {
		b := buckets[typ]
		rows = append(rows, model.TypeRow{
			FacilityType:  typ,
			Count:         b.count,
			Pct:           pct(b.count, total),
			JuvenileCount: b.juvenile,
			JuvenilePct:   pct(b.juvenile, totalJuvenile),
		})
	}

	totals := model.TypeRow{
		FacilityType:  "TOTAL",
		Count:         total,
		Pct:           pct(total, total),
		JuvenileCount: totalJuvenile,
		JuvenilePct:   pct(totalJuvenile, totalJuvenile),
	}
	return rows, totals
}

// JuvenileFlag returns a predicate matching targets whose named
// attribute equals value.
func JuvenileFlag(field, value string) func(model.EnrichedPoint) bool {
	return func(p model.EnrichedPoint) bool {
		return p.Attrs[field] == value
	}
}

// pct is a percentage with a defined zero when the denominator is zero.
func pct(n, denom int) float64 {
	if denom <= 0 {
		return 0
	}
	return float64(n) / float64(denom) * 100
}

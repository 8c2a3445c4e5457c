package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carceral-ecologies/pfas-cli/internal/model"
)

// lr builds a link record for a target with the given key attributes.
func lr(targetID string, pop float64, hasPop bool, status string, confident bool) model.LinkRecord {
	return model.LinkRecord{
		Target: model.EnrichedPoint{
			PointEntity: model.PointEntity{SourceType: "prisons", ID: targetID, Status: status},
		},
		Population:    pop,
		HasPopulation: hasPop,
		Confident:     confident,
	}
}

func TestOneDeduplicatesTargets(t *testing.T) {
	links := []model.LinkRecord{
		lr("t1", 100, true, "OPEN", true),
		lr("t1", 100, true, "OPEN", false), // same target, second source instance
		lr("t2", 50, true, "OPEN", false),
	}

	row := One(links, "Airports", 10)
	assert.Equal(t, "Airports", row.Label)
	assert.Equal(t, 2, row.Count)
	assert.InDelta(t, 20.0, row.Pct, 1e-9)
	assert.InDelta(t, 150.0, row.Population, 1e-9)
}

func TestOneCountNeverExceedsLinkCount(t *testing.T) {
	links := []model.LinkRecord{
		lr("t1", 0, false, "OPEN", true),
		lr("t2", 0, false, "OPEN", true),
		lr("t3", 0, false, "OPEN", true),
	}
	row := One(links, "x", 100)
	// No duplicate targets: count equals link count exactly.
	assert.Equal(t, len(links), row.Count)
}

func TestOneConfidenceORsAcrossDuplicates(t *testing.T) {
	links := []model.LinkRecord{
		lr("t1", 0, false, "OPEN", false),
		lr("t1", 0, false, "OPEN", true),
		lr("t2", 0, false, "OPEN", false),
	}
	row := One(links, "x", 10)
	assert.Equal(t, 2, row.ActiveCount)
	assert.Equal(t, 1, row.ConfidentCount)
}

func TestOneActiveExcludesClosed(t *testing.T) {
	links := []model.LinkRecord{
		lr("t1", 100, true, "OPEN", true),
		lr("t2", 200, true, model.StatusClosed, true),
	}
	row := One(links, "x", 10)
	assert.Equal(t, 2, row.Count)
	assert.Equal(t, 1, row.ActiveCount)
	assert.InDelta(t, 300.0, row.Population, 1e-9)
	assert.InDelta(t, 100.0, row.ActivePopulation, 1e-9)
	assert.InDelta(t, 100.0, row.ConfidentPopulation, 1e-9)
}

func TestOnePopulationSentinelExcluded(t *testing.T) {
	// Populations 100, missing, 50 must sum to 150, not -849.
	links := []model.LinkRecord{
		lr("t1", 100, true, "OPEN", true),
		lr("t2", 0, false, "OPEN", true),
		lr("t3", 50, true, "OPEN", true),
	}
	row := One(links, "x", 10)
	assert.InDelta(t, 150.0, row.Population, 1e-9)
}

func TestOneFixedDenominator(t *testing.T) {
	links := []model.LinkRecord{
		lr("t1", 0, false, "OPEN", true),
		lr("t2", 0, false, "OPEN", true),
		lr("t3", 0, false, "OPEN", true),
	}
	row := One(links, "x", 10)
	assert.InDelta(t, 30.0, row.Pct, 1e-9)
}

func TestOneEmptyInput(t *testing.T) {
	row := One(nil, "Landfills", 6135)
	assert.Equal(t, "Landfills", row.Label)
	assert.Zero(t, row.Count)
	assert.Zero(t, row.Pct)
	assert.Zero(t, row.Population)
	assert.Zero(t, row.ActivePct)
	assert.Zero(t, row.ConfidentPct)
}

func TestThresholdFiltersByMatchCount(t *testing.T) {
	links := []model.LinkRecord{
		lr("t1", 0, false, "OPEN", true),
		lr("t1", 0, false, "OPEN", true),
		lr("t2", 0, false, "OPEN", true),
	}

	row := Threshold(links, "Combined", 10, 1)
	assert.Equal(t, 1, row.Count) // only t1 has >1 matches

	// threshold=0 matches One after dedup.
	row0 := Threshold(links, "Combined", 10, 0)
	one := One(links, "Combined", 10)
	assert.Equal(t, one.Count, row0.Count)
	assert.InDelta(t, one.Pct, row0.Pct, 1e-9)
}

func TestThresholdConfidenceNeedsCountNotAny(t *testing.T) {
	// t1: two matches, one confident. Passes the match threshold of 1
	// but not the confident-match threshold of 1.
	links := []model.LinkRecord{
		lr("t1", 0, false, "OPEN", true),
		lr("t1", 0, false, "OPEN", false),
		lr("t2", 0, false, "OPEN", true),
		lr("t2", 0, false, "OPEN", true),
	}

	row := Threshold(links, "x", 10, 1)
	assert.Equal(t, 2, row.Count)
	assert.Equal(t, 1, row.ConfidentCount) // only t2 has 2 confident matches
}

func typedLink(targetID, facilityType, securelvl string) model.LinkRecord {
	return model.LinkRecord{
		Target: model.EnrichedPoint{
			PointEntity: model.PointEntity{
				SourceType:   "prisons",
				ID:           targetID,
				Status:       "OPEN",
				FacilityType: facilityType,
				Attrs:        map[string]string{"SECURELVL": securelvl},
			},
		},
		Confident: true,
	}
}

func TestByFacilityType(t *testing.T) {
	links := []model.LinkRecord{
		typedLink("t1", "STATE", "MAXIMUM"),
		typedLink("t2", "STATE", "JUVENILE"),
		typedLink("t3", "COUNTY", "JUVENILE"),
		typedLink("t4", "FEDERAL", "MEDIUM"),
		typedLink("t4", "FEDERAL", "MEDIUM"), // duplicate target
	}

	rows, totals := ByFacilityType(links, JuvenileFlag("SECURELVL", "JUVENILE"))
	require.Len(t, rows, 3)

	// Rows sorted by type.
	assert.Equal(t, "COUNTY", rows[0].FacilityType)
	assert.Equal(t, "FEDERAL", rows[1].FacilityType)
	assert.Equal(t, "STATE", rows[2].FacilityType)

	state := rows[2]
	assert.Equal(t, 2, state.Count)
	assert.InDelta(t, 50.0, state.Pct, 1e-9) // 2 of 4 targets

	// Juvenile percentage uses the juvenile-only denominator (2).
	assert.Equal(t, 1, state.JuvenileCount)
	assert.InDelta(t, 50.0, state.JuvenilePct, 1e-9)

	assert.Equal(t, 4, totals.Count)
	assert.InDelta(t, 100.0, totals.Pct, 1e-9)
	assert.Equal(t, 2, totals.JuvenileCount)
	assert.InDelta(t, 100.0, totals.JuvenilePct, 1e-9)
}

func TestByFacilityTypeExcludesInactiveAndUnconfident(t *testing.T) {
	closed := typedLink("t1", "STATE", "")
	closed.Target.Status = model.StatusClosed
	unconfident := typedLink("t2", "STATE", "")
	unconfident.Confident = false

	rows, totals := ByFacilityType([]model.LinkRecord{closed, unconfident, typedLink("t3", "STATE", "")}, nil)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Count)
	assert.Equal(t, 1, totals.Count)
}

func TestByFacilityTypeEmpty(t *testing.T) {
	rows, totals := ByFacilityType(nil, nil)
	assert.Empty(t, rows)
	assert.Zero(t, totals.Count)
	assert.Zero(t, totals.Pct)
	assert.Zero(t, totals.JuvenilePct)
}

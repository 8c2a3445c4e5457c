// Package report writes pipeline outputs to CSV and XLSX files for the
// research team. CSV is the working format; the XLSX workbook bundles
// the summary tables into one shareable file.
package report

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/carceral-ecologies/pfas-cli/internal/model"
)

// summaryCSVRow flattens an AggregateRow for CSV export.
type summaryCSVRow struct {
	Label               string  `csv:"source"`
	Count               int     `csv:"facilities"`
	Pct                 float64 `csv:"pct_of_total"`
	Population          float64 `csv:"population"`
	ActiveCount         int     `csv:"active_facilities"`
	ActivePct           float64 `csv:"active_pct_of_total"`
	ActivePopulation    float64 `csv:"active_population"`
	ConfidentCount      int     `csv:"confident_facilities"`
	ConfidentPct        float64 `csv:"confident_pct_of_total"`
	ConfidentPopulation float64 `csv:"confident_population"`
}

// typeCSVRow flattens a TypeRow for CSV export.
type typeCSVRow struct {
	FacilityType  string  `csv:"facility_type"`
	Count         int     `csv:"facilities"`
	Pct           float64 `csv:"pct"`
	JuvenileCount int     `csv:"juvenile_facilities"`
	JuvenilePct   float64 `csv:"juvenile_pct"`
}

// auditCSVRow flattens an AuditRow for CSV export.
type auditCSVRow struct {
	SourceType   string `csv:"source"`
	ID           string `csv:"id"`
	Name         string `csv:"name"`
	ReportedHUC8 string `csv:"reported_huc8"`
	DerivedHUC12 string `csv:"derived_huc12"`
}

// linkCSVRow flattens a LinkRecord to one row per facility/source pair.
type linkCSVRow struct {
	TargetID      string  `csv:"facility_id"`
	TargetName    string  `csv:"facility_name"`
	HUC12         string  `csv:"huc12"`
	TargetElev    float64 `csv:"facility_elevation"`
	SourceLabel   string  `csv:"source"`
	SourceID      string  `csv:"source_id"`
	SourceName    string  `csv:"source_name"`
	SourceElev    float64 `csv:"source_elevation"`
	Population    float64 `csv:"population"`
	HasPopulation bool    `csv:"has_population"`
	Confident     bool    `csv:"confident"`
}

// WriteSummaryCSV writes aggregate summary rows to path.
func WriteSummaryCSV(path string, rows []model.AggregateRow) error {
	out := make([]summaryCSVRow, len(rows))
	for i, r := range rows {
		out[i] = summaryCSVRow(r)
	}
	return writeCSV(path, out)
}

// WriteTypeCSV writes facility-type breakdown rows to path.
func WriteTypeCSV(path string, rows []model.TypeRow) error {
	out := make([]typeCSVRow, len(rows))
	for i, r := range rows {
		out[i] = typeCSVRow{
			FacilityType:  humanizeLabel(r.FacilityType),
			Count:         r.Count,
			Pct:           r.Pct,
			JuvenileCount: r.JuvenileCount,
			JuvenilePct:   r.JuvenilePct,
		}
	}
	return writeCSV(path, out)
}

// WriteAuditCSV writes watershed-code disagreement rows to path.
func WriteAuditCSV(path string, rows []model.AuditRow) error {
	out := make([]auditCSVRow, len(rows))
	for i, r := range rows {
		out[i] = auditCSVRow(r)
	}
	return writeCSV(path, out)
}

// WriteLinksCSV writes one row per facility/source link to path.
func WriteLinksCSV(path string, links []model.LinkRecord) error {
	out := make([]linkCSVRow, len(links))
	for i, l := range links {
		out[i] = linkCSVRow{
			TargetID:      l.Target.ID,
			TargetName:    l.Target.Name,
			HUC12:         l.Target.HUC12,
			TargetElev:    l.Target.Elevation,
			SourceLabel:   l.SourceLabel,
			SourceID:      l.Source.ID,
			SourceName:    l.Source.Name,
			SourceElev:    l.Source.Elevation,
			Population:    l.Population,
			HasPopulation: l.HasPopulation,
			Confident:     l.Confident,
		}
	}
	return writeCSV(path, out)
}

// writeCSV marshals rows (a slice of csv-tagged structs) to path.
func writeCSV(path string, rows any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "report: create dir for %s", path)
	}
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrapf(err, "report: marshal %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "report: write %s", path)
	}
	return nil
}

var titleCaser = cases.Title(language.AmericanEnglish)

// humanizeLabel turns an all-caps source value like "YOUTH CORRECTIONAL
// FACILITY" into title case for reports. Already mixed-case labels pass
// through unchanged.
func humanizeLabel(s string) string {
	if s == "" {
		return s
	}
	if s != strings.ToUpper(s) {
		return s
	}
	return titleCaser.String(strings.ToLower(s))
}

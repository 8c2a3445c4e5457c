package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/carceral-ecologies/pfas-cli/internal/model"
)

func TestWriteSummaryCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "summary.csv")
	rows := []model.AggregateRow{
		{Label: "Airports", Count: 12, Pct: 0.2, Population: 5400, ActiveCount: 10, ConfidentCount: 8},
		{Label: "Any source", Count: 40, Pct: 0.65},
	}
	require.NoError(t, WriteSummaryCSV(path, rows))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "source,facilities,pct_of_total,population,active_facilities,active_pct_of_total,active_population,confident_facilities,confident_pct_of_total,confident_population", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Airports,12,0.2,5400,10,"))
}

func TestWriteTypeCSV_HumanizesLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "types.csv")
	rows := []model.TypeRow{
		{FacilityType: "YOUTH CORRECTIONAL FACILITY", Count: 3, Pct: 0.1, JuvenileCount: 3, JuvenilePct: 0.3},
	}
	require.NoError(t, WriteTypeCSV(path, rows))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Youth Correctional Facility")
}

func TestWriteAuditCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.csv")
	rows := []model.AuditRow{
		{SourceType: "prisons", ID: "p1", Name: "Facility A", ReportedHUC8: "02070011", DerivedHUC12: "020700100204"},
	}
	require.NoError(t, WriteAuditCSV(path, rows))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "source,id,name,reported_huc8,derived_huc12")
	assert.Contains(t, string(data), "p1,Facility A,02070011,020700100204")
}

func TestWriteLinksCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "links.csv")
	links := []model.LinkRecord{
		{
			Target:      model.EnrichedPoint{PointEntity: model.PointEntity{ID: "p1", Name: "Facility A"}, HUC12: "020700100204", Elevation: 10},
			Source:      model.EnrichedPoint{PointEntity: model.PointEntity{ID: "a1", Name: "Field X"}, Elevation: 60},
			SourceLabel: "Airports",
			Confident:   true,
		},
	}
	require.NoError(t, WriteLinksCSV(path, links))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "facility_id")
	assert.Contains(t, string(data), "p1")
	assert.Contains(t, string(data), "Airports")
}

func TestWriteWorkbook_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	summary := []model.AggregateRow{{Label: "Airports", Count: 12, Pct: 0.2}}
	types := []model.TypeRow{{FacilityType: "STATE PRISON", Count: 5, Pct: 0.4}}

	require.NoError(t, WriteWorkbook(path, summary, types))

	wb, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 2)
	assert.Equal(t, "Summary", wb.Sheets[0].Name)
	assert.Equal(t, "Facility Types", wb.Sheets[1].Name)

	// Header plus one data row on each sheet.
	require.GreaterOrEqual(t, len(wb.Sheets[0].Rows), 2)
	assert.Equal(t, "Airports", wb.Sheets[0].Rows[1].Cells[0].String())
	assert.Equal(t, "State Prison", wb.Sheets[1].Rows[1].Cells[0].String())
}

func TestHumanizeLabel(t *testing.T) {
	assert.Equal(t, "Youth Center", humanizeLabel("YOUTH CENTER"))
	assert.Equal(t, "Already Mixed", humanizeLabel("Already Mixed"))
	assert.Equal(t, "", humanizeLabel(""))
}

package report

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/carceral-ecologies/pfas-cli/internal/model"
)

// WriteWorkbook writes the summary and facility-type tables as a single
// XLSX workbook at path.
func WriteWorkbook(path string, summary []model.AggregateRow, types []model.TypeRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "report: create dir for %s", path)
	}

	wb := xlsx.NewFile()

	if err := addSummarySheet(wb, summary); err != nil {
		return err
	}
	if err := addTypeSheet(wb, types); err != nil {
		return err
	}

	if err := wb.Save(path); err != nil {
		return eris.Wrapf(err, "report: save workbook %s", path)
	}
	return nil
}

func addSummarySheet(wb *xlsx.File, rows []model.AggregateRow) error {
	sheet, err := wb.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{
		"Source", "Facilities", "% of Total", "Population",
		"Active Facilities", "Active % of Total", "Active Population",
		"Confident Facilities", "Confident % of Total", "Confident Population",
	} {
		header.AddCell().SetString(h)
	}

	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(r.Label)
		row.AddCell().SetInt(r.Count)
		row.AddCell().SetFloat(r.Pct)
		row.AddCell().SetFloat(r.Population)
		row.AddCell().SetInt(r.ActiveCount)
		row.AddCell().SetFloat(r.ActivePct)
		row.AddCell().SetFloat(r.ActivePopulation)
		row.AddCell().SetInt(r.ConfidentCount)
		row.AddCell().SetFloat(r.ConfidentPct)
		row.AddCell().SetFloat(r.ConfidentPopulation)
	}
	return nil
}

func addTypeSheet(wb *xlsx.File, rows []model.TypeRow) error {
	sheet, err := wb.AddSheet("Facility Types")
	if err != nil {
		return eris.Wrap(err, "report: add type sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Facility Type", "Facilities", "%", "Juvenile Facilities", "Juvenile %"} {
		header.AddCell().SetString(h)
	}

	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(humanizeLabel(r.FacilityType))
		row.AddCell().SetInt(r.Count)
		row.AddCell().SetFloat(r.Pct)
		row.AddCell().SetInt(r.JuvenileCount)
		row.AddCell().SetFloat(r.JuvenilePct)
	}
	return nil
}

package ingest

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions configures the XLSX reader.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	SkipRows   int    // extra non-header rows to skip before the header
}

// ReadXLSX reads one sheet of an XLSX workbook into records keyed by the
// header row. Spreadsheet extracts (the BRAC installation list) put the
// header after a title block, hence SkipRows.
func ReadXLSX(path string, opts XLSXOptions) ([]Record, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open xlsx %s", path)
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var header []string
	var records []Record
	for i, row := range sheet.Rows {
		if i < opts.SkipRows {
			continue
		}

		cells := make([]string, len(row.Cells))
		for j, c := range row.Cells {
			cells[j] = strings.TrimSpace(c.Value)
		}

		if header == nil {
			header = cells
			continue
		}

		rec := Record{Fields: make(map[string]string, len(header))}
		for j, name := range header {
			if name == "" {
				continue
			}
			if j < len(cells) {
				rec.Fields[name] = cells[j]
			} else {
				rec.Fields[name] = ""
			}
		}
		records = append(records, rec)
	}

	return records, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("ingest: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if opts.SheetIndex < 0 || opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("ingest: sheet index %d out of range (%d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

package ingest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"ID", "Installation", "State"},
			{"1", "Fort Ord", "CA"},
			{"2", "Pease AFB", "NH"},
		},
	})

	records, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Fort Ord", records[0].Get("Installation"))
	assert.Equal(t, "NH", records[1].Get("State"))
}

func TestReadXLSXSkipRows(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"BRAC Installations 1988-2005"},
			{"ID", "Installation"},
			{"3", "Griffiss AFB"},
		},
	})

	records, err := ReadXLSX(path, XLSXOptions{SkipRows: 1})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Griffiss AFB", records[0].Get("Installation"))
}

func TestReadXLSXSheetSelection(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Notes": {{"junk"}},
		"Data":  {{"ID"}, {"9"}},
	})

	records, err := ReadXLSX(path, XLSXOptions{SheetName: "Data"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "9", records[0].Get("ID"))

	_, err = ReadXLSX(path, XLSXOptions{SheetName: "Missing"})
	assert.Error(t, err)

	_, err = ReadXLSX(path, XLSXOptions{SheetIndex: 10})
	assert.Error(t, err)
}

package ingest

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// ReadCSV reads a CSV file with a header row into records keyed by column
// name. Rows with more cells than the header are truncated; short rows
// leave the missing columns empty.
func ReadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open csv %s", path)
	}
	defer func() { _ = f.Close() }()

	return readCSV(f)
}

func readCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, eris.Wrap(err, "ingest: read csv header")
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
	}

	var records []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "ingest: read csv row")
		}

		rec := Record{Fields: make(map[string]string, len(header))}
		for i, name := range header {
			if i < len(row) {
				rec.Fields[name] = strings.TrimSpace(row[i])
			} else {
				rec.Fields[name] = ""
			}
		}
		records = append(records, rec)
	}

	return records, nil
}

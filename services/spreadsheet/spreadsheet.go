// Package spreadsheet reads uploaded roster files into import rows.
package spreadsheet

import (
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/importer"
)

var ErrUnsupportedFormat = core.NewValidationError(errors.New("unsupported file format: upload a .xlsx or .csv file"))

// ParseRows reads the first sheet of an .xlsx file, or a .csv file, picked by the extension of filename.
// The first row holds the column names; they are trimmed, lower-cased and their spaces replaced by "_".
// Rows whose cells are all empty are dropped.
func ParseRows(r io.Reader, filename string) ([]importer.Row, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		records, err = readXLSX(r)
	case ".csv":
		records, err = readCSV(r)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, core.NewValidationError(errors.Wrapf(err, "reading %s", filepath.Base(filename)))
	}
	return toRows(records), nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	return f.GetRows(sheets[0])
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr.ReadAll()
}

func normalizeHeader(h string) string {
	return strings.Join(strings.Fields(strings.ToLower(h)), "_")
}

func toRows(records [][]string) []importer.Row {
	if len(records) == 0 {
		return []importer.Row{}
	}
	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = normalizeHeader(strings.TrimPrefix(h, "\ufeff"))
	}

	rows := make([]importer.Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(importer.Row, len(headers))
		empty := true
		for i, h := range headers {
			if h == "" {
				continue
			}
			var v string
			if i < len(rec) {
				v = strings.TrimSpace(rec[i])
			}
			if v != "" {
				empty = false
			}
			row[h] = v
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	return rows
}

package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Table holds rows already ordered to match Columns.
type Table struct {
	Columns []string
	Rows    [][]string
}

// utf8BOM lets accented characters survive a double-click open in Excel.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVExporter renders tables as semicolon-separated CSV, the delimiter
// French spreadsheet locales expect.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render encodes the table. Rows shorter than the column set are padded
// with empty cells.
func (e *CSVExporter) Render(t Table) ([]byte, error) {
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("csv export needs at least one column")
	}
	buf := bytes.NewBuffer(utf8BOM)
	w := csv.NewWriter(buf)
	w.Comma = ';'
	if err := w.Write(t.Columns); err != nil {
		return nil, fmt.Errorf("write header row: %w", err)
	}
	for _, row := range t.Rows {
		record := make([]string, len(t.Columns))
		copy(record, row)
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

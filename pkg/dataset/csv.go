// Package dataset reads and writes scattered samples and smoothing results
// as CSV files or SQLite tables.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"rloess/internal/models"
)

// ErrEmpty is returned when an input holds no data rows
var ErrEmpty = errors.New("dataset: no data rows")

// ReadCSV reads samples from r. Every row holds the coordinates followed by
// the value in the last column. Empty cells and "NaN" parse as NaN; such
// rows are kept and left to the smoother to discard.
func ReadCSV(r io.Reader, hasHeader bool) (*models.Dataset, error) {
	rows, err := readRows(r, hasHeader)
	if err != nil {
		return nil, err
	}
	if len(rows[0]) < 2 {
		return nil, fmt.Errorf("dataset: need at least one coordinate and a value column, got %d columns", len(rows[0]))
	}

	ds := &models.Dataset{
		Locations: make([][]float64, len(rows)),
		Values:    make([]float64, len(rows)),
	}
	for i, row := range rows {
		last := len(row) - 1
		ds.Locations[i] = row[:last]
		ds.Values[i] = row[last]
	}
	return ds, nil
}

// ReadQueriesCSV reads query locations from r; every column is a coordinate
func ReadQueriesCSV(r io.Reader, hasHeader bool) ([][]float64, error) {
	return readRows(r, hasHeader)
}

// readRows parses a numeric CSV table with a fixed number of columns
func readRows(r io.Reader, hasHeader bool) ([][]float64, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("dataset: reading csv: %w", err)
	}
	if hasHeader && len(records) > 0 {
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, ErrEmpty
	}

	rows := make([][]float64, len(records))
	for i, rec := range records {
		row := make([]float64, len(rec))
		for j, cell := range rec {
			v, err := parseCell(cell)
			if err != nil {
				return nil, fmt.Errorf("dataset: row %d column %d: %w", i+1, j+1, err)
			}
			row[j] = v
		}
		rows[i] = row
	}
	return rows, nil
}

func parseCell(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" || strings.EqualFold(cell, "nan") || strings.EqualFold(cell, "na") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(cell, 64)
}

// WriteCSV writes one row per query: its coordinates followed by the
// estimate. Missing estimates are written as NaN.
func WriteCSV(w io.Writer, res *models.Result, header []string, precision int) error {
	cw := csv.NewWriter(w)
	if header != nil {
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("dataset: writing header: %w", err)
		}
	}

	for i, q := range res.Queries {
		rec := make([]string, 0, len(q)+1)
		for _, c := range q {
			rec = append(rec, strconv.FormatFloat(c, 'g', -1, 64))
		}
		rec = append(rec, formatValue(res.Values[i], precision))
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("dataset: writing row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatValue(v float64, precision int) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', precision, 64)
}

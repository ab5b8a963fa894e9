package frame

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/incomeml/pkg/errors"
)

// ReadCSV reads a CSV table with a header row.
//
// A column is numeric when every non-empty cell parses as a float; empty
// cells in numeric columns become NaN. Any other column is categorical.
// Names listed in categorical are always read as labels.
func ReadCSV(r io.Reader, categorical ...string) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.NewModelError("frame.ReadCSV", "empty data", errors.ErrEmptyData)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read CSV header")
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read CSV records")
	}

	forced := make(map[string]bool, len(categorical))
	for _, name := range categorical {
		forced[name] = true
	}

	cols := make([]*Column, len(header))
	for j, raw := range header {
		name := strings.TrimSpace(raw)
		cells := make([]string, len(records))
		for i, rec := range records {
			cells[i] = strings.TrimSpace(rec[j])
		}

		if !forced[name] {
			if values, ok := parseFloats(cells); ok {
				cols[j] = &Column{name: name, kind: Numeric, floats: values}
				continue
			}
		}
		cols[j] = &Column{name: name, kind: Categorical, labels: cells}
	}
	return New(cols...)
}

func parseFloats(cells []string) ([]float64, bool) {
	values := make([]float64, len(cells))
	for i, s := range cells {
		if s == "" {
			values[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}

// WriteCSV writes f as CSV with a header row.
func WriteCSV(w io.Writer, f *Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Names()); err != nil {
		return errors.Wrap(err, "failed to write CSV header")
	}
	row := make([]string, f.NumCols())
	for i := 0; i < f.NumRows(); i++ {
		for j, c := range f.cols {
			if c.kind == Numeric && math.IsNaN(c.floats[i]) {
				row[j] = ""
				continue
			}
			row[j] = c.Key(i)
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "failed to write CSV record")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "failed to flush CSV")
}

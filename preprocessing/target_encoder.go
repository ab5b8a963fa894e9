package preprocessing

import (
	"github.com/YuminosukeSato/incomeml/core/frame"
	"github.com/YuminosukeSato/incomeml/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// DefaultSmoothing is the prior weight s given to the global mean.
const DefaultSmoothing = 1.0

// TargetEncoder replaces categorical values by the smoothed mean of the target
// over the rows that share the value:
//
//	smoothed(v) = (count(v)·mean(y | v) + s·mean(y)) / (count(v) + s)
//
// TargetEncoder holds configuration only; Fit returns the learned table.
type TargetEncoder struct {
	// Columns are the designated categorical columns.
	Columns []string
	// Smoothing is s in the formula above. It must not be negative.
	Smoothing float64
}

// NewTargetEncoder creates an encoder for the designated columns.
func NewTargetEncoder(columns []string, smoothing float64) *TargetEncoder {
	return &TargetEncoder{
		Columns:   append([]string(nil), columns...),
		Smoothing: smoothing,
	}
}

// Fit learns per-category smoothed means from X and the target y.
func (e *TargetEncoder) Fit(X *frame.Frame, y []float64) (*TargetMeanTable, error) {
	if e.Smoothing < 0 {
		return nil, errors.NewValidationError("smoothing", "must be non-negative", e.Smoothing)
	}
	if X.NumRows() == 0 || len(y) == 0 {
		return nil, errors.NewModelError("TargetEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	if len(y) != X.NumRows() {
		return nil, errors.NewDimensionError("TargetEncoder.Fit", X.NumRows(), len(y), 0)
	}
	if err := errors.CheckNumericalStability("TargetEncoder.Fit", y); err != nil {
		return nil, err
	}

	columns := make([]string, 0, len(e.Columns))
	seen := make(map[string]bool, len(e.Columns))
	for _, name := range e.Columns {
		if seen[name] {
			continue
		}
		if !X.Has(name) {
			return nil, errors.NewMissingColumnError("TargetEncoder", name, X.Names())
		}
		seen[name] = true
		columns = append(columns, name)
	}

	global := stat.Mean(y, nil)
	table := &TargetMeanTable{
		GlobalMean: global,
		Smoothing:  e.Smoothing,
		Columns:    columns,
		Means:      make(map[string]map[string]float64, len(columns)),
		Counts:     make(map[string]map[string]int, len(columns)),
	}

	for _, name := range columns {
		col, _ := X.Column(name)
		sums := make(map[string]float64)
		counts := make(map[string]int)
		for i := 0; i < col.Len(); i++ {
			key := col.Key(i)
			sums[key] += y[i]
			counts[key]++
		}

		means := make(map[string]float64, len(counts))
		for key, n := range counts {
			means[key] = (sums[key] + e.Smoothing*global) / (float64(n) + e.Smoothing)
		}
		table.Means[name] = means
		table.Counts[name] = counts
	}
	return table, nil
}

// Encoding is the result of looking up one category. Known is false when the
// category was not seen during fitting and Value is the global mean.
type Encoding struct {
	Value float64
	Known bool
}

// TargetMeanTable is the fitted state of a TargetEncoder. It is never modified
// after Fit and may be shared between goroutines.
type TargetMeanTable struct {
	GlobalMean float64
	Smoothing  float64
	Columns    []string
	Means      map[string]map[string]float64
	// Counts holds the number of training rows per category.
	Counts map[string]map[string]int
}

// Lookup returns the encoding of key in column.
func (t *TargetMeanTable) Lookup(column, key string) (Encoding, error) {
	means, err := t.means(column)
	if err != nil {
		return Encoding{}, err
	}
	if v, ok := means[key]; ok {
		return Encoding{Value: v, Known: true}, nil
	}
	return Encoding{Value: t.GlobalMean}, nil
}

func (t *TargetMeanTable) means(column string) (map[string]float64, error) {
	if t == nil {
		return nil, errors.NewUnfittedColumnError("TargetEncoder", "")
	}
	means, ok := t.Means[column]
	if !ok {
		return nil, errors.NewUnfittedColumnError("TargetEncoder", column)
	}
	return means, nil
}

// Transform replaces every designated column of X by its numeric encoding.
// Unseen categories are encoded as the global mean.
func (t *TargetMeanTable) Transform(X *frame.Frame) (*frame.Frame, error) {
	out, _, err := t.TransformCounting(X)
	return out, err
}

// TransformCounting is Transform that also reports, per designated column, how
// many rows fell back to the global mean.
func (t *TargetMeanTable) TransformCounting(X *frame.Frame) (*frame.Frame, map[string]int, error) {
	if t == nil {
		return nil, nil, errors.NewUnfittedColumnError("TargetEncoder", "")
	}

	out := X
	fallbacks := make(map[string]int, len(t.Columns))
	for _, name := range t.Columns {
		means, err := t.means(name)
		if err != nil {
			return nil, nil, err
		}
		col, ok := X.Column(name)
		if !ok {
			return nil, nil, errors.NewMissingColumnError("TargetEncoder", name, X.Names())
		}

		values := make([]float64, col.Len())
		for i := range values {
			v, known := means[col.Key(i)]
			if !known {
				v = t.GlobalMean
				fallbacks[name]++
			}
			values[i] = v
		}

		out, err = out.With(frame.NewNumeric(name, values))
		if err != nil {
			return nil, nil, err
		}
	}
	return out, fallbacks, nil
}

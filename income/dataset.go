package income

import (
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/incomeml/core/frame"
	"github.com/YuminosukeSato/incomeml/pkg/errors"
	"github.com/klauspost/compress/gzip"
)

// Dataset holds the model inputs and the target of a training table.
type Dataset struct {
	Features *frame.Frame
	Target   []float64
}

// NewDataset pairs features with a target of the same length.
func NewDataset(features *frame.Frame, target []float64) (*Dataset, error) {
	if features.NumRows() != len(target) {
		return nil, errors.NewDimensionError("income.NewDataset", features.NumRows(), len(target), 0)
	}
	return &Dataset{Features: features, Target: target}, nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Target) }

// Take returns the rows at idx, in that order.
func (d *Dataset) Take(idx []int) *Dataset {
	target := make([]float64, len(idx))
	for i, row := range idx {
		target[i] = d.Target[row]
	}
	return &Dataset{Features: d.Features.Take(idx), Target: target}
}

// TrimTarget keeps rows whose target does not exceed threshold. Rows with a
// NaN target are dropped too. It returns the trimmed dataset and the number
// of dropped rows.
func (d *Dataset) TrimTarget(threshold float64) (*Dataset, int) {
	keep := make([]int, 0, d.Len())
	for i, v := range d.Target {
		if !math.IsNaN(v) && v <= threshold {
			keep = append(keep, i)
		}
	}
	return d.Take(keep), d.Len() - len(keep)
}

// DropIncomplete removes rows with a NaN numeric feature or an empty label.
func (d *Dataset) DropIncomplete() (*Dataset, int) {
	keep := make([]int, 0, d.Len())
rows:
	for i := 0; i < d.Len(); i++ {
		for j := 0; j < d.Features.NumCols(); j++ {
			c := d.Features.ColumnAt(j).Cell(i)
			if c.Kind == frame.Numeric && math.IsNaN(c.Num) {
				continue rows
			}
			if c.Kind == frame.Categorical && c.Str == "" {
				continue rows
			}
		}
		keep = append(keep, i)
	}
	return d.Take(keep), d.Len() - len(keep)
}

// TrainTestSplit shuffles the rows with seed and holds out
// ceil(testSize * n) of them for testing.
func TrainTestSplit(d *Dataset, testSize float64, seed int64) (train, test *Dataset, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	n := d.Len()
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest < 1 || nTest >= n {
		return nil, nil, errors.NewValueError("income.TrainTestSplit",
			"not enough rows to hold out a test split")
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return d.Take(perm[nTest:]), d.Take(perm[:nTest]), nil
}

// LoadDataset reads a training table and separates the target column.
// Only RawColumns are kept as features.
func LoadDataset(path, targetColumn string) (*Dataset, error) {
	table, err := LoadTable(path)
	if err != nil {
		return nil, err
	}
	return SplitTarget(table, targetColumn)
}

// LoadTable reads a table whose reader is chosen by extension: .csv, .csv.gz
// or .arrow (IPC stream). The state column is always categorical.
func LoadTable(path string) (*frame.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open dataset %s", path)
	}
	defer f.Close()

	table, err := readTable(f, path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read dataset %s", path)
	}
	return table, nil
}

func readTable(r io.Reader, path string) (*frame.Frame, error) {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, ".csv.gz"):
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create gzip reader")
		}
		defer zr.Close()
		return frame.ReadCSV(zr, ColState)
	case strings.HasSuffix(name, ".csv"):
		return frame.ReadCSV(r, ColState)
	case strings.HasSuffix(name, ".arrow"), strings.HasSuffix(name, ".arrows"):
		return frame.ReadArrowIPC(r)
	default:
		return nil, errors.NewValueError("income.LoadDataset", "unsupported dataset format: "+name)
	}
}

// SplitTarget separates targetColumn from table and selects RawColumns as
// features. The target must be numeric.
func SplitTarget(table *frame.Frame, targetColumn string) (*Dataset, error) {
	col, ok := table.Column(targetColumn)
	if !ok {
		return nil, errors.NewMissingColumnError("income.SplitTarget", targetColumn, table.Names())
	}
	if col.Kind() != frame.Numeric {
		return nil, errors.NewValueError("income.SplitTarget",
			"target column '"+targetColumn+"' is not numeric")
	}
	features, err := table.Select(RawColumns...)
	if err != nil {
		return nil, err
	}
	return NewDataset(features, col.Floats())
}

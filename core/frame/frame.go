// Package frame provides Frame, a small immutable column table.
//
// A Frame holds ordered, named columns that are either numeric or
// categorical. Every operation returns a new Frame; columns are shared
// between frames and never written after construction.
package frame

import (
	"math"
	"strconv"

	"github.com/YuminosukeSato/incomeml/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Kind is the storage kind of a column.
type Kind int

const (
	// Numeric columns store float64 values.
	Numeric Kind = iota
	// Categorical columns store string labels.
	Categorical
)

func (k Kind) String() string {
	if k == Categorical {
		return "categorical"
	}
	return "numeric"
}

// Cell is a single value read from a column.
type Cell struct {
	Kind Kind
	Num  float64
	Str  string
}

// NumberCell returns a numeric cell.
func NumberCell(v float64) Cell { return Cell{Kind: Numeric, Num: v} }

// LabelCell returns a categorical cell.
func LabelCell(s string) Cell { return Cell{Kind: Categorical, Str: s} }

// Float returns the numeric value of the cell. Labels are parsed; a label
// that is not a number yields NaN.
func (c Cell) Float() float64 {
	if c.Kind == Numeric {
		return c.Num
	}
	v, err := strconv.ParseFloat(c.Str, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// Int returns the cell as an integer code, or -1 when it is not a finite number.
func (c Cell) Int() int {
	v := c.Float()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return -1
	}
	return int(v)
}

// String returns the label of the cell, formatting numbers without trailing zeros.
func (c Cell) String() string {
	if c.Kind == Categorical {
		return c.Str
	}
	return strconv.FormatFloat(c.Num, 'g', -1, 64)
}

// Column is a named, typed sequence of values.
type Column struct {
	name   string
	kind   Kind
	floats []float64
	labels []string
}

// NewNumeric creates a numeric column. values is copied.
func NewNumeric(name string, values []float64) *Column {
	return &Column{name: name, kind: Numeric, floats: append([]float64(nil), values...)}
}

// NewCategorical creates a categorical column. labels is copied.
func NewCategorical(name string, labels []string) *Column {
	return &Column{name: name, kind: Categorical, labels: append([]string(nil), labels...)}
}

func (c *Column) Name() string { return c.name }
func (c *Column) Kind() Kind   { return c.kind }

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	if c.kind == Categorical {
		return len(c.labels)
	}
	return len(c.floats)
}

// Cell returns row i.
func (c *Column) Cell(i int) Cell {
	if c.kind == Categorical {
		return LabelCell(c.labels[i])
	}
	return NumberCell(c.floats[i])
}

// Key returns row i as a category key. Numeric values are formatted with
// strconv 'g' so that 1 and 1.0 share the key "1".
func (c *Column) Key(i int) string {
	return c.Cell(i).String()
}

// Floats returns a copy of the numeric values, or nil for categorical columns.
func (c *Column) Floats() []float64 {
	if c.kind != Numeric {
		return nil
	}
	return append([]float64(nil), c.floats...)
}

// Labels returns a copy of the labels, or nil for numeric columns.
func (c *Column) Labels() []string {
	if c.kind != Categorical {
		return nil
	}
	return append([]string(nil), c.labels...)
}

// Equal reports whether c and o have the same name, kind and values.
// NaN values compare equal to each other.
func (c *Column) Equal(o *Column) bool {
	if c.name != o.name || c.kind != o.kind || c.Len() != o.Len() {
		return false
	}
	for i := 0; i < c.Len(); i++ {
		if c.kind == Categorical {
			if c.labels[i] != o.labels[i] {
				return false
			}
			continue
		}
		a, b := c.floats[i], o.floats[i]
		if a != b && !(math.IsNaN(a) && math.IsNaN(b)) {
			return false
		}
	}
	return true
}

func (c *Column) take(rows []int) *Column {
	out := &Column{name: c.name, kind: c.kind}
	if c.kind == Categorical {
		out.labels = make([]string, len(rows))
		for j, i := range rows {
			out.labels[j] = c.labels[i]
		}
		return out
	}
	out.floats = make([]float64, len(rows))
	for j, i := range rows {
		out.floats[j] = c.floats[i]
	}
	return out
}

// Frame is an immutable table of equally long columns.
type Frame struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// New creates a frame from columns. All columns must have the same length
// and distinct names.
func New(cols ...*Column) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if i == 0 {
			f.rows = c.Len()
		} else if c.Len() != f.rows {
			return nil, errors.NewDimensionError("frame.New("+c.name+")", f.rows, c.Len(), 0)
		}
		if _, dup := f.index[c.name]; dup {
			return nil, errors.NewValueError("frame.New", "duplicate column '"+c.name+"'")
		}
		f.index[c.name] = i
		f.cols = append(f.cols, c)
	}
	return f, nil
}

// MustNew is like New but panics on error. It is intended for tests and literals.
func MustNew(cols ...*Column) *Frame {
	f, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Frame) NumRows() int { return f.rows }
func (f *Frame) NumCols() int { return len(f.cols) }

// Names returns the column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.name
	}
	return names
}

// Has reports whether the frame has a column called name.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns the named column.
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

// ColumnAt returns the i-th column.
func (f *Frame) ColumnAt(i int) *Column { return f.cols[i] }

// With returns a new frame in which col replaces the column of the same name
// at its current position, or is appended when no such column exists.
func (f *Frame) With(col *Column) (*Frame, error) {
	if len(f.cols) > 0 && col.Len() != f.rows {
		return nil, errors.NewDimensionError("Frame.With("+col.name+")", f.rows, col.Len(), 0)
	}
	cols := append([]*Column(nil), f.cols...)
	if i, ok := f.index[col.name]; ok {
		cols[i] = col
	} else {
		cols = append(cols, col)
	}
	return New(cols...)
}

// Select returns a frame with only the named columns, in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	cols := make([]*Column, 0, len(names))
	for _, name := range names {
		c, ok := f.Column(name)
		if !ok {
			return nil, errors.NewMissingColumnError("Frame.Select", name, f.Names())
		}
		cols = append(cols, c)
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		out.rows = f.rows
	}
	return out, nil
}

// Drop returns a frame without the named column. Unknown names are ignored.
func (f *Frame) Drop(name string) *Frame {
	i, ok := f.index[name]
	if !ok {
		return f
	}
	cols := append(append([]*Column(nil), f.cols[:i]...), f.cols[i+1:]...)
	out, _ := New(cols...)
	out.rows = f.rows
	return out
}

// Take returns a frame holding the given rows, in the given order.
func (f *Frame) Take(rows []int) *Frame {
	cols := make([]*Column, len(f.cols))
	for i, c := range f.cols {
		cols[i] = c.take(rows)
	}
	out, _ := New(cols...)
	out.rows = len(rows)
	return out
}

// Dense exports the named numeric columns as a rows×len(names) matrix.
// With no names, every column is exported.
func (f *Frame) Dense(names ...string) (*mat.Dense, error) {
	if len(names) == 0 {
		names = f.Names()
	}
	if f.rows == 0 || len(names) == 0 {
		return nil, errors.NewModelError("Frame.Dense", "empty data", errors.ErrEmptyData)
	}

	out := mat.NewDense(f.rows, len(names), nil)
	for j, name := range names {
		c, ok := f.Column(name)
		if !ok {
			return nil, errors.NewMissingColumnError("Frame.Dense", name, f.Names())
		}
		if c.kind != Numeric {
			return nil, errors.NewValueError("Frame.Dense", "column '"+name+"' is categorical and must be encoded first")
		}
		for i, v := range c.floats {
			out.Set(i, j, v)
		}
	}
	return out, nil
}

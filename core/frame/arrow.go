package frame

import (
	"io"
	"math"

	"github.com/YuminosukeSato/incomeml/pkg/errors"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ReadArrowIPC reads every record batch of an Arrow IPC stream into one frame.
//
// Integer and floating point fields become numeric columns (nulls are NaN);
// string fields become categorical columns (nulls are "").
func ReadArrowIPC(r io.Reader) (*Frame, error) {
	reader, err := ipc.NewReader(r, ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Arrow IPC reader")
	}
	defer reader.Release()

	schema := reader.Schema()
	cols := make([]*Column, len(schema.Fields()))
	for j, field := range schema.Fields() {
		switch field.Type.ID() {
		case arrow.STRING, arrow.LARGE_STRING:
			cols[j] = &Column{name: field.Name, kind: Categorical}
		case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
			arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
			arrow.FLOAT32, arrow.FLOAT64:
			cols[j] = &Column{name: field.Name, kind: Numeric}
		default:
			return nil, errors.NewValueError("frame.ReadArrowIPC",
				"unsupported Arrow type "+field.Type.String()+" for column '"+field.Name+"'")
		}
	}

	for reader.Next() {
		record := reader.Record()
		for j := range cols {
			if err := appendArrow(cols[j], record.Column(j)); err != nil {
				return nil, err
			}
		}
	}
	if err := reader.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read Arrow IPC stream")
	}
	return New(cols...)
}

func appendArrow(c *Column, arr arrow.Array) error {
	n := arr.Len()
	if c.kind == Categorical {
		for i := 0; i < n; i++ {
			label := ""
			if arr.IsValid(i) {
				label = arr.ValueStr(i)
			}
			c.labels = append(c.labels, label)
		}
		return nil
	}

	for i := 0; i < n; i++ {
		if arr.IsNull(i) {
			c.floats = append(c.floats, math.NaN())
			continue
		}
		var v float64
		switch a := arr.(type) {
		case *array.Float64:
			v = a.Value(i)
		case *array.Float32:
			v = float64(a.Value(i))
		case *array.Int64:
			v = float64(a.Value(i))
		case *array.Int32:
			v = float64(a.Value(i))
		case *array.Int16:
			v = float64(a.Value(i))
		case *array.Int8:
			v = float64(a.Value(i))
		case *array.Uint64:
			v = float64(a.Value(i))
		case *array.Uint32:
			v = float64(a.Value(i))
		case *array.Uint16:
			v = float64(a.Value(i))
		case *array.Uint8:
			v = float64(a.Value(i))
		default:
			return errors.NewValueError("frame.ReadArrowIPC", "unexpected array type for column '"+c.name+"'")
		}
		c.floats = append(c.floats, v)
	}
	return nil
}

// WriteArrowIPC writes f as a single-batch Arrow IPC stream. Numeric columns
// are written as float64 fields and categorical columns as utf8 fields.
func WriteArrowIPC(w io.Writer, f *Frame) error {
	fields := make([]arrow.Field, f.NumCols())
	for j, c := range f.cols {
		typ := arrow.DataType(arrow.PrimitiveTypes.Float64)
		if c.kind == Categorical {
			typ = arrow.BinaryTypes.String
		}
		fields[j] = arrow.Field{Name: c.name, Type: typ, Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()

	for j, c := range f.cols {
		if c.kind == Categorical {
			builder.Field(j).(*array.StringBuilder).AppendValues(c.labels, nil)
			continue
		}
		fb := builder.Field(j).(*array.Float64Builder)
		for _, v := range c.floats {
			if math.IsNaN(v) {
				fb.AppendNull()
				continue
			}
			fb.Append(v)
		}
	}

	record := builder.NewRecord()
	defer record.Release()

	writer := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(memory.DefaultAllocator))
	if err := writer.Write(record); err != nil {
		_ = writer.Close()
		return errors.Wrap(err, "failed to write Arrow record")
	}
	return errors.Wrap(writer.Close(), "failed to close Arrow IPC writer")
}

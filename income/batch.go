package income

import (
	"context"
	"sync"
	"time"

	"github.com/YuminosukeSato/incomeml/core/frame"
	"github.com/YuminosukeSato/incomeml/performance"
)

// PredictBatch predicts every row of table in chunks processed concurrently.
// table must contain RawColumns; other columns are ignored. Predictions are
// returned in row order and fallbacks are summed over all chunks.
func (a *Artifact) PredictBatch(ctx context.Context, table *frame.Frame, p *performance.ChunkedProcessor) ([]float64, map[string]int, error) {
	raw, err := table.Select(RawColumns...)
	if err != nil {
		return nil, nil, err
	}
	if p == nil {
		p = performance.NewChunkedProcessor(0, 0)
	}

	out := make([]float64, raw.NumRows())
	fallbacks := make(map[string]int)
	var mu sync.Mutex

	err = p.Process(ctx, raw.NumRows(), func(_ context.Context, _, start, end int) error {
		rows := make([]int, end-start)
		for i := range rows {
			rows[i] = start + i
		}
		pred, counts, err := a.PredictFrame(raw.Take(rows))
		if err != nil {
			return err
		}
		copy(out[start:end], pred)

		mu.Lock()
		for column, n := range counts {
			fallbacks[column] += n
		}
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, fallbacks, nil
}

// AppendPredictions returns table with the four response columns of adj
// appended, computed from raw at time now.
func AppendPredictions(table *frame.Frame, raw []float64, adj Adjustment, now time.Time) (*frame.Frame, error) {
	n := len(raw)
	cols := [4][]float64{make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)}
	for i, v := range raw {
		p := adj.Apply(v, now)
		cols[0][i], cols[1][i], cols[2][i], cols[3][i] = p.Reference, p.Adjusted, p.ReferenceUS, p.AdjustedUS
	}

	out := table
	for j, name := range PredictionColumns {
		var err error
		if out, err = out.With(frame.NewNumeric(name, cols[j])); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// PredictionColumns are the JSON keys of Prediction, in field order.
var PredictionColumns = []string{
	"prediction_2023", "prediction_adjusted", "prediction_2023_usd", "prediction_adjusted_usd",
}

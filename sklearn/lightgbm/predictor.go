package lightgbm

import (
	"runtime"

	"github.com/YuminosukeSato/incomeml/core/parallel"
	"github.com/YuminosukeSato/incomeml/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Predictor evaluates a Model over a batch of samples in parallel.
// Every row is scored independently, so results do not depend on the thread count.
type Predictor struct {
	model      *Model
	numThreads int
}

// NewPredictor creates a new predictor with the given model
func NewPredictor(model *Model) *Predictor {
	return &Predictor{model: model, numThreads: runtime.NumCPU()}
}

// SetNumThreads sets the number of threads for parallel prediction
func (p *Predictor) SetNumThreads(n int) {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	p.numThreads = n
}

// Predict returns an n×1 matrix of raw scores
func (p *Predictor) Predict(X mat.Matrix) (mat.Matrix, error) {
	rows, cols := X.Dims()
	if cols != p.model.NumFeatures {
		return nil, errors.NewDimensionError("Predictor.Predict", p.model.NumFeatures, cols, 1)
	}

	predictions := mat.NewDense(rows, 1, nil)
	parallel.ParallelizeWorkers(rows, p.numThreads, func(start, end int) {
		features := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(features, i, X)
			predictions.Set(i, 0, p.model.PredictRow(features))
		}
	})
	return predictions, nil
}

package lightgbm

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/YuminosukeSato/incomeml/core/model"
	"github.com/YuminosukeSato/incomeml/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// stepData は x0 が 0.5 を超えると y が 10 から 30 に跳ねるデータ。x1 はノイズ。
func stepData(n int) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(7, 11))
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x0 := rng.Float64()
		X.Set(i, 0, x0)
		X.Set(i, 1, rng.Float64())
		if x0 > 0.5 {
			y.Set(i, 0, 30)
		} else {
			y.Set(i, 0, 10)
		}
	}
	return X, y
}

func TestLGBMRegressor_FitPredict(t *testing.T) {
	X, y := stepData(200)

	reg := NewLGBMRegressor().
		WithNumIterations(50).
		WithLearningRate(0.3).
		WithNumLeaves(4).
		WithMinChildSamples(5)
	require.NoError(t, reg.Fit(X, y))
	assert.True(t, reg.IsFitted())

	pred, err := reg.Predict(mat.NewDense(2, 2, []float64{0.1, 0.7, 0.9, 0.2}))
	require.NoError(t, err)
	assert.InDelta(t, 10, pred.At(0, 0), 1)
	assert.InDelta(t, 30, pred.At(1, 0), 1)

	imp := reg.GetFeatureImportance("gain")
	require.Len(t, imp, 2)
	assert.Greater(t, imp[0], imp[1])

	score, err := reg.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.9)
}

func TestLGBMRegressor_Errors(t *testing.T) {
	X, y := stepData(60)

	t.Run("predict before fit", func(t *testing.T) {
		_, err := NewLGBMRegressor().Predict(X)
		var nf *errors.NotFittedError
		assert.True(t, errors.As(err, &nf))
	})

	t.Run("feature count mismatch", func(t *testing.T) {
		reg := NewLGBMRegressor().WithNumIterations(3)
		require.NoError(t, reg.Fit(X, y))
		_, err := reg.Predict(mat.NewDense(1, 3, nil))
		var de *errors.DimensionError
		assert.True(t, errors.As(err, &de))
	})

	t.Run("target with two columns", func(t *testing.T) {
		err := NewLGBMRegressor().Fit(X, mat.NewDense(60, 2, nil))
		var de *errors.DimensionError
		assert.True(t, errors.As(err, &de))
	})

	t.Run("validation fraction leaves no training rows", func(t *testing.T) {
		err := NewLGBMRegressor().WithEarlyStopping(5, 1.0).Fit(X, y)
		var ve *errors.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "validation_fraction", ve.ParamName)
	})

	t.Run("invalid hyperparameter", func(t *testing.T) {
		err := NewLGBMRegressor().WithNumLeaves(1).Fit(X, y)
		var ve *errors.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "num_leaves", ve.ParamName)
	})
}

func TestLGBMRegressor_EarlyStopping(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	n := 300
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, rng.Float64())
		X.Set(i, 1, rng.Float64())
		y.Set(i, 0, rng.NormFloat64())
	}

	reg := NewLGBMRegressor().
		WithNumIterations(300).
		WithLearningRate(0.5).
		WithMinChildSamples(5).
		WithEarlyStopping(5, 0.2)
	require.NoError(t, reg.Fit(X, y))

	assert.Less(t, reg.Model.NumIteration, 300)
	assert.Equal(t, reg.Model.BestIteration, reg.Model.NumIteration)

	// 学習に使った行数ではなく入力の行数が記録される
	_, samples := reg.State.GetDimensions()
	assert.Equal(t, n, samples)
}

func TestLGBMRegressor_Persistence(t *testing.T) {
	X, y := stepData(120)
	reg := NewLGBMRegressor().
		WithNumIterations(20).
		WithMinChildSamples(5).
		WithSubsample(0.8, 1).
		WithRandomState(9)
	require.NoError(t, reg.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(reg, &buf))

	loaded := &LGBMRegressor{}
	require.NoError(t, model.LoadModelFromReader(loaded, &buf))
	require.True(t, loaded.IsFitted())

	want, err := reg.Predict(X)
	require.NoError(t, err)
	got, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.InDeltaSlice(t, model.ColumnVector(want), model.ColumnVector(got), 1e-12)
}

func TestLGBMRegressor_String(t *testing.T) {
	reg := NewLGBMRegressor().WithObjective("huber").WithNumIterations(10)
	assert.Equal(t, "LGBMRegressor(objective=huber, num_iterations=10, learning_rate=0.1, num_leaves=31)", reg.String())
}

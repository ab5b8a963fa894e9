package model

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/incomeml/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

type stubModel struct {
	State   *StateManager
	Weights []float64
	Labels  map[string]float64
}

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	assert.False(t, s.IsFitted())

	err := s.RequireFitted("Stub", "Predict")
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "Stub", nf.ModelName)

	s.SetFitted(3, 10)
	assert.NoError(t, s.RequireFitted("Stub", "Predict"))
	nFeatures, nSamples := s.GetDimensions()
	assert.Equal(t, 3, nFeatures)
	assert.Equal(t, 10, nSamples)

	var dim *errors.DimensionError
	require.True(t, errors.As(s.CheckFeatures("Stub.Predict", 2), &dim))
	assert.Equal(t, 3, dim.Expected)
	assert.Equal(t, 2, dim.Got)

	s.Reset()
	assert.False(t, s.IsFitted())
}

func TestSaveLoadModel(t *testing.T) {
	state := NewStateManager()
	state.SetFitted(2, 4)
	original := &stubModel{
		State:   state,
		Weights: []float64{0.5, -1.25},
		Labels:  map[string]float64{"SP": 1500},
	}

	path := filepath.Join(t.TempDir(), "stub.gob.zst")
	require.NoError(t, SaveModel(original, path))

	var loaded stubModel
	require.NoError(t, LoadModel(&loaded, path))
	assert.True(t, loaded.State.IsFitted())
	assert.Equal(t, original.Weights, loaded.Weights)
	assert.Equal(t, original.Labels, loaded.Labels)
}

func TestLoadModelFromReader_Corrupt(t *testing.T) {
	var loaded stubModel
	err := LoadModelFromReader(&loaded, bytes.NewReader([]byte("not zstd")))
	assert.Error(t, err)
}

func TestColumnVector(t *testing.T) {
	m := mat.NewDense(3, 2, []float64{1, 9, 2, 9, 3, 9})
	assert.Equal(t, []float64{1, 2, 3}, ColumnVector(m))
}

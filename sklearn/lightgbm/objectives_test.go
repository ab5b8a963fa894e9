package lightgbm

import (
	"testing"

	"github.com/YuminosukeSato/incomeml/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestL2Objective(t *testing.T) {
	obj := NewL2Objective()

	t.Run("Gradient and Hessian", func(t *testing.T) {
		testCases := []struct {
			prediction float64
			target     float64
			expGrad    float64
			expHess    float64
		}{
			{prediction: 2.0, target: 1.0, expGrad: 1.0, expHess: 1.0},
			{prediction: 1.0, target: 2.0, expGrad: -1.0, expHess: 1.0},
			{prediction: 3.5, target: 3.5, expGrad: 0.0, expHess: 1.0},
			{prediction: -1.0, target: 1.0, expGrad: -2.0, expHess: 1.0},
		}

		for _, tc := range testCases {
			assert.InDelta(t, tc.expGrad, obj.CalculateGradient(tc.prediction, tc.target), 1e-9,
				"Gradient mismatch for pred=%.2f, target=%.2f", tc.prediction, tc.target)
			assert.InDelta(t, tc.expHess, obj.CalculateHessian(tc.prediction, tc.target), 1e-9,
				"Hessian mismatch for pred=%.2f, target=%.2f", tc.prediction, tc.target)
		}
	})

	t.Run("Loss", func(t *testing.T) {
		assert.InDelta(t, 2.0, obj.CalculateLoss(3.0, 1.0), 1e-9) // 0.5 * (3-1)^2
		assert.InDelta(t, 0.0, obj.CalculateLoss(1.0, 1.0), 1e-9)
	})

	t.Run("InitScore", func(t *testing.T) {
		assert.InDelta(t, 3.0, obj.GetInitScore([]float64{1, 2, 3, 4, 5}), 1e-9)
		assert.Equal(t, 0.0, obj.GetInitScore(nil))
	})
}

func TestL1Objective(t *testing.T) {
	obj := NewL1Objective()

	tests := []struct {
		prediction, target float64
		expGrad, expLoss   float64
	}{
		{2.0, 1.0, 1.0, 1.0},
		{1.0, 3.0, -1.0, 2.0},
		{4.0, 4.0, 0.0, 0.0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expGrad, obj.CalculateGradient(tt.prediction, tt.target))
		assert.InDelta(t, tt.expLoss, obj.CalculateLoss(tt.prediction, tt.target), 1e-9)
		assert.Equal(t, 1.0, obj.CalculateHessian(tt.prediction, tt.target))
	}

	// 初期スコアは中央値
	assert.Equal(t, 3.0, obj.GetInitScore([]float64{5, 1, 3}))
	assert.Equal(t, 2.5, obj.GetInitScore([]float64{4, 1, 3, 2}))
}

func TestHuberObjective(t *testing.T) {
	obj := NewHuberObjective(2.0)

	tests := []struct {
		name               string
		prediction, target float64
		expGrad, expLoss   float64
	}{
		{"quadratic zone", 1.5, 0.5, 1.0, 0.5},
		{"linear zone above", 5.0, 0.0, 2.0, 2.0 * (5.0 - 1.0)},
		{"linear zone below", 0.0, 5.0, -2.0, 2.0 * (5.0 - 1.0)},
		{"on the boundary", 2.0, 0.0, 2.0, 2.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expGrad, obj.CalculateGradient(tt.prediction, tt.target), 1e-9)
			assert.InDelta(t, tt.expLoss, obj.CalculateLoss(tt.prediction, tt.target), 1e-9)
		})
	}

	assert.Equal(t, 1.0, NewHuberObjective(0).delta)
}

func TestCreateObjectiveFunction(t *testing.T) {
	tests := []struct {
		objective string
		want      string
	}{
		{"", "regression"},
		{"regression", "regression"},
		{"mse", "regression"},
		{"l1", "regression_l1"},
		{"mae", "regression_l1"},
		{"huber", "huber"},
	}
	for _, tt := range tests {
		t.Run(tt.objective, func(t *testing.T) {
			obj, err := CreateObjectiveFunction(tt.objective, &TrainingParams{HuberDelta: 3})
			require.NoError(t, err)
			assert.Equal(t, tt.want, obj.Name())
		})
	}

	huber, err := CreateObjectiveFunction("huber", &TrainingParams{HuberDelta: 3})
	require.NoError(t, err)
	assert.Equal(t, 3.0, huber.(*HuberObjective).delta)

	_, err = CreateObjectiveFunction("poisson", nil)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

package lightgbm

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/incomeml/pkg/errors"
)

// ObjectiveFunction defines the interface for different objective functions
type ObjectiveFunction interface {
	// CalculateGradient calculates the gradient for a single sample
	CalculateGradient(prediction, target float64) float64

	// CalculateHessian calculates the hessian for a single sample
	CalculateHessian(prediction, target float64) float64

	// CalculateLoss calculates the loss for a single sample
	CalculateLoss(prediction, target float64) float64

	// GetInitScore returns the initial score for this objective
	GetInitScore(targets []float64) float64

	// Name returns the name of the objective
	Name() string
}

// L2Objective implements L2 (Mean Squared Error) loss
type L2Objective struct{}

func NewL2Objective() *L2Objective {
	return &L2Objective{}
}

func (o *L2Objective) CalculateGradient(prediction, target float64) float64 {
	return prediction - target
}

func (o *L2Objective) CalculateHessian(prediction, target float64) float64 {
	return 1.0
}

func (o *L2Objective) CalculateLoss(prediction, target float64) float64 {
	diff := prediction - target
	return 0.5 * diff * diff
}

func (o *L2Objective) GetInitScore(targets []float64) float64 {
	if len(targets) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, t := range targets {
		sum += t
	}
	return sum / float64(len(targets))
}

func (o *L2Objective) Name() string {
	return "regression"
}

// L1Objective implements L1 (Mean Absolute Error) loss
type L1Objective struct {
	epsilon float64
}

func NewL1Objective() *L1Objective {
	return &L1Objective{epsilon: 1e-7}
}

func (o *L1Objective) CalculateGradient(prediction, target float64) float64 {
	diff := prediction - target
	if math.Abs(diff) < o.epsilon {
		return 0.0
	}
	if diff > 0 {
		return 1.0
	}
	return -1.0
}

// CalculateHessian は定数 1 を返す (LightGBM と同じ扱い)
func (o *L1Objective) CalculateHessian(prediction, target float64) float64 {
	return 1.0
}

func (o *L1Objective) CalculateLoss(prediction, target float64) float64 {
	return math.Abs(prediction - target)
}

func (o *L1Objective) GetInitScore(targets []float64) float64 {
	return calculateMedian(targets)
}

func (o *L1Objective) Name() string {
	return "regression_l1"
}

// HuberObjective implements Huber loss: quadratic within delta, linear beyond.
// 外れ値の多い所得データ向け
type HuberObjective struct {
	delta float64
}

func NewHuberObjective(delta float64) *HuberObjective {
	if delta <= 0 {
		delta = 1.0
	}
	return &HuberObjective{delta: delta}
}

func (o *HuberObjective) CalculateGradient(prediction, target float64) float64 {
	diff := prediction - target
	if math.Abs(diff) <= o.delta {
		return diff
	}
	if diff > 0 {
		return o.delta
	}
	return -o.delta
}

func (o *HuberObjective) CalculateHessian(prediction, target float64) float64 {
	return 1.0
}

func (o *HuberObjective) CalculateLoss(prediction, target float64) float64 {
	diff := math.Abs(prediction - target)
	if diff <= o.delta {
		return 0.5 * diff * diff
	}
	return o.delta * (diff - 0.5*o.delta)
}

func (o *HuberObjective) GetInitScore(targets []float64) float64 {
	return calculateMedian(targets)
}

func (o *HuberObjective) Name() string {
	return "huber"
}

func calculateMedian(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2.0
}

// CreateObjectiveFunction creates an objective function based on the objective name
func CreateObjectiveFunction(objective string, params *TrainingParams) (ObjectiveFunction, error) {
	switch objective {
	case "", "regression", "regression_l2", "l2", "mse":
		return NewL2Objective(), nil
	case "regression_l1", "l1", "mae":
		return NewL1Objective(), nil
	case "huber":
		delta := 1.0
		if params != nil && params.HuberDelta > 0 {
			delta = params.HuberDelta
		}
		return NewHuberObjective(delta), nil
	default:
		return nil, errors.NewValidationError("objective", "unknown objective", objective)
	}
}

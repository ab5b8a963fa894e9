// Package metrics は回帰モデルの評価指標を提供します。
package metrics

import (
	"math"

	"github.com/YuminosukeSato/incomeml/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// MSEMatrix は n×1 行列形式の入力に対してMSEを計算する
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()
	if rTrue == 0 || cTrue == 0 {
		return 0, errors.NewValueError("MSEMatrix", "empty matrix")
	}
	if rTrue != rPred || cTrue != cPred {
		return 0, errors.NewDimensionError("MSEMatrix", rTrue, rPred, 0)
	}
	if cTrue != 1 {
		return 0, errors.NewValueError("MSEMatrix", "must be a column vector (n×1 matrix)")
	}

	return MSE(mat.VecDenseCopyOf(columnOf(yTrue)), mat.VecDenseCopyOf(columnOf(yPred)))
}

func columnOf(m mat.Matrix) mat.Vector {
	if cv, ok := m.(mat.ColViewer); ok {
		return cv.ColView(0)
	}
	r, _ := m.Dims()
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// R2Score は決定係数（R²）を計算する
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	yMean := mat.Sum(yTrue) / float64(n)

	var tss, rss float64
	for i := 0; i < n; i++ {
		t, p := yTrue.AtVec(i), yPred.AtVec(i)
		tss += (t - yMean) * (t - yMean)
		rss += (t - p) * (t - p)
	}

	if tss == 0 {
		return 0, errors.Newf("R2Score: total sum of squares is zero (no variance in yTrue)")
	}
	return 1 - rss/tss, nil
}

// Report は回帰評価指標のまとめ
type Report struct {
	Samples int     `json:"samples" yaml:"samples"`
	MSE     float64 `json:"mse" yaml:"mse"`
	RMSE    float64 `json:"rmse" yaml:"rmse"`
	MAE     float64 `json:"mae" yaml:"mae"`
	R2      float64 `json:"r2" yaml:"r2"`
}

// Evaluate は MSE, RMSE, MAE, R² をまとめて計算する。
// yTrue に分散がない場合、R² は 0 として報告する。
func Evaluate(yTrue, yPred []float64) (Report, error) {
	if len(yTrue) == 0 {
		return Report{}, errors.NewValueError("Evaluate", "empty vector")
	}
	if len(yPred) != len(yTrue) {
		return Report{}, errors.NewDimensionError("Evaluate", len(yTrue), len(yPred), 0)
	}
	t := mat.NewVecDense(len(yTrue), yTrue)
	p := mat.NewVecDense(len(yPred), yPred)

	mse, err := MSE(t, p)
	if err != nil {
		return Report{}, err
	}
	mae, err := MAE(t, p)
	if err != nil {
		return Report{}, err
	}
	r2, err := R2Score(t, p)
	if err != nil {
		r2 = 0
	}

	return Report{
		Samples: len(yTrue),
		MSE:     mse,
		RMSE:    math.Sqrt(mse),
		MAE:     mae,
		R2:      r2,
	}, nil
}

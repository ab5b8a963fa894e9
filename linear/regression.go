// Package linear は正規方程式による線形回帰（リッジ正則化付き）を提供します。
package linear

import (
	"fmt"

	"github.com/YuminosukeSato/incomeml/core/model"
	"github.com/YuminosukeSato/incomeml/core/parallel"
	"github.com/YuminosukeSato/incomeml/metrics"
	"github.com/YuminosukeSato/incomeml/pkg/errors"
	"github.com/YuminosukeSato/incomeml/preprocessing"
	"gonum.org/v1/gonum/mat"
)

// LinearRegression は線形回帰モデル
type LinearRegression struct {
	State *model.StateManager

	// ハイパーパラメータ
	Alpha        float64 // L2 正則化の強さ（切片には適用しない）
	FitIntercept bool
	Standardize  bool

	// 学習パラメータ
	Weights   []float64 // 重み（係数）。Standardize 時は標準化後の空間での値
	Intercept float64   // 切片
	Scaler    *preprocessing.StandardScaler
}

// NewLinearRegression は新しい線形回帰モデルを作成する
//
// 使用例:
//
//	lr := linear.NewLinearRegression(linear.WithAlpha(1.0), linear.WithStandardize(true))
//	err := lr.Fit(X, y)
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{
		State:        model.NewStateManager(),
		FitIntercept: true,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習させる
// 正規方程式 (XᵀX + αI) w = Xᵀy をコレスキー分解で解く
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LinearRegression.Fit", "y must be a column vector")
	}
	if lr.Alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", lr.Alpha)
	}

	if lr.Standardize {
		lr.Scaler = preprocessing.NewStandardScaler()
		scaled, err := lr.Scaler.FitTransform(X)
		if err != nil {
			return err
		}
		X = scaled
	}

	offset := 0
	if lr.FitIntercept {
		offset = 1
	}
	p := c + offset

	// 切片項のために X に 1 の列を追加
	design := mat.NewDense(r, p, nil)

	// 並列処理の閾値（この値以下の行数では逐次処理を使用）
	const parallelThreshold = 1000
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			if offset == 1 {
				design.Set(i, 0, 1.0)
			}
			for j := 0; j < c; j++ {
				design.Set(i, j+offset, X.At(i, j))
			}
		}
	})

	var xtx mat.SymDense
	xtx.SymOuterK(1, design.T())
	for j := offset; j < p; j++ {
		xtx.SetSym(j, j, xtx.At(j, j)+lr.Alpha)
	}

	yVec := mat.NewVecDense(r, model.ColumnVector(y))
	var xty mat.VecDense
	xty.MulVec(design.T(), yVec)

	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return errors.NewModelError("LinearRegression.Fit", "singular matrix", errors.ErrSingularMatrix)
	}
	var w mat.VecDense
	if err := chol.SolveVecTo(&w, &xty); err != nil {
		return errors.NewModelError("LinearRegression.Fit", "singular matrix", errors.ErrSingularMatrix)
	}

	lr.Intercept = 0
	if offset == 1 {
		lr.Intercept = w.AtVec(0)
	}
	lr.Weights = make([]float64, c)
	for j := 0; j < c; j++ {
		lr.Weights[j] = w.AtVec(j + offset)
	}
	if err := errors.CheckNumericalStability("LinearRegression.Fit", lr.Weights); err != nil {
		return err
	}

	if lr.State == nil {
		lr.State = model.NewStateManager()
	}
	lr.State.SetFitted(c, r)
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError("LinearRegression", "Predict")
	}
	r, c := X.Dims()
	if err := lr.State.CheckFeatures("LinearRegression.Predict", c); err != nil {
		return nil, err
	}

	if lr.Standardize && lr.Scaler != nil {
		scaled, err := lr.Scaler.Transform(X)
		if err != nil {
			return nil, err
		}
		X = scaled
	}

	// 予測: y = X * weights + intercept
	predictions := mat.NewDense(r, 1, nil)
	predictions.Mul(X, mat.NewVecDense(c, lr.Weights))
	for i := 0; i < r; i++ {
		predictions.Set(i, 0, predictions.At(i, 0)+lr.Intercept)
	}
	return predictions, nil
}

// IsFitted はモデルが学習済みかどうかを返す
func (lr *LinearRegression) IsFitted() bool {
	return lr.State != nil && lr.State.IsFitted()
}

// Score はモデルの決定係数（R²）を計算する
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	yPred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue := model.ColumnVector(y)
	return metrics.R2Score(mat.NewVecDense(len(yTrue), yTrue), mat.NewVecDense(len(yTrue), model.ColumnVector(yPred)))
}

// String はLinearRegressionの文字列表現を返す
func (lr *LinearRegression) String() string {
	return fmt.Sprintf("LinearRegression(alpha=%g, fit_intercept=%t, standardize=%t)",
		lr.Alpha, lr.FitIntercept, lr.Standardize)
}

var (
	_ model.Regressor = (*LinearRegression)(nil)
	_ model.Scorer    = (*LinearRegression)(nil)
)

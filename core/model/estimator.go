package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は列ベクトル (n×1)。
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う。戻り値は n×1 の行列。
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Regressor は回帰モデルのインターフェース
type Regressor interface {
	Fitter
	Predictor
	// IsFitted はモデルが学習済みかどうかを返す
	IsFitted() bool
}

// Scorer is implemented by models that report the coefficient of determination R².
type Scorer interface {
	Score(X, y mat.Matrix) (float64, error)
}

// ColumnVector copies the first column of m into a slice.
func ColumnVector(m mat.Matrix) []float64 {
	r, _ := m.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = m.At(i, 0)
	}
	return out
}

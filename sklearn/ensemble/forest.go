// Package ensemble はランダムフォレスト回帰と投票回帰を提供します。
package ensemble

import (
	"fmt"
	"math/rand"

	"github.com/YuminosukeSato/incomeml/core/model"
	"github.com/YuminosukeSato/incomeml/core/parallel"
	"github.com/YuminosukeSato/incomeml/pkg/errors"
	"github.com/YuminosukeSato/incomeml/sklearn/tree"
	"gonum.org/v1/gonum/mat"
)

// RandomForestRegressor はブートストラップした決定木の平均で予測する
type RandomForestRegressor struct {
	State *model.StateManager

	// ハイパーパラメータ
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	Bootstrap       bool
	RandomState     int64
	NJobs           int // 0 以下は CPU 数

	// 学習パラメータ
	Trees []*tree.DecisionTreeRegressor
}

// ForestOption はRandomForestRegressorの設定オプション
type ForestOption func(*RandomForestRegressor)

// WithNEstimators は木の本数を設定
func WithNEstimators(n int) ForestOption {
	return func(f *RandomForestRegressor) { f.NEstimators = n }
}

// WithMaxDepth は各木の最大深さを設定
func WithMaxDepth(depth int) ForestOption {
	return func(f *RandomForestRegressor) { f.MaxDepth = depth }
}

// WithMinSamplesSplit は分割に必要な最小サンプル数を設定
func WithMinSamplesSplit(n int) ForestOption {
	return func(f *RandomForestRegressor) { f.MinSamplesSplit = n }
}

// WithMinSamplesLeaf は葉に必要な最小サンプル数を設定
func WithMinSamplesLeaf(n int) ForestOption {
	return func(f *RandomForestRegressor) { f.MinSamplesLeaf = n }
}

// WithMaxFeatures は各分割で検討する特徴量数を設定
func WithMaxFeatures(n int) ForestOption {
	return func(f *RandomForestRegressor) { f.MaxFeatures = n }
}

// WithBootstrap はブートストラップサンプリングの有無を設定
func WithBootstrap(bootstrap bool) ForestOption {
	return func(f *RandomForestRegressor) { f.Bootstrap = bootstrap }
}

// WithRandomState は乱数シードを設定
func WithRandomState(seed int64) ForestOption {
	return func(f *RandomForestRegressor) { f.RandomState = seed }
}

// WithNJobs は並列に学習する木の数を設定
func WithNJobs(n int) ForestOption {
	return func(f *RandomForestRegressor) { f.NJobs = n }
}

// NewRandomForestRegressor は新しいRandomForestRegressorを作成
func NewRandomForestRegressor(options ...ForestOption) *RandomForestRegressor {
	f := &RandomForestRegressor{
		State:           model.NewStateManager(),
		NEstimators:     100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

// Fit は各木を独立に学習させる。木 i はシード RandomState+i を使う。
func (f *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("RandomForestRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	ry, cy := y.Dims()
	if ry != r {
		return errors.NewDimensionError("RandomForestRegressor.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("RandomForestRegressor.Fit", "y must be a column vector")
	}
	if f.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", f.NEstimators)
	}

	target := model.ColumnVector(y)
	trees := make([]*tree.DecisionTreeRegressor, f.NEstimators)
	errs := make([]error, f.NEstimators)

	parallel.ForEach(f.NEstimators, f.NJobs, func(i int) {
		seed := f.RandomState + int64(i)
		idx := make([]int, r)
		if f.Bootstrap {
			rng := rand.New(rand.NewSource(seed))
			for k := range idx {
				idx[k] = rng.Intn(r)
			}
		} else {
			for k := range idx {
				idx[k] = k
			}
		}

		t := tree.NewDecisionTreeRegressor(
			tree.WithMaxDepth(f.MaxDepth),
			tree.WithMinSamplesSplit(f.MinSamplesSplit),
			tree.WithMinSamplesLeaf(f.MinSamplesLeaf),
			tree.WithMaxFeatures(f.MaxFeatures),
			tree.WithRandomState(seed),
		)
		errs[i] = t.FitSample(X, target, idx)
		trees[i] = t
	})

	for i, err := range errs {
		if err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
	}

	f.Trees = trees
	if f.State == nil {
		f.State = model.NewStateManager()
	}
	f.State.SetFitted(c, r)
	return nil
}

// Predict は全ての木の予測の平均を返す
func (f *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !f.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestRegressor", "Predict")
	}
	r, c := X.Dims()
	if err := f.State.CheckFeatures("RandomForestRegressor.Predict", c); err != nil {
		return nil, err
	}

	sum := mat.NewDense(r, 1, nil)
	for _, t := range f.Trees {
		pred, err := t.Predict(X)
		if err != nil {
			return nil, err
		}
		sum.Add(sum, pred)
	}
	sum.Scale(1/float64(len(f.Trees)), sum)
	return sum, nil
}

// IsFitted はモデルが学習済みかどうかを返す
func (f *RandomForestRegressor) IsFitted() bool {
	return f.State != nil && f.State.IsFitted() && len(f.Trees) > 0
}

// FeatureImportances は各木の特徴量重要度の平均を返す
func (f *RandomForestRegressor) FeatureImportances() []float64 {
	if !f.IsFitted() {
		return nil
	}
	nFeatures, _ := f.State.GetDimensions()
	out := make([]float64, nFeatures)
	for _, t := range f.Trees {
		for j, v := range t.Importances {
			out[j] += v / float64(len(f.Trees))
		}
	}
	return out
}

// String はRandomForestRegressorの文字列表現を返す
func (f *RandomForestRegressor) String() string {
	return fmt.Sprintf("RandomForestRegressor(n_estimators=%d, max_depth=%d, min_samples_split=%d)",
		f.NEstimators, f.MaxDepth, f.MinSamplesSplit)
}

var _ model.Regressor = (*RandomForestRegressor)(nil)

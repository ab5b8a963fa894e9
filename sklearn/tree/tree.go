// Package tree は CART 決定木回帰を提供します。
package tree

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/YuminosukeSato/incomeml/core/model"
	"github.com/YuminosukeSato/incomeml/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Node は木のノード。葉では Feature が -1 になる。
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Samples   int
}

// IsLeaf reports whether n has no children.
func (n Node) IsLeaf() bool { return n.Feature < 0 }

// DecisionTreeRegressor は平均二乗誤差を最小化する CART 回帰木
type DecisionTreeRegressor struct {
	State *model.StateManager

	// ハイパーパラメータ
	MaxDepth        int   // 最大深さ（0 以下は無制限）
	MinSamplesSplit int   // 分割に必要な最小サンプル数
	MinSamplesLeaf  int   // 葉に必要な最小サンプル数
	MaxFeatures     int   // 各分割で検討する特徴量数（0 以下は全特徴量）
	RandomState     int64 // 乱数シード

	// 学習パラメータ
	Nodes       []Node
	Importances []float64
}

// Option はDecisionTreeRegressorの設定オプション
type Option func(*DecisionTreeRegressor)

// WithMaxDepth は最大深さを設定
func WithMaxDepth(depth int) Option {
	return func(t *DecisionTreeRegressor) { t.MaxDepth = depth }
}

// WithMinSamplesSplit は分割に必要な最小サンプル数を設定
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeRegressor) { t.MinSamplesSplit = n }
}

// WithMinSamplesLeaf は葉に必要な最小サンプル数を設定
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeRegressor) { t.MinSamplesLeaf = n }
}

// WithMaxFeatures は各分割で検討する特徴量数を設定
func WithMaxFeatures(n int) Option {
	return func(t *DecisionTreeRegressor) { t.MaxFeatures = n }
}

// WithRandomState は乱数シードを設定
func WithRandomState(seed int64) Option {
	return func(t *DecisionTreeRegressor) { t.RandomState = seed }
}

// NewDecisionTreeRegressor は新しいDecisionTreeRegressorを作成
//
// 使用例:
//
//	dt := tree.NewDecisionTreeRegressor(tree.WithMaxDepth(8), tree.WithMinSamplesSplit(16))
//	err := dt.Fit(X, y)
func NewDecisionTreeRegressor(options ...Option) *DecisionTreeRegressor {
	t := &DecisionTreeRegressor{
		State:           model.NewStateManager(),
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Fit は訓練データで木を構築する
func (t *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	ry, cy := y.Dims()
	if ry != r {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("DecisionTreeRegressor.Fit", "y must be a column vector")
	}

	idx := make([]int, r)
	for i := range idx {
		idx[i] = i
	}
	return t.FitSample(X, model.ColumnVector(y), idx)
}

// FitSample は idx で指定した行（重複可）だけを使って木を構築する。
// RandomForestRegressor のブートストラップ学習で使用する。
func (t *DecisionTreeRegressor) FitSample(X mat.Matrix, y []float64, idx []int) error {
	if len(idx) == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if t.MinSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", t.MinSamplesSplit)
	}
	if t.MinSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", t.MinSamplesLeaf)
	}
	if err := errors.CheckNumericalStability("DecisionTreeRegressor.Fit", y); err != nil {
		return err
	}

	_, c := X.Dims()
	b := &builder{
		tree:        t,
		X:           X,
		y:           y,
		nFeatures:   c,
		rng:         rand.New(rand.NewSource(t.RandomState)),
		importances: make([]float64, c),
	}
	t.Nodes = t.Nodes[:0]
	b.grow(append([]int(nil), idx...), 0)

	total := 0.0
	for _, v := range b.importances {
		total += v
	}
	if total > 0 {
		for j := range b.importances {
			b.importances[j] /= total
		}
	}
	t.Importances = b.importances

	if t.State == nil {
		t.State = model.NewStateManager()
	}
	t.State.SetFitted(c, len(idx))
	return nil
}

type builder struct {
	tree        *DecisionTreeRegressor
	X           mat.Matrix
	y           []float64
	nFeatures   int
	rng         *rand.Rand
	importances []float64
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	left      []int
	right     []int
}

// grow はノードを追加し、そのインデックスを返す
func (b *builder) grow(idx []int, depth int) int {
	t := b.tree
	sum, sumSq := 0.0, 0.0
	for _, i := range idx {
		sum += b.y[i]
		sumSq += b.y[i] * b.y[i]
	}
	n := float64(len(idx))
	mean := sum / n
	sse := sumSq - sum*sum/n

	node := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{Feature: -1, Value: mean, Samples: len(idx)})

	if len(idx) < t.MinSamplesSplit || (t.MaxDepth > 0 && depth >= t.MaxDepth) || sse <= 1e-12 {
		return node
	}

	best, ok := b.bestSplit(idx, sse)
	if !ok {
		return node
	}
	b.importances[best.feature] += best.gain

	left := b.grow(best.left, depth+1)
	right := b.grow(best.right, depth+1)
	t.Nodes[node] = Node{
		Feature:   best.feature,
		Threshold: best.threshold,
		Left:      left,
		Right:     right,
		Value:     mean,
		Samples:   len(idx),
	}
	return node
}

func (b *builder) candidateFeatures() []int {
	features := b.rng.Perm(b.nFeatures)
	if k := b.tree.MaxFeatures; k > 0 && k < b.nFeatures {
		features = features[:k]
	}
	return features
}

func (b *builder) bestSplit(idx []int, parentSSE float64) (split, bool) {
	minLeaf := b.tree.MinSamplesLeaf
	best := split{gain: 1e-12}
	found := false

	sorted := append([]int(nil), idx...)
	for _, f := range b.candidateFeatures() {
		sort.Slice(sorted, func(a, c int) bool {
			return b.X.At(sorted[a], f) < b.X.At(sorted[c], f)
		})

		total, totalSq := 0.0, 0.0
		for _, i := range sorted {
			total += b.y[i]
			totalSq += b.y[i] * b.y[i]
		}

		leftSum, leftSq := 0.0, 0.0
		n := len(sorted)
		for k := 0; k < n-1; k++ {
			yi := b.y[sorted[k]]
			leftSum += yi
			leftSq += yi * yi

			nl := k + 1
			nr := n - nl
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			cur, next := b.X.At(sorted[k], f), b.X.At(sorted[k+1], f)
			if cur == next {
				continue
			}

			rightSum := total - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
			if gain := parentSSE - sse; gain > best.gain {
				best = split{feature: f, threshold: cur + (next-cur)/2, gain: gain}
				found = true
			}
		}
	}
	if !found {
		return best, false
	}

	for _, i := range idx {
		if b.X.At(i, best.feature) <= best.threshold {
			best.left = append(best.left, i)
		} else {
			best.right = append(best.right, i)
		}
	}
	return best, true
}

// Predict は各行の葉の平均値を返す
func (t *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if t.State == nil {
		return nil, errors.NewNotFittedError("DecisionTreeRegressor", "Predict")
	}
	if err := t.State.RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := t.State.CheckFeatures("DecisionTreeRegressor.Predict", c); err != nil {
		return nil, err
	}

	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, t.predictRow(X, i))
	}
	return out, nil
}

func (t *DecisionTreeRegressor) predictRow(X mat.Matrix, i int) float64 {
	n := t.Nodes[0]
	for !n.IsLeaf() {
		if X.At(i, n.Feature) <= n.Threshold {
			n = t.Nodes[n.Left]
		} else {
			n = t.Nodes[n.Right]
		}
	}
	return n.Value
}

// IsFitted はモデルが学習済みかどうかを返す
func (t *DecisionTreeRegressor) IsFitted() bool {
	return t.State != nil && t.State.IsFitted()
}

// Depth は木の深さを返す（根のみの場合は 0）
func (t *DecisionTreeRegressor) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

// NLeaves は葉の数を返す
func (t *DecisionTreeRegressor) NLeaves() int {
	leaves := 0
	for _, n := range t.Nodes {
		if n.IsLeaf() {
			leaves++
		}
	}
	return leaves
}

// FeatureImportances は不純度減少に基づく正規化済みの特徴量重要度を返す
func (t *DecisionTreeRegressor) FeatureImportances() []float64 {
	return append([]float64(nil), t.Importances...)
}

// String はDecisionTreeRegressorの文字列表現を返す
func (t *DecisionTreeRegressor) String() string {
	return fmt.Sprintf("DecisionTreeRegressor(max_depth=%d, min_samples_split=%d, min_samples_leaf=%d, nodes=%d)",
		t.MaxDepth, t.MinSamplesSplit, t.MinSamplesLeaf, len(t.Nodes))
}

var _ model.Regressor = (*DecisionTreeRegressor)(nil)


package lightgbm

import (
	"math"
	"math/rand"
	"sort"

	"github.com/YuminosukeSato/incomeml/core/model"
	"github.com/YuminosukeSato/incomeml/core/parallel"
	"github.com/YuminosukeSato/incomeml/pkg/errors"
	"github.com/YuminosukeSato/incomeml/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// Trainer implements histogram-based gradient boosting with leaf-wise tree growth
type Trainer struct {
	params TrainingParams

	// Data
	X *mat.Dense
	y []float64

	// Histogram binning: bins[j][i] is the bin of sample i on feature j,
	// upper[j][b] the inclusive upper bound of bin b.
	bins  [][]int
	upper [][]float64

	// Gradient and Hessian
	gradients []float64
	hessians  []float64
	scores    []float64 // cached raw predictions of the training rows

	// Validation set used for early stopping
	valX      mat.Matrix
	valY      []float64
	valScores []float64

	trees         []Tree
	objective     ObjectiveFunction
	initScore     float64
	bestIteration int
	rng           *rand.Rand
}

// TrainingParams contains all training hyperparameters
type TrainingParams struct {
	// Basic parameters
	NumIterations int     `json:"num_iterations"`
	LearningRate  float64 `json:"learning_rate"`
	NumLeaves     int     `json:"num_leaves"`
	MaxDepth      int     `json:"max_depth"` // <= 0 means unlimited
	MinDataInLeaf int     `json:"min_data_in_leaf"`

	// Regularization
	Lambda              float64 `json:"lambda_l2"`
	MinGainToSplit      float64 `json:"min_gain_to_split"`
	MinSumHessianInLeaf float64 `json:"min_sum_hessian_in_leaf"`

	// Sampling
	BaggingFraction float64 `json:"bagging_fraction"`
	BaggingFreq     int     `json:"bagging_freq"`
	FeatureFraction float64 `json:"feature_fraction"`

	// Histogram parameters
	MaxBin int `json:"max_bin"`

	// Objective
	Objective  string  `json:"objective"`
	HuberDelta float64 `json:"huber_delta"`

	// Other
	Seed          int64 `json:"seed"`
	NumThreads    int   `json:"num_threads"`
	EarlyStopping int   `json:"early_stopping_rounds"`
	Verbosity     int   `json:"verbosity"`
}

// SplitInfo contains information about a potential split
type SplitInfo struct {
	Feature   int
	Bin       int
	Threshold float64
	Gain      float64
	LeftCount int
}

// NewTrainer creates a new trainer, filling unset parameters with LightGBM defaults
func NewTrainer(params TrainingParams) *Trainer {
	if params.NumIterations == 0 {
		params.NumIterations = 100
	}
	if params.LearningRate == 0 {
		params.LearningRate = 0.1
	}
	if params.NumLeaves == 0 {
		params.NumLeaves = 31
	}
	if params.MaxBin == 0 {
		params.MaxBin = 255
	}
	if params.MinDataInLeaf == 0 {
		params.MinDataInLeaf = 20
	}
	if params.BaggingFraction == 0 {
		params.BaggingFraction = 1.0
	}
	if params.FeatureFraction == 0 {
		params.FeatureFraction = 1.0
	}
	return &Trainer{params: params}
}

// WithValidation sets the held-out rows monitored by early stopping.
func (t *Trainer) WithValidation(X, y mat.Matrix) *Trainer {
	t.valX = X
	t.valY = model.ColumnVector(y)
	return t
}

func (t *Trainer) validateParams() error {
	p := t.params
	switch {
	case p.NumIterations < 1:
		return errors.NewValidationError("num_iterations", "must be at least 1", p.NumIterations)
	case p.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", p.LearningRate)
	case p.NumLeaves < 2:
		return errors.NewValidationError("num_leaves", "must be at least 2", p.NumLeaves)
	case p.MinDataInLeaf < 1:
		return errors.NewValidationError("min_data_in_leaf", "must be at least 1", p.MinDataInLeaf)
	case p.Lambda < 0:
		return errors.NewValidationError("lambda_l2", "must be non-negative", p.Lambda)
	case p.BaggingFraction <= 0 || p.BaggingFraction > 1:
		return errors.NewValidationError("bagging_fraction", "must be in (0, 1]", p.BaggingFraction)
	case p.FeatureFraction <= 0 || p.FeatureFraction > 1:
		return errors.NewValidationError("feature_fraction", "must be in (0, 1]", p.FeatureFraction)
	case p.MaxBin < 2:
		return errors.NewValidationError("max_bin", "must be at least 2", p.MaxBin)
	case p.EarlyStopping > 0 && t.valX == nil:
		return errors.NewValidationError("early_stopping_rounds", "requires a validation set", p.EarlyStopping)
	}
	return nil
}

// Fit trains the boosted ensemble
func (t *Trainer) Fit(X, y mat.Matrix) error {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("Trainer.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows, _ := y.Dims(); yRows != rows {
		return errors.NewDimensionError("Trainer.Fit", rows, yRows, 0)
	}
	if err := t.validateParams(); err != nil {
		return err
	}
	if t.valX != nil {
		if _, vc := t.valX.Dims(); vc != cols {
			return errors.NewDimensionError("Trainer.Fit", cols, vc, 1)
		}
	}

	objective, err := CreateObjectiveFunction(t.params.Objective, &t.params)
	if err != nil {
		return err
	}
	t.objective = objective

	t.X = mat.DenseCopyOf(X)
	t.y = model.ColumnVector(y)
	if err := errors.CheckNumericalStability("Trainer.Fit", t.y); err != nil {
		return err
	}
	t.initialize()

	logger := log.GetLoggerWithName("lightgbm.trainer")
	bestLoss := math.Inf(1)
	t.bestIteration = 0

	for iter := 0; iter < t.params.NumIterations; iter++ {
		t.calculateGradients()

		tree := t.buildTree(iter, t.sampleRows(), t.sampleFeatures())
		t.trees = append(t.trees, tree)
		t.updateScores(&tree)

		if t.params.Verbosity > 0 && iter%10 == 0 {
			logger.Debug("Training progress",
				log.IterationKey, iter,
				log.LossKey, t.trainingLoss())
		}

		if t.valX == nil || t.params.EarlyStopping <= 0 {
			continue
		}
		loss := t.validationLoss()
		if loss < bestLoss {
			bestLoss = loss
			t.bestIteration = iter + 1
		} else if iter+1-t.bestIteration >= t.params.EarlyStopping {
			if t.params.Verbosity > 0 {
				logger.Info("Early stopping",
					log.IterationKey, iter,
					"best_iteration", t.bestIteration)
			}
			break
		}
	}

	if t.bestIteration > 0 {
		t.trees = t.trees[:t.bestIteration]
	}
	return nil
}

// initialize bins every feature and resets the cached scores
func (t *Trainer) initialize() {
	rows, cols := t.X.Dims()

	t.gradients = make([]float64, rows)
	t.hessians = make([]float64, rows)
	t.initScore = t.objective.GetInitScore(t.y)
	t.scores = make([]float64, rows)
	for i := range t.scores {
		t.scores[i] = t.initScore
	}
	if t.valX != nil {
		vr, _ := t.valX.Dims()
		t.valScores = make([]float64, vr)
		for i := range t.valScores {
			t.valScores[i] = t.initScore
		}
	}

	t.bins = make([][]int, cols)
	t.upper = make([][]float64, cols)
	values := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(values, j, t.X)
		t.upper[j] = t.findBinBoundaries(values)
		t.bins[j] = make([]int, rows)
		for i, v := range values {
			t.bins[j][i] = sort.SearchFloat64s(t.upper[j], v)
		}
	}

	t.trees = nil
	t.rng = rand.New(rand.NewSource(t.params.Seed))
}

// findBinBoundaries returns ascending inclusive upper bounds. A value v falls
// into the first bin b with v <= bounds[b]; values above the last bound fall
// into the final bin.
func (t *Trainer) findBinBoundaries(values []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	unique := sorted[:1]
	for _, v := range sorted[1:] {
		if v != unique[len(unique)-1] {
			unique = append(unique, v)
		}
	}

	// 値の種類が少なければ隣接値の中点で区切る
	if len(unique) <= t.params.MaxBin {
		bounds := make([]float64, 0, len(unique)-1)
		for i := 1; i < len(unique); i++ {
			bounds = append(bounds, (unique[i-1]+unique[i])/2)
		}
		return bounds
	}

	// それ以外は等頻度分割
	n := len(sorted)
	bounds := make([]float64, 0, t.params.MaxBin-1)
	for k := 1; k < t.params.MaxBin; k++ {
		q := sorted[k*n/t.params.MaxBin]
		if len(bounds) == 0 || q > bounds[len(bounds)-1] {
			bounds = append(bounds, q)
		}
	}
	if bounds[len(bounds)-1] >= sorted[n-1] {
		bounds = bounds[:len(bounds)-1]
	}
	return bounds
}

// calculateGradients computes gradients and hessians for the cached scores
func (t *Trainer) calculateGradients() {
	for i, target := range t.y {
		t.gradients[i] = t.objective.CalculateGradient(t.scores[i], target)
		t.hessians[i] = t.objective.CalculateHessian(t.scores[i], target)
	}
}

// sampleRows draws the bagging subset for the next tree
func (t *Trainer) sampleRows() []int {
	rows := len(t.y)
	bagging := t.params.BaggingFreq > 0 && t.params.BaggingFraction < 1
	if !bagging {
		idx := make([]int, rows)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	n := int(math.Ceil(t.params.BaggingFraction * float64(rows)))
	idx := t.rng.Perm(rows)[:n]
	sort.Ints(idx)
	return idx
}

// sampleFeatures draws the feature subset for the next tree
func (t *Trainer) sampleFeatures() []int {
	cols := len(t.bins)
	n := int(math.Ceil(t.params.FeatureFraction * float64(cols)))
	if n >= cols {
		idx := make([]int, cols)
		for j := range idx {
			idx[j] = j
		}
		return idx
	}
	idx := t.rng.Perm(cols)[:n]
	sort.Ints(idx)
	return idx
}

type leafState struct {
	node  int
	rows  []int
	depth int
	split SplitInfo
	ok    bool
}

// buildTree grows one tree leaf-wise: the leaf with the largest gain is split
// next until NumLeaves is reached or no split has positive gain.
func (t *Trainer) buildTree(iter int, rows, features []int) Tree {
	tree := Tree{TreeIndex: iter, ShrinkageRate: t.params.LearningRate}
	tree.Nodes = append(tree.Nodes, t.leafNode(rows))

	root := &leafState{node: 0, rows: rows}
	t.evaluate(root, features)
	leaves := []*leafState{root}

	for len(leaves) < t.params.NumLeaves {
		best := -1
		for k, l := range leaves {
			if l.ok && (best < 0 || l.split.Gain > leaves[best].split.Gain) {
				best = k
			}
		}
		if best < 0 {
			break
		}

		parent := leaves[best]
		left, right := t.partition(parent.rows, parent.split)

		leftID, rightID := len(tree.Nodes), len(tree.Nodes)+1
		tree.Nodes = append(tree.Nodes, t.leafNode(left), t.leafNode(right))
		tree.Nodes[parent.node] = Node{
			NodeType:     NumericalNode,
			LeftChild:    leftID,
			RightChild:   rightID,
			SplitFeature: parent.split.Feature,
			Threshold:    parent.split.Threshold,
			Gain:         parent.split.Gain,
		}

		l := &leafState{node: leftID, rows: left, depth: parent.depth + 1}
		r := &leafState{node: rightID, rows: right, depth: parent.depth + 1}
		t.evaluate(l, features)
		t.evaluate(r, features)
		leaves[best] = l
		leaves = append(leaves, r)
	}

	tree.NumLeaves = len(leaves)
	return tree
}

func (t *Trainer) evaluate(l *leafState, features []int) {
	if t.params.MaxDepth > 0 && l.depth >= t.params.MaxDepth {
		return
	}
	if len(l.rows) < 2*t.params.MinDataInLeaf {
		return
	}
	l.split, l.ok = t.findBestSplit(l.rows, features)
}

// leafNode returns a leaf holding the regularized Newton step -G/(H+lambda)
func (t *Trainer) leafNode(rows []int) Node {
	var sumGrad, sumHess float64
	for _, i := range rows {
		sumGrad += t.gradients[i]
		sumHess += t.hessians[i]
	}
	value := 0.0
	if denom := sumHess + t.params.Lambda; denom > 1e-12 {
		value = -sumGrad / denom
	}
	return Node{
		NodeType:   LeafNode,
		LeftChild:  -1,
		RightChild: -1,
		LeafValue:  value,
		LeafCount:  len(rows),
	}
}

// findBestSplit scans the gradient histogram of every candidate feature.
// Features are searched concurrently; ties keep the lowest feature index.
func (t *Trainer) findBestSplit(rows, features []int) (SplitInfo, bool) {
	var totalGrad, totalHess float64
	for _, i := range rows {
		totalGrad += t.gradients[i]
		totalHess += t.hessians[i]
	}

	candidates := make([]SplitInfo, len(features))
	found := make([]bool, len(features))
	parallel.ForEach(len(features), t.params.NumThreads, func(k int) {
		candidates[k], found[k] = t.findBestSplitForFeature(rows, features[k], totalGrad, totalHess)
	})

	best, ok := SplitInfo{}, false
	for k := range candidates {
		if found[k] && (!ok || candidates[k].Gain > best.Gain) {
			best, ok = candidates[k], true
		}
	}
	return best, ok
}

func (t *Trainer) findBestSplitForFeature(rows []int, feature int, totalGrad, totalHess float64) (SplitInfo, bool) {
	upper := t.upper[feature]
	if len(upper) == 0 {
		return SplitInfo{}, false
	}

	nBins := len(upper) + 1
	grad := make([]float64, nBins)
	hess := make([]float64, nBins)
	count := make([]int, nBins)
	bins := t.bins[feature]
	for _, i := range rows {
		b := bins[i]
		grad[b] += t.gradients[i]
		hess[b] += t.hessians[i]
		count[b]++
	}

	p := t.params
	parentScore := totalGrad * totalGrad / (totalHess + p.Lambda)
	best, ok := SplitInfo{Feature: feature}, false

	var leftGrad, leftHess float64
	leftCount := 0
	for b := 0; b < nBins-1; b++ {
		leftGrad += grad[b]
		leftHess += hess[b]
		leftCount += count[b]
		if count[b] == 0 {
			continue
		}
		rightCount := len(rows) - leftCount
		if leftCount < p.MinDataInLeaf || rightCount < p.MinDataInLeaf {
			continue
		}
		rightGrad := totalGrad - leftGrad
		rightHess := totalHess - leftHess
		if leftHess < p.MinSumHessianInLeaf || rightHess < p.MinSumHessianInLeaf {
			continue
		}

		gain := 0.5 * (leftGrad*leftGrad/(leftHess+p.Lambda) +
			rightGrad*rightGrad/(rightHess+p.Lambda) - parentScore)
		if gain > p.MinGainToSplit && (!ok || gain > best.Gain) {
			best.Bin = b
			best.Threshold = upper[b]
			best.Gain = gain
			best.LeftCount = leftCount
			ok = true
		}
	}
	return best, ok
}

func (t *Trainer) partition(rows []int, split SplitInfo) (left, right []int) {
	left = make([]int, 0, split.LeftCount)
	right = make([]int, 0, len(rows)-split.LeftCount)
	bins := t.bins[split.Feature]
	for _, i := range rows {
		if bins[i] <= split.Bin {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

// updateScores adds the new tree's output to the cached training and validation scores
func (t *Trainer) updateScores(tree *Tree) {
	_, cols := t.X.Dims()
	row := make([]float64, cols)
	for i := range t.scores {
		t.scores[i] += tree.Predict(mat.Row(row, i, t.X))
	}
	for i := range t.valScores {
		t.valScores[i] += tree.Predict(mat.Row(row, i, t.valX))
	}
}

func (t *Trainer) trainingLoss() float64 {
	return t.meanLoss(t.scores, t.y)
}

func (t *Trainer) validationLoss() float64 {
	return t.meanLoss(t.valScores, t.valY)
}

func (t *Trainer) meanLoss(scores, targets []float64) float64 {
	if len(targets) == 0 {
		return 0
	}
	loss := 0.0
	for i, target := range targets {
		loss += t.objective.CalculateLoss(scores[i], target)
	}
	return loss / float64(len(targets))
}

// GetModel returns the trained model
func (t *Trainer) GetModel() *Model {
	m := NewModel()
	m.Trees = t.trees
	m.NumIteration = len(t.trees)
	m.BestIteration = t.bestIteration
	m.Objective = t.objective.Name()
	m.LearningRate = t.params.LearningRate
	m.NumLeaves = t.params.NumLeaves
	m.MaxDepth = t.params.MaxDepth
	m.InitScore = t.initScore
	if t.X != nil {
		_, m.NumFeatures = t.X.Dims()
	}
	return m
}

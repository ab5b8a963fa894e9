package lightgbm

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/YuminosukeSato/incomeml/core/model"
	"github.com/YuminosukeSato/incomeml/metrics"
	"github.com/YuminosukeSato/incomeml/pkg/errors"
	"github.com/YuminosukeSato/incomeml/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// LGBMRegressor implements a LightGBM-style gradient boosting regressor with a
// scikit-learn compatible API
type LGBMRegressor struct {
	State *model.StateManager
	Model *Model

	// Hyperparameters (matching Python LightGBM)
	NumLeaves       int     // Number of leaves in one tree
	MaxDepth        int     // Maximum tree depth, <= 0 for no limit
	LearningRate    float64 // Boosting learning rate
	NumIterations   int     // Number of boosting iterations
	MinChildSamples int     // Minimum number of data in one leaf
	MinChildWeight  float64 // Minimum sum of hessians in one leaf
	MinSplitGain    float64 // Minimum gain to make a split
	Subsample       float64 // Subsample ratio of training data
	SubsampleFreq   int     // Frequency of subsample, 0 disables bagging
	ColsampleBytree float64 // Subsample ratio of columns when constructing each tree
	RegLambda       float64 // L2 regularization
	MaxBin          int     // Maximum number of histogram bins per feature
	RandomState     int64
	Objective       string  // regression, regression_l1 or huber
	HuberDelta      float64 // Delta for the huber objective
	NumThreads      int     // <= 0 uses all cores
	Verbosity       int

	// EarlyStopping stops training after this many rounds without improvement
	// on a held-out ValidationFraction of the training rows. 0 disables it.
	EarlyStopping      int
	ValidationFraction float64
}

// NewLGBMRegressor creates a new regressor with LightGBM's default parameters
func NewLGBMRegressor() *LGBMRegressor {
	return &LGBMRegressor{
		State:              model.NewStateManager(),
		NumLeaves:          31,
		MaxDepth:           -1,
		LearningRate:       0.1,
		NumIterations:      100,
		MinChildSamples:    20,
		MinChildWeight:     1e-3,
		Subsample:          1.0,
		ColsampleBytree:    1.0,
		MaxBin:             255,
		RandomState:        42,
		Objective:          "regression",
		HuberDelta:         1.0,
		ValidationFraction: 0.1,
	}
}

// WithNumLeaves sets the number of leaves
func (lgb *LGBMRegressor) WithNumLeaves(n int) *LGBMRegressor {
	lgb.NumLeaves = n
	return lgb
}

// WithMaxDepth sets the maximum depth
func (lgb *LGBMRegressor) WithMaxDepth(d int) *LGBMRegressor {
	lgb.MaxDepth = d
	return lgb
}

// WithLearningRate sets the learning rate
func (lgb *LGBMRegressor) WithLearningRate(lr float64) *LGBMRegressor {
	lgb.LearningRate = lr
	return lgb
}

// WithNumIterations sets the number of iterations
func (lgb *LGBMRegressor) WithNumIterations(n int) *LGBMRegressor {
	lgb.NumIterations = n
	return lgb
}

// WithMinChildSamples sets the minimum number of samples per leaf
func (lgb *LGBMRegressor) WithMinChildSamples(n int) *LGBMRegressor {
	lgb.MinChildSamples = n
	return lgb
}

// WithSubsample enables bagging of fraction rows every freq iterations
func (lgb *LGBMRegressor) WithSubsample(fraction float64, freq int) *LGBMRegressor {
	lgb.Subsample = fraction
	lgb.SubsampleFreq = freq
	return lgb
}

// WithColsampleBytree sets the fraction of features considered per tree
func (lgb *LGBMRegressor) WithColsampleBytree(fraction float64) *LGBMRegressor {
	lgb.ColsampleBytree = fraction
	return lgb
}

// WithRegLambda sets the L2 regularization
func (lgb *LGBMRegressor) WithRegLambda(lambda float64) *LGBMRegressor {
	lgb.RegLambda = lambda
	return lgb
}

// WithRandomState sets the random seed
func (lgb *LGBMRegressor) WithRandomState(seed int64) *LGBMRegressor {
	lgb.RandomState = seed
	return lgb
}

// WithObjective sets the objective function
func (lgb *LGBMRegressor) WithObjective(obj string) *LGBMRegressor {
	lgb.Objective = obj
	return lgb
}

// WithEarlyStopping sets early stopping rounds and the validation fraction
func (lgb *LGBMRegressor) WithEarlyStopping(rounds int, validationFraction float64) *LGBMRegressor {
	lgb.EarlyStopping = rounds
	lgb.ValidationFraction = validationFraction
	return lgb
}

// WithNumThreads sets the number of threads for split search and prediction
func (lgb *LGBMRegressor) WithNumThreads(n int) *LGBMRegressor {
	lgb.NumThreads = n
	return lgb
}

func (lgb *LGBMRegressor) params() TrainingParams {
	maxDepth := lgb.MaxDepth
	if maxDepth < 0 {
		maxDepth = 0
	}
	return TrainingParams{
		NumIterations:       lgb.NumIterations,
		LearningRate:        lgb.LearningRate,
		NumLeaves:           lgb.NumLeaves,
		MaxDepth:            maxDepth,
		MinDataInLeaf:       lgb.MinChildSamples,
		Lambda:              lgb.RegLambda,
		MinGainToSplit:      lgb.MinSplitGain,
		MinSumHessianInLeaf: lgb.MinChildWeight,
		BaggingFraction:     lgb.Subsample,
		BaggingFreq:         lgb.SubsampleFreq,
		FeatureFraction:     lgb.ColsampleBytree,
		MaxBin:              lgb.MaxBin,
		Objective:           lgb.Objective,
		HuberDelta:          lgb.HuberDelta,
		Seed:                lgb.RandomState,
		NumThreads:          lgb.NumThreads,
		EarlyStopping:       lgb.EarlyStopping,
		Verbosity:           lgb.Verbosity,
	}
}

// Fit trains the regressor. With early stopping enabled a seeded
// ValidationFraction of the rows is held out and only the rest is boosted on.
func (lgb *LGBMRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LGBMRegressor.Fit")

	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("LGBMRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if rows != yRows {
		return errors.NewDimensionError("LGBMRegressor.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LGBMRegressor.Fit", 1, yCols, 1)
	}

	trainX, trainY := X, y
	var trainer *Trainer
	if lgb.EarlyStopping > 0 {
		var valX, valY mat.Matrix
		trainX, trainY, valX, valY, err = lgb.holdOut(X, y)
		if err != nil {
			return err
		}
		trainer = NewTrainer(lgb.params()).WithValidation(valX, valY)
	} else {
		trainer = NewTrainer(lgb.params())
	}

	if err := trainer.Fit(trainX, trainY); err != nil {
		return errors.Wrap(err, "training failed")
	}
	lgb.Model = trainer.GetModel()

	if lgb.State == nil {
		lgb.State = model.NewStateManager()
	}
	lgb.State.SetFitted(cols, rows)

	if lgb.Verbosity > 0 {
		log.GetLoggerWithName("lightgbm.regressor").Info("Training completed",
			log.ModelNameKey, lgb.String(),
			log.SamplesKey, rows,
			log.FeaturesKey, cols,
			log.IterationKey, lgb.Model.NumIteration,
		)
	}
	return nil
}

// holdOut splits off ceil(ValidationFraction*n) rows chosen with RandomState.
func (lgb *LGBMRegressor) holdOut(X, y mat.Matrix) (trainX, trainY, valX, valY mat.Matrix, err error) {
	rows, cols := X.Dims()
	nVal := int(math.Ceil(lgb.ValidationFraction * float64(rows)))
	if lgb.ValidationFraction <= 0 || nVal >= rows {
		return nil, nil, nil, nil, errors.NewValidationError("validation_fraction",
			"must leave at least one training and one validation row", lgb.ValidationFraction)
	}

	perm := rand.New(rand.NewSource(lgb.RandomState)).Perm(rows)
	take := func(idx []int) (*mat.Dense, *mat.Dense) {
		xs := mat.NewDense(len(idx), cols, nil)
		ys := mat.NewDense(len(idx), 1, nil)
		for k, i := range idx {
			for j := 0; j < cols; j++ {
				xs.Set(k, j, X.At(i, j))
			}
			ys.Set(k, 0, y.At(i, 0))
		}
		return xs, ys
	}
	tx, ty := take(perm[nVal:])
	vx, vy := take(perm[:nVal])
	return tx, ty, vx, vy, nil
}

// Predict makes predictions for input samples
func (lgb *LGBMRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !lgb.IsFitted() {
		return nil, errors.NewNotFittedError("LGBMRegressor", "Predict")
	}
	_, cols := X.Dims()
	if err := lgb.State.CheckFeatures("LGBMRegressor.Predict", cols); err != nil {
		return nil, err
	}

	p := NewPredictor(lgb.Model)
	p.SetNumThreads(lgb.NumThreads)
	return p.Predict(X)
}

// Score returns the coefficient of determination R^2 of the prediction
func (lgb *LGBMRegressor) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := lgb.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue := model.ColumnVector(y)
	yPred := model.ColumnVector(predictions)
	if len(yTrue) != len(yPred) {
		return 0, errors.NewDimensionError("LGBMRegressor.Score", len(yPred), len(yTrue), 0)
	}
	return metrics.R2Score(mat.NewVecDense(len(yTrue), yTrue), mat.NewVecDense(len(yPred), yPred))
}

// IsFitted returns whether the regressor has been trained
func (lgb *LGBMRegressor) IsFitted() bool {
	return lgb.State != nil && lgb.State.IsFitted() && lgb.Model != nil
}

// GetFeatureImportance returns feature importance scores ("split" or "gain")
func (lgb *LGBMRegressor) GetFeatureImportance(importanceType string) []float64 {
	if !lgb.IsFitted() {
		return nil
	}
	return lgb.Model.GetFeatureImportance(importanceType)
}

// String returns a string representation of the regressor
func (lgb *LGBMRegressor) String() string {
	return fmt.Sprintf("LGBMRegressor(objective=%s, num_iterations=%d, learning_rate=%g, num_leaves=%d)",
		lgb.Objective, lgb.NumIterations, lgb.LearningRate, lgb.NumLeaves)
}

var (
	_ model.Regressor = (*LGBMRegressor)(nil)
	_ model.Scorer    = (*LGBMRegressor)(nil)
)

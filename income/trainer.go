package income

import (
	"context"
	"slices"
	"time"

	"github.com/YuminosukeSato/incomeml/core/frame"
	"github.com/YuminosukeSato/incomeml/linear"
	"github.com/YuminosukeSato/incomeml/metrics"
	"github.com/YuminosukeSato/incomeml/pkg/errors"
	"github.com/YuminosukeSato/incomeml/pkg/log"
	"github.com/YuminosukeSato/incomeml/preprocessing"
	"github.com/YuminosukeSato/incomeml/sklearn/ensemble"
	"github.com/YuminosukeSato/incomeml/sklearn/lightgbm"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

// ForestConfig configures the random forest member.
type ForestConfig struct {
	NEstimators     int     `yaml:"n_estimators" validate:"min=1"`
	MinSamplesSplit int     `yaml:"min_samples_split" validate:"min=2"`
	MaxDepth        int     `yaml:"max_depth" validate:"gte=0"`
	MaxFeatures     int     `yaml:"max_features" validate:"gte=0"`
	NJobs           int     `yaml:"n_jobs"`
	Weight          float64 `yaml:"weight" validate:"gte=0"`
}

// GBDTConfig configures the gradient boosting member.
type GBDTConfig struct {
	Enabled         bool    `yaml:"enabled"`
	NumIterations   int     `yaml:"num_iterations" validate:"min=1"`
	LearningRate    float64 `yaml:"learning_rate" validate:"gt=0"`
	NumLeaves       int     `yaml:"num_leaves" validate:"min=2"`
	MaxDepth        int     `yaml:"max_depth"`
	MinChildSamples int     `yaml:"min_child_samples" validate:"min=1"`
	RegLambda       float64 `yaml:"reg_lambda" validate:"gte=0"`
	Subsample       float64 `yaml:"subsample" validate:"gt=0,lte=1"`
	SubsampleFreq   int     `yaml:"subsample_freq" validate:"gte=0"`
	ColsampleBytree float64 `yaml:"colsample_bytree" validate:"gt=0,lte=1"`
	Objective       string  `yaml:"objective" validate:"oneof=regression regression_l1 huber"`
	HuberDelta      float64 `yaml:"huber_delta" validate:"gte=0"`
	// EarlyStopping > 0 holds out ValidationFraction of the train split.
	EarlyStopping      int     `yaml:"early_stopping_rounds" validate:"gte=0"`
	ValidationFraction float64 `yaml:"validation_fraction" validate:"gte=0,lt=1"`
	Weight             float64 `yaml:"weight" validate:"gte=0"`
}

// LinearConfig configures the linear member.
type LinearConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Alpha       float64 `yaml:"alpha" validate:"gte=0"`
	Standardize bool    `yaml:"standardize"`
	Weight      float64 `yaml:"weight" validate:"gte=0"`
}

// TrainConfig describes one training run.
type TrainConfig struct {
	DataPath        string  `yaml:"data_path"`
	TargetColumn    string  `yaml:"target_column" validate:"required"`
	TargetThreshold float64 `yaml:"target_threshold" validate:"gt=0"`
	TestSize        float64 `yaml:"test_size" validate:"gt=0,lt=1"`
	RandomState     int64   `yaml:"random_state"`
	Smoothing       float64 `yaml:"smoothing" validate:"gte=0"`
	// Categorical lists the target-encoded columns. Empty selects
	// DefaultCategoricalColumns.
	Categorical []string     `yaml:"categorical"`
	Forest      ForestConfig `yaml:"forest"`
	GBDT        GBDTConfig   `yaml:"gbdt"`
	Linear      LinearConfig `yaml:"linear"`
}

// CategoricalColumns returns the target-encoded columns, falling back to
// DefaultCategoricalColumns.
func (c TrainConfig) CategoricalColumns() []string {
	if len(c.Categorical) == 0 {
		return DefaultCategoricalColumns
	}
	return c.Categorical
}

// ValidateCategorical rejects a categorical list that leaves ColState, the
// only label column of the schema, unencoded.
func (c TrainConfig) ValidateCategorical() error {
	if !slices.Contains(c.CategoricalColumns(), ColState) {
		return errors.NewValidationError("training.categorical",
			"must include the label column "+ColState, c.Categorical)
	}
	return nil
}

// checkEncoded returns a ValidationError when a label column of features is
// not in categorical. Such a column would only fail when the model matrix is
// built.
func checkEncoded(features *frame.Frame, categorical []string) error {
	for _, name := range features.Names() {
		col, _ := features.Column(name)
		if col.Kind() == frame.Categorical && !slices.Contains(categorical, name) {
			return errors.NewValidationError("training.categorical",
				"label column "+name+" must be target-encoded", categorical)
		}
	}
	return nil
}

// DefaultTrainConfig returns the settings of the reference model: a 100-tree
// forest with min_samples_split 16 voting with a 100-round gradient boosted
// ensemble of 31-leaf trees. The ridge member is off by default.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		TargetColumn:    DefaultTargetColumn,
		TargetThreshold: DefaultTargetThreshold,
		TestSize:        DefaultTestSize,
		RandomState:     42,
		Smoothing:       preprocessing.DefaultSmoothing,
		Forest: ForestConfig{
			NEstimators:     DefaultNEstimators,
			MinSamplesSplit: DefaultMinSamplesSplit,
		},
		GBDT: GBDTConfig{
			Enabled:            true,
			NumIterations:      100,
			LearningRate:       0.1,
			NumLeaves:          31,
			MaxDepth:           -1,
			MinChildSamples:    20,
			Subsample:          1,
			ColsampleBytree:    1,
			Objective:          "regression",
			HuberDelta:         1,
			ValidationFraction: 0.1,
		},
		Linear: LinearConfig{Alpha: 1, Standardize: true},
	}
}

// Train fits the pipeline and the ensemble on a train split of ds and
// evaluates them on the held-out split.
func Train(ctx context.Context, cfg TrainConfig, ds *Dataset) (*Artifact, error) {
	logger := log.GetLoggerWithName("trainer")
	start := time.Now()

	if err := cfg.ValidateCategorical(); err != nil {
		return nil, err
	}
	if err := checkEncoded(ds.Features, cfg.CategoricalColumns()); err != nil {
		return nil, err
	}

	ds, dropped := ds.DropIncomplete()
	if dropped > 0 {
		logger.Warn("Dropped incomplete rows", log.DroppedKey, dropped)
	}
	ds, trimmed := ds.TrimTarget(cfg.TargetThreshold)
	logger.Info("Trimmed target",
		log.DroppedKey, trimmed,
		"threshold", cfg.TargetThreshold,
		log.SamplesKey, ds.Len(),
	)

	train, test, err := TrainTestSplit(ds, cfg.TestSize, cfg.RandomState)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pipeline, err := NewPipeline(cfg.CategoricalColumns(), cfg.Smoothing).Fit(train.Features, train.Target)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fit pipeline")
	}
	X, err := pipeline.Dense(train.Features)
	if err != nil {
		return nil, err
	}
	y := mat.NewDense(train.Len(), 1, append([]float64(nil), train.Target...))

	a := &Artifact{
		ID:           uuid.New(),
		TargetColumn: cfg.TargetColumn,
		Pipeline:     pipeline,
		Forest: ensemble.NewRandomForestRegressor(
			ensemble.WithNEstimators(cfg.Forest.NEstimators),
			ensemble.WithMinSamplesSplit(cfg.Forest.MinSamplesSplit),
			ensemble.WithMaxDepth(cfg.Forest.MaxDepth),
			ensemble.WithMaxFeatures(cfg.Forest.MaxFeatures),
			ensemble.WithNJobs(cfg.Forest.NJobs),
			ensemble.WithRandomState(cfg.RandomState),
		),
		Weights:      map[string]float64{MemberForest: cfg.Forest.Weight},
		TrainSamples: train.Len(),
	}
	if cfg.GBDT.Enabled {
		a.Boosted = newBoosted(cfg.GBDT, cfg.RandomState)
		a.Weights[MemberBoosted] = cfg.GBDT.Weight
	}
	if cfg.Linear.Enabled {
		a.Linear = linear.NewLinearRegression(
			linear.WithAlpha(cfg.Linear.Alpha),
			linear.WithStandardize(cfg.Linear.Standardize),
		)
		a.Weights[MemberLinear] = cfg.Linear.Weight
	}

	reg, err := ensembleOf(a)
	if err != nil {
		return nil, err
	}
	logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.ModelNameKey, reg.String(),
		log.SamplesKey, train.Len(),
		log.FeaturesKey, len(pipeline.Features),
	)
	if err := reg.Fit(X, y); err != nil {
		return nil, errors.Wrap(err, "failed to fit ensemble")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pred, _, err := a.PredictFrame(test.Features)
	if err != nil {
		return nil, errors.Wrap(err, "failed to evaluate")
	}
	report, err := metrics.Evaluate(test.Target, pred)
	if err != nil {
		return nil, err
	}
	a.Metrics = report
	a.TrainedAt = time.Now().UTC()

	logger.Info("Training finished",
		log.OperationKey, log.OperationScore,
		log.SamplesKey, report.Samples,
		log.MSEKey, report.MSE,
		log.RMSEKey, report.RMSE,
		log.MAEKey, report.MAE,
		log.R2ScoreKey, report.R2,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return a, nil
}

// TrainFile loads cfg.DataPath and trains on it.
func TrainFile(ctx context.Context, cfg TrainConfig) (*Artifact, error) {
	ds, err := LoadDataset(cfg.DataPath, cfg.TargetColumn)
	if err != nil {
		return nil, err
	}
	log.GetLoggerWithName("trainer").Info("Dataset loaded",
		log.PathKey, cfg.DataPath,
		log.SamplesKey, ds.Len(),
	)
	return Train(ctx, cfg, ds)
}

// ensembleOf builds the voting regressor over the members of a.
func ensembleOf(a *Artifact) (*ensemble.VotingRegressor, error) {
	var members []ensemble.Member
	if a.Forest != nil {
		members = append(members, ensemble.Member{Name: MemberForest, Estimator: a.Forest, Weight: a.Weights[MemberForest]})
	}
	if a.Boosted != nil {
		members = append(members, ensemble.Member{Name: MemberBoosted, Estimator: a.Boosted, Weight: a.Weights[MemberBoosted]})
	}
	if a.Linear != nil {
		members = append(members, ensemble.Member{Name: MemberLinear, Estimator: a.Linear, Weight: a.Weights[MemberLinear]})
	}
	if len(members) == 0 {
		return nil, errors.NewValidationError("members", "at least one estimator is required", 0)
	}
	return ensemble.NewVotingRegressor(members...), nil
}

func newBoosted(c GBDTConfig, seed int64) *lightgbm.LGBMRegressor {
	reg := lightgbm.NewLGBMRegressor().
		WithNumIterations(c.NumIterations).
		WithLearningRate(c.LearningRate).
		WithNumLeaves(c.NumLeaves).
		WithMaxDepth(c.MaxDepth).
		WithMinChildSamples(c.MinChildSamples).
		WithRegLambda(c.RegLambda).
		WithSubsample(c.Subsample, c.SubsampleFreq).
		WithColsampleBytree(c.ColsampleBytree).
		WithObjective(c.Objective).
		WithEarlyStopping(c.EarlyStopping, c.ValidationFraction).
		WithRandomState(seed)
	reg.HuberDelta = c.HuberDelta
	return reg
}

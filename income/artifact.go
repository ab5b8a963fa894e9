package income

import (
	"time"

	"github.com/YuminosukeSato/incomeml/core/frame"
	"github.com/YuminosukeSato/incomeml/core/model"
	"github.com/YuminosukeSato/incomeml/linear"
	"github.com/YuminosukeSato/incomeml/metrics"
	"github.com/YuminosukeSato/incomeml/pkg/errors"
	"github.com/YuminosukeSato/incomeml/preprocessing"
	"github.com/YuminosukeSato/incomeml/sklearn/ensemble"
	"github.com/YuminosukeSato/incomeml/sklearn/lightgbm"
	"github.com/google/uuid"
)

// Member names of the voting ensemble.
const (
	MemberForest  = "random_forest"
	MemberBoosted = "lightgbm"
	MemberLinear  = "linear"
)

// Artifact is everything needed to serve predictions: the fitted pipeline,
// the ensemble members and the evaluation of the held-out split.
type Artifact struct {
	ID           uuid.UUID
	TrainedAt    time.Time
	TargetColumn string

	Pipeline *preprocessing.FittedPipeline
	Forest   *ensemble.RandomForestRegressor
	Boosted  *lightgbm.LGBMRegressor
	Linear   *linear.LinearRegression
	// Weights are the voting weights keyed by member name. Missing means 1.
	Weights map[string]float64

	TrainSamples int
	Metrics      metrics.Report
}

// Regressor assembles the voting ensemble from the stored members.
func (a *Artifact) Regressor() (*ensemble.VotingRegressor, error) {
	v, err := ensembleOf(a)
	if err != nil {
		return nil, err
	}
	if !v.IsFitted() {
		return nil, errors.NewNotFittedError("Artifact", "Predict")
	}
	return v, nil
}

// Predict returns the raw model output for each record together with the
// number of unseen categories that fell back to the global mean, per column.
// Records are expected to be validated.
func (a *Artifact) Predict(records ...Record) ([]float64, map[string]int, error) {
	if len(records) == 0 {
		return nil, nil, errors.NewModelError("Artifact.Predict", "empty data", errors.ErrEmptyData)
	}
	raw, err := Records(records...)
	if err != nil {
		return nil, nil, err
	}
	return a.PredictFrame(raw)
}

// PredictFrame is Predict for a frame with the RawColumns schema.
func (a *Artifact) PredictFrame(raw *frame.Frame) ([]float64, map[string]int, error) {
	encoded, fallbacks, err := a.Pipeline.TransformCounting(raw)
	if err != nil {
		return nil, nil, err
	}
	X, err := encoded.Dense(a.Pipeline.Features...)
	if err != nil {
		return nil, nil, err
	}

	reg, err := a.Regressor()
	if err != nil {
		return nil, nil, err
	}
	pred, err := reg.Predict(X)
	if err != nil {
		return nil, nil, err
	}
	return model.ColumnVector(pred), fallbacks, nil
}

// Info summarizes the artifact for clients.
type Info struct {
	ID           string             `json:"id" yaml:"id"`
	TrainedAt    time.Time          `json:"trained_at" yaml:"trained_at"`
	TargetColumn string             `json:"target_column" yaml:"target_column"`
	Features     []string           `json:"features" yaml:"features"`
	Encoded      []string           `json:"encoded_columns" yaml:"encoded_columns"`
	Members      map[string]float64 `json:"members" yaml:"members"`
	TrainSamples int                `json:"train_samples" yaml:"train_samples"`
	Metrics      metrics.Report     `json:"metrics" yaml:"metrics"`
}

// Info returns a summary of a.
func (a *Artifact) Info() Info {
	info := Info{
		ID:           a.ID.String(),
		TrainedAt:    a.TrainedAt,
		TargetColumn: a.TargetColumn,
		Members:      map[string]float64{},
		TrainSamples: a.TrainSamples,
		Metrics:      a.Metrics,
	}
	if a.Pipeline != nil {
		info.Features = append([]string(nil), a.Pipeline.Features...)
		if a.Pipeline.Table != nil {
			info.Encoded = append([]string(nil), a.Pipeline.Table.Columns...)
		}
	}
	if reg, err := a.Regressor(); err == nil {
		for _, m := range reg.Members {
			w := m.Weight
			if w <= 0 {
				w = 1
			}
			info.Members[m.Name] = w
		}
	}
	return info
}

// Save writes a as a zstd-compressed gob file.
func (a *Artifact) Save(path string) error {
	return model.SaveModel(a, path)
}

// LoadArtifact reads an artifact written by Save and re-attaches the
// derivation rules of the survey schema.
func LoadArtifact(path string) (*Artifact, error) {
	var a Artifact
	if err := model.LoadModel(&a, path); err != nil {
		return nil, err
	}
	return a.bind()
}

func (a *Artifact) bind() (*Artifact, error) {
	if a.Pipeline == nil {
		return nil, errors.NewUnfittedColumnError("Pipeline", "")
	}
	pipeline, err := a.Pipeline.Bind(Rules())
	if err != nil {
		return nil, err
	}
	a.Pipeline = pipeline
	if _, err := a.Regressor(); err != nil {
		return nil, err
	}
	return a, nil
}

package income

import (
	"bytes"
	"context"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/incomeml/core/frame"
	"github.com/YuminosukeSato/incomeml/pkg/errors"
	"github.com/YuminosukeSato/incomeml/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticDataset は就学年数と州で月収が決まる合成データを作る
func syntheticDataset(t *testing.T, n int) *Dataset {
	t.Helper()
	rng := rand.New(rand.NewPCG(3, 5))

	records := make([]Record, n)
	target := make([]float64, n)
	for i := range records {
		r := validRecord()
		r.State = States[i%len(States)]
		r.Age = 18 + rng.IntN(50)
		r.Sex = 1 + rng.IntN(2)
		r.StudiedYears = rng.IntN(17)
		r.HoursValue = 10 + rng.IntN(60)
		records[i] = r

		income := 800 + 150*float64(r.StudiedYears) + rng.Float64()*200
		if r.State == "SP" || r.State == "RJ" {
			income += 1500
		}
		target[i] = income
	}

	features, err := Records(records...)
	require.NoError(t, err)
	ds, err := NewDataset(features, target)
	require.NoError(t, err)
	return ds
}

func smallConfig() TrainConfig {
	cfg := DefaultTrainConfig()
	cfg.Forest.NEstimators = 10
	cfg.Forest.NJobs = 2
	cfg.GBDT.NumIterations = 30
	cfg.GBDT.MinChildSamples = 5
	return cfg
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetProvider(log.NewZerologProviderWithWriter(&buf, log.LevelInfo))
	t.Cleanup(func() { log.SetProvider(log.NewZerologProvider(log.LevelInfo)) })
	return &buf
}

func TestTrain(t *testing.T) {
	logs := captureLogs(t)
	ds := syntheticDataset(t, 240)

	a, err := Train(context.Background(), smallConfig(), ds)
	require.NoError(t, err)

	assert.Equal(t, 180, a.TrainSamples)
	assert.Equal(t, 60, a.Metrics.Samples)
	assert.Greater(t, a.Metrics.R2, 0.5)
	assert.False(t, a.TrainedAt.IsZero())
	assert.NotEmpty(t, a.ID.String())

	require.NotNil(t, a.Forest)
	require.NotNil(t, a.Boosted)
	assert.Nil(t, a.Linear)
	assert.Len(t, a.Forest.Trees, 10)
	assert.True(t, a.Boosted.IsFitted())
	assert.Equal(t, 30, a.Boosted.Model.NumIteration)

	assert.Contains(t, logs.String(), "Training finished")
	assert.Contains(t, logs.String(), `"ml.component":"trainer"`)
}

func TestTrain_Members(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*TrainConfig)
		members map[string]float64
	}{
		{
			name:    "forest only",
			modify:  func(c *TrainConfig) { c.GBDT.Enabled = false },
			members: map[string]float64{MemberForest: 1},
		},
		{
			name: "all members weighted",
			modify: func(c *TrainConfig) {
				c.GBDT.Weight = 2
				c.Linear.Enabled = true
			},
			members: map[string]float64{MemberForest: 1, MemberBoosted: 2, MemberLinear: 1},
		},
		{
			name: "boosting with early stopping",
			modify: func(c *TrainConfig) {
				c.GBDT.NumIterations = 500
				c.GBDT.EarlyStopping = 3
				c.GBDT.ValidationFraction = 0.2
			},
			members: map[string]float64{MemberForest: 1, MemberBoosted: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			captureLogs(t)
			cfg := smallConfig()
			tt.modify(&cfg)

			a, err := Train(context.Background(), cfg, syntheticDataset(t, 80))
			require.NoError(t, err)
			assert.Equal(t, tt.members, a.Info().Members)
			if a.Boosted != nil {
				assert.LessOrEqual(t, a.Boosted.Model.NumIteration, cfg.GBDT.NumIterations)
			}
		})
	}
}

func TestTrain_Canceled(t *testing.T) {
	captureLogs(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Train(ctx, smallConfig(), syntheticDataset(t, 40))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestTrain_InvalidCategorical(t *testing.T) {
	captureLogs(t)
	cfg := smallConfig()
	cfg.Categorical = []string{ColState, "income_bracket"}

	_, err := Train(context.Background(), cfg, syntheticDataset(t, 40))
	var mc *errors.MissingColumnError
	require.True(t, errors.As(err, &mc))
	assert.Equal(t, "income_bracket", mc.Column)
}

func TestTrain_LabelColumnNotEncoded(t *testing.T) {
	captureLogs(t)
	ds := syntheticDataset(t, 40)

	t.Run("configured list", func(t *testing.T) {
		cfg := smallConfig()
		cfg.Categorical = []string{ColSex, ColRegion}

		_, err := Train(context.Background(), cfg, ds)
		var ve *errors.ValidationError
		require.True(t, errors.As(err, &ve), "got %v", err)
		assert.Equal(t, "training.categorical", ve.ParamName)
	})

	t.Run("extra label column in the data", func(t *testing.T) {
		extra, err := ds.Features.With(frame.NewCategorical("city", make([]string, ds.Len())))
		require.NoError(t, err)
		withCity, err := NewDataset(extra, ds.Target)
		require.NoError(t, err)

		_, err = Train(context.Background(), smallConfig(), withCity)
		var ve *errors.ValidationError
		require.True(t, errors.As(err, &ve), "got %v", err)
		assert.Contains(t, ve.Reason, "city")
	})
}

func TestArtifact_SaveLoadPredict(t *testing.T) {
	captureLogs(t)
	a, err := Train(context.Background(), smallConfig(), syntheticDataset(t, 120))
	require.NoError(t, err)

	sp, ba := validRecord(), validRecord()
	ba.State = "BA"
	want, fallbacks, err := a.Predict(sp, ba)
	require.NoError(t, err)
	require.Len(t, want, 2)
	assert.Empty(t, fallbacks)
	assert.Greater(t, want[0], want[1])

	path := filepath.Join(t.TempDir(), "model.gob.zst")
	require.NoError(t, a.Save(path))

	loaded, err := LoadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, a.ID, loaded.ID)
	assert.Equal(t, a.Metrics, loaded.Metrics)
	assert.Equal(t, a.Pipeline.Features, loaded.Pipeline.Features)

	got, _, err := loaded.Predict(sp, ba)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestArtifact_UnseenCategoryFallsBack(t *testing.T) {
	captureLogs(t)
	a, err := Train(context.Background(), smallConfig(), syntheticDataset(t, 120))
	require.NoError(t, err)

	r := validRecord()
	r.State = "ZZ"
	pred, fallbacks, err := a.Predict(r)
	require.NoError(t, err)
	assert.Len(t, pred, 1)
	assert.Equal(t, map[string]int{ColState: 1}, fallbacks)
}

func TestArtifact_Errors(t *testing.T) {
	_, _, err := (&Artifact{}).Predict(validRecord())
	var unfitted *errors.UnfittedColumnError
	assert.True(t, errors.As(err, &unfitted))

	_, _, err = (&Artifact{}).Predict()
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	_, err = LoadArtifact(filepath.Join(t.TempDir(), "missing.gob.zst"))
	assert.Error(t, err)
}

func TestArtifact_Info(t *testing.T) {
	captureLogs(t)
	a, err := Train(context.Background(), smallConfig(), syntheticDataset(t, 80))
	require.NoError(t, err)

	info := a.Info()
	assert.Equal(t, a.ID.String(), info.ID)
	assert.Equal(t, DefaultTargetColumn, info.TargetColumn)
	assert.Equal(t, DefaultCategoricalColumns, info.Encoded)
	assert.Equal(t, map[string]float64{MemberForest: 1, MemberBoosted: 1}, info.Members)
	assert.Len(t, info.Features, len(RawColumns)+len(Derivations()))
}

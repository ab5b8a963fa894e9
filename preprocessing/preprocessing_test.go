package preprocessing

import (
	"bytes"
	"encoding/gob"
	"math"
	"sync"
	"testing"

	"github.com/YuminosukeSato/incomeml/core/frame"
	"github.com/YuminosukeSato/incomeml/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func southeast(c frame.Cell) float64 {
	switch c.String() {
	case "SP", "RJ", "MG", "ES":
		return 2
	}
	return 5
}

func adult(c frame.Cell) float64 {
	if c.Int() < 18 {
		return 0
	}
	return 1
}

func testDerivations() []Derivation {
	return []Derivation{
		{Source: "state", Target: "region", Name: "region", Rule: southeast},
		{Source: "age", Target: "adult", Name: "adult", Rule: adult},
	}
}

func testRules() RuleSet {
	return RuleSet{"region": southeast, "adult": adult}
}

func trainFrame(t *testing.T) *frame.Frame {
	t.Helper()
	return frame.MustNew(
		frame.NewCategorical("state", []string{"SP", "SP", "RJ"}),
		frame.NewNumeric("age", []float64{30, 17, 45}),
	)
}

func TestFeatureDeriver_AppendsInOrder(t *testing.T) {
	X := trainFrame(t)
	d := NewFeatureDeriver(testDerivations()...)

	out, err := d.Derive(X)
	require.NoError(t, err)
	assert.Equal(t, []string{"state", "age", "region", "adult"}, out.Names())
	assert.Equal(t, []string{"region", "adult"}, d.Columns())

	region, _ := out.Column("region")
	assert.Equal(t, []float64{2, 2, 2}, region.Floats())
	adultCol, _ := out.Column("adult")
	assert.Equal(t, []float64{1, 0, 1}, adultCol.Floats())

	// source columns untouched
	state, _ := out.Column("state")
	orig, _ := X.Column("state")
	assert.True(t, state.Equal(orig))
	assert.Equal(t, []string{"state", "age"}, X.Names())
}

func TestFeatureDeriver_Idempotent(t *testing.T) {
	d := NewFeatureDeriver(testDerivations()...)
	once, err := d.Derive(trainFrame(t))
	require.NoError(t, err)
	twice, err := d.Derive(once)
	require.NoError(t, err)

	assert.Equal(t, once.Names(), twice.Names())
	for _, name := range once.Names() {
		a, _ := once.Column(name)
		b, _ := twice.Column(name)
		assert.True(t, a.Equal(b), "column %s changed on re-derivation", name)
	}
}

func TestFeatureDeriver_ChainedSource(t *testing.T) {
	d := NewFeatureDeriver(
		Derivation{Source: "state", Target: "region", Name: "region", Rule: southeast},
		Derivation{Source: "region", Target: "region_is_se", Name: "se", Rule: func(c frame.Cell) float64 {
			if c.Int() == 2 {
				return 1
			}
			return 0
		}},
	)
	out, err := d.Derive(trainFrame(t))
	require.NoError(t, err)
	col, _ := out.Column("region_is_se")
	assert.Equal(t, []float64{1, 1, 1}, col.Floats())
}

func TestFeatureDeriver_Validate(t *testing.T) {
	tests := []struct {
		name    string
		steps   []Derivation
		wantErr func(t *testing.T, err error)
	}{
		{
			name:  "missing source",
			steps: []Derivation{{Source: "race", Target: "white_mixed_race", Name: "r", Rule: adult}},
			wantErr: func(t *testing.T, err error) {
				var missing *errors.MissingColumnError
				require.True(t, errors.As(err, &missing))
				assert.Equal(t, "race", missing.Column)
				assert.Equal(t, "FeatureDeriver", missing.Step)
			},
		},
		{
			name: "source produced later does not count",
			steps: []Derivation{
				{Source: "region", Target: "x", Name: "x", Rule: adult},
				{Source: "state", Target: "region", Name: "region", Rule: southeast},
			},
			wantErr: func(t *testing.T, err error) {
				var missing *errors.MissingColumnError
				require.True(t, errors.As(err, &missing))
				assert.Equal(t, "region", missing.Column)
			},
		},
		{
			name:  "unbound rule",
			steps: []Derivation{{Source: "age", Target: "adult", Name: "adult"}},
			wantErr: func(t *testing.T, err error) {
				var v *errors.ValidationError
				require.True(t, errors.As(err, &v))
			},
		},
		{
			name:  "overwrite source",
			steps: []Derivation{{Source: "age", Target: "age", Name: "adult", Rule: adult}},
			wantErr: func(t *testing.T, err error) {
				var v *errors.ValidationError
				require.True(t, errors.As(err, &v))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewFeatureDeriver(tt.steps...)
			tt.wantErr(t, d.Validate(trainFrame(t)))
			_, err := d.Derive(trainFrame(t))
			tt.wantErr(t, err)
		})
	}
}

func TestTargetEncoder_SmoothedMeans(t *testing.T) {
	X := trainFrame(t)
	y := []float64{1000, 2000, 6000}

	table, err := NewTargetEncoder([]string{"state"}, DefaultSmoothing).Fit(X, y)
	require.NoError(t, err)

	assert.InDelta(t, 3000.0, table.GlobalMean, 1e-9)
	// SP: (1000+2000 + 1·3000) / (2+1)
	assert.InDelta(t, 2000.0, table.Means["state"]["SP"], 1e-9)
	// RJ: (6000 + 1·3000) / (1+1)
	assert.InDelta(t, 4500.0, table.Means["state"]["RJ"], 1e-9)
	assert.Equal(t, 2, table.Counts["state"]["SP"])

	enc, err := table.Lookup("state", "SP")
	require.NoError(t, err)
	assert.True(t, enc.Known)

	enc, err = table.Lookup("state", "AM")
	require.NoError(t, err)
	assert.False(t, enc.Known)
	assert.InDelta(t, 3000.0, enc.Value, 1e-9)
}

func TestTargetEncoder_ZeroSmoothingIsRawMean(t *testing.T) {
	table, err := NewTargetEncoder([]string{"state"}, 0).Fit(trainFrame(t), []float64{1000, 2000, 6000})
	require.NoError(t, err)
	assert.InDelta(t, 1500.0, table.Means["state"]["SP"], 1e-9)
	assert.InDelta(t, 6000.0, table.Means["state"]["RJ"], 1e-9)
}

// categoryFrame は "A" が n 行 (目的変数 100)、"B" が 1 行 (目的変数 0) のデータ
func categoryFrame(n int) (*frame.Frame, []float64) {
	labels := make([]string, n+1)
	y := make([]float64, n+1)
	for i := 0; i < n; i++ {
		labels[i] = "A"
		y[i] = 100
	}
	labels[n] = "B"
	return frame.MustNew(frame.NewCategorical("state", labels)), y
}

func TestTargetEncoder_SmoothingLimits(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		smoothing float64
		want      float64
	}{
		// (n·100 + s·global) / (n + s), global = 100n/(n+1)
		{"one row", 1, 1, 75.0},
		{"ten rows", 10, 1, 99.17},
		{"many rows approach the raw mean", 10000, 1, 100.0},
		{"no smoothing is the raw mean", 10, 0, 100.0},
		{"large smoothing approaches the global mean", 10, 1e9, 1000.0 / 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			X, y := categoryFrame(tt.count)
			table, err := NewTargetEncoder([]string{"state"}, tt.smoothing).Fit(X, y)
			require.NoError(t, err)

			assert.InDelta(t, tt.want, table.Means["state"]["A"], 0.01)
			assert.Equal(t, tt.count, table.Counts["state"]["A"])
		})
	}
}

func TestTargetEncoder_SingleCategoryIsGlobalMean(t *testing.T) {
	X := frame.MustNew(frame.NewCategorical("state", []string{"SP", "SP", "SP"}))
	y := []float64{1000, 2000, 6000}

	for _, s := range []float64{0, 1, 10, 1e6} {
		table, err := NewTargetEncoder([]string{"state"}, s).Fit(X, y)
		require.NoError(t, err)
		assert.InDelta(t, 3000.0, table.GlobalMean, 1e-9)
		assert.InDelta(t, table.GlobalMean, table.Means["state"]["SP"], 1e-6, "smoothing %g", s)
	}
}

func TestTargetEncoder_FitErrors(t *testing.T) {
	X := trainFrame(t)

	tests := []struct {
		name    string
		encoder *TargetEncoder
		X       *frame.Frame
		y       []float64
		check   func(t *testing.T, err error)
	}{
		{
			name:    "negative smoothing",
			encoder: NewTargetEncoder([]string{"state"}, -1),
			X:       X,
			y:       []float64{1, 2, 3},
			check: func(t *testing.T, err error) {
				var v *errors.ValidationError
				assert.True(t, errors.As(err, &v))
			},
		},
		{
			name:    "missing designated column",
			encoder: NewTargetEncoder([]string{"race"}, 1),
			X:       X,
			y:       []float64{1, 2, 3},
			check: func(t *testing.T, err error) {
				var missing *errors.MissingColumnError
				require.True(t, errors.As(err, &missing))
				assert.Equal(t, "race", missing.Column)
			},
		},
		{
			name:    "target length mismatch",
			encoder: NewTargetEncoder([]string{"state"}, 1),
			X:       X,
			y:       []float64{1, 2},
			check: func(t *testing.T, err error) {
				var dim *errors.DimensionError
				assert.True(t, errors.As(err, &dim))
			},
		},
		{
			name:    "empty",
			encoder: NewTargetEncoder([]string{"state"}, 1),
			X:       X.Take(nil),
			y:       nil,
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, errors.ErrEmptyData))
			},
		},
		{
			name:    "nan target",
			encoder: NewTargetEncoder([]string{"state"}, 1),
			X:       X,
			y:       []float64{1, math.NaN(), 3},
			check: func(t *testing.T, err error) {
				var num *errors.NumericalInstabilityError
				assert.True(t, errors.As(err, &num))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := tt.encoder.Fit(tt.X, tt.y)
			assert.Nil(t, table)
			tt.check(t, err)
		})
	}
}

func TestTargetMeanTable_TransformFallback(t *testing.T) {
	table, err := NewTargetEncoder([]string{"state"}, 1).Fit(trainFrame(t), []float64{1000, 2000, 6000})
	require.NoError(t, err)

	X := frame.MustNew(
		frame.NewCategorical("state", []string{"RJ", "AM", "AC"}),
		frame.NewNumeric("age", []float64{20, 30, 40}),
	)
	out, fallbacks, err := table.TransformCounting(X)
	require.NoError(t, err)

	assert.Equal(t, []string{"state", "age"}, out.Names())
	state, _ := out.Column("state")
	assert.Equal(t, frame.Numeric, state.Kind())
	assert.InDeltaSlice(t, []float64{4500, 3000, 3000}, state.Floats(), 1e-9)
	assert.Equal(t, 2, fallbacks["state"])

	age, _ := out.Column("age")
	assert.Equal(t, []float64{20, 30, 40}, age.Floats())
}

func TestTargetMeanTable_Unfitted(t *testing.T) {
	var table *TargetMeanTable
	_, err := table.Transform(trainFrame(t))
	var unfitted *errors.UnfittedColumnError
	require.True(t, errors.As(err, &unfitted))
	assert.Equal(t, "", unfitted.Column)

	partial := &TargetMeanTable{Columns: []string{"state"}, Means: map[string]map[string]float64{}}
	_, err = partial.Transform(trainFrame(t))
	require.True(t, errors.As(err, &unfitted))
	assert.Equal(t, "state", unfitted.Column)

	_, err = partial.Lookup("state", "SP")
	assert.True(t, errors.As(err, &unfitted))
}

func TestTargetEncoder_NumericAndLabelKeysAgree(t *testing.T) {
	train := frame.MustNew(frame.NewNumeric("race", []float64{1, 1, 4}))
	table, err := NewTargetEncoder([]string{"race"}, 1).Fit(train, []float64{10, 20, 30})
	require.NoError(t, err)

	asLabels := frame.MustNew(frame.NewCategorical("race", []string{"1", "4"}))
	out, err := table.Transform(asLabels)
	require.NoError(t, err)
	race, _ := out.Column("race")
	assert.InDelta(t, table.Means["race"]["1"], race.Floats()[0], 1e-9)
	assert.InDelta(t, table.Means["race"]["4"], race.Floats()[1], 1e-9)
}

func TestPipeline_EndToEnd(t *testing.T) {
	// SP, SP, RJ all map to region 2; AM maps to region 5 which is unseen.
	p := NewPipeline(
		NewFeatureDeriver(testDerivations()...),
		NewTargetEncoder([]string{"region"}, 1),
	)
	fitted, err := p.Fit(trainFrame(t), []float64{1000, 2000, 1500})
	require.NoError(t, err)
	assert.InDelta(t, 1500.0, fitted.Table.GlobalMean, 1e-9)
	assert.InDelta(t, 1500.0, fitted.Table.Means["region"]["2"], 1e-9)
	assert.Equal(t, []string{"state", "age", "region", "adult"}, fitted.Features)

	X := frame.MustNew(
		frame.NewCategorical("state", []string{"AM"}),
		frame.NewNumeric("age", []float64{40}),
	)
	out, err := fitted.Transform(X)
	require.NoError(t, err)
	region, _ := out.Column("region")
	assert.InDelta(t, 1500.0, region.Floats()[0], 1e-9)

	// state is neither designated nor numeric
	_, err = fitted.Dense(X)
	var valErr *errors.ValueError
	assert.True(t, errors.As(err, &valErr))
}

func TestPipeline_DenseColumnOrder(t *testing.T) {
	p := NewPipeline(
		NewFeatureDeriver(testDerivations()...),
		NewTargetEncoder([]string{"state", "region"}, 1),
	)
	fitted, err := p.Fit(trainFrame(t), []float64{1000, 2000, 6000})
	require.NoError(t, err)

	// columns supplied in a different order still come out in fit order
	X := frame.MustNew(
		frame.NewNumeric("age", []float64{16}),
		frame.NewCategorical("state", []string{"RJ"}),
	)
	m, err := fitted.Dense(X)
	require.NoError(t, err)
	_, c := m.Dims()
	require.Equal(t, 4, c)
	assert.InDelta(t, 4500.0, m.At(0, 0), 1e-9) // state
	assert.Equal(t, 16.0, m.At(0, 1))           // age
	assert.Equal(t, 0.0, m.At(0, 3))            // adult
}

func TestPipeline_MissingSourceBeforeEncoding(t *testing.T) {
	p := NewPipeline(
		NewFeatureDeriver(testDerivations()...),
		NewTargetEncoder([]string{"region"}, 1),
	)
	X := frame.MustNew(frame.NewNumeric("age", []float64{30}))
	_, err := p.Fit(X, []float64{1})
	var missing *errors.MissingColumnError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "state", missing.Column)
}

func TestFittedPipeline_NilIsUnfitted(t *testing.T) {
	var fp *FittedPipeline
	_, err := fp.Transform(trainFrame(t))
	var unfitted *errors.UnfittedColumnError
	require.True(t, errors.As(err, &unfitted))
	assert.Equal(t, "Pipeline", unfitted.Component)

	_, err = fp.Dense(trainFrame(t))
	assert.True(t, errors.As(err, &unfitted))
}

func TestFittedPipeline_GobAndBind(t *testing.T) {
	p := NewPipeline(
		NewFeatureDeriver(testDerivations()...),
		NewTargetEncoder([]string{"state", "region"}, 1),
	)
	fitted, err := p.Fit(trainFrame(t), []float64{1000, 2000, 6000})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(fitted))
	var decoded FittedPipeline
	require.NoError(t, gob.NewDecoder(&buf).Decode(&decoded))

	// rules are not persisted
	_, err = decoded.Transform(trainFrame(t))
	var v *errors.ValidationError
	require.True(t, errors.As(err, &v))

	_, err = decoded.Bind(RuleSet{"region": southeast})
	require.True(t, errors.As(err, &v))

	bound, err := decoded.Bind(testRules())
	require.NoError(t, err)
	want, err := fitted.Dense(trainFrame(t))
	require.NoError(t, err)
	got, err := bound.Dense(trainFrame(t))
	require.NoError(t, err)
	assert.Equal(t, want.RawMatrix().Data, got.RawMatrix().Data)
}

func TestFittedPipeline_ConcurrentTransform(t *testing.T) {
	p := NewPipeline(
		NewFeatureDeriver(testDerivations()...),
		NewTargetEncoder([]string{"state", "region"}, 1),
	)
	fitted, err := p.Fit(trainFrame(t), []float64{1000, 2000, 6000})
	require.NoError(t, err)
	want, err := fitted.Dense(trainFrame(t))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := fitted.Dense(trainFrame(t))
			if assert.NoError(t, err) {
				assert.Equal(t, want.RawMatrix().Data, got.RawMatrix().Data)
			}
		}()
	}
	wg.Wait()
}

func TestStandardScaler(t *testing.T) {
	X := frame.MustNew(
		frame.NewNumeric("a", []float64{1, 2, 3}),
		frame.NewNumeric("b", []float64{5, 5, 5}),
	)
	m, err := X.Dense()
	require.NoError(t, err)

	s := NewStandardScaler()
	_, err = s.Transform(m)
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))

	scaled, err := s.FitTransform(m)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, scaled.At(1, 0), 1e-12)
	assert.InDelta(t, 0.0, scaled.At(0, 1), 1e-12, "constant column scales by 1")
	assert.InDelta(t, -math.Sqrt(1.5), scaled.At(0, 0), 1e-12)

	back, err := s.InverseTransform(scaled)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, back.At(2, 0), 1e-12)
	assert.Equal(t, "StandardScaler(n_features=2)", s.String())
}

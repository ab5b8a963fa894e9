package preprocessing

import (
	"github.com/YuminosukeSato/incomeml/core/frame"
	"github.com/YuminosukeSato/incomeml/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Pipeline composes a FeatureDeriver and a TargetEncoder. The encoder runs
// last so raw and derived columns are encoded the same way.
type Pipeline struct {
	Deriver *FeatureDeriver
	Encoder *TargetEncoder
}

// NewPipeline creates a pipeline. deriver may be nil when nothing is derived.
func NewPipeline(deriver *FeatureDeriver, encoder *TargetEncoder) *Pipeline {
	return &Pipeline{Deriver: deriver, Encoder: encoder}
}

// Fit validates and derives X, fits the encoder on the derived frame, and
// records the output column order.
func (p *Pipeline) Fit(X *frame.Frame, y []float64) (*FittedPipeline, error) {
	if p.Encoder == nil {
		return nil, errors.NewValidationError("encoder", "pipeline requires an encoder", nil)
	}

	var steps []Derivation
	derived := X
	if p.Deriver != nil {
		var err error
		if derived, err = p.Deriver.Derive(X); err != nil {
			return nil, err
		}
		steps = append(steps, p.Deriver.Steps...)
	}

	table, err := p.Encoder.Fit(derived, y)
	if err != nil {
		return nil, err
	}

	return &FittedPipeline{
		Derivations: steps,
		Table:       table,
		Features:    derived.Names(),
	}, nil
}

// FittedPipeline is the immutable result of Pipeline.Fit.
type FittedPipeline struct {
	Derivations []Derivation
	Table       *TargetMeanTable
	// Features is the output column order recorded at fit time.
	Features []string
}

// Transform derives and encodes X and returns the columns in Features order.
func (fp *FittedPipeline) Transform(X *frame.Frame) (*frame.Frame, error) {
	out, _, err := fp.TransformCounting(X)
	return out, err
}

// TransformCounting is Transform that also reports encoder fallbacks per column.
func (fp *FittedPipeline) TransformCounting(X *frame.Frame) (*frame.Frame, map[string]int, error) {
	if fp == nil || fp.Table == nil {
		return nil, nil, errors.NewUnfittedColumnError("Pipeline", "")
	}

	derived, err := NewFeatureDeriver(fp.Derivations...).Derive(X)
	if err != nil {
		return nil, nil, err
	}
	encoded, fallbacks, err := fp.Table.TransformCounting(derived)
	if err != nil {
		return nil, nil, err
	}
	out, err := encoded.Select(fp.Features...)
	if err != nil {
		return nil, nil, err
	}
	return out, fallbacks, nil
}

// Dense transforms X into a matrix ready for an estimator.
func (fp *FittedPipeline) Dense(X *frame.Frame) (*mat.Dense, error) {
	out, err := fp.Transform(X)
	if err != nil {
		return nil, err
	}
	return out.Dense(fp.Features...)
}

// Bind returns a copy of fp whose derivations have their rules looked up by
// name in rules. It is needed after decoding a persisted pipeline.
func (fp *FittedPipeline) Bind(rules RuleSet) (*FittedPipeline, error) {
	if fp == nil {
		return nil, errors.NewUnfittedColumnError("Pipeline", "")
	}

	steps := make([]Derivation, len(fp.Derivations))
	for i, step := range fp.Derivations {
		rule, ok := rules[step.Name]
		if !ok {
			return nil, errors.NewValidationError("derivation."+step.Target, "unknown rule", step.Name)
		}
		step.Rule = rule
		steps[i] = step
	}

	return &FittedPipeline{
		Derivations: steps,
		Table:       fp.Table,
		Features:    append([]string(nil), fp.Features...),
	}, nil
}

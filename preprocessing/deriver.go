package preprocessing

import (
	"github.com/YuminosukeSato/incomeml/core/frame"
	"github.com/YuminosukeSato/incomeml/pkg/errors"
)

// Rule computes a derived value from one source cell. Rules must be pure and
// total: every input, including labels that are not numbers, maps to a value.
type Rule func(frame.Cell) float64

// RuleSet maps rule names to rule functions. It is used to rebind rules after
// a pipeline has been decoded, since functions are not persisted.
type RuleSet map[string]Rule

// Derivation declares one new column computed from an existing one.
type Derivation struct {
	Source string
	Target string
	// Name identifies Rule in a RuleSet.
	Name string
	Rule Rule `json:"-"`
}

// FeatureDeriver applies an ordered list of derivations.
type FeatureDeriver struct {
	Steps []Derivation
}

// NewFeatureDeriver creates a deriver running steps in the given order.
// A step may read a column produced by an earlier step.
func NewFeatureDeriver(steps ...Derivation) *FeatureDeriver {
	return &FeatureDeriver{Steps: append([]Derivation(nil), steps...)}
}

// Validate checks that every step can run against X. It transforms nothing.
//
// A source that is neither in X nor produced by an earlier step yields a
// MissingColumnError; a step without a rule, or one that would overwrite its
// own source, yields a ValidationError.
func (d *FeatureDeriver) Validate(X *frame.Frame) error {
	available := make(map[string]bool, X.NumCols()+len(d.Steps))
	for _, name := range X.Names() {
		available[name] = true
	}

	for _, step := range d.Steps {
		if step.Rule == nil {
			return errors.NewValidationError("derivation."+step.Target, "no rule bound", step.Name)
		}
		if step.Source == step.Target {
			return errors.NewValidationError("derivation."+step.Target, "target must differ from source", step.Source)
		}
		if !available[step.Source] {
			return errors.NewMissingColumnError("FeatureDeriver", step.Source, X.Names())
		}
		available[step.Target] = true
	}
	return nil
}

// Derive validates X and returns a new frame with one column per step appended
// in declared order. Existing columns and row order are unchanged; a target that
// already exists is replaced in place, so deriving twice gives the same frame.
func (d *FeatureDeriver) Derive(X *frame.Frame) (*frame.Frame, error) {
	if err := d.Validate(X); err != nil {
		return nil, err
	}

	out := X
	for _, step := range d.Steps {
		src, _ := out.Column(step.Source)
		values := make([]float64, src.Len())
		for i := range values {
			values[i] = step.Rule(src.Cell(i))
		}

		var err error
		out, err = out.With(frame.NewNumeric(step.Target, values))
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Columns returns the derived column names in declared order.
func (d *FeatureDeriver) Columns() []string {
	names := make([]string, len(d.Steps))
	for i, step := range d.Steps {
		names[i] = step.Target
	}
	return names
}

package income

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/incomeml/core/frame"
	"github.com/YuminosukeSato/incomeml/pkg/errors"
	"github.com/go-playground/validator/v10"
)

// Record is one respondent as submitted to the prediction endpoint.
// Field tags name the form/JSON keys; validate tags hold the accepted ranges.
type Record struct {
	State            string `json:"state" form:"state" validate:"required,oneof=AC AL AP AM BA CE DF ES GO MA MT MS MG PA PB PR PE PI RJ RN RS RO RR SC SP SE TO"`
	Age              int    `json:"age" form:"age" validate:"min=14,max=120"`
	Sex              int    `json:"sex" form:"sex" validate:"oneof=1 2"`
	Race             int    `json:"race" form:"race" validate:"oneof=1 2 3 4 5 9"`
	Literate         int    `json:"literate" form:"literate" validate:"oneof=1 2"`
	EducationalLevel int    `json:"educational_level" form:"educational_level" validate:"min=1,max=7"`
	StudiedYears     int    `json:"studied_years" form:"studied_years" validate:"min=0,max=16"`
	WorkerType       int    `json:"worker_type" form:"worker_type" validate:"min=1,max=9"`
	WorkSegment      int    `json:"work_segment" form:"work_segment" validate:"min=1,max=12"`
	OccupationGroup  int    `json:"occupation_group" form:"occupation_group" validate:"min=1,max=11"`
	TaxPayer         int    `json:"tax_payer" form:"tax_payer" validate:"oneof=1 2"`
	HoursRange       int    `json:"hours_range" form:"hours_range" validate:"min=1,max=5"`
	HoursValue       int    `json:"hours_value" form:"hours_value" validate:"min=0,max=120"`
}

// FormFields lists the request keys of a Record in order.
var FormFields = []string{
	"state", "age", "sex", "race", "literate", "educational_level", "studied_years",
	"worker_type", "work_segment", "occupation_group", "tax_payer", "hours_range", "hours_value",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseForm builds a Record from request values. get returns the raw value of
// a key and whether it was present. Missing keys and non-integer values yield a
// ValueError; ranges are not checked here, see Validate.
func ParseForm(get func(key string) (string, bool)) (Record, error) {
	var r Record

	state, ok := get("state")
	if !ok || strings.TrimSpace(state) == "" {
		return Record{}, errors.NewValueError("income.ParseForm", "missing field 'state'")
	}
	r.State = strings.TrimSpace(state)

	targets := []*int{
		&r.Age, &r.Sex, &r.Race, &r.Literate, &r.EducationalLevel, &r.StudiedYears,
		&r.WorkerType, &r.WorkSegment, &r.OccupationGroup, &r.TaxPayer, &r.HoursRange, &r.HoursValue,
	}
	for i, dst := range targets {
		key := FormFields[i+1]
		raw, ok := get(key)
		if !ok {
			return Record{}, errors.NewValueError("income.ParseForm", "missing field '"+key+"'")
		}
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return Record{}, errors.NewValueError("income.ParseForm",
				"field '"+key+"' is not an integer: "+strconv.Quote(raw))
		}
		*dst = v
	}
	return r, nil
}

// Validate checks every field against its accepted range and returns a
// ValidationError naming the first offending field.
func (r Record) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		return errors.NewValidationError(fe.Field(), reason, fe.Value())
	}
	return errors.Wrap(err, "record validation")
}

// Values returns the record in RawColumns order, state first.
func (r Record) Values() (string, []float64) {
	return r.State, []float64{
		float64(r.Age), float64(r.Sex), float64(r.Race), float64(r.Literate),
		float64(r.EducationalLevel), float64(r.StudiedYears), float64(r.WorkerType),
		float64(r.WorkSegment), float64(r.OccupationGroup), float64(r.TaxPayer),
		float64(r.HoursRange), float64(r.HoursValue),
	}
}

// Records converts records into a frame with the RawColumns schema.
// State is categorical, every other column numeric.
func Records(records ...Record) (*frame.Frame, error) {
	states := make([]string, len(records))
	numeric := make([][]float64, len(RawColumns)-1)
	for j := range numeric {
		numeric[j] = make([]float64, len(records))
	}
	for i, r := range records {
		state, values := r.Values()
		states[i] = state
		for j, v := range values {
			numeric[j][i] = v
		}
	}

	cols := make([]*frame.Column, 0, len(RawColumns))
	cols = append(cols, frame.NewCategorical(ColState, states))
	for j, name := range RawColumns[1:] {
		cols = append(cols, frame.NewNumeric(name, numeric[j]))
	}
	return frame.New(cols...)
}

package income

import (
	"github.com/YuminosukeSato/incomeml/core/frame"
	"github.com/YuminosukeSato/incomeml/preprocessing"
)

// IBGE macro-region codes.
const (
	RegionSouth      = 1
	RegionSoutheast  = 2
	RegionCenterWest = 3
	RegionNortheast  = 4
	RegionNorth      = 5
)

var stateRegion = map[string]float64{
	"PR": RegionSouth, "SC": RegionSouth, "RS": RegionSouth,
	"SP": RegionSoutheast, "RJ": RegionSoutheast, "MG": RegionSoutheast, "ES": RegionSoutheast,
	"MT": RegionCenterWest, "MS": RegionCenterWest, "GO": RegionCenterWest, "DF": RegionCenterWest,
	"BA": RegionNortheast, "SE": RegionNortheast, "AL": RegionNortheast, "PE": RegionNortheast,
	"PB": RegionNortheast, "RN": RegionNortheast, "CE": RegionNortheast, "PI": RegionNortheast,
	"MA": RegionNortheast,
}

// Region maps a state abbreviation to its macro-region. Anything else,
// including unknown labels, is North.
func Region(c frame.Cell) float64 {
	if r, ok := stateRegion[c.String()]; ok {
		return r
	}
	return RegionNorth
}

func member(codes ...int) preprocessing.Rule {
	return func(c frame.Cell) float64 {
		v := c.Int()
		for _, code := range codes {
			if v == code {
				return 1
			}
		}
		return 0
	}
}

// bins returns a rule assigning bucket i+1 to the first inclusive upper bound
// the value does not exceed, and len(bounds)+1 otherwise.
func bins(bounds ...float64) preprocessing.Rule {
	return func(c frame.Cell) float64 {
		v := c.Float()
		for i, upper := range bounds {
			if v <= upper {
				return float64(i + 1)
			}
		}
		return float64(len(bounds) + 1)
	}
}

var (
	// WhiteMixedRace is 1 for white (1) and mixed-race (4) respondents.
	WhiteMixedRace = member(1, 4)
	// HighSchoolOrBeyond is 1 for educational levels 5 to 7.
	HighSchoolOrBeyond = member(5, 6, 7)
	// DomesticWorker is 1 for worker types 3 and 4.
	DomesticWorker = member(3, 4)
	// SelectedSegments is 1 for work segments 7, 8 and 9.
	SelectedSegments = member(7, 8, 9)
	// WeeklyWorkedHours buckets total weekly hours at 20, 40, 60 and 80.
	WeeklyWorkedHours = bins(20, 40, 60, 80)
	// StudiedYears buckets years of study at 9 and 13.
	StudiedYears = bins(9, 13)
)

// AgeRange buckets age: 1 under 18, 2 under 25, 3 under 65, otherwise 4.
func AgeRange(c frame.Cell) float64 {
	switch age := c.Float(); {
	case age < 18:
		return 1
	case age < 25:
		return 2
	case age < 65:
		return 3
	default:
		return 4
	}
}

// Derivations returns the feature derivations in the order they are applied.
func Derivations() []preprocessing.Derivation {
	return []preprocessing.Derivation{
		{Source: ColState, Target: ColRegion, Name: ColRegion, Rule: Region},
		{Source: ColRace, Target: ColWhiteMixedRace, Name: ColWhiteMixedRace, Rule: WhiteMixedRace},
		{Source: ColEducationalLevel, Target: ColHighSchoolOrBeyond, Name: ColHighSchoolOrBeyond, Rule: HighSchoolOrBeyond},
		{Source: ColWorkerType, Target: ColDomesticWorker, Name: ColDomesticWorker, Rule: DomesticWorker},
		{Source: ColWorkSegment, Target: ColSelectedSegments, Name: ColSelectedSegments, Rule: SelectedSegments},
		{Source: ColAge, Target: ColAgeRange, Name: ColAgeRange, Rule: AgeRange},
		{Source: ColWeeklyHoursAllJobs, Target: ColWeeklyWorkedHoursV2, Name: ColWeeklyWorkedHoursV2, Rule: WeeklyWorkedHours},
		{Source: ColYearsStudied, Target: ColStudiedYearsV2, Name: ColStudiedYearsV2, Rule: StudiedYears},
	}
}

// Rules returns the rule functions of Derivations keyed by name.
func Rules() preprocessing.RuleSet {
	rules := make(preprocessing.RuleSet)
	for _, d := range Derivations() {
		rules[d.Name] = d.Rule
	}
	return rules
}

// NewPipeline returns the preprocessing pipeline for the survey schema. An
// empty categorical list selects DefaultCategoricalColumns.
func NewPipeline(categorical []string, smoothing float64) *preprocessing.Pipeline {
	if len(categorical) == 0 {
		categorical = DefaultCategoricalColumns
	}
	return preprocessing.NewPipeline(
		preprocessing.NewFeatureDeriver(Derivations()...),
		preprocessing.NewTargetEncoder(categorical, smoothing),
	)
}

// Package income wires the preprocessing pipeline and the ensemble regressor
// to the PNAD-C survey schema used to predict monthly income.
package income

// Raw survey columns, in the order a Record is laid out.
const (
	ColState              = "state"
	ColAge                = "age"
	ColSex                = "sex"
	ColRace               = "race"
	ColLiterate           = "literate"
	ColEducationalLevel   = "highest_educational_level"
	ColYearsStudied       = "years_studied"
	ColWorkerType         = "worker_type"
	ColWorkSegment        = "work_segment"
	ColOccupationGroup    = "occupation_group"
	ColTaxPayer           = "tax_payer"
	ColWeeklyHours        = "weekly_worked_hours"
	ColWeeklyHoursAllJobs = "weekly_worked_hours_all_jobs"
)

// Training and serving defaults.
const (
	DefaultTargetColumn    = "monthly_income"
	DefaultTargetThreshold = 10000.00
	DefaultTestSize        = 0.25
	DefaultNEstimators     = 100
	DefaultMinSamplesSplit = 16
	DefaultReferenceYear   = 2023
	DefaultYearlyIncrement = 100.0
	DefaultCurrencyDivisor = 5.0
)

// Derived columns.
const (
	ColRegion              = "region"
	ColWhiteMixedRace      = "white_mixed_race"
	ColHighSchoolOrBeyond  = "high_school_or_beyond"
	ColDomesticWorker      = "domestic_worker"
	ColSelectedSegments    = "selected_segments"
	ColAgeRange            = "age_range"
	ColWeeklyWorkedHoursV2 = "weekly_worked_hours_v2"
	ColStudiedYearsV2      = "studied_years_v2"
)

// RawColumns lists the model input columns in record order.
var RawColumns = []string{
	ColState, ColAge, ColSex, ColRace, ColLiterate, ColEducationalLevel,
	ColYearsStudied, ColWorkerType, ColWorkSegment, ColOccupationGroup,
	ColTaxPayer, ColWeeklyHours, ColWeeklyHoursAllJobs,
}

// DefaultCategoricalColumns are target-encoded unless configured otherwise.
// Binned and binary columns stay numeric.
var DefaultCategoricalColumns = []string{
	ColState, ColSex, ColRace, ColEducationalLevel, ColWorkerType,
	ColWorkSegment, ColOccupationGroup, ColRegion,
}

// States are the 27 federative unit abbreviations accepted in ColState.
var States = []string{
	"AC", "AL", "AP", "AM", "BA", "CE", "DF", "ES", "GO", "MA", "MT", "MS", "MG", "PA",
	"PB", "PR", "PE", "PI", "RJ", "RN", "RS", "RO", "RR", "SC", "SP", "SE", "TO",
}

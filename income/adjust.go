package income

import "time"

// Adjustment converts a raw model output into the values returned to clients.
type Adjustment struct {
	// ReferenceYear is the survey year the model was trained on.
	ReferenceYear   int     `yaml:"reference_year" json:"reference_year" validate:"min=1900"`
	YearlyIncrement float64 `yaml:"yearly_increment" json:"yearly_increment" validate:"gte=0"`
	// CurrencyDivisor converts BRL to USD (usd = brl / divisor).
	CurrencyDivisor float64 `yaml:"currency_divisor" json:"currency_divisor" validate:"gt=0"`
}

// DefaultAdjustment returns the 2023 reference with a 100 BRL yearly
// increment and a divisor of 5.
func DefaultAdjustment() Adjustment {
	return Adjustment{
		ReferenceYear:   DefaultReferenceYear,
		YearlyIncrement: DefaultYearlyIncrement,
		CurrencyDivisor: DefaultCurrencyDivisor,
	}
}

// Prediction is the response body of a single prediction.
type Prediction struct {
	Reference   float64 `json:"prediction_2023"`
	Adjusted    float64 `json:"prediction_adjusted"`
	ReferenceUS float64 `json:"prediction_2023_usd"`
	AdjustedUS  float64 `json:"prediction_adjusted_usd"`
}

// Apply adds YearlyIncrement for every year between ReferenceYear and now
// and converts both values to USD. Years before the reference subtract.
func (a Adjustment) Apply(raw float64, now time.Time) Prediction {
	adjusted := raw + a.YearlyIncrement*float64(now.Year()-a.ReferenceYear)
	return Prediction{
		Reference:   raw,
		Adjusted:    adjusted,
		ReferenceUS: raw / a.CurrencyDivisor,
		AdjustedUS:  adjusted / a.CurrencyDivisor,
	}
}

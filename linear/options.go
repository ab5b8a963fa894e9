package linear

// Option is a function that configures LinearRegression
type Option func(*LinearRegression)

// WithAlpha sets the L2 (ridge) penalty. Zero gives ordinary least squares.
func WithAlpha(alpha float64) Option {
	return func(lr *LinearRegression) {
		lr.Alpha = alpha
	}
}

// WithFitIntercept sets whether to calculate the intercept
func WithFitIntercept(fit bool) Option {
	return func(lr *LinearRegression) {
		lr.FitIntercept = fit
	}
}

// WithStandardize scales features to zero mean and unit variance before solving.
func WithStandardize(standardize bool) Option {
	return func(lr *LinearRegression) {
		lr.Standardize = standardize
	}
}

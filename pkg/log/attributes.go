package log

// Model and Operation Context
const (
	// ModelNameKey identifies the estimator or transformer.
	// Examples: "RandomForestRegressor", "Pipeline", "VotingRegressor"
	ModelNameKey = "model.name"

	// ArtifactIDKey identifies a persisted model artifact.
	ArtifactIDKey = "model.artifact_id"

	// OperationKey specifies the machine learning operation being performed.
	// Standard values: "fit", "predict", "transform", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component is performing the operation.
	// Examples: "trainer", "serving", "cli"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of model lifecycle.
	PhaseKey = "ml.phase"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// DroppedKey indicates how many rows were removed by a filtering step.
	DroppedKey = "data.dropped"

	// PathKey records the file a dataset or artifact was read from or written to.
	PathKey = "data.path"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// MSEKey, RMSEKey, MAEKey and R2ScoreKey record regression evaluation metrics.
	MSEKey     = "metrics.mse"
	RMSEKey    = "metrics.rmse"
	MAEKey     = "metrics.mae"
	R2ScoreKey = "metrics.r2_score"

	// IterationKey and LossKey track boosting progress.
	IterationKey = "ml.iteration"
	LossKey      = "metrics.loss"
)

// Encoding and Serving Context
const (
	// FallbacksKey records how many categorical values fell back to the global mean.
	FallbacksKey = "encoder.fallbacks"

	// RequestIDKey carries the per-request identifier assigned by the server.
	RequestIDKey = "http.request_id"

	// StatusKey records the HTTP status returned to the client.
	StatusKey = "http.status"
)

// Error Context
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// ErrorDetailKey holds the structured fields of a typed error.
	ErrorDetailKey = "error.detail"
)

// Standard attribute value constants.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"

	PhaseTraining      = "training"
	PhaseTesting       = "testing"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"

	ErrorNotFitted     = "NOT_FITTED"
	ErrorMissingColumn = "MISSING_COLUMN"
	ErrorInvalidInput  = "INVALID_INPUT"
	ErrorPrediction    = "PREDICTION_FAILED"
)

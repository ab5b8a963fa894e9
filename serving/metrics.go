package serving

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus collectors of the prediction endpoint.
type Metrics struct {
	// predictions counts /predict requests by outcome (ok, invalid_data,
	// invalid_values, failed).
	predictions *prometheus.CounterVec

	// latency measures prediction time, excluding request parsing.
	latency prometheus.Histogram

	// fallbacks counts unseen categories encoded as the global mean, by column.
	fallbacks *prometheus.CounterVec

	// rejected counts requests refused by the rate limiter.
	rejected prometheus.Counter
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "incomeml",
			Subsystem: "serving",
			Name:      "predictions_total",
			Help:      "Total prediction requests by outcome",
		}, []string{"status"}),
		latency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "incomeml",
			Subsystem: "serving",
			Name:      "prediction_duration_seconds",
			Help:      "Time spent transforming and predicting one request",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "incomeml",
			Subsystem: "encoder",
			Name:      "fallback_total",
			Help:      "Unseen categories encoded with the global mean",
		}, []string{"column"}),
		rejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "incomeml",
			Subsystem: "serving",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}),
	}
}

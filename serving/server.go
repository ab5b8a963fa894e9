// Package serving exposes a trained income model over HTTP.
//
// Routes:
//
//	GET  /health   liveness
//	POST /predict  form or JSON record, returns the adjusted prediction
//	GET  /model    artifact summary
//	GET  /metrics  Prometheus metrics
package serving

import (
	"net/http"
	"time"

	"github.com/YuminosukeSato/incomeml/income"
	"github.com/YuminosukeSato/incomeml/pkg/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Predictor is the model behind the endpoint. *income.Artifact implements it.
type Predictor interface {
	Predict(records ...income.Record) ([]float64, map[string]int, error)
	Info() income.Info
}

// Options configures a Server. Zero values select defaults.
type Options struct {
	Adjustment income.Adjustment
	// RateLimit is requests per second; 0 disables limiting.
	RateLimit float64
	Burst     int
	Registry  *prometheus.Registry
	Logger    log.Logger
	// Now is the clock used for the yearly adjustment.
	Now func() time.Time
}

// Server handles prediction requests. It is safe for concurrent use.
type Server struct {
	predictor  Predictor
	adjustment income.Adjustment
	logger     log.Logger
	metrics    *Metrics
	registry   *prometheus.Registry
	limiter    *rate.Limiter
	now        func() time.Time
}

// NewServer creates a Server around p.
func NewServer(p Predictor, opts Options) *Server {
	s := &Server{
		predictor:  p,
		adjustment: opts.Adjustment,
		logger:     opts.Logger,
		registry:   opts.Registry,
		now:        opts.Now,
	}
	if s.adjustment == (income.Adjustment{}) {
		s.adjustment = income.DefaultAdjustment()
	}
	if s.logger == nil {
		s.logger = log.GetLoggerWithName("serving")
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	s.metrics = NewMetrics(s.registry)
	return s
}

// Router builds the gin engine serving every route.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(s.logger))

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := r.Group("/")
	if s.limiter != nil {
		api.Use(rateLimit(s.limiter, s.metrics))
	}
	api.POST("/predict", s.predict)
	api.GET("/model", s.model)
	return r
}

// HTTPServer wraps Router in an http.Server listening on addr.
func (s *Server) HTTPServer(addr string, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
	}
}

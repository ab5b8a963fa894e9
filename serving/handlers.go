package serving

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/YuminosukeSato/incomeml/income"
	"github.com/YuminosukeSato/incomeml/pkg/errors"
	"github.com/YuminosukeSato/incomeml/pkg/log"
	"github.com/gin-gonic/gin"
)

// Error messages returned by /predict.
const (
	MsgInvalidData      = "Invalid input data"
	MsgInvalidValues    = "Invalid input values"
	MsgPredictionFailed = "Prediction failed"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) model(c *gin.Context) {
	c.JSON(http.StatusOK, s.predictor.Info())
}

func (s *Server) predict(c *gin.Context) {
	logger := s.logger.With(log.RequestIDKey, c.GetString(requestIDKey))

	get, err := requestValues(c)
	if err != nil {
		s.reject(c, "invalid_data", MsgInvalidData, err)
		return
	}
	record, err := income.ParseForm(get)
	if err != nil {
		s.reject(c, "invalid_data", MsgInvalidData, err)
		return
	}
	if err := record.Validate(); err != nil {
		s.metrics.predictions.WithLabelValues("invalid_values").Inc()
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":    MsgInvalidValues,
			"details":  err.Error(),
			"features": record,
		})
		return
	}

	var (
		raw       []float64
		fallbacks map[string]int
	)
	start := time.Now()
	err = errors.SafeExecute("serving.predict", func() error {
		var err error
		raw, fallbacks, err = s.predictor.Predict(record)
		if err == nil && len(raw) != 1 {
			err = errors.NewDimensionError("serving.predict", 1, len(raw), 0)
		}
		return err
	})
	s.metrics.latency.Observe(time.Since(start).Seconds())
	if err != nil {
		logger.Error("Prediction failed", err, log.OperationKey, log.OperationPredict)
		s.metrics.predictions.WithLabelValues("failed").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":    MsgPredictionFailed,
			"details":  err.Error(),
			"features": record,
		})
		return
	}

	for column, n := range fallbacks {
		s.metrics.fallbacks.WithLabelValues(column).Add(float64(n))
	}
	if len(fallbacks) > 0 {
		logger.Info("Unseen categories encoded with global mean", log.FallbacksKey, fallbacks)
	}

	s.metrics.predictions.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, s.adjustment.Apply(raw[0], s.now()))
}

func (s *Server) reject(c *gin.Context, status, msg string, err error) {
	s.metrics.predictions.WithLabelValues(status).Inc()
	c.JSON(http.StatusUnprocessableEntity, gin.H{"error": msg, "details": err.Error()})
}

// requestValues returns a lookup over the request body. JSON objects are
// accepted alongside URL-encoded and multipart forms; JSON numbers keep their
// literal text so ParseForm rejects fractions.
func requestValues(c *gin.Context) (func(string) (string, bool), error) {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		dec := json.NewDecoder(c.Request.Body)
		dec.UseNumber()
		var body map[string]any
		if err := dec.Decode(&body); err != nil {
			return nil, errors.NewValueError("serving.predict", "malformed JSON body: "+err.Error())
		}
		return func(key string) (string, bool) {
			v, ok := body[key]
			if !ok || v == nil {
				return "", false
			}
			switch v := v.(type) {
			case string:
				return v, true
			case json.Number:
				return v.String(), true
			default:
				return "", true
			}
		}, nil
	}
	return c.GetPostForm, nil
}

package serving

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/YuminosukeSato/incomeml/income"
	"github.com/YuminosukeSato/incomeml/pkg/errors"
	"github.com/YuminosukeSato/incomeml/pkg/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubPredictor returns a fixed prediction and records what it received.
type stubPredictor struct {
	value     float64
	fallbacks map[string]int
	err       error
	panics    bool
	got       []income.Record
}

func (s *stubPredictor) Predict(records ...income.Record) ([]float64, map[string]int, error) {
	if s.panics {
		panic("model exploded")
	}
	s.got = append(s.got, records...)
	if s.err != nil {
		return nil, nil, s.err
	}
	return []float64{s.value}, s.fallbacks, nil
}

func (s *stubPredictor) Info() income.Info {
	return income.Info{ID: "stub", TargetColumn: income.DefaultTargetColumn}
}

func validForm() url.Values {
	return url.Values{
		"state":             {"SP"},
		"age":               {"35"},
		"sex":               {"1"},
		"race":              {"4"},
		"literate":          {"1"},
		"educational_level": {"5"},
		"studied_years":     {"12"},
		"worker_type":       {"1"},
		"work_segment":      {"7"},
		"occupation_group":  {"2"},
		"tax_payer":         {"1"},
		"hours_range":       {"3"},
		"hours_value":       {"44"},
	}
}

func newTestServer(p Predictor, opts Options) (*Server, *gin.Engine) {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC) }
	}
	if opts.Logger == nil {
		opts.Logger, _ = log.NewTestLogger(log.LevelDebug)
	}
	s := NewServer(p, opts)
	return s, s.Router()
}

func postForm(router http.Handler, form url.Values) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	_, router := newTestServer(&stubPredictor{}, Options{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestPredict_Form(t *testing.T) {
	stub := &stubPredictor{value: 2500}
	_, router := newTestServer(stub, Options{})

	w := postForm(router, validForm())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.InDelta(t, 2500, body["prediction_2023"], 1e-9)
	assert.InDelta(t, 2700, body["prediction_adjusted"], 1e-9)
	assert.InDelta(t, 500, body["prediction_2023_usd"], 1e-9)
	assert.InDelta(t, 540, body["prediction_adjusted_usd"], 1e-9)

	require.Len(t, stub.got, 1)
	assert.Equal(t, "SP", stub.got[0].State)
	assert.Equal(t, 44, stub.got[0].HoursValue)
}

func TestPredict_JSON(t *testing.T) {
	stub := &stubPredictor{value: 1000}
	_, router := newTestServer(stub, Options{})

	payload := map[string]any{}
	for k, v := range validForm() {
		payload[k] = v[0]
	}
	payload["age"] = 40

	b, err := json.Marshal(payload)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(string(b)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, stub.got, 1)
	assert.Equal(t, 40, stub.got[0].Age)
}

func TestPredict_InvalidData(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(url.Values)
	}{
		{"missing field", func(v url.Values) { v.Del("age") }},
		{"non-integer", func(v url.Values) { v.Set("sex", "abc") }},
		{"fraction", func(v url.Values) { v.Set("hours_value", "4.5") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubPredictor{value: 1}
			_, router := newTestServer(stub, Options{})

			form := validForm()
			tt.mutate(form)
			w := postForm(router, form)

			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			assert.Equal(t, MsgInvalidData, decode(t, w)["error"])
			assert.Empty(t, stub.got)
		})
	}
}

func TestPredict_MalformedJSON(t *testing.T) {
	_, router := newTestServer(&stubPredictor{}, Options{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, MsgInvalidData, decode(t, w)["error"])
}

func TestPredict_InvalidValues(t *testing.T) {
	tests := []struct {
		field string
		value string
	}{
		{"state", "XX"},
		{"age", "13"},
		{"race", "6"},
		{"hours_value", "121"},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			stub := &stubPredictor{value: 1}
			s, router := newTestServer(stub, Options{})

			form := validForm()
			form.Set(tt.field, tt.value)
			w := postForm(router, form)

			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			body := decode(t, w)
			assert.Equal(t, MsgInvalidValues, body["error"])
			assert.Contains(t, body["details"], tt.field)
			assert.Empty(t, stub.got)
			assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.predictions.WithLabelValues("invalid_values")))
		})
	}
}

func TestPredict_Failure(t *testing.T) {
	tests := []struct {
		name string
		stub *stubPredictor
	}{
		{"error", &stubPredictor{err: errors.NewNotFittedError("Artifact", "Predict")}},
		{"panic", &stubPredictor{panics: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := log.NewTestLogger(log.LevelDebug)
			s, router := newTestServer(tt.stub, Options{Logger: logger})

			w := postForm(router, validForm())
			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Equal(t, MsgPredictionFailed, decode(t, w)["error"])
			assert.True(t, logger.ContainsMessage("Prediction failed"))
			assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.predictions.WithLabelValues("failed")))
		})
	}
}

func TestPredict_CountsFallbacks(t *testing.T) {
	stub := &stubPredictor{value: 1, fallbacks: map[string]int{income.ColOccupationGroup: 1}}
	s, router := newTestServer(stub, Options{})

	require.Equal(t, http.StatusOK, postForm(router, validForm()).Code)
	require.Equal(t, http.StatusOK, postForm(router, validForm()).Code)

	assert.Equal(t, 2.0, testutil.ToFloat64(s.metrics.fallbacks.WithLabelValues(income.ColOccupationGroup)))
	assert.Equal(t, 2.0, testutil.ToFloat64(s.metrics.predictions.WithLabelValues("ok")))
}

func TestModelInfo(t *testing.T) {
	_, router := newTestServer(&stubPredictor{}, Options{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/model", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stub", decode(t, w)["id"])
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, router := newTestServer(&stubPredictor{value: 1}, Options{Registry: reg})
	require.Equal(t, http.StatusOK, postForm(router, validForm()).Code)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `incomeml_serving_predictions_total{status="ok"} 1`)
}

func TestRateLimit(t *testing.T) {
	s, router := newTestServer(&stubPredictor{value: 1}, Options{RateLimit: 0.001, Burst: 1})

	assert.Equal(t, http.StatusOK, postForm(router, validForm()).Code)
	assert.Equal(t, http.StatusTooManyRequests, postForm(router, validForm()).Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.rejected))

	// ヘルスチェックは制限しない
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestID_Propagates(t *testing.T) {
	_, router := newTestServer(&stubPredictor{}, Options{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	router.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/forecast/internal/auth"
	"example.com/forecast/internal/domain"
	"example.com/forecast/internal/worker"
)

type stubChecker struct {
	result    domain.ConditionAvailability
	condition string
}

func (s *stubChecker) Check(_ context.Context, condition string) domain.ConditionAvailability {
	s.condition = condition
	return s.result
}

type stubClient struct {
	resp worker.Envelope
	err  error
	seen []worker.Envelope
}

func (s *stubClient) Request(_ context.Context, env worker.Envelope) (worker.Envelope, error) {
	s.seen = append(s.seen, env)
	if s.err != nil {
		return worker.Envelope{}, s.err
	}
	resp := s.resp
	if resp.RequestID == "" {
		resp.RequestID = env.RequestID
	}
	return resp, nil
}

func authed(r *http.Request, scopes ...string) *http.Request {
	set := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		set[s] = struct{}{}
	}
	claims := &auth.Claims{Subject: "user-1", Scopes: set}
	return r.WithContext(auth.WithClaims(r.Context(), claims))
}

func TestConditionAvailability(t *testing.T) {
	checker := &stubChecker{result: domain.ConditionAvailability{
		Available: true,
		Days:      120,
		Message:   "optimised model available (120 unique days from all contributors)",
	}}
	handler := NewHandler(checker, &stubClient{}, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/v1/conditions/availability?condition=Asthma", nil)
	rec := httptest.NewRecorder()
	handler.conditionAvailability(rec, authed(req, auth.ScopeForecastsRead))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Asthma", checker.condition)

	var body domain.ConditionAvailability
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Available)
	assert.Equal(t, 120, body.Days)
}

func TestConditionAvailabilityRequiresCondition(t *testing.T) {
	handler := NewHandler(&stubChecker{}, &stubClient{}, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/v1/conditions/availability", nil)
	rec := httptest.NewRecorder()
	handler.conditionAvailability(rec, authed(req, auth.ScopeForecastsRead))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConditionAvailabilityRequiresAuth(t *testing.T) {
	handler := NewHandler(&stubChecker{}, &stubClient{}, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/v1/conditions/availability?condition=Asthma", nil)
	rec := httptest.NewRecorder()
	handler.conditionAvailability(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConditionAvailabilityRequiresScope(t *testing.T) {
	handler := NewHandler(&stubChecker{}, &stubClient{}, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/v1/conditions/availability?condition=Asthma", nil)
	rec := httptest.NewRecorder()
	handler.conditionAvailability(rec, authed(req, "other:scope"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func forecastBody(t *testing.T) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(ForecastRequest{
		Logs: []domain.HealthLogEntry{
			{Date: "2024-01-01", Metrics: map[string]any{"BPM": 60.0}},
			{Date: "2024-01-02", Metrics: map[string]any{"BPM": 62.0}},
		},
		Metric:    "BPM",
		DaysAhead: 3,
	})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func TestCreateForecast(t *testing.T) {
	result := domain.PredictionResult{
		Predictions: []domain.ForecastPoint{{Date: "2024-01-03", Value: 64}},
		Confidence:  []domain.ConfidenceBand{{Date: "2024-01-03", Lower: 63, Upper: 65}},
		ModelType:   "linear",
	}
	data, err := json.Marshal(result)
	require.NoError(t, err)

	client := &stubClient{resp: worker.Envelope{Type: worker.TypePredictResult, Data: data}}
	handler := NewHandler(&stubChecker{}, client, time.Second)

	req := httptest.NewRequest(http.MethodPost, "/v1/forecasts", forecastBody(t))
	rec := httptest.NewRecorder()
	handler.createForecast(rec, authed(req, auth.ScopeForecastsWrite))

	require.Equal(t, http.StatusOK, rec.Code)

	var body ForecastResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.RequestID)
	require.Len(t, body.Predictions, 1)
	assert.Equal(t, "2024-01-03", body.Predictions[0].Date)
	assert.Equal(t, "linear", body.ModelType)

	// The worker saw a PREDICT envelope correlated by the same requestId.
	require.Len(t, client.seen, 1)
	assert.Equal(t, worker.TypePredict, client.seen[0].Type)
	assert.Equal(t, body.RequestID, client.seen[0].RequestID)
}

func TestCreateForecastValidation(t *testing.T) {
	handler := NewHandler(&stubChecker{}, &stubClient{}, time.Second)

	body, err := json.Marshal(ForecastRequest{Metric: "", DaysAhead: 3})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/forecasts", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.createForecast(rec, authed(req, auth.ScopeForecastsWrite))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateForecastHorizonCap(t *testing.T) {
	handler := NewHandler(&stubChecker{}, &stubClient{}, time.Second)

	body, err := json.Marshal(ForecastRequest{Metric: "BPM", DaysAhead: 400})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/forecasts", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.createForecast(rec, authed(req, auth.ScopeForecastsWrite))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateForecastWorkerError(t *testing.T) {
	client := &stubClient{resp: worker.Envelope{Type: worker.TypeError, Error: "dispatch panic: boom"}}
	handler := NewHandler(&stubChecker{}, client, time.Second)

	req := httptest.NewRequest(http.MethodPost, "/v1/forecasts", forecastBody(t))
	rec := httptest.NewRecorder()
	handler.createForecast(rec, authed(req, auth.ScopeForecastsWrite))

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "worker_error", body.Code)
}

func TestCreateForecastWorkerTimeout(t *testing.T) {
	client := &stubClient{err: context.DeadlineExceeded}
	handler := NewHandler(&stubChecker{}, client, time.Second)

	req := httptest.NewRequest(http.MethodPost, "/v1/forecasts", forecastBody(t))
	rec := httptest.NewRecorder()
	handler.createForecast(rec, authed(req, auth.ScopeForecastsWrite))

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestCreateForecastReadScopeInsufficient(t *testing.T) {
	handler := NewHandler(&stubChecker{}, &stubClient{}, time.Second)

	req := httptest.NewRequest(http.MethodPost, "/v1/forecasts", forecastBody(t))
	rec := httptest.NewRecorder()
	handler.createForecast(rec, authed(req, auth.ScopeForecastsRead))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateAnalysis(t *testing.T) {
	data := []byte(`{"trends":{"BPM":{"direction":"rising","samples":4}}}`)
	client := &stubClient{resp: worker.Envelope{Type: worker.TypeAnalyzeResult, Data: data}}
	handler := NewHandler(&stubChecker{}, client, time.Second)

	body, err := json.Marshal(AnalysisRequest{Logs: []domain.HealthLogEntry{
		{Date: "2024-01-01", Metrics: map[string]any{"BPM": 60.0}},
	}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/analysis", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.createAnalysis(rec, authed(req, auth.ScopeForecastsWrite))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp AnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Contains(t, resp.Trends, "BPM")
	assert.Equal(t, "rising", resp.Trends["BPM"].Direction)
	assert.Equal(t, 4, resp.Trends["BPM"].Samples)
}

func TestCreateAnalysisRequiresLogs(t *testing.T) {
	handler := NewHandler(&stubChecker{}, &stubClient{}, time.Second)

	req := httptest.NewRequest(http.MethodPost, "/v1/analysis", bytes.NewReader([]byte(`{"logs":[]}`)))
	rec := httptest.NewRecorder()
	handler.createAnalysis(rec, authed(req, auth.ScopeForecastsWrite))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	handler := NewHandler(&stubChecker{}, &stubClient{}, time.Second)

	req := httptest.NewRequest(http.MethodDelete, "/v1/forecasts", nil)
	rec := httptest.NewRecorder()
	handler.createForecast(rec, authed(req, auth.ScopeForecastsWrite))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestForecastRequestValidate(t *testing.T) {
	assert.Error(t, ForecastRequest{Metric: " ", DaysAhead: 1}.Validate())
	assert.Error(t, ForecastRequest{Metric: "BPM", DaysAhead: -1}.Validate())
	assert.Error(t, ForecastRequest{Metric: "BPM", DaysAhead: maxDaysAhead + 1}.Validate())
	assert.NoError(t, ForecastRequest{Metric: "BPM", DaysAhead: 0}.Validate())
	assert.NoError(t, ForecastRequest{Metric: "BPM", DaysAhead: maxDaysAhead}.Validate())
}

var errBoom = errors.New("boom")

func TestCreateForecastSubmitFailure(t *testing.T) {
	client := &stubClient{err: errBoom}
	handler := NewHandler(&stubChecker{}, client, time.Second)

	req := httptest.NewRequest(http.MethodPost, "/v1/forecasts", forecastBody(t))
	rec := httptest.NewRecorder()
	handler.createForecast(rec, authed(req, auth.ScopeForecastsWrite))

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

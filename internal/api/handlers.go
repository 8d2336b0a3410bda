// Package api exposes HTTP handlers for the forecast service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/forecast/internal/analysis"
	"example.com/forecast/internal/auth"
	"example.com/forecast/internal/domain"
	"example.com/forecast/internal/worker"
)

// maxDaysAhead caps the forecast horizon accepted over HTTP.
const maxDaysAhead = 365

// AvailabilityChecker is the sufficiency gate surface the API consumes.
type AvailabilityChecker interface {
	Check(ctx context.Context, condition string) domain.ConditionAvailability
}

// ForecastClient submits worker requests and returns the correlated response.
type ForecastClient interface {
	Request(ctx context.Context, env worker.Envelope) (worker.Envelope, error)
}

// Handler coordinates HTTP requests with the gate and the worker channel.
type Handler struct {
	checker AvailabilityChecker
	client  ForecastClient
	timeout time.Duration
}

// NewHandler builds a Handler. The timeout bounds how long a request waits
// for its worker response.
func NewHandler(checker AvailabilityChecker, client ForecastClient, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Handler{checker: checker, client: client, timeout: timeout}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/conditions/availability", h.conditionAvailability)
	mux.HandleFunc("/v1/forecasts", h.createForecast)
	mux.HandleFunc("/v1/analysis", h.createAnalysis)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) conditionAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeForecastsRead) && !claims.HasScope(auth.ScopeForecastsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope forecasts:read required")
		return
	}

	condition := r.URL.Query().Get("condition")
	if strings.TrimSpace(condition) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing condition parameter")
		return
	}

	// The gate is advisory and never fails; errors surface in the message.
	result := h.checker.Check(r.Context(), condition)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) createForecast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeForecastsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope forecasts:write required")
		return
	}

	var req ForecastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	requestID := uuid.NewString()
	env, err := worker.NewRequestEnvelope(worker.TypePredict, requestID, worker.PredictRequest{
		Logs:      req.Logs,
		AllLogs:   req.AllLogs,
		Metric:    req.Metric,
		DaysAhead: req.DaysAhead,
		ModelType: req.ModelType,
		RequestID: requestID,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	resp, err := h.dispatch(r.Context(), env)
	if err != nil {
		writeError(w, http.StatusGatewayTimeout, "worker_timeout", err.Error())
		return
	}
	if resp.Type == worker.TypeError {
		writeError(w, http.StatusInternalServerError, "worker_error", resp.Error)
		return
	}

	var result domain.PredictionResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "malformed worker response")
		return
	}

	writeJSON(w, http.StatusOK, ForecastResponse{
		RequestID:   resp.RequestID,
		Predictions: result.Predictions,
		Confidence:  result.Confidence,
		ModelType:   result.ModelType,
	})
}

func (h *Handler) createAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeForecastsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope forecasts:write required")
		return
	}

	var req AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if len(req.Logs) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "logs are required")
		return
	}

	requestID := uuid.NewString()
	env, err := worker.NewRequestEnvelope(worker.TypeAnalyze, requestID, worker.AnalyzeRequest{
		Logs:      req.Logs,
		AllLogs:   req.AllLogs,
		RequestID: requestID,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	resp, err := h.dispatch(r.Context(), env)
	if err != nil {
		writeError(w, http.StatusGatewayTimeout, "worker_timeout", err.Error())
		return
	}
	if resp.Type == worker.TypeError {
		writeError(w, http.StatusInternalServerError, "worker_error", resp.Error)
		return
	}

	var report analysis.TrendReport
	if err := json.Unmarshal(resp.Data, &report); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "malformed worker response")
		return
	}

	writeJSON(w, http.StatusOK, AnalysisResponse{
		RequestID: resp.RequestID,
		Trends:    report.Trends,
	})
}

func (h *Handler) dispatch(ctx context.Context, env worker.Envelope) (worker.Envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.client.Request(ctx, env)
}

// ForecastRequest is the body of POST /v1/forecasts.
type ForecastRequest struct {
	Logs      []domain.HealthLogEntry `json:"logs"`
	AllLogs   []domain.HealthLogEntry `json:"allLogs,omitempty"`
	Metric    string                  `json:"metric"`
	DaysAhead int                     `json:"daysAhead"`
	ModelType string                  `json:"modelType,omitempty"`
}

// Validate enforces basic request invariants.
func (r ForecastRequest) Validate() error {
	if strings.TrimSpace(r.Metric) == "" {
		return errors.New("metric is required")
	}
	if r.DaysAhead < 0 {
		return errors.New("daysAhead must not be negative")
	}
	if r.DaysAhead > maxDaysAhead {
		return errors.New("daysAhead exceeds limit")
	}
	return nil
}

// ForecastResponse is the body returned by POST /v1/forecasts.
type ForecastResponse struct {
	RequestID   string                  `json:"requestId"`
	Predictions []domain.ForecastPoint  `json:"predictions"`
	Confidence  []domain.ConfidenceBand `json:"confidence"`
	ModelType   string                  `json:"modelType"`
}

// AnalysisRequest is the body of POST /v1/analysis.
type AnalysisRequest struct {
	Logs    []domain.HealthLogEntry `json:"logs"`
	AllLogs []domain.HealthLogEntry `json:"allLogs,omitempty"`
}

// AnalysisResponse is the body returned by POST /v1/analysis.
type AnalysisResponse struct {
	RequestID string                          `json:"requestId"`
	Trends    map[string]analysis.MetricTrend `json:"trends"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Code: code, Message: message})
}

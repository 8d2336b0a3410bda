package worker

import (
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog"

	"example.com/forecast/internal/analysis"
	"example.com/forecast/internal/domain"
	"example.com/forecast/internal/forecast"
	"example.com/forecast/internal/observability"
)

// Forecaster runs the model-selection and forecast pipeline for one request.
type Forecaster interface {
	Predict(input forecast.PredictInput) domain.PredictionResult
}

// Analyzer produces the trend breakdown for an ANALYZE request.
type Analyzer interface {
	Analyze(logs []domain.HealthLogEntry) analysis.TrendReport
}

// Dispatcher decodes raw worker messages and routes them to the injected
// collaborators. It is stateless between messages: no request influences the
// handling of a later one. The same dispatcher serves both the in-process
// channel and the Kafka transport.
type Dispatcher struct {
	forecaster Forecaster
	analyzer   Analyzer
	logger     zerolog.Logger
}

// NewDispatcher constructs a Dispatcher. Both collaborators are explicit
// dependencies supplied before any message is accepted.
func NewDispatcher(forecaster Forecaster, analyzer Analyzer, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{forecaster: forecaster, analyzer: analyzer, logger: logger}
}

// Dispatch handles one serialized request and returns exactly one response
// envelope. Every failure mode, including panics inside a strategy, resolves
// to an ERROR envelope; Dispatch itself never fails.
func (d *Dispatcher) Dispatch(raw []byte) (resp Envelope) {
	var requestID string
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Interface("panic", r).Str("request_id", requestID).Msg("dispatch panicked")
			resp = errorEnvelope(requestID, fmt.Errorf("dispatch panic: %v", r), string(debug.Stack()))
		}
		recordResponse(resp.Type)
	}()

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return errorEnvelope("", fmt.Errorf("malformed message: %w", err), "")
	}
	requestID = env.RequestID
	if requestID == "" {
		requestID = peekRequestID(env.Data)
	}

	switch env.Type {
	case TypePredict:
		var req PredictRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return errorEnvelope(requestID, fmt.Errorf("malformed PREDICT payload: %w", err), "")
		}
		if req.RequestID != "" {
			requestID = req.RequestID
		}
		result := d.forecaster.Predict(forecast.PredictInput{
			Logs:      req.Logs,
			Metric:    req.Metric,
			DaysAhead: req.DaysAhead,
			ModelType: req.ModelType,
		})
		observability.RecordForecastComputed()
		return resultEnvelope(TypePredictResult, requestID, result)

	case TypeAnalyze:
		var req AnalyzeRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return errorEnvelope(requestID, fmt.Errorf("malformed ANALYZE payload: %w", err), "")
		}
		if req.RequestID != "" {
			requestID = req.RequestID
		}
		report := d.analyzer.Analyze(req.Logs)
		return resultEnvelope(TypeAnalyzeResult, requestID, report)

	default:
		return errorEnvelope(requestID, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.Type), "")
	}
}

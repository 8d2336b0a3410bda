// Package forecast orchestrates model selection and forecast execution over
// historical health log series. The numeric fitting itself lives in
// internal/regression; this package decides which strategy runs and dates
// the output.
package forecast

import (
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"example.com/forecast/internal/domain"
	"example.com/forecast/internal/regression"
)

// ConfidenceLevel is the fixed level for all confidence bands.
const ConfidenceLevel = 0.95

// DefaultPolynomialDegree is used when no degree is recorded in an artifact.
const DefaultPolynomialDegree = 2

// Engine fits regression artifacts and runs the selected forecasting
// strategy. It is stateless apart from its logger and safe for concurrent
// use.
type Engine struct {
	logger zerolog.Logger
}

// NewEngine constructs an Engine with the given observability hook.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{logger: logger}
}

// PredictInput carries one forecast request.
type PredictInput struct {
	Logs      []domain.HealthLogEntry
	Metric    string
	DaysAhead int
	ModelType string
}

// Predict extracts the metric series, fits an artifact for the requested
// model type, and runs the selected strategy. It never fails: requests the
// engine cannot serve yield an explicit empty result.
func (e *Engine) Predict(input PredictInput) domain.PredictionResult {
	series, lastDate := MetricSeries(input.Logs, input.Metric)
	artifact := e.fit(series, input.ModelType)

	result := SelectAndRun(artifact, input.ModelType, series, lastDate, input.DaysAhead, input.Metric)

	e.logger.Debug().
		Str("metric", input.Metric).
		Str("model_type", result.ModelType).
		Int("series_len", len(series)).
		Int("predictions", len(result.Predictions)).
		Msg("forecast computed")
	return result
}

// fit produces the regression artifact for a series. A linear model is always
// fitted as the fallback strategy; polynomial and ARIMA components are fitted
// only when requested, so the selector's decision table sees exactly the
// variants the caller asked to be considered.
func (e *Engine) fit(series []float64, requestedType string) *domain.RegressionArtifact {
	if len(series) < 2 {
		return nil
	}

	artifact := &domain.RegressionArtifact{}

	linear, err := regression.FitLinear(series)
	if err == nil {
		artifact.Linear = linear
		artifact.ModelType = ModelLinear
	} else {
		e.logger.Debug().Err(err).Msg("linear fit skipped")
	}

	switch normalizeModelType(requestedType) {
	case ModelPolynomial:
		poly, fitErr := regression.FitPolynomial(series, DefaultPolynomialDegree)
		if fitErr == nil {
			artifact.Polynomial = poly
			artifact.ModelType = ModelPolynomial
		} else {
			e.logger.Debug().Err(fitErr).Msg("polynomial fit skipped")
		}
	case ModelARIMA:
		arima, fitErr := regression.FitARIMA(series, 1, 0, 0)
		if fitErr == nil {
			artifact.ARIMA = arima
			artifact.ModelType = ModelARIMA
		} else {
			e.logger.Debug().Err(fitErr).Msg("arima fit skipped")
		}
	}

	if !artifact.HasRegression() {
		return nil
	}
	return artifact
}

// MetricSeries extracts the numeric series for a metric in calendar order.
// Entries without a usable numeric value are discarded outright; the series
// is compacted, not gapped. The returned time is the last observed log date
// across all entries, which anchors the forecast date sequence.
func MetricSeries(logs []domain.HealthLogEntry, metric string) ([]float64, time.Time) {
	type observation struct {
		date  time.Time
		value float64
	}

	var lastDate time.Time
	observations := make([]observation, 0, len(logs))
	for _, entry := range logs {
		date, ok := domain.ParseDate(entry.Date)
		if !ok {
			continue
		}
		if date.After(lastDate) {
			lastDate = date
		}
		value, ok := entry.MetricValue(metric)
		if !ok {
			continue
		}
		observations = append(observations, observation{date: date, value: value})
	}

	sort.SliceStable(observations, func(i, j int) bool {
		return observations[i].date.Before(observations[j].date)
	})

	series := make([]float64, len(observations))
	for i, obs := range observations {
		series[i] = obs.value
	}
	return series, lastDate
}

func normalizeModelType(modelType string) string {
	return strings.ToLower(strings.TrimSpace(modelType))
}

package forecast

import (
	"time"

	"example.com/forecast/internal/domain"
)

// Model type labels exposed on prediction results.
const (
	ModelLinear     = "linear"
	ModelPolynomial = "polynomial"
	ModelARIMA      = "arima"
)

// SelectAndRun picks the forecasting strategy for an artifact and requested
// model type, then runs it. The decision table, in priority order:
//
//  1. artifact absent or without a usable regression: explicit empty result
//  2. arima requested and the artifact has an ARIMA component: ARIMA
//  3. polynomial requested and the artifact has a polynomial component:
//     polynomial with confidence bands
//  4. anything else: linear with confidence bands
//
// The result's model type is the executed strategy, falling back to the
// artifact's recorded type, falling back to "linear", so consumers always
// receive a label.
func SelectAndRun(artifact *domain.RegressionArtifact, requestedType string, series []float64, lastDate time.Time, horizon int, metric string) domain.PredictionResult {
	if !artifact.HasRegression() {
		return domain.EmptyPredictionResult(resultModelType("", artifact))
	}

	switch requested := normalizeModelType(requestedType); {
	case requested == ModelARIMA && artifact.ARIMA != nil:
		return runARIMA(artifact.ARIMA, series, lastDate, horizon)
	case requested == ModelPolynomial && artifact.Polynomial != nil:
		return runPolynomial(artifact.Polynomial, len(series), lastDate, horizon, metric)
	default:
		return runLinear(artifact.Linear, len(series), lastDate, horizon, metric)
	}
}

func resultModelType(executed string, artifact *domain.RegressionArtifact) string {
	if executed != "" {
		return executed
	}
	if artifact != nil && artifact.ModelType != "" {
		return artifact.ModelType
	}
	return ModelLinear
}

package forecast

import (
	"strings"
	"time"

	"example.com/forecast/internal/domain"
	"example.com/forecast/internal/regression"
)

// runARIMA produces point forecasts only; the ARIMA path carries no
// confidence bounds. Order defaults to (1,0,0) components where the artifact
// omits them.
func runARIMA(model *domain.ARIMAModel, series []float64, lastDate time.Time, horizon int) domain.PredictionResult {
	if len(series) == 0 || horizon <= 0 {
		return domain.EmptyPredictionResult(ModelARIMA)
	}

	if !arimaUsable(model) {
		p := model.P
		if p <= 0 {
			p = 1
		}
		refit, err := regression.FitARIMA(series, p, max(model.D, 0), max(model.Q, 0))
		if err != nil {
			return domain.EmptyPredictionResult(ModelARIMA)
		}
		model = refit
	}

	values := regression.ForecastARIMA(model, horizon)
	dates := forecastDates(lastDate, len(values))

	predictions := make([]domain.ForecastPoint, len(values))
	for i, v := range values {
		predictions[i] = domain.ForecastPoint{Date: dates[i], Value: v}
	}
	return domain.PredictionResult{
		Predictions: predictions,
		Confidence:  []domain.ConfidenceBand{},
		ModelType:   ModelARIMA,
	}
}

func runPolynomial(model *domain.PolynomialModel, start int, lastDate time.Time, horizon int, metric string) domain.PredictionResult {
	if start == 0 || horizon <= 0 {
		return domain.EmptyPredictionResult(ModelPolynomial)
	}
	banded := regression.ForecastPolynomial(model, start, horizon, boundOptions(metric))
	return bandedResult(ModelPolynomial, banded, lastDate)
}

func runLinear(model *domain.LinearModel, start int, lastDate time.Time, horizon int, metric string) domain.PredictionResult {
	if start == 0 || horizon <= 0 {
		return domain.EmptyPredictionResult(ModelLinear)
	}
	banded := regression.ForecastLinear(model, start, horizon, boundOptions(metric))
	return bandedResult(ModelLinear, banded, lastDate)
}

func bandedResult(modelType string, banded []regression.BandedPoint, lastDate time.Time) domain.PredictionResult {
	dates := forecastDates(lastDate, len(banded))
	predictions := make([]domain.ForecastPoint, len(banded))
	confidence := make([]domain.ConfidenceBand, len(banded))
	for i, point := range banded {
		predictions[i] = domain.ForecastPoint{Date: dates[i], Value: point.Value}
		confidence[i] = domain.ConfidenceBand{Date: dates[i], Lower: point.Lower, Upper: point.Upper}
	}
	return domain.PredictionResult{
		Predictions: predictions,
		Confidence:  confidence,
		ModelType:   modelType,
	}
}

// forecastDates returns count consecutive calendar days starting the day
// after the last observed date.
func forecastDates(lastDate time.Time, count int) []string {
	dates := make([]string, count)
	for i := 0; i < count; i++ {
		dates[i] = lastDate.AddDate(0, 0, i+1).Format(time.DateOnly)
	}
	return dates
}

// boundOptions classifies the metric for the kernel's band derivation.
// Rate-type metrics cannot go negative; cumulative quantities like body
// weight accumulate uncertainty with horizon.
func boundOptions(metric string) regression.BoundOptions {
	opts := regression.BoundOptions{Level: ConfidenceLevel}
	name := strings.ToLower(strings.TrimSpace(metric))
	switch {
	case strings.Contains(name, "bpm"), strings.Contains(name, "heart"), strings.Contains(name, "steps"):
		opts.RateMetric = true
	case strings.Contains(name, "weight"):
		opts.CumulativeMetric = true
	}
	return opts
}

func arimaUsable(model *domain.ARIMAModel) bool {
	if model == nil {
		return false
	}
	if len(model.AR) == 0 && len(model.MA) == 0 {
		return false
	}
	return len(model.IntegrationTails) >= model.D
}

// Package regression implements the numeric fitting and forecasting kernels
// used by the forecast executor. All functions are pure: they take a series
// (or a fitted model) and return values, never touching shared state.
package regression

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"example.com/forecast/internal/domain"
)

// ErrInsufficientData is returned when a series is too short to fit the
// requested model.
var ErrInsufficientData = errors.New("not enough observations to fit model")

// BandedPoint is one forecast value with its confidence bounds.
type BandedPoint struct {
	Value float64
	Lower float64
	Upper float64
}

// BoundOptions adjusts how confidence bounds are derived for a metric.
type BoundOptions struct {
	// Level is the confidence level, e.g. 0.95.
	Level float64
	// RateMetric clamps the lower bound at zero; negative rates (bpm,
	// steps per day) are not physical.
	RateMetric bool
	// CumulativeMetric widens the band with the square root of the forecast
	// step, so uncertainty grows with horizon for slow-moving quantities
	// such as body weight.
	CumulativeMetric bool
}

// FitLinear fits an ordinary least-squares line over a series indexed
// 0..n-1, recording the statistics needed for prediction intervals.
func FitLinear(values []float64) (*domain.LinearModel, error) {
	n := len(values)
	if n < 2 {
		return nil, ErrInsufficientData
	}

	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}

	intercept, slope := stat.LinearRegression(xs, values, nil, false)
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		return nil, ErrInsufficientData
	}

	meanX := stat.Mean(xs, nil)
	var sumSqDevX, sumSqResiduals float64
	for i, x := range xs {
		sumSqDevX += (x - meanX) * (x - meanX)
		resid := values[i] - (intercept + slope*x)
		sumSqResiduals += resid * resid
	}

	stdErr := 0.0
	if n > 2 {
		stdErr = math.Sqrt(sumSqResiduals / float64(n-2))
	}

	return &domain.LinearModel{
		Slope:          slope,
		Intercept:      intercept,
		N:              n,
		MeanX:          meanX,
		SumSqDevX:      sumSqDevX,
		ResidualStdErr: stdErr,
	}, nil
}

// ForecastLinear produces horizon banded forecasts starting at index start
// (the number of observed points).
func ForecastLinear(m *domain.LinearModel, start, horizon int, opts BoundOptions) []BandedPoint {
	if m == nil || horizon <= 0 {
		return []BandedPoint{}
	}

	tStat := tQuantile(opts.Level, m.N-2)
	out := make([]BandedPoint, 0, horizon)
	for step := 1; step <= horizon; step++ {
		x := float64(start + step - 1)
		value := m.Intercept + m.Slope*x
		se := predictionStdErr(m.ResidualStdErr, m.N, m.MeanX, m.SumSqDevX, x)
		out = append(out, bandedPoint(value, tStat*se, step, opts))
	}
	return out
}

// predictionStdErr is the standard error of a new observation at x, combining
// regression error with prediction error.
func predictionStdErr(residualStdErr float64, n int, meanX, sumSqDevX, x float64) float64 {
	if n <= 0 {
		return residualStdErr
	}
	leverage := 1 + 1/float64(n)
	if sumSqDevX > 0 {
		leverage += (x - meanX) * (x - meanX) / sumSqDevX
	}
	return residualStdErr * math.Sqrt(leverage)
}

// tQuantile returns the two-sided Student-t critical value for the given
// confidence level and degrees of freedom, falling back to the normal
// quantile when no degrees of freedom remain.
func tQuantile(level float64, dof int) float64 {
	if level <= 0 || level >= 1 {
		level = 0.95
	}
	p := 0.5 + level/2
	if dof < 1 {
		return distuv.UnitNormal.Quantile(p)
	}
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(dof)}
	return t.Quantile(p)
}

func bandedPoint(value, margin float64, step int, opts BoundOptions) BandedPoint {
	if opts.CumulativeMetric {
		margin *= math.Sqrt(float64(step))
	}
	lower := value - margin
	upper := value + margin
	if opts.RateMetric {
		clamped := math.Max(lower, 0)
		if clamped > value {
			clamped = value
		}
		lower = clamped
	}
	return BandedPoint{Value: value, Lower: lower, Upper: upper}
}

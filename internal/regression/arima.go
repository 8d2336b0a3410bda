package regression

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"example.com/forecast/internal/domain"
)

// FitARIMA fits an ARIMA(p,d,q) model by Hannan-Rissanen conditional least
// squares: the series is differenced d times, a long autoregression supplies
// initial residual estimates, and AR/MA coefficients are then re-estimated
// jointly with one refinement pass. Full MLE is deliberately out of scope;
// this pipeline only needs short-horizon point forecasts.
func FitARIMA(values []float64, p, d, q int) (*domain.ARIMAModel, error) {
	if p < 0 {
		p = 0
	}
	if d < 0 {
		d = 0
	}
	if q < 0 {
		q = 0
	}
	if p == 0 && q == 0 {
		p = 1
	}

	z := append([]float64(nil), values...)
	tails := make([]float64, 0, d)
	for i := 0; i < d; i++ {
		if len(z) < 2 {
			return nil, ErrInsufficientData
		}
		tails = append(tails, z[len(z)-1])
		z = difference(z)
	}

	longOrder := p + q
	if longOrder < 1 {
		longOrder = 1
	}
	if len(z) < longOrder+q+p+q+2 {
		return nil, ErrInsufficientData
	}

	// Step 1: long autoregression for initial residuals.
	longCoefs, err := fitAR(z, longOrder)
	if err != nil {
		return nil, err
	}
	residuals := arimaResiduals(z, longCoefs[0], longCoefs[1:], nil)

	intercept := longCoefs[0]
	phi := append([]float64(nil), longCoefs[1:min(len(longCoefs), p+1)]...)
	for len(phi) < p {
		phi = append(phi, 0)
	}
	var theta []float64

	// Step 2 (+ one refinement): joint regression on value and residual lags.
	if q > 0 {
		for pass := 0; pass < 2; pass++ {
			coefs, fitErr := fitARMA(z, residuals, p, q)
			if fitErr != nil {
				return nil, fitErr
			}
			intercept = coefs[0]
			phi = coefs[1 : 1+p]
			theta = coefs[1+p:]
			residuals = arimaResiduals(z, intercept, phi, theta)
		}
	} else if p > 0 {
		coefs, fitErr := fitAR(z, p)
		if fitErr != nil {
			return nil, fitErr
		}
		intercept = coefs[0]
		phi = coefs[1:]
		residuals = arimaResiduals(z, intercept, phi, nil)
	}

	lastValues := make([]float64, p)
	for i := 1; i <= p; i++ {
		lastValues[i-1] = z[len(z)-i]
	}
	lastResiduals := make([]float64, q)
	for j := 1; j <= q; j++ {
		lastResiduals[j-1] = residuals[len(residuals)-j]
	}

	return &domain.ARIMAModel{
		P:                p,
		D:                d,
		Q:                q,
		AR:               phi,
		MA:               theta,
		Intercept:        intercept,
		LastValues:       lastValues,
		LastResiduals:    lastResiduals,
		IntegrationTails: tails,
	}, nil
}

// ForecastARIMA rolls the fitted recursion forward, treating future
// innovations as zero, then undoes the differencing. Point estimates only.
func ForecastARIMA(m *domain.ARIMAModel, horizon int) []float64 {
	if m == nil || horizon <= 0 {
		return []float64{}
	}

	vals := append([]float64(nil), m.LastValues...)
	res := append([]float64(nil), m.LastResiduals...)

	out := make([]float64, 0, horizon)
	for h := 0; h < horizon; h++ {
		z := m.Intercept
		for i, coef := range m.AR {
			if i < len(vals) {
				z += coef * vals[i]
			}
		}
		for j, coef := range m.MA {
			if j < len(res) {
				z += coef * res[j]
			}
		}
		out = append(out, z)
		vals = shiftIn(vals, z, m.P)
		res = shiftIn(res, 0, m.Q)
	}

	// Undo differencing, outermost level last.
	for level := m.D - 1; level >= 0; level-- {
		running := m.IntegrationTails[level]
		for i := range out {
			running += out[i]
			out[i] = running
		}
	}
	return out
}

func difference(values []float64) []float64 {
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		out[i-1] = values[i] - values[i-1]
	}
	return out
}

// shiftIn prepends v as the most recent lag, keeping at most size entries.
func shiftIn(lags []float64, v float64, size int) []float64 {
	if size <= 0 {
		return lags[:0]
	}
	lags = append([]float64{v}, lags...)
	if len(lags) > size {
		lags = lags[:size]
	}
	return lags
}

// fitAR estimates [intercept, phi_1..phi_p] by OLS on lagged values.
func fitAR(z []float64, p int) ([]float64, error) {
	rows := len(z) - p
	if rows < p+2 {
		return nil, ErrInsufficientData
	}

	design := mat.NewDense(rows, p+1, nil)
	target := make([]float64, rows)
	for t := p; t < len(z); t++ {
		row := t - p
		design.Set(row, 0, 1)
		for i := 1; i <= p; i++ {
			design.Set(row, i, z[t-i])
		}
		target[row] = z[t]
	}
	return leastSquares(design, target)
}

// fitARMA estimates [intercept, phi_1..phi_p, theta_1..theta_q] by OLS on
// lagged values and lagged residual estimates.
func fitARMA(z, residuals []float64, p, q int) ([]float64, error) {
	start := p
	if q > start {
		start = q
	}
	rows := len(z) - start
	if rows < p+q+2 {
		return nil, ErrInsufficientData
	}

	design := mat.NewDense(rows, 1+p+q, nil)
	target := make([]float64, rows)
	for t := start; t < len(z); t++ {
		row := t - start
		design.Set(row, 0, 1)
		for i := 1; i <= p; i++ {
			design.Set(row, i, z[t-i])
		}
		for j := 1; j <= q; j++ {
			design.Set(row, p+j, residuals[t-j])
		}
		target[row] = z[t]
	}
	return leastSquares(design, target)
}

// arimaResiduals computes conditional residuals with pre-sample terms
// treated as zero.
func arimaResiduals(z []float64, intercept float64, phi, theta []float64) []float64 {
	residuals := make([]float64, len(z))
	for t := range z {
		pred := intercept
		for i, coef := range phi {
			if lag := t - (i + 1); lag >= 0 {
				pred += coef * z[lag]
			}
		}
		for j, coef := range theta {
			if lag := t - (j + 1); lag >= 0 {
				pred += coef * residuals[lag]
			}
		}
		resid := z[t] - pred
		if math.IsNaN(resid) || math.IsInf(resid, 0) {
			resid = 0
		}
		residuals[t] = resid
	}
	return residuals
}

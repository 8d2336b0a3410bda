package regression

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"example.com/forecast/internal/domain"
)

// FitPolynomial fits a least-squares polynomial of the given degree over a
// series indexed 0..n-1. Coefficients are stored in ascending degree order.
func FitPolynomial(values []float64, degree int) (*domain.PolynomialModel, error) {
	n := len(values)
	if degree < 1 {
		degree = 2
	}
	terms := degree + 1
	if n < terms+1 {
		return nil, ErrInsufficientData
	}

	design := mat.NewDense(n, terms, nil)
	for i := 0; i < n; i++ {
		x := float64(i)
		pow := 1.0
		for j := 0; j < terms; j++ {
			design.Set(i, j, pow)
			pow *= x
		}
	}

	coefs, err := leastSquares(design, values)
	if err != nil {
		return nil, err
	}

	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	meanX := stat.Mean(xs, nil)

	var sumSqDevX, sumSqResiduals float64
	for i, x := range xs {
		sumSqDevX += (x - meanX) * (x - meanX)
		resid := values[i] - evalPolynomial(coefs, x)
		sumSqResiduals += resid * resid
	}

	stdErr := 0.0
	if dof := n - terms; dof > 0 {
		stdErr = math.Sqrt(sumSqResiduals / float64(dof))
	}

	return &domain.PolynomialModel{
		Degree:         degree,
		Coefficients:   coefs,
		N:              n,
		MeanX:          meanX,
		SumSqDevX:      sumSqDevX,
		ResidualStdErr: stdErr,
	}, nil
}

// ForecastPolynomial produces horizon banded forecasts starting at index
// start (the number of observed points).
func ForecastPolynomial(m *domain.PolynomialModel, start, horizon int, opts BoundOptions) []BandedPoint {
	if m == nil || horizon <= 0 {
		return []BandedPoint{}
	}

	dof := m.N - (m.Degree + 1)
	tStat := tQuantile(opts.Level, dof)
	out := make([]BandedPoint, 0, horizon)
	for step := 1; step <= horizon; step++ {
		x := float64(start + step - 1)
		value := evalPolynomial(m.Coefficients, x)
		se := predictionStdErr(m.ResidualStdErr, m.N, m.MeanX, m.SumSqDevX, x)
		out = append(out, bandedPoint(value, tStat*se, step, opts))
	}
	return out
}

func evalPolynomial(coefs []float64, x float64) float64 {
	// Horner evaluation, coefficients ascending.
	value := 0.0
	for i := len(coefs) - 1; i >= 0; i-- {
		value = value*x + coefs[i]
	}
	return value
}

// leastSquares solves design * beta = y in the least-squares sense via QR.
func leastSquares(design *mat.Dense, y []float64) ([]float64, error) {
	var qr mat.QR
	qr.Factorize(design)

	rows, cols := design.Dims()
	rhs := mat.NewDense(rows, 1, nil)
	for i, v := range y {
		rhs.Set(i, 0, v)
	}

	var solution mat.Dense
	if err := qr.SolveTo(&solution, false, rhs); err != nil {
		return nil, ErrInsufficientData
	}

	coefs := make([]float64, cols)
	for j := 0; j < cols; j++ {
		v := solution.At(j, 0)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, ErrInsufficientData
		}
		coefs[j] = v
	}
	return coefs, nil
}

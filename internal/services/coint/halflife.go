package coint

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// halfLifeDays estimates the mean-reversion half-life of a residual
// series from the AR(1) drift: regressing the one-step change on the
// lagged level gives lambda, and the half-life is -ln(2)/ln(1+lambda).
// A non-negative lambda means no measured reversion and yields NaN.
func halfLifeDays(resid []float64) float64 {
	if len(resid) < 3 {
		return math.NaN()
	}

	lagged := resid[:len(resid)-1]
	delta := make([]float64, len(resid)-1)
	for i := 1; i < len(resid); i++ {
		delta[i-1] = resid[i] - resid[i-1]
	}

	_, lambda := stat.LinearRegression(lagged, delta, nil, false)
	if math.IsNaN(lambda) || lambda >= 0 || 1+lambda <= 0 {
		return math.NaN()
	}
	return -math.Ln2 / math.Log(1+lambda)
}

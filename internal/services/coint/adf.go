package coint

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"PairScout/internal/domain/models"
)

// adfStat computes the augmented Dickey-Fuller t-statistic of a series
// with a constant term and the given number of lagged differences. The
// statistic is the t-ratio of the level coefficient in
//
//	dy_t = a + g*y_{t-1} + sum_i f_i*dy_{t-i} + e_t
func adfStat(series []float64, lags int) (float64, error) {
	if lags < 0 {
		lags = 0
	}
	n := len(series) - 1 - lags // usable rows after differencing and lagging
	if n < 10 {
		return 0, models.Reason(models.ErrInsufficientData,
			"adf needs at least %d observations, got %d", 11+lags, len(series))
	}

	diffs := make([]float64, len(series)-1)
	for i := 1; i < len(series); i++ {
		diffs[i-1] = series[i] - series[i-1]
	}

	p := 2 + lags // constant, level, lagged diffs
	X := mat.NewDense(n, p, nil)
	y := make([]float64, n)
	for row := 0; row < n; row++ {
		t := row + lags // index into diffs for dy_t
		y[row] = diffs[t]
		X.Set(row, 0, 1)
		X.Set(row, 1, series[t]) // y_{t-1} in original indexing
		for k := 1; k <= lags; k++ {
			X.Set(row, 1+k, diffs[t-k])
		}
	}

	coeffs, stderrs, _, err := olsFit(y, X)
	if err != nil {
		return 0, err
	}
	if stderrs[1] == 0 || math.IsNaN(stderrs[1]) {
		return 0, models.Reason(models.ErrDegenerateRegression, "level coefficient has no variance")
	}
	return coeffs[1] / stderrs[1], nil
}

// defaultADFLags is the usual cube-root rule of thumb.
func defaultADFLags(n int) int {
	if n < 2 {
		return 0
	}
	return int(math.Cbrt(float64(n - 1)))
}

type quantile struct {
	stat float64
	p    float64
}

// Interpolated asymptotic quantiles of the Dickey-Fuller tau
// distribution with a constant term.
var adfTauQuantiles = []quantile{
	{-3.43, 0.01},
	{-3.12, 0.025},
	{-2.86, 0.05},
	{-2.57, 0.10},
	{-1.57, 0.50},
	{-0.44, 0.90},
	{-0.07, 0.95},
	{0.23, 0.975},
	{0.60, 0.99},
}

// Interpolated asymptotic quantiles of the two-variable residual
// unit-root distribution with a constant term.
var egTauQuantiles = []quantile{
	{-3.90, 0.01},
	{-3.34, 0.05},
	{-3.04, 0.10},
	{-2.45, 0.50},
	{-1.55, 0.90},
	{-1.20, 0.95},
	{0.00, 0.99},
}

// tauPValue maps a tau statistic to a p-value by linear interpolation
// between tabulated quantiles. Statistics more negative than the lowest
// tabulated point clamp to its p-value; statistics beyond the upper end
// report 1.0 so untabulated cases read as not cointegrated.
func tauPValue(stat float64, table []quantile) float64 {
	if math.IsNaN(stat) {
		return 1.0
	}
	if stat <= table[0].stat {
		return table[0].p
	}
	for i := 1; i < len(table); i++ {
		if stat <= table[i].stat {
			lo, hi := table[i-1], table[i]
			frac := (stat - lo.stat) / (hi.stat - lo.stat)
			return lo.p + frac*(hi.p-lo.p)
		}
	}
	return 1.0
}

package signal

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"PairScout/internal/domain/models"
)

// SpreadStats summarizes a spread window for monitoring endpoints.
type SpreadStats struct {
	Mean    float64
	Std     float64
	Min     float64
	Max     float64
	Current float64
	ZScore  float64
}

// ComputeSpreadStats uses the sample standard deviation, matching the
// z-scores the signal engine trades on.
func ComputeSpreadStats(spread []float64) SpreadStats {
	if len(spread) == 0 {
		return SpreadStats{}
	}

	mean := stat.Mean(spread, nil)
	std := math.Sqrt(stat.Variance(spread, nil))
	min, max := spread[0], spread[0]
	for _, s := range spread {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}

	cur := spread[len(spread)-1]
	z := 0.0
	if std > 0 {
		z = (cur - mean) / std
	}
	return SpreadStats{Mean: mean, Std: std, Min: min, Max: max, Current: cur, ZScore: z}
}

// Observations standardizes a spread series against a pair's fitted
// residual distribution, producing the input stream for replay.
func Observations(pair *models.Pair, spread []float64, dates []time.Time) []models.SpreadObservation {
	out := make([]models.SpreadObservation, len(spread))
	for i, s := range spread {
		out[i] = models.SpreadObservation{
			Spread: s,
			ZScore: pair.ZScore(s),
		}
		if i < len(dates) {
			out[i].Timestamp = dates[i]
		}
	}
	return out
}

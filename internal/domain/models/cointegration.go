package models

import (
	"math"
	"time"
)

// CointMethod names the statistical test used on a tuple.
type CointMethod string

const (
	MethodEngleGranger CointMethod = "engle_granger"
	MethodJohansen     CointMethod = "johansen"
)

// CointegrationResult is the outcome of testing one candidate tuple.
type CointegrationResult struct {
	PairID         string
	Instruments    []string
	Method         CointMethod
	TestStatistic  float64 // ADF tau for 2-way, trace statistic for N-way
	PValue         float64 // 1.0 when the statistic falls outside tabulated ranges
	CriticalValues map[string]float64
	HedgeRatios    []float64 // same convention as Pair.HedgeRatios, [0] == 1.0
	Intercept      float64
	ResidualMean   float64
	ResidualStd    float64
	HalfLifeDays   float64 // NaN when the spread shows no mean reversion
	Correlation    float64 // Pearson correlation of the two close columns, 2-way only
	TraceStats     []float64
	Rank           int // cointegration rank, N-way only
	Observations   int
	Start          time.Time
	End            time.Time
	CreatedAt      time.Time
}

// Significant reports whether the tuple passed the p-value gate.
func (r *CointegrationResult) Significant(maxPValue float64) bool {
	return r.PValue <= maxPValue
}

// HalfLifeInBand reports whether the mean-reversion speed falls inside
// the tradable band. A NaN half-life never qualifies.
func (r *CointegrationResult) HalfLifeInBand(min, max float64) bool {
	if math.IsNaN(r.HalfLifeDays) {
		return false
	}
	return r.HalfLifeDays >= min && r.HalfLifeDays <= max
}

// Pair builds the runtime pair record used by the signal engine.
func (r *CointegrationResult) Pair(status PairStatus) *Pair {
	return &Pair{
		ID:           r.PairID,
		Instruments:  r.Instruments,
		Status:       status,
		HedgeRatios:  r.HedgeRatios,
		Intercept:    r.Intercept,
		ResidualMean: r.ResidualMean,
		ResidualStd:  r.ResidualStd,
		HalfLifeDays: r.HalfLifeDays,
		PValue:       r.PValue,
		Correlation:  r.Correlation,
		AnalyzedAt:   r.CreatedAt,
	}
}

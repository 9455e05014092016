package signal

import (
	"math"

	"PairScout/internal/domain/models"
)

// LegSizing converts the hedge-ratio vector into signed notionals
// scaled so gross exposure equals capital. A long spread buys the first
// instrument and sells the hedged legs; a short spread mirrors it.
func LegSizing(pair *models.Pair, capital float64, state models.SignalState) []models.Leg {
	var gross float64
	for _, h := range pair.HedgeRatios {
		gross += math.Abs(h)
	}
	if gross == 0 {
		gross = 1
	}

	dir := 1.0
	if state == models.StateShortSpread {
		dir = -1.0
	}

	legs := make([]models.Leg, len(pair.Instruments))
	for i, inst := range pair.Instruments {
		weight := pair.HedgeRatios[i] / gross
		if i > 0 {
			weight = -weight
		}
		legs[i] = models.Leg{Instrument: inst, Notional: dir * weight * capital}
	}
	return legs
}

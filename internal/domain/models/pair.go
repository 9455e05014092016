package models

import (
	"sort"
	"strings"
	"time"
)

// PairStatus tracks how far a pair has progressed through vetting.
type PairStatus string

const (
	PairActive     PairStatus = "ACTIVE"     // passed every promotion gate
	PairMonitoring PairStatus = "MONITORING" // statistically interesting, not yet tradable
	PairRejected   PairStatus = "REJECTED"   // failed cointegration or backtest gates
)

// Provenance records how a candidate tuple was produced.
type Provenance string

const (
	ProvenanceNeighbor Provenance = "neighbor"
	ProvenanceMutual   Provenance = "mutual" // N-way tuple from mutual 2-way neighbors
	ProvenanceManual   Provenance = "manual"
)

// CandidatePair is an unordered instrument tuple proposed for
// cointegration testing. Instruments is sorted, so equal sets compare
// equal and ID is canonical.
type CandidatePair struct {
	Instruments []string
	Provenance  Provenance
	Similarity  float64 // cosine similarity that produced the tuple
	Rank        int     // neighbor rank at generation time, 0-based
}

// NewCandidatePair canonicalizes the tuple by sorting instruments.
func NewCandidatePair(instruments []string, prov Provenance, sim float64, rank int) CandidatePair {
	sorted := make([]string, len(instruments))
	copy(sorted, instruments)
	sort.Strings(sorted)
	return CandidatePair{Instruments: sorted, Provenance: prov, Similarity: sim, Rank: rank}
}

func (c CandidatePair) ID() string {
	return strings.Join(c.Instruments, "~")
}

func (c CandidatePair) Size() int { return len(c.Instruments) }

// Pair is a vetted instrument tuple with its fitted spread parameters.
// HedgeRatios[0] is always 1.0; the spread is the hedge-weighted sum of
// prices.
type Pair struct {
	ID           string
	Instruments  []string
	Status       PairStatus
	HedgeRatios  []float64
	Intercept    float64
	ResidualMean float64
	ResidualStd  float64
	HalfLifeDays float64
	PValue       float64
	Correlation  float64
	AnalyzedAt   time.Time
}

// Spread evaluates the hedge-weighted spread at the given leg prices.
// Prices must be ordered like Instruments.
func (p *Pair) Spread(prices []float64) float64 {
	spread := p.HedgeRatios[0] * prices[0]
	for i := 1; i < len(prices); i++ {
		spread -= p.HedgeRatios[i] * prices[i]
	}
	return spread - p.Intercept
}

// ZScore standardizes a spread value against the fitted residual
// distribution.
func (p *Pair) ZScore(spread float64) float64 {
	if p.ResidualStd == 0 {
		return 0
	}
	return (spread - p.ResidualMean) / p.ResidualStd
}

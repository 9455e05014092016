package models

import "time"

// BacktestTrade is one closed round trip over the spread.
type BacktestTrade struct {
	PairID      string
	Direction   SignalState // LONG_SPREAD or SHORT_SPREAD
	EntryTime   time.Time
	ExitTime    time.Time
	EntrySpread float64
	ExitSpread  float64
	PnL         float64 // net of commission and slippage
	HoldingDays int
	ExitReason  TransitionType
}

// BacktestResult summarizes a historical replay of the signal rules for
// one pair. Return figures are fractions of initial capital, drawdown is
// reported as a negative fraction.
type BacktestResult struct {
	PairID           string
	TotalReturn      float64
	AnnualizedReturn float64
	SharpeRatio      float64
	SortinoRatio     float64
	MaxDrawdown      float64
	WinRate          float64
	ProfitFactor     float64
	AvgWin           float64
	AvgLoss          float64
	TradeCount       int
	AvgHoldingDays   float64
	FinalEquity      float64
	Observations     int
	Start            time.Time
	End              time.Time
	CreatedAt        time.Time
	Trades           []BacktestTrade
}

// Passes reports whether the backtest clears the promotion gate on
// risk-adjusted return.
func (r *BacktestResult) Passes(minSharpe float64) bool {
	return r.SharpeRatio >= minSharpe
}

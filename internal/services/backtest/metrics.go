package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"PairScout/internal/domain/models"
)

const tradingDaysPerYear = 252

// summarize computes performance statistics from the daily equity curve
// and the closed trades.
func summarize(pairID string, equity []float64, trades []models.BacktestTrade, cfg Config) *models.BacktestResult {
	res := &models.BacktestResult{
		PairID:      pairID,
		TradeCount:  len(trades),
		FinalEquity: equity[len(equity)-1],
		Trades:      trades,
	}

	initial := cfg.InitialCapital
	res.TotalReturn = (res.FinalEquity - initial) / initial

	years := float64(len(equity)) / tradingDaysPerYear
	if years > 0 && res.FinalEquity > 0 {
		res.AnnualizedReturn = math.Pow(res.FinalEquity/initial, 1/years) - 1
	}

	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] != 0 {
			returns = append(returns, equity[i]/equity[i-1]-1)
		}
	}
	res.SharpeRatio = sharpe(returns, cfg.RiskFreeRate)
	res.SortinoRatio = sortino(returns, cfg.RiskFreeRate)
	res.MaxDrawdown = maxDrawdown(equity)

	var wins, losses int
	var winSum, lossSum, holdSum float64
	for _, tr := range trades {
		holdSum += float64(tr.HoldingDays)
		if tr.PnL > 0 {
			wins++
			winSum += tr.PnL
		} else {
			losses++
			lossSum += -tr.PnL
		}
	}
	if len(trades) > 0 {
		res.WinRate = float64(wins) / float64(len(trades))
		res.AvgHoldingDays = holdSum / float64(len(trades))
	}
	if wins > 0 {
		res.AvgWin = winSum / float64(wins)
	}
	if losses > 0 {
		res.AvgLoss = lossSum / float64(losses)
	}
	switch {
	case lossSum > 0:
		res.ProfitFactor = winSum / lossSum
	case winSum > 0:
		res.ProfitFactor = math.Inf(1)
	}

	return res
}

// sharpe annualizes the mean daily excess return over its volatility.
func sharpe(returns []float64, annualRF float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	dailyRF := math.Pow(1+annualRF, 1.0/tradingDaysPerYear) - 1

	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - dailyRF
	}
	mean := stat.Mean(excess, nil)
	std := math.Sqrt(stat.Variance(excess, nil))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(tradingDaysPerYear)
}

// sortino penalizes only downside volatility.
func sortino(returns []float64, annualRF float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	dailyRF := math.Pow(1+annualRF, 1.0/tradingDaysPerYear) - 1

	var meanExcess, downSum float64
	var downN int
	for _, r := range returns {
		ex := r - dailyRF
		meanExcess += ex
		if ex < 0 {
			downSum += ex * ex
			downN++
		}
	}
	meanExcess /= float64(len(returns))
	if downN == 0 {
		if meanExcess > 0 {
			return math.Inf(1)
		}
		return 0
	}
	downside := math.Sqrt(downSum / float64(downN))
	if downside == 0 {
		return 0
	}
	return meanExcess / downside * math.Sqrt(tradingDaysPerYear)
}

// maxDrawdown is the deepest equity decline from a running peak,
// reported as a non-positive fraction.
func maxDrawdown(equity []float64) float64 {
	peak := equity[0]
	worst := 0.0
	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if peak > 0 {
			dd := e/peak - 1
			if dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

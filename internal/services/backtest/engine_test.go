package backtest

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"PairScout/internal/domain/models"
	"PairScout/internal/services/signal"
)

func testPair() *models.Pair {
	return &models.Pair{
		ID:           "AAA~BBB",
		Instruments:  []string{"AAA", "BBB"},
		Status:       models.PairActive,
		HedgeRatios:  []float64{1, 1},
		ResidualMean: 0,
		ResidualStd:  1,
		HalfLifeDays: 10,
	}
}

func observations(zs []float64) []models.SpreadObservation {
	base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	out := make([]models.SpreadObservation, len(zs))
	for i, z := range zs {
		out[i] = models.SpreadObservation{
			Timestamp: base.AddDate(0, 0, i),
			Spread:    z,
			ZScore:    z,
		}
	}
	return out
}

func TestZeroCostRoundTripExactPnL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CommissionRate = 0
	cfg.SlippageRate = 0
	cfg.Signal.Capital = 1 // one spread unit

	eng := NewEngine(cfg)
	// enter long at -2.1, exit at -0.3
	res, err := eng.Run(testPair(), observations([]float64{0, -2.1, -1.5, -0.3, 0.1}))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if res.TradeCount != 1 {
		t.Fatalf("expected 1 trade, got %d", res.TradeCount)
	}
	tr := res.Trades[0]
	want := -0.3 - (-2.1)
	if math.Abs(tr.PnL-want) > 1e-12 {
		t.Fatalf("trade pnl = %v, want exact %v", tr.PnL, want)
	}
	if math.Abs(res.FinalEquity-(cfg.InitialCapital+want)) > 1e-9 {
		t.Fatalf("final equity = %v, want %v", res.FinalEquity, cfg.InitialCapital+want)
	}
}

func TestCostsReduceFinalEquity(t *testing.T) {
	free := DefaultConfig()
	free.CommissionRate = 0
	free.SlippageRate = 0

	costly := DefaultConfig()
	costly.CommissionRate = 0.001
	costly.SlippageRate = 0.0005

	obs := observations([]float64{0, -2.1, -1.5, -0.3, 0.1})
	a, err := NewEngine(free).Run(testPair(), obs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	b, err := NewEngine(costly).Run(testPair(), obs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if b.FinalEquity >= a.FinalEquity {
		t.Fatalf("costs must reduce equity: %v vs %v", b.FinalEquity, a.FinalEquity)
	}
}

func TestRunDeterministic(t *testing.T) {
	obs := observations([]float64{0, -2.3, -1.1, 0.2, 1.5, 2.4, 1.1, 0.4, -0.8})
	eng := NewEngine(DefaultConfig())

	a, err := eng.Run(testPair(), obs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	b, err := eng.Run(testPair(), obs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	a.CreatedAt = b.CreatedAt
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("backtest is not deterministic")
	}
}

func TestOpenPositionForceClosedAtEnd(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CommissionRate = 0
	cfg.SlippageRate = 0
	eng := NewEngine(cfg)

	res, err := eng.Run(testPair(), observations([]float64{0, -2.1, -1.8, -1.6}))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.TradeCount != 1 {
		t.Fatalf("expected the open position to be closed, got %d trades", res.TradeCount)
	}
	if res.Trades[0].ExitSpread != -1.6 {
		t.Fatalf("expected close at last spread, got %v", res.Trades[0].ExitSpread)
	}
}

func TestNoTradesYieldsFlatResult(t *testing.T) {
	eng := NewEngine(DefaultConfig())
	res, err := eng.Run(testPair(), observations([]float64{0, 0.5, -0.5, 1.0, -1.0}))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.TradeCount != 0 {
		t.Fatalf("expected no trades, got %d", res.TradeCount)
	}
	if res.TotalReturn != 0 {
		t.Fatalf("expected zero return with no trades, got %v", res.TotalReturn)
	}
	if res.MaxDrawdown != 0 {
		t.Fatalf("expected zero drawdown with no trades, got %v", res.MaxDrawdown)
	}
}

func TestInsufficientObservations(t *testing.T) {
	eng := NewEngine(DefaultConfig())
	_, err := eng.Run(testPair(), observations([]float64{0}))
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected INSUFFICIENT_DATA, got %v", err)
	}
}

func TestWinRateAndHolding(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CommissionRate = 0
	cfg.SlippageRate = 0
	cfg.Signal = signal.DefaultConfig()
	eng := NewEngine(cfg)

	// one winning long round trip, one losing short stopped out
	zs := []float64{0, -2.1, -0.3, 2.2, 3.6, 0}
	res, err := eng.Run(testPair(), observations(zs))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.TradeCount != 2 {
		t.Fatalf("expected 2 trades, got %d", res.TradeCount)
	}
	if res.WinRate != 0.5 {
		t.Fatalf("win rate = %v, want 0.5", res.WinRate)
	}
	if res.Trades[1].ExitReason != models.TransitionStopLoss {
		t.Fatalf("expected stop-loss exit, got %s", res.Trades[1].ExitReason)
	}
	if res.AvgHoldingDays <= 0 {
		t.Fatalf("expected positive average holding, got %v", res.AvgHoldingDays)
	}
}

func TestMaxDrawdownNegativeFraction(t *testing.T) {
	dd := maxDrawdown([]float64{100, 120, 90, 110, 80})
	want := 80.0/120.0 - 1
	if math.Abs(dd-want) > 1e-12 {
		t.Fatalf("drawdown = %v, want %v", dd, want)
	}
}

func TestSharpePositiveForSteadyGains(t *testing.T) {
	returns := make([]float64, 100)
	for i := range returns {
		returns[i] = 0.001 + 0.0001*float64(i%3)
	}
	if s := sharpe(returns, 0); s <= 0 {
		t.Fatalf("expected positive sharpe, got %v", s)
	}
}

package backtest

import (
	"time"

	"PairScout/internal/domain/models"
	"PairScout/internal/services/signal"
)

type Config struct {
	CommissionRate float64 // fraction of traded notional per fill
	SlippageRate   float64 // fraction of traded notional per fill
	InitialCapital float64
	RiskFreeRate   float64 // annualized
	Signal         signal.Config
}

func DefaultConfig() Config {
	return Config{
		CommissionRate: 0.001,
		SlippageRate:   0.0005,
		InitialCapital: 100_000,
		Signal:         signal.DefaultConfig(),
	}
}

// Engine replays the signal rules over a historical spread series. The
// replay walks strictly forward, marks open positions to market at each
// observation and books costs on every fill, so identical inputs always
// produce identical results.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = 100_000
	}
	return &Engine{cfg: cfg}
}

type openPosition struct {
	direction   models.SignalState
	entryTime   time.Time
	entrySpread float64
	units       float64
	entryCost   float64
	heldDays    int
}

// Run replays one pair's observations and summarizes the result.
func (e *Engine) Run(pair *models.Pair, obs []models.SpreadObservation) (*models.BacktestResult, error) {
	if len(obs) < 2 {
		return nil, models.Reason(models.ErrInsufficientData,
			"backtest needs at least 2 observations, got %d", len(obs))
	}

	machine := signal.NewMachine(pair, e.cfg.Signal)
	costRate := e.cfg.CommissionRate + e.cfg.SlippageRate

	equity := make([]float64, 0, len(obs))
	cash := e.cfg.InitialCapital
	var pos *openPosition
	var trades []models.BacktestTrade

	for _, o := range obs {
		if pos != nil {
			pos.heldDays++
		}

		rec := machine.Step(o)
		if rec != nil {
			switch rec.Type {
			case models.TransitionEntryLong, models.TransitionEntryShort:
				// one spread unit per unit of allocated capital
				units := e.cfg.Signal.Capital
				if units <= 0 {
					units = 1
				}
				cost := units * costRate
				cash -= cost
				pos = &openPosition{
					direction:   rec.State,
					entryTime:   o.Timestamp,
					entrySpread: o.Spread,
					units:       units,
					entryCost:   cost,
					heldDays:    0,
				}
			default:
				if pos != nil {
					cost := pos.units * costRate
					pnl := pos.pnl(o.Spread) - cost
					cash += pnl
					trades = append(trades, models.BacktestTrade{
						PairID:      pair.ID,
						Direction:   pos.direction,
						EntryTime:   pos.entryTime,
						ExitTime:    o.Timestamp,
						EntrySpread: pos.entrySpread,
						ExitSpread:  o.Spread,
						PnL:         pnl - pos.entryCost,
						HoldingDays: pos.heldDays,
						ExitReason:  rec.Type,
					})
					pos = nil
				}
			}
		}

		// mark to market
		eq := cash
		if pos != nil {
			eq += pos.pnl(o.Spread)
		}
		equity = append(equity, eq)
	}

	// force-close anything still open at the last observation
	if pos != nil {
		last := obs[len(obs)-1]
		cost := pos.units * costRate
		pnl := pos.pnl(last.Spread) - cost
		cash += pnl
		trades = append(trades, models.BacktestTrade{
			PairID:      pair.ID,
			Direction:   pos.direction,
			EntryTime:   pos.entryTime,
			ExitTime:    last.Timestamp,
			EntrySpread: pos.entrySpread,
			ExitSpread:  last.Spread,
			PnL:         pnl - pos.entryCost,
			HoldingDays: pos.heldDays,
			ExitReason:  models.TransitionExit,
		})
		equity[len(equity)-1] = cash
		pos = nil
	}

	res := summarize(pair.ID, equity, trades, e.cfg)
	res.Observations = len(obs)
	res.Start = obs[0].Timestamp
	res.End = obs[len(obs)-1].Timestamp
	res.CreatedAt = time.Now().UTC()
	return res, nil
}

// pnl is the unrealized gain of the open position at the given spread.
// One spread point is worth one currency unit per unit of size.
func (p *openPosition) pnl(spread float64) float64 {
	diff := spread - p.entrySpread
	if p.direction == models.StateShortSpread {
		diff = -diff
	}
	return diff * p.units
}

package signal

import (
	"math"

	"PairScout/internal/domain/models"
)

type Config struct {
	EntryZ      float64
	ExitZ       float64
	StopZ       float64
	MaxHold     int // observations a position may be held, 0 disables
	Capital     float64
	MinHalfLife float64 // confidence band, days
	MaxHalfLife float64
}

func DefaultConfig() Config {
	return Config{
		EntryZ:      2.0,
		ExitZ:       0.5,
		StopZ:       3.5,
		MaxHold:     20,
		Capital:     10_000,
		MinHalfLife: 5,
		MaxHalfLife: 30,
	}
}

// Transition is the pure signal rule shared by the live monitor and the
// backtester: same state, z-score and holding age always produce the
// same outcome. Exit and stop checks run before anything else, so a
// z-score satisfying both an exit and an entry resolves to the exit.
// A holding-period cap closes as a plain EXIT with the reason set.
func Transition(state models.SignalState, z float64, heldFor int, cfg Config) (models.SignalState, models.TransitionType, string, bool) {
	switch state {
	case models.StateLongSpread:
		if math.Abs(z) >= cfg.StopZ {
			return models.StateFlat, models.TransitionStopLoss, "", true
		}
		if cfg.MaxHold > 0 && heldFor >= cfg.MaxHold {
			return models.StateFlat, models.TransitionExit, models.ReasonMaxHold, true
		}
		if z >= -cfg.ExitZ {
			return models.StateFlat, models.TransitionExit, "", true
		}
	case models.StateShortSpread:
		if math.Abs(z) >= cfg.StopZ {
			return models.StateFlat, models.TransitionStopLoss, "", true
		}
		if cfg.MaxHold > 0 && heldFor >= cfg.MaxHold {
			return models.StateFlat, models.TransitionExit, models.ReasonMaxHold, true
		}
		if z <= cfg.ExitZ {
			return models.StateFlat, models.TransitionExit, "", true
		}
	default:
		if z <= -cfg.EntryZ {
			return models.StateLongSpread, models.TransitionEntryLong, "", true
		}
		if z >= cfg.EntryZ {
			return models.StateShortSpread, models.TransitionEntryShort, "", true
		}
	}
	return state, "", "", false
}

// Machine tracks one pair's position state through a stream of spread
// observations. It is not safe for concurrent use; the caller owns
// serialization per pair.
type Machine struct {
	pair  *models.Pair
	cfg   Config
	state models.SignalState
	held  int
}

func NewMachine(pair *models.Pair, cfg Config) *Machine {
	return &Machine{pair: pair, cfg: cfg}
}

func (m *Machine) State() models.SignalState { return m.state }
func (m *Machine) Pair() *models.Pair        { return m.pair }

// Step feeds one observation through the transition rule and returns
// the emitted signal, or nil when the state does not change.
func (m *Machine) Step(obs models.SpreadObservation) *models.SignalRecord {
	if m.state != models.StateFlat {
		m.held++
	}

	next, transition, reason, fired := Transition(m.state, obs.ZScore, m.held, m.cfg)
	if !fired {
		return nil
	}

	prev := m.state
	m.state = next
	m.held = 0

	rec := &models.SignalRecord{
		PairID:     m.pair.ID,
		Type:       transition,
		Reason:     reason,
		State:      next,
		Timestamp:  obs.Timestamp,
		Spread:     obs.Spread,
		ZScore:     obs.ZScore,
		Confidence: Confidence(obs.ZScore, m.pair.HalfLifeDays, m.cfg),
	}

	switch transition {
	case models.TransitionEntryLong, models.TransitionEntryShort:
		rec.Legs = LegSizing(m.pair, m.cfg.Capital, next)
	default:
		// closing signal flattens whatever was held
		rec.Legs = closingLegs(LegSizing(m.pair, m.cfg.Capital, prev))
	}
	return rec
}

// Confidence scores a signal from the z-score magnitude and whether the
// pair's reversion speed sits inside the tradable band.
func Confidence(z, halfLifeDays float64, cfg Config) float64 {
	c := math.Abs(z) / 3.0
	if c > 1 {
		c = 1
	}
	if math.IsNaN(halfLifeDays) ||
		halfLifeDays < cfg.MinHalfLife || halfLifeDays > cfg.MaxHalfLife {
		c *= 0.5
	}
	return c
}

func closingLegs(open []models.Leg) []models.Leg {
	out := make([]models.Leg, len(open))
	for i, l := range open {
		out[i] = models.Leg{Instrument: l.Instrument, Notional: -l.Notional}
	}
	return out
}

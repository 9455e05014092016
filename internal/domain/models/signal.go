package models

import "time"

// SignalState is the position state of one pair's signal engine.
type SignalState int

const (
	StateFlat SignalState = iota
	StateLongSpread
	StateShortSpread
)

func (s SignalState) String() string {
	switch s {
	case StateLongSpread:
		return "LONG_SPREAD"
	case StateShortSpread:
		return "SHORT_SPREAD"
	default:
		return "FLAT"
	}
}

// TransitionType labels a state change emitted by the signal engine.
type TransitionType string

const (
	TransitionEntryLong  TransitionType = "ENTRY_LONG"
	TransitionEntryShort TransitionType = "ENTRY_SHORT"
	TransitionExit       TransitionType = "EXIT"
	TransitionStopLoss   TransitionType = "STOP_LOSS"
)

// ReasonMaxHold marks an EXIT forced by the holding-period cap rather
// than mean reversion.
const ReasonMaxHold = "max_hold"

// SpreadObservation is one timestamped spread sample with its z-score.
type SpreadObservation struct {
	Timestamp time.Time
	Spread    float64
	ZScore    float64
}

// Leg is a signed notional allocation for one instrument of a pair.
// Positive notional buys the instrument, negative sells it.
type Leg struct {
	Instrument string
	Notional   float64
}

// SignalRecord is an emitted trade signal. It fully describes the
// transition so downstream consumers need no engine state.
type SignalRecord struct {
	PairID     string
	Type       TransitionType
	Reason     string      // set on EXIT when a rule other than reversion closed it
	State      SignalState // state after the transition
	Timestamp  time.Time
	Spread     float64
	ZScore     float64
	Confidence float64
	Legs       []Leg
}

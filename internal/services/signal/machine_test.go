package signal

import (
	"math"
	"testing"
	"time"

	"PairScout/internal/domain/models"
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

func stepAll(t *testing.T, m *Machine, zs []float64) []*models.SignalRecord {
	t.Helper()
	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	var out []*models.SignalRecord
	for i, z := range zs {
		rec := m.Step(models.SpreadObservation{
			Timestamp: base.AddDate(0, 0, i),
			Spread:    z, // std is 1, so spread equals z here
			ZScore:    z,
		})
		if rec != nil {
			out = append(out, rec)
		}
	}
	return out
}

func TestWalkthroughEntryHoldExit(t *testing.T) {
	m := NewMachine(testPair(), DefaultConfig())
	recs := stepAll(t, m, []float64{0, -1.0, -2.1, -1.5, -0.3})

	if len(recs) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(recs))
	}
	if recs[0].Type != models.TransitionEntryLong {
		t.Fatalf("expected ENTRY_LONG at z=-2.1, got %s", recs[0].Type)
	}
	if recs[0].ZScore != -2.1 {
		t.Fatalf("entry fired at wrong observation, z=%v", recs[0].ZScore)
	}
	if recs[1].Type != models.TransitionExit {
		t.Fatalf("expected EXIT at z=-0.3, got %s", recs[1].Type)
	}
	if recs[1].ZScore != -0.3 {
		t.Fatalf("exit fired at wrong observation, z=%v", recs[1].ZScore)
	}
	if m.State() != models.StateFlat {
		t.Fatalf("expected FLAT after exit, got %s", m.State())
	}
}

func TestShortEntryAndExit(t *testing.T) {
	m := NewMachine(testPair(), DefaultConfig())
	recs := stepAll(t, m, []float64{1.0, 2.0, 1.2, 0.5})

	if len(recs) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(recs))
	}
	if recs[0].Type != models.TransitionEntryShort {
		t.Fatalf("expected ENTRY_SHORT at z=2.0, got %s", recs[0].Type)
	}
	if recs[1].Type != models.TransitionExit || recs[1].ZScore != 0.5 {
		t.Fatalf("expected EXIT at z=0.5, got %s at %v", recs[1].Type, recs[1].ZScore)
	}
}

func TestStopLossOnDivergence(t *testing.T) {
	m := NewMachine(testPair(), DefaultConfig())
	recs := stepAll(t, m, []float64{-2.2, -2.8, -3.6})

	if len(recs) != 2 {
		t.Fatalf("expected entry and stop, got %d signals", len(recs))
	}
	if recs[1].Type != models.TransitionStopLoss {
		t.Fatalf("expected STOP_LOSS at z=-3.6, got %s", recs[1].Type)
	}
	if m.State() != models.StateFlat {
		t.Fatalf("expected FLAT after stop, got %s", m.State())
	}
}

func TestStopBeatsExitOnJump(t *testing.T) {
	// a long position gapping straight through exit territory to +3.6
	// satisfies both rules; the stop takes precedence
	m := NewMachine(testPair(), DefaultConfig())
	recs := stepAll(t, m, []float64{-2.5, 3.6})

	if len(recs) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(recs))
	}
	if recs[1].Type != models.TransitionStopLoss {
		t.Fatalf("expected STOP_LOSS on gap, got %s", recs[1].Type)
	}
}

func TestMaxHoldForcesExit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxHold = 3
	m := NewMachine(testPair(), cfg)

	zs := []float64{-2.1, -1.8, -1.9, -1.7, -1.6}
	recs := stepAll(t, m, zs)

	if len(recs) != 2 {
		t.Fatalf("expected entry and forced exit, got %d signals", len(recs))
	}
	if recs[1].Type != models.TransitionExit {
		t.Fatalf("expected EXIT, got %s", recs[1].Type)
	}
	if recs[1].Reason != models.ReasonMaxHold {
		t.Fatalf("expected max hold reason, got %q", recs[1].Reason)
	}
	if recs[1].ZScore != -1.7 {
		t.Fatalf("forced exit at wrong observation, z=%v", recs[1].ZScore)
	}
}

func TestNoReentryWhileHeld(t *testing.T) {
	m := NewMachine(testPair(), DefaultConfig())
	recs := stepAll(t, m, []float64{-2.1, -2.4, -2.6, -2.2})

	if len(recs) != 1 {
		t.Fatalf("expected a single entry while held, got %d signals", len(recs))
	}
}

func TestTransitionPure(t *testing.T) {
	cfg := DefaultConfig()
	for i := 0; i < 3; i++ {
		s1, t1, r1, f1 := Transition(models.StateLongSpread, -0.2, 4, cfg)
		s2, t2, r2, f2 := Transition(models.StateLongSpread, -0.2, 4, cfg)
		if s1 != s2 || t1 != t2 || r1 != r2 || f1 != f2 {
			t.Fatalf("transition is not pure")
		}
	}
}

func TestEntryAtExactThreshold(t *testing.T) {
	cfg := DefaultConfig()
	state, transition, _, fired := Transition(models.StateFlat, -cfg.EntryZ, 0, cfg)
	if !fired || transition != models.TransitionEntryLong || state != models.StateLongSpread {
		t.Fatalf("expected entry at exactly -entry_z")
	}
}

func TestLegSizingGrossExposure(t *testing.T) {
	pair := testPair()
	legs := LegSizing(pair, 10_000, models.StateLongSpread)

	if len(legs) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(legs))
	}
	if legs[0].Notional <= 0 {
		t.Fatalf("long spread must buy the first instrument")
	}
	if legs[1].Notional >= 0 {
		t.Fatalf("long spread must sell the hedged leg")
	}
	gross := math.Abs(legs[0].Notional) + math.Abs(legs[1].Notional)
	if math.Abs(gross-10_000) > 1e-9 {
		t.Fatalf("gross exposure %v, want 10000", gross)
	}

	short := LegSizing(pair, 10_000, models.StateShortSpread)
	if short[0].Notional >= 0 || short[1].Notional <= 0 {
		t.Fatalf("short spread legs must mirror the long side")
	}
}

func TestConfidenceBand(t *testing.T) {
	cfg := DefaultConfig()
	inBand := Confidence(2.1, 10, cfg)
	outBand := Confidence(2.1, 90, cfg)
	if inBand <= outBand {
		t.Fatalf("half-life outside the band must halve confidence: %v vs %v", inBand, outBand)
	}
	if c := Confidence(9, 10, cfg); c != 1 {
		t.Fatalf("confidence must cap at 1, got %v", c)
	}
	if c := Confidence(2.1, math.NaN(), cfg); c >= inBand {
		t.Fatalf("NaN half-life must halve confidence")
	}
}

func TestSpreadStats(t *testing.T) {
	stats := ComputeSpreadStats([]float64{1, 2, 3, 4, 5})
	if stats.Mean != 3 {
		t.Fatalf("mean = %v, want 3", stats.Mean)
	}
	if stats.Min != 1 || stats.Max != 5 || stats.Current != 5 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if math.Abs(stats.Std-math.Sqrt(2.5)) > 1e-9 {
		t.Fatalf("std = %v, want sample std %v", stats.Std, math.Sqrt(2.5))
	}
}

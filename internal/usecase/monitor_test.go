package usecase

import (
	"context"
	"testing"
	"time"

	"PairScout/internal/domain/models"
	drepo "PairScout/internal/domain/repository"
	ssink "PairScout/internal/repository"
	"PairScout/internal/services/signal"
)

type capturePublisher struct {
	records []*models.SignalRecord
}

func (p *capturePublisher) Publish(_ context.Context, s *models.SignalRecord) error {
	p.records = append(p.records, s)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func monitorPair() *models.Pair {
	return &models.Pair{
		ID:           "AAA~BBB",
		Instruments:  []string{"AAA", "BBB"},
		Status:       models.PairActive,
		HedgeRatios:  []float64{1.0, 1.0},
		Intercept:    0,
		ResidualMean: 0,
		ResidualStd:  1.0,
		HalfLifeDays: 10,
		AnalyzedAt:   time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC),
	}
}

func newTestMonitor(t *testing.T, sink drepo.ResultSink, pub drepo.SignalPublisher) *LiveMonitor {
	t.Helper()
	cfg := signal.DefaultConfig()
	return NewLiveMonitor(cfg, sink, pub, drepo.NopMetrics{}, testLogger(t))
}

func quoteAt(instrument string, price float64, ts int64) *models.Quote {
	return &models.Quote{Instrument: instrument, Price: price, Volume: 10, Timestamp: ts}
}

func TestMonitorEmitsEntryAndExit(t *testing.T) {
	sink := ssink.NewMemorySink()
	pub := &capturePublisher{}
	mon := newTestMonitor(t, sink, pub)
	mon.Track(monitorPair())
	ctx := context.Background()

	// spread = AAA - BBB with unit residual std, so z equals the spread
	base := time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC).UnixMilli()
	steps := []struct {
		aaa, bbb float64
	}{
		{100.0, 100.0}, // z = 0
		{100.0, 101.0}, // z = -1.0
		{100.0, 102.1}, // z = -2.1, entry long
		{100.0, 101.5}, // z = -1.5, held
		{100.0, 100.3}, // z = -0.3, exit
	}
	for i, s := range steps {
		ts := base + int64(i)*60_000
		if err := mon.Process(ctx, quoteAt("AAA", s.aaa, ts)); err != nil {
			t.Fatalf("process AAA: %v", err)
		}
		if err := mon.Process(ctx, quoteAt("BBB", s.bbb, ts+1)); err != nil {
			t.Fatalf("process BBB: %v", err)
		}
	}

	if len(pub.records) != 2 {
		t.Fatalf("published %d signals, want 2", len(pub.records))
	}
	if pub.records[0].Type != models.TransitionEntryLong {
		t.Fatalf("first signal = %s, want ENTRY_LONG", pub.records[0].Type)
	}
	if pub.records[1].Type != models.TransitionExit {
		t.Fatalf("second signal = %s, want EXIT", pub.records[1].Type)
	}
	if got := len(sink.Signals()); got != 2 {
		t.Fatalf("persisted %d signals, want 2", got)
	}
	if len(pub.records[0].Legs) != 2 {
		t.Fatalf("entry signal carries %d legs, want 2", len(pub.records[0].Legs))
	}
}

func TestMonitorWaitsForAllLegs(t *testing.T) {
	pub := &capturePublisher{}
	mon := newTestMonitor(t, ssink.NewMemorySink(), pub)
	mon.Track(monitorPair())
	ctx := context.Background()

	// only one leg has ever ticked, even an extreme price must not fire
	ts := time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC).UnixMilli()
	if err := mon.Process(ctx, quoteAt("AAA", 50.0, ts)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(pub.records) != 0 {
		t.Fatalf("signal emitted before both legs were priced")
	}
}

func TestMonitorUntrackStopsEvaluation(t *testing.T) {
	pub := &capturePublisher{}
	mon := newTestMonitor(t, ssink.NewMemorySink(), pub)
	mon.Track(monitorPair())
	mon.Untrack("AAA~BBB")
	if mon.TrackedCount() != 0 {
		t.Fatalf("tracked = %d, want 0", mon.TrackedCount())
	}

	ctx := context.Background()
	ts := time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC).UnixMilli()
	_ = mon.Process(ctx, quoteAt("AAA", 100.0, ts))
	_ = mon.Process(ctx, quoteAt("BBB", 110.0, ts+1))
	if len(pub.records) != 0 {
		t.Fatalf("untracked pair still emitted signals")
	}
}

func TestMonitorReplaceKeepsUnchangedMachines(t *testing.T) {
	mon := newTestMonitor(t, ssink.NewMemorySink(), &capturePublisher{})
	p := monitorPair()
	mon.Track(p)

	other := monitorPair()
	other.ID = "CCC~DDD"
	other.Instruments = []string{"CCC", "DDD"}
	mon.Replace([]*models.Pair{p, other})
	if mon.TrackedCount() != 2 {
		t.Fatalf("tracked = %d, want 2", mon.TrackedCount())
	}

	mon.Replace([]*models.Pair{other})
	if mon.TrackedCount() != 1 {
		t.Fatalf("tracked = %d after shrink, want 1", mon.TrackedCount())
	}
}

func TestMonitorRefreshedPairResetsState(t *testing.T) {
	pub := &capturePublisher{}
	mon := newTestMonitor(t, ssink.NewMemorySink(), pub)
	p := monitorPair()
	mon.Track(p)
	ctx := context.Background()

	ts := time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC).UnixMilli()
	_ = mon.Process(ctx, quoteAt("AAA", 100.0, ts))
	_ = mon.Process(ctx, quoteAt("BBB", 102.5, ts+1)) // entry long
	if len(pub.records) != 1 {
		t.Fatalf("expected one entry signal, got %d", len(pub.records))
	}

	refit := monitorPair()
	refit.AnalyzedAt = refit.AnalyzedAt.Add(24 * time.Hour)
	mon.Replace([]*models.Pair{refit})

	// state was reset, so the same extreme z re-enters instead of exiting
	_ = mon.Process(ctx, quoteAt("AAA", 100.0, ts+120_000))
	_ = mon.Process(ctx, quoteAt("BBB", 102.5, ts+120_001))
	if len(pub.records) != 2 {
		t.Fatalf("expected a fresh entry after refit, got %d signals", len(pub.records))
	}
	if pub.records[1].Type != models.TransitionEntryLong {
		t.Fatalf("signal after refit = %s, want ENTRY_LONG", pub.records[1].Type)
	}
}

func TestMonitorPairStats(t *testing.T) {
	mon := newTestMonitor(t, ssink.NewMemorySink(), &capturePublisher{})
	mon.Track(monitorPair())
	ctx := context.Background()

	base := time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC).UnixMilli()
	if err := mon.Process(ctx, quoteAt("AAA", 101, base)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := mon.Process(ctx, quoteAt("BBB", 100, base+1000)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := mon.Process(ctx, quoteAt("AAA", 103, base+2000)); err != nil {
		t.Fatalf("process: %v", err)
	}

	stats, ok := mon.PairStats("AAA~BBB")
	if !ok {
		t.Fatalf("expected stats for tracked pair")
	}
	// spreads observed: 1 (BBB quote) and 3 (second AAA quote)
	if stats.Current != 3 {
		t.Fatalf("current spread = %v, want 3", stats.Current)
	}
	if stats.Min != 1 || stats.Max != 3 {
		t.Fatalf("min/max = %v/%v, want 1/3", stats.Min, stats.Max)
	}

	if _, ok := mon.PairStats("XXX~YYY"); ok {
		t.Fatalf("expected no stats for untracked pair")
	}
	mon.Untrack("AAA~BBB")
	if _, ok := mon.PairStats("AAA~BBB"); ok {
		t.Fatalf("expected stats cleared after untrack")
	}
}

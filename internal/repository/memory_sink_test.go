package repository

import (
	"context"
	"testing"
	"time"

	"PairScout/internal/domain/models"
)

func TestMemorySinkSignalIdempotence(t *testing.T) {
	sink := NewMemorySink()
	ts := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

	sig := &models.SignalRecord{
		PairID:    "AAA~BBB",
		Type:      models.TransitionEntryLong,
		Timestamp: ts,
		ZScore:    -2.2,
	}
	for i := 0; i < 3; i++ {
		if err := sink.PersistSignal(context.Background(), sig); err != nil {
			t.Fatalf("persist: %v", err)
		}
	}

	if got := len(sink.Signals()); got != 1 {
		t.Fatalf("replayed signal duplicated: %d rows", got)
	}

	// a different timestamp is a different record
	other := *sig
	other.Timestamp = ts.Add(time.Minute)
	if err := sink.PersistSignal(context.Background(), &other); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if got := len(sink.Signals()); got != 2 {
		t.Fatalf("expected 2 distinct signals, got %d", got)
	}
}

func TestMemorySinkCointegrationKeying(t *testing.T) {
	sink := NewMemorySink()
	at := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	r := &models.CointegrationResult{PairID: "AAA~BBB", PValue: 0.02, CreatedAt: at}
	if err := sink.PersistCointegration(context.Background(), r); err != nil {
		t.Fatalf("persist: %v", err)
	}
	// replay with an updated p-value replaces the row
	r2 := &models.CointegrationResult{PairID: "AAA~BBB", PValue: 0.03, CreatedAt: at}
	if err := sink.PersistCointegration(context.Background(), r2); err != nil {
		t.Fatalf("persist: %v", err)
	}

	rows := sink.Cointegrations()
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].PValue != 0.03 {
		t.Fatalf("replay did not replace the row")
	}
}

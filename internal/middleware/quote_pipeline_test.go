package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"PairScout/internal/domain/models"
	domrepo "PairScout/internal/domain/repository"
)

type captureProc struct {
	mu     sync.Mutex
	quotes []*models.Quote
}

func (c *captureProc) Process(_ context.Context, q *models.Quote) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quotes = append(c.quotes, q)
	return nil
}

func (c *captureProc) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.quotes)
}

func TestPipelineRejectsInvalidQuotes(t *testing.T) {
	proc := &captureProc{}
	p := NewQuotePipeline(proc, domrepo.NopMetrics{}, WithMaxRPS(0))

	cases := []*models.Quote{
		nil,
		{Instrument: "", Price: 10, Timestamp: 1},
		{Instrument: "AAA", Price: 0, Timestamp: 1},
		{Instrument: "AAA", Price: 10, Timestamp: 0},
		{Instrument: "AAA", Price: -5, Timestamp: 1},
	}
	for i, q := range cases {
		if err := p.Process(context.Background(), q); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
	if proc.count() != 0 {
		t.Fatalf("invalid quotes reached downstream")
	}
}

func TestPipelineDropsOutOfOrderAndDuplicates(t *testing.T) {
	proc := &captureProc{}
	p := NewQuotePipeline(proc, domrepo.NopMetrics{}, WithMaxRPS(0))

	quotes := []*models.Quote{
		{Instrument: "AAA", Price: 10, Timestamp: 100},
		{Instrument: "AAA", Price: 11, Timestamp: 200},
		{Instrument: "AAA", Price: 12, Timestamp: 200}, // duplicate ts
		{Instrument: "AAA", Price: 13, Timestamp: 150}, // stale
		{Instrument: "AAA", Price: 14, Timestamp: 300},
	}
	for _, q := range quotes {
		if err := p.Process(context.Background(), q); err != nil {
			t.Fatalf("process: %v", err)
		}
	}

	if proc.count() != 3 {
		t.Fatalf("expected 3 accepted quotes, got %d", proc.count())
	}
	for i := 1; i < len(proc.quotes); i++ {
		if proc.quotes[i].Timestamp <= proc.quotes[i-1].Timestamp {
			t.Fatalf("downstream saw non-monotonic timestamps")
		}
	}
}

func TestPipelineOrderingPerInstrument(t *testing.T) {
	proc := &captureProc{}
	p := NewQuotePipeline(proc, domrepo.NopMetrics{}, WithMaxRPS(0))

	// the two instruments have independent clocks
	quotes := []*models.Quote{
		{Instrument: "AAA", Price: 10, Timestamp: 500},
		{Instrument: "BBB", Price: 20, Timestamp: 100},
		{Instrument: "AAA", Price: 11, Timestamp: 600},
		{Instrument: "BBB", Price: 21, Timestamp: 200},
	}
	for _, q := range quotes {
		if err := p.Process(context.Background(), q); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	if proc.count() != 4 {
		t.Fatalf("expected all quotes accepted, got %d", proc.count())
	}
}

func TestPipelineThrottleDisabledByZero(t *testing.T) {
	proc := &captureProc{}
	p := NewQuotePipeline(proc, domrepo.NopMetrics{}, WithMaxRPS(0))

	// a tight burst on one instrument, all in order
	for i := int64(1); i <= 50; i++ {
		q := &models.Quote{Instrument: "AAA", Price: 10, Timestamp: i}
		if err := p.Process(context.Background(), q); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	if proc.count() != 50 {
		t.Fatalf("throttle dropped quotes with max rps 0: got %d", proc.count())
	}
}

func TestPipelineThrottleEnforced(t *testing.T) {
	proc := &captureProc{}
	p := NewQuotePipeline(proc, domrepo.NopMetrics{}, WithMaxRPS(1))

	for i := int64(1); i <= 10; i++ {
		q := &models.Quote{Instrument: "AAA", Price: 10, Timestamp: i}
		if err := p.Process(context.Background(), q); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	if proc.count() >= 10 {
		t.Fatalf("throttle at 1 rps accepted the whole burst")
	}
}

type flakyProc struct {
	mu       sync.Mutex
	failures int
	quotes   []*models.Quote
}

func (f *flakyProc) Process(_ context.Context, q *models.Quote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("downstream unavailable")
	}
	f.quotes = append(f.quotes, q)
	return nil
}

func (f *flakyProc) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.quotes)
}

func TestPipelineFlushesBufferWithoutCollector(t *testing.T) {
	proc := &flakyProc{failures: 1}
	p := NewQuotePipeline(proc, domrepo.NopMetrics{}, WithMaxRPS(0))
	defer p.Stop()

	// downstream fails once, so the quote lands in the retry buffer;
	// the flusher alone must deliver it
	q := &models.Quote{Instrument: "AAA", Price: 10, Timestamp: 1}
	if err := p.Process(context.Background(), q); err == nil {
		t.Fatalf("expected downstream error on first attempt")
	}

	deadline := time.After(3 * time.Second)
	for proc.count() == 0 {
		select {
		case <-deadline:
			t.Fatalf("buffered quote never flushed")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if proc.count() != 1 {
		t.Fatalf("unexpected flushed quotes: %d", proc.count())
	}
}

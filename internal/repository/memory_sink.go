package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"PairScout/internal/domain/models"
	"PairScout/internal/domain/repository"
)

// MemorySink keeps results in memory. It backs the memory sink mode for
// local runs and mirrors the idempotence contract of the ClickHouse
// sink: records are keyed by their natural key and rewrites replace
// rather than duplicate.
type MemorySink struct {
	mu       sync.RWMutex
	coint    map[string]*models.CointegrationResult // pair_id + analyzed_at
	backtest map[string]*models.BacktestResult      // pair_id + created_at
	signals  map[string]*models.SignalRecord        // pair_id + ts
}

func NewMemorySink() *MemorySink {
	return &MemorySink{
		coint:    make(map[string]*models.CointegrationResult),
		backtest: make(map[string]*models.BacktestResult),
		signals:  make(map[string]*models.SignalRecord),
	}
}

func (s *MemorySink) Init(context.Context) error   { return nil }
func (s *MemorySink) Health(context.Context) error { return nil }
func (s *MemorySink) Close() error                 { return nil }

func (s *MemorySink) PersistCointegration(_ context.Context, r *models.CointegrationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coint[r.PairID+"@"+r.CreatedAt.Truncate(time.Second).String()] = r
	return nil
}

func (s *MemorySink) PersistBacktest(_ context.Context, r *models.BacktestResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backtest[r.PairID+"@"+r.CreatedAt.Truncate(time.Second).String()] = r
	return nil
}

func (s *MemorySink) PersistSignal(_ context.Context, sig *models.SignalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals[sig.PairID+"@"+sig.Timestamp.String()] = sig
	return nil
}

// Cointegrations returns the stored cointegration results.
func (s *MemorySink) Cointegrations() []*models.CointegrationResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.CointegrationResult, 0, len(s.coint))
	for _, r := range s.coint {
		out = append(out, r)
	}
	return out
}

// Backtests returns the stored backtest results.
func (s *MemorySink) Backtests() []*models.BacktestResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.BacktestResult, 0, len(s.backtest))
	for _, r := range s.backtest {
		out = append(out, r)
	}
	return out
}

// Signals returns the stored signals.
func (s *MemorySink) Signals() []*models.SignalRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.SignalRecord, 0, len(s.signals))
	for _, r := range s.signals {
		out = append(out, r)
	}
	return out
}

// RecentSignals returns the newest emitted signals, newest first.
func (s *MemorySink) RecentSignals(_ context.Context, limit int) ([]*models.SignalRecord, error) {
	out := s.Signals()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].PairID < out[j].PairID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LatestBacktests returns the newest backtest results, newest first.
func (s *MemorySink) LatestBacktests(_ context.Context, limit int) ([]*models.BacktestResult, error) {
	out := s.Backtests()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].PairID < out[j].PairID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LatestCointegrations returns the newest test results, newest first.
func (s *MemorySink) LatestCointegrations(_ context.Context, limit int) ([]*models.CointegrationResult, error) {
	out := s.Cointegrations()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].PairID < out[j].PairID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var (
	_ repository.ResultSink   = (*MemorySink)(nil)
	_ repository.ResultReader = (*MemorySink)(nil)
)

package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"PairScout/internal/domain/models"
	drepo "PairScout/internal/domain/repository"
	"PairScout/internal/services/signal"
	"PairScout/pkg/logger"
)

// LiveMonitor evaluates incoming quotes against the active pair set and
// emits signals when a pair's state machine transitions. It plugs into
// the quote pipeline as its downstream processor.
type LiveMonitor struct {
	sigCfg  signal.Config
	sink    drepo.ResultSink
	pub     drepo.SignalPublisher
	metrics drepo.Metrics
	log     *logger.Logger

	mu         sync.RWMutex
	machines   map[string]*signal.Machine // by pair ID
	byLeg      map[string][]string        // instrument -> pair IDs
	lastPrices map[string]float64
	spreads    map[string][]float64 // rolling spread window per pair
}

// spreadWindow bounds the per-pair rolling window backing PairStats.
const spreadWindow = 500

func NewLiveMonitor(
	sigCfg signal.Config,
	sink drepo.ResultSink,
	pub drepo.SignalPublisher,
	metrics drepo.Metrics,
	lgr *logger.Logger,
) *LiveMonitor {
	return &LiveMonitor{
		sigCfg:     sigCfg,
		sink:       sink,
		pub:        pub,
		metrics:    metrics,
		log:        lgr,
		machines:   make(map[string]*signal.Machine),
		byLeg:      make(map[string][]string),
		lastPrices: make(map[string]float64),
		spreads:    make(map[string][]float64),
	}
}

// Track adds a pair to the active set, resetting any previous state for
// the same pair ID.
func (m *LiveMonitor) Track(pair *models.Pair) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.machines[pair.ID]; !ok {
		for _, inst := range pair.Instruments {
			m.byLeg[inst] = append(m.byLeg[inst], pair.ID)
		}
	}
	m.machines[pair.ID] = signal.NewMachine(pair, m.sigCfg)
	delete(m.spreads, pair.ID)
}

// Untrack drops a pair from the active set. Any open position state is
// discarded.
func (m *LiveMonitor) Untrack(pairID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mach, ok := m.machines[pairID]
	if !ok {
		return
	}
	delete(m.machines, pairID)
	delete(m.spreads, pairID)
	for _, inst := range mach.Pair().Instruments {
		ids := m.byLeg[inst]
		for i, id := range ids {
			if id == pairID {
				m.byLeg[inst] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
		if len(m.byLeg[inst]) == 0 {
			delete(m.byLeg, inst)
		}
	}
}

// Replace swaps the whole active set in one step, keeping machines for
// pairs whose parameters did not change.
func (m *LiveMonitor) Replace(pairs []*models.Pair) {
	next := make(map[string]*models.Pair, len(pairs))
	for _, p := range pairs {
		next[p.ID] = p
	}
	m.mu.RLock()
	var stale []string
	for id := range m.machines {
		if _, ok := next[id]; !ok {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()
	for _, id := range stale {
		m.Untrack(id)
	}
	for _, p := range pairs {
		m.mu.RLock()
		mach, ok := m.machines[p.ID]
		m.mu.RUnlock()
		if ok && mach.Pair().AnalyzedAt.Equal(p.AnalyzedAt) {
			continue
		}
		m.Track(p)
	}
}

// Pairs returns the active set sorted by pair ID.
func (m *LiveMonitor) Pairs() []*models.Pair {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Pair, 0, len(m.machines))
	for _, mach := range m.machines {
		out = append(out, mach.Pair())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Pair returns one tracked pair by ID.
func (m *LiveMonitor) Pair(id string) (*models.Pair, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mach, ok := m.machines[id]
	if !ok {
		return nil, false
	}
	return mach.Pair(), true
}

// PairStats summarizes the recent spread window of a tracked pair.
func (m *LiveMonitor) PairStats(id string) (signal.SpreadStats, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.machines[id]; !ok {
		return signal.SpreadStats{}, false
	}
	return signal.ComputeSpreadStats(m.spreads[id]), true
}

// TrackedCount returns the number of pairs under live evaluation.
func (m *LiveMonitor) TrackedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.machines)
}

// Process consumes one validated, in-order quote. It updates the last
// price book and steps every pair that trades the instrument.
func (m *LiveMonitor) Process(ctx context.Context, q *models.Quote) error {
	m.metrics.RecordQuote(q.Instrument)

	m.mu.Lock()
	m.lastPrices[q.Instrument] = q.Price
	pairIDs := m.byLeg[q.Instrument]

	var emitted []*models.SignalRecord
	for _, id := range pairIDs {
		mach := m.machines[id]
		prices, ok := m.legPricesLocked(mach.Pair())
		if !ok {
			continue
		}
		spread := mach.Pair().Spread(prices)
		z := mach.Pair().ZScore(spread)
		m.metrics.RecordZScore(id, z)
		w := append(m.spreads[id], spread)
		if len(w) > spreadWindow {
			w = w[len(w)-spreadWindow:]
		}
		m.spreads[id] = w
		rec := mach.Step(models.SpreadObservation{
			Timestamp: time.UnixMilli(q.Timestamp).UTC(),
			Spread:    spread,
			ZScore:    z,
		})
		if rec != nil {
			emitted = append(emitted, rec)
		}
	}
	m.mu.Unlock()

	for _, rec := range emitted {
		m.emit(ctx, rec)
	}
	return nil
}

func (m *LiveMonitor) emit(ctx context.Context, rec *models.SignalRecord) {
	m.metrics.RecordSignal(string(rec.Type))
	m.log.Info("signal emitted",
		logger.String("pair", rec.PairID),
		logger.String("type", string(rec.Type)),
		logger.Float64("z_score", rec.ZScore),
		logger.Float64("confidence", rec.Confidence))
	if m.sink != nil {
		if err := m.sink.PersistSignal(ctx, rec); err != nil {
			m.log.Error("persist signal",
				logger.String("pair", rec.PairID), logger.Error(err))
			m.metrics.RecordError("sink_signal")
		}
	}
	if m.pub != nil {
		if err := m.pub.Publish(ctx, rec); err != nil {
			m.log.Error("publish signal",
				logger.String("pair", rec.PairID), logger.Error(err))
			m.metrics.RecordError("publish_signal")
		}
	}
}

// legPricesLocked gathers last prices for every leg of a pair. Callers
// must hold the mutex.
func (m *LiveMonitor) legPricesLocked(pair *models.Pair) ([]float64, bool) {
	prices := make([]float64, len(pair.Instruments))
	for i, inst := range pair.Instruments {
		p, ok := m.lastPrices[inst]
		if !ok {
			return nil, false
		}
		prices[i] = p
	}
	return prices, true
}

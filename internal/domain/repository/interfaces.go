package repository

import (
	"context"
	"time"

	"PairScout/internal/domain/models"
)

type QuoteStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Quote, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// HistoryProvider serves daily history for the discovery stages.
// Failures of the backing store surface as retryable DATA_UNAVAILABLE
// errors; an instrument with too little history is the caller's
// problem, not the provider's.
type HistoryProvider interface {
	GetPriceHistory(ctx context.Context, instrument string, from, to time.Time) (*models.PriceSeries, error)
	ListInstruments(ctx context.Context) ([]string, error)
}

// ResultSink persists pipeline outputs. Writes are idempotent on the
// natural key of each record, so replays after partial failures are
// safe.
type ResultSink interface {
	Init(ctx context.Context) error // ensure tables, health checks
	PersistCointegration(ctx context.Context, r *models.CointegrationResult) error
	PersistBacktest(ctx context.Context, r *models.BacktestResult) error
	PersistSignal(ctx context.Context, s *models.SignalRecord) error
	Health(ctx context.Context) error // ping
	Close() error
}

// ResultReader serves persisted pipeline outputs to the read API.
type ResultReader interface {
	RecentSignals(ctx context.Context, limit int) ([]*models.SignalRecord, error)
	LatestCointegrations(ctx context.Context, limit int) ([]*models.CointegrationResult, error)
	LatestBacktests(ctx context.Context, limit int) ([]*models.BacktestResult, error)
}

// SignalPublisher fans emitted signals out to streaming consumers.
type SignalPublisher interface {
	Publish(ctx context.Context, s *models.SignalRecord) error
	Close() error
}

type Metrics interface {
	RecordQuote(instrument string)
	RecordPairTested(method string)
	RecordPairSignificant(method string)
	RecordSignal(kind string)
	RecordZScore(pairID string, z float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

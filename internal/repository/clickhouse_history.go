package repository

import (
	"context"
	"database/sql"
	"time"

	"PairScout/internal/domain/models"
	pkgch "PairScout/pkg/clickhouse"
	applogger "PairScout/pkg/logger"
)

// CHHistoryProvider serves daily bars from ClickHouse. Store failures
// surface as retryable DATA_UNAVAILABLE errors so discovery runs can
// skip the instrument and move on.
type CHHistoryProvider struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHHistoryProvider(ch *pkgch.Client) *CHHistoryProvider {
	return &CHHistoryProvider{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHHistoryProvider) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHHistoryProvider) GetPriceHistory(ctx context.Context, instrument string, from, to time.Time) (*models.PriceSeries, error) {
	start := time.Now()
	const q = `
        SELECT date, open, high, low, close, volume
        FROM pairscout.daily_prices
        WHERE instrument = ? AND date >= ? AND date <= ?
        ORDER BY date ASC
    `
	rows, err := s.db.QueryContext(ctx, q, instrument, from, to)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse price_history query error",
				applogger.String("instrument", instrument),
				applogger.Error(err),
			)
		}
		return nil, models.Reason(models.ErrDataUnavailable, "price history for %s: %v", instrument, err)
	}
	defer rows.Close()

	series := &models.PriceSeries{Instrument: instrument, Points: make([]models.PricePoint, 0, 512)}
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.Date, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse price_history scan error",
					applogger.String("instrument", instrument),
					applogger.Error(err),
				)
			}
			return nil, models.Reason(models.ErrDataUnavailable, "scan price row for %s: %v", instrument, err)
		}
		series.Points = append(series.Points, p)
	}
	if err := rows.Err(); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse price_history rows error",
				applogger.String("instrument", instrument),
				applogger.Error(err),
			)
		}
		return nil, models.Reason(models.ErrDataUnavailable, "price rows for %s: %v", instrument, err)
	}

	if s.l != nil {
		s.l.Debug("clickhouse price_history ok",
			applogger.String("instrument", instrument),
			applogger.Int("rows", series.Len()),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return series, nil
}

func (s *CHHistoryProvider) ListInstruments(ctx context.Context) ([]string, error) {
	const q = `SELECT DISTINCT instrument FROM pairscout.daily_prices ORDER BY instrument`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, models.Reason(models.ErrDataUnavailable, "list instruments: %v", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var inst string
		if err := rows.Scan(&inst); err != nil {
			return nil, models.Reason(models.ErrDataUnavailable, "scan instrument: %v", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

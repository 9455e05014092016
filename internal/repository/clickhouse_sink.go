package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"PairScout/internal/domain/models"
	"PairScout/internal/domain/repository"
	pkgch "PairScout/pkg/clickhouse"
)

// Schema statements for the result tables. ReplacingMergeTree keyed on
// the natural key of each record makes writes idempotent: a replayed
// insert collapses into the existing row at merge time.
func Schema() []string {
	return []string{
		`CREATE DATABASE IF NOT EXISTS pairscout`,
		`CREATE TABLE IF NOT EXISTS pairscout.daily_prices (
            instrument LowCardinality(String),
            date Date,
            open Float64,
            high Float64,
            low Float64,
            close Float64,
            volume Float64
        ) ENGINE = ReplacingMergeTree
        ORDER BY (instrument, date)`,
		`CREATE TABLE IF NOT EXISTS pairscout.pair_cointegration (
            pair_id String,
            analyzed_at DateTime,
            method LowCardinality(String),
            instruments String,
            test_statistic Float64,
            p_value Float64,
            hedge_ratios String,
            intercept Float64,
            residual_mean Float64,
            residual_std Float64,
            half_life_days Float64,
            correlation Float64,
            observations UInt32,
            window_start Date,
            window_end Date
        ) ENGINE = ReplacingMergeTree
        ORDER BY (pair_id, analyzed_at)`,
		`CREATE TABLE IF NOT EXISTS pairscout.pair_backtests (
            pair_id String,
            created_at DateTime,
            total_return Float64,
            annualized_return Float64,
            sharpe_ratio Float64,
            sortino_ratio Float64,
            max_drawdown Float64,
            win_rate Float64,
            profit_factor Float64,
            trade_count UInt32,
            avg_holding_days Float64,
            final_equity Float64,
            observations UInt32,
            window_start Date,
            window_end Date
        ) ENGINE = ReplacingMergeTree
        ORDER BY (pair_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS pairscout.pair_signals (
            pair_id String,
            ts DateTime64(3),
            signal_type LowCardinality(String),
            reason LowCardinality(String),
            state LowCardinality(String),
            spread Float64,
            z_score Float64,
            confidence Float64,
            legs String
        ) ENGINE = ReplacingMergeTree
        ORDER BY (pair_id, ts)`,
	}
}

// CHResultSink persists pipeline outputs to ClickHouse.
type CHResultSink struct {
	ch *pkgch.Client
	db *sql.DB
}

func NewCHResultSink(ch *pkgch.Client) *CHResultSink {
	return &CHResultSink{ch: ch, db: ch.DB()}
}

func (s *CHResultSink) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, Schema())
}

func (s *CHResultSink) PersistCointegration(ctx context.Context, r *models.CointegrationResult) error {
	hedge, err := json.Marshal(r.HedgeRatios)
	if err != nil {
		return fmt.Errorf("marshal hedge ratios: %w", err)
	}
	insts, err := json.Marshal(r.Instruments)
	if err != nil {
		return fmt.Errorf("marshal instruments: %w", err)
	}

	const q = `INSERT INTO pairscout.pair_cointegration
        (pair_id, analyzed_at, method, instruments, test_statistic, p_value,
         hedge_ratios, intercept, residual_mean, residual_std, half_life_days,
         correlation, observations, window_start, window_end)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q,
		r.PairID,
		r.CreatedAt.Truncate(time.Second),
		string(r.Method),
		string(insts),
		r.TestStatistic,
		r.PValue,
		string(hedge),
		r.Intercept,
		r.ResidualMean,
		r.ResidualStd,
		nanToZero(r.HalfLifeDays),
		r.Correlation,
		uint32(r.Observations),
		r.Start,
		r.End,
	)
	return err
}

func (s *CHResultSink) PersistBacktest(ctx context.Context, r *models.BacktestResult) error {
	const q = `INSERT INTO pairscout.pair_backtests
        (pair_id, created_at, total_return, annualized_return, sharpe_ratio,
         sortino_ratio, max_drawdown, win_rate, profit_factor, trade_count,
         avg_holding_days, final_equity, observations, window_start, window_end)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		r.PairID,
		r.CreatedAt.Truncate(time.Second),
		r.TotalReturn,
		r.AnnualizedReturn,
		r.SharpeRatio,
		r.SortinoRatio,
		r.MaxDrawdown,
		r.WinRate,
		r.ProfitFactor,
		uint32(r.TradeCount),
		r.AvgHoldingDays,
		r.FinalEquity,
		uint32(r.Observations),
		r.Start,
		r.End,
	)
	return err
}

func (s *CHResultSink) PersistSignal(ctx context.Context, sig *models.SignalRecord) error {
	legs, err := json.Marshal(sig.Legs)
	if err != nil {
		return fmt.Errorf("marshal legs: %w", err)
	}

	const q = `INSERT INTO pairscout.pair_signals
        (pair_id, ts, signal_type, reason, state, spread, z_score, confidence, legs)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q,
		sig.PairID,
		sig.Timestamp,
		string(sig.Type),
		sig.Reason,
		sig.State.String(),
		sig.Spread,
		sig.ZScore,
		sig.Confidence,
		string(legs),
	)
	return err
}

// RecentSignals returns the newest emitted signals, newest first.
func (s *CHResultSink) RecentSignals(ctx context.Context, limit int) ([]*models.SignalRecord, error) {
	const q = `SELECT pair_id, ts, signal_type, reason, state, spread, z_score, confidence, legs
        FROM pairscout.pair_signals FINAL
        ORDER BY ts DESC
        LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []*models.SignalRecord
	for rows.Next() {
		var (
			rec      models.SignalRecord
			sigType  string
			state    string
			legsJSON string
		)
		if err := rows.Scan(&rec.PairID, &rec.Timestamp, &sigType, &rec.Reason,
			&state, &rec.Spread, &rec.ZScore, &rec.Confidence, &legsJSON); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		rec.Type = models.TransitionType(sigType)
		rec.State = parseState(state)
		if err := json.Unmarshal([]byte(legsJSON), &rec.Legs); err != nil {
			return nil, fmt.Errorf("decode legs for %s: %w", rec.PairID, err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// LatestCointegrations returns the newest test results, newest first.
func (s *CHResultSink) LatestCointegrations(ctx context.Context, limit int) ([]*models.CointegrationResult, error) {
	const q = `SELECT pair_id, analyzed_at, method, instruments, test_statistic,
            p_value, hedge_ratios, intercept, residual_mean, residual_std,
            half_life_days, correlation, observations, window_start, window_end
        FROM pairscout.pair_cointegration FINAL
        ORDER BY analyzed_at DESC
        LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query cointegration results: %w", err)
	}
	defer rows.Close()

	var out []*models.CointegrationResult
	for rows.Next() {
		var (
			r         models.CointegrationResult
			method    string
			instsJSON string
			hedgeJSON string
			obs       uint32
		)
		if err := rows.Scan(&r.PairID, &r.CreatedAt, &method, &instsJSON,
			&r.TestStatistic, &r.PValue, &hedgeJSON, &r.Intercept,
			&r.ResidualMean, &r.ResidualStd, &r.HalfLifeDays, &r.Correlation,
			&obs, &r.Start, &r.End); err != nil {
			return nil, fmt.Errorf("scan cointegration result: %w", err)
		}
		r.Method = models.CointMethod(method)
		r.Observations = int(obs)
		if err := json.Unmarshal([]byte(instsJSON), &r.Instruments); err != nil {
			return nil, fmt.Errorf("decode instruments for %s: %w", r.PairID, err)
		}
		if err := json.Unmarshal([]byte(hedgeJSON), &r.HedgeRatios); err != nil {
			return nil, fmt.Errorf("decode hedge ratios for %s: %w", r.PairID, err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *CHResultSink) LatestBacktests(ctx context.Context, limit int) ([]*models.BacktestResult, error) {
	const q = `SELECT pair_id, created_at, total_return, annualized_return,
            sharpe_ratio, sortino_ratio, max_drawdown, win_rate, profit_factor,
            trade_count, avg_holding_days, final_equity, observations,
            window_start, window_end
        FROM pairscout.pair_backtests FINAL
        ORDER BY created_at DESC
        LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query backtest results: %w", err)
	}
	defer rows.Close()

	var out []*models.BacktestResult
	for rows.Next() {
		var (
			r      models.BacktestResult
			trades uint32
			obs    uint32
		)
		if err := rows.Scan(&r.PairID, &r.CreatedAt, &r.TotalReturn,
			&r.AnnualizedReturn, &r.SharpeRatio, &r.SortinoRatio,
			&r.MaxDrawdown, &r.WinRate, &r.ProfitFactor, &trades,
			&r.AvgHoldingDays, &r.FinalEquity, &obs, &r.Start, &r.End); err != nil {
			return nil, fmt.Errorf("scan backtest result: %w", err)
		}
		r.TradeCount = int(trades)
		r.Observations = int(obs)
		out = append(out, &r)
	}
	return out, rows.Err()
}

func parseState(s string) models.SignalState {
	switch s {
	case models.StateLongSpread.String():
		return models.StateLongSpread
	case models.StateShortSpread.String():
		return models.StateShortSpread
	default:
		return models.StateFlat
	}
}

func (s *CHResultSink) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHResultSink) Close() error {
	return nil // connection pool managed by pkg
}

var (
	_ repository.ResultSink   = (*CHResultSink)(nil)
	_ repository.ResultReader = (*CHResultSink)(nil)
)

// nanToZero keeps NaN half-lives out of ClickHouse Float64 columns.
func nanToZero(v float64) float64 {
	if v != v {
		return 0
	}
	return v
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	quotesTotal      *prometheus.CounterVec
	pairsTested      *prometheus.CounterVec
	pairsSignificant *prometheus.CounterVec
	signalsTotal     *prometheus.CounterVec
	zScore           *prometheus.GaugeVec
	errorsTotal      *prometheus.CounterVec
	latency          *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		quotesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairscout_quotes_total",
				Help: "Total number of quotes ingested",
			},
			[]string{"instrument"},
		),
		pairsTested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairscout_pairs_tested_total",
				Help: "Total number of candidate tuples tested for cointegration",
			},
			[]string{"method"},
		),
		pairsSignificant: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairscout_pairs_significant_total",
				Help: "Total number of tuples that passed the cointegration test",
			},
			[]string{"method"},
		),
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairscout_signals_total",
				Help: "Total number of trading signals emitted",
			},
			[]string{"type"},
		),
		zScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pairscout_pair_zscore",
				Help: "Last observed spread z-score per pair",
			},
			[]string{"pair"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairscout_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pairscout_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordQuote records an ingested quote for an instrument.
func (r *Recorder) RecordQuote(instrument string) {
	r.quotesTotal.WithLabelValues(instrument).Inc()
}

// RecordPairTested records a cointegration test attempt.
func (r *Recorder) RecordPairTested(method string) {
	r.pairsTested.WithLabelValues(method).Inc()
}

// RecordPairSignificant records a passing cointegration test.
func (r *Recorder) RecordPairSignificant(method string) {
	r.pairsSignificant.WithLabelValues(method).Inc()
}

// RecordSignal records an emitted trading signal.
func (r *Recorder) RecordSignal(kind string) {
	r.signalsTotal.WithLabelValues(kind).Inc()
}

// RecordZScore records the latest spread z-score for a pair.
func (r *Recorder) RecordZScore(pairID string, z float64) {
	r.zScore.WithLabelValues(pairID).Set(z)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

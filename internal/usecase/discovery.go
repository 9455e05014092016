package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"PairScout/internal/domain/models"
	drepo "PairScout/internal/domain/repository"
	svcmetrics "PairScout/internal/service/metrics"
	"PairScout/internal/services/backtest"
	"PairScout/internal/services/candidates"
	"PairScout/internal/services/coint"
	"PairScout/internal/services/embed"
	"PairScout/internal/services/signal"
	"PairScout/internal/services/simindex"
	"PairScout/pkg/logger"
)

// DiscoveryConfig holds the thresholds of one discovery run.
type DiscoveryConfig struct {
	WindowDays      int
	MinObservations int
	TopK            int
	MaxTupleSize    int // 2 disables N-way tuples
	MaxPValue       float64
	MinHalfLifeDays float64
	MaxHalfLifeDays float64
	MinSharpe       float64
	Workers         int
}

// RunSummary reports what one discovery run did.
type RunSummary struct {
	AsOf        time.Time `json:"as_of"`
	Universe    int       `json:"universe"`
	Indexed     int       `json:"indexed"`
	Candidates  int       `json:"candidates"`
	Tested      int       `json:"tested"`
	Significant int       `json:"significant"`
	Promoted    int       `json:"promoted"`
	Monitoring  int       `json:"monitoring"`
	Rejected    int       `json:"rejected"`
	Errors      int       `json:"errors"`
	Promotions  []string  `json:"promotions"`
	Elapsed     float64   `json:"elapsed_seconds"`
}

// Discovery runs the full offline pipeline: embed the universe, index
// it, generate candidate tuples, test them for cointegration, backtest
// the survivors and promote pairs that clear every gate.
type Discovery struct {
	cfg      DiscoveryConfig
	history  drepo.HistoryProvider
	embedder *embed.Embedder
	index    simindex.Index
	engine   *coint.Engine
	bt       *backtest.Engine
	sink     drepo.ResultSink
	metrics  drepo.Metrics
	log      *logger.Logger

	mu       sync.Mutex
	promoted []*models.Pair
}

func NewDiscovery(
	cfg DiscoveryConfig,
	history drepo.HistoryProvider,
	embedder *embed.Embedder,
	index simindex.Index,
	engine *coint.Engine,
	bt *backtest.Engine,
	sink drepo.ResultSink,
	metrics drepo.Metrics,
	lgr *logger.Logger,
) *Discovery {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxTupleSize < 2 {
		cfg.MaxTupleSize = 2
	}
	return &Discovery{
		cfg:      cfg,
		history:  history,
		embedder: embedder,
		index:    index,
		engine:   engine,
		bt:       bt,
		sink:     sink,
		metrics:  metrics,
		log:      lgr,
	}
}

// Run executes one discovery pass as of the given date. An empty
// universe means every instrument the history provider knows about.
// Instruments whose history is unavailable are skipped, not fatal.
func (d *Discovery) Run(ctx context.Context, asOf time.Time, universe []string) (*RunSummary, error) {
	started := time.Now()
	sum := &RunSummary{AsOf: asOf}

	if len(universe) == 0 {
		var err error
		universe, err = d.history.ListInstruments(ctx)
		if err != nil {
			return nil, err
		}
	}
	sum.Universe = len(universe)

	series, err := d.loadHistories(ctx, asOf, universe, sum)
	if err != nil {
		return nil, err
	}

	indexed, err := d.indexUniverse(series, sum)
	if err != nil {
		return nil, err
	}
	sum.Indexed = len(indexed)

	cands, err := d.generate(indexed, sum)
	if err != nil {
		return nil, err
	}
	sum.Candidates = len(cands)
	svcmetrics.DiscoveryCandidates.Observe(float64(len(cands)))

	d.testAll(ctx, cands, series, sum)

	sort.Strings(sum.Promotions)
	sum.Elapsed = time.Since(started).Seconds()
	d.log.Info("discovery run finished",
		logger.Int("universe", sum.Universe),
		logger.Int("candidates", sum.Candidates),
		logger.Int("tested", sum.Tested),
		logger.Int("promoted", sum.Promoted),
		logger.Int("errors", sum.Errors),
		logger.Float64("elapsed_seconds", sum.Elapsed))
	return sum, nil
}

// Promoted returns the pairs promoted by the most recent run, sorted by
// pair ID.
func (d *Discovery) Promoted() []*models.Pair {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*models.Pair, len(d.promoted))
	copy(out, d.promoted)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *Discovery) loadHistories(ctx context.Context, asOf time.Time, universe []string, sum *RunSummary) (map[string]*models.PriceSeries, error) {
	stage := time.Now()
	from := asOf.AddDate(0, 0, -2*d.cfg.WindowDays)
	series := make(map[string]*models.PriceSeries, len(universe))
	for _, inst := range universe {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := d.history.GetPriceHistory(ctx, inst, from, asOf)
		if err != nil {
			if errors.Is(err, models.ErrDataUnavailable) {
				d.log.Warn("history unavailable, skipping instrument",
					logger.String("instrument", inst), logger.Error(err))
				d.metrics.RecordError("history_unavailable")
				svcmetrics.DiscoveryStageErrors.WithLabelValues("history").Inc()
				sum.Errors++
				continue
			}
			return nil, err
		}
		series[inst] = s
	}
	svcmetrics.DiscoveryStageLatency.WithLabelValues("history").Observe(time.Since(stage).Seconds())
	return series, nil
}

func (d *Discovery) indexUniverse(series map[string]*models.PriceSeries, sum *RunSummary) ([]string, error) {
	stage := time.Now()
	indexed := make([]string, 0, len(series))
	for inst, s := range series {
		emb, err := d.embedder.EmbedSeries(s)
		if err != nil {
			if errors.Is(err, models.ErrInsufficientData) {
				d.log.Debug("too little history to embed", logger.String("instrument", inst))
				svcmetrics.DiscoveryStageErrors.WithLabelValues("embed").Inc()
				sum.Errors++
				continue
			}
			return nil, err
		}
		if err := d.index.Upsert(inst, emb.Vector); err != nil {
			return nil, err
		}
		indexed = append(indexed, inst)
	}
	sort.Strings(indexed)
	svcmetrics.DiscoveryStageLatency.WithLabelValues("embed").Observe(time.Since(stage).Seconds())
	return indexed, nil
}

func (d *Discovery) generate(indexed []string, sum *RunSummary) ([]models.CandidatePair, error) {
	stage := time.Now()
	gen := candidates.NewGenerator(d.index, d.cfg.TopK)
	cands, err := gen.Pairs(indexed)
	if err != nil {
		return nil, err
	}
	for size := 3; size <= d.cfg.MaxTupleSize; size++ {
		tuples, err := gen.Tuples(cands, size)
		if err != nil {
			return nil, err
		}
		cands = append(cands, tuples...)
	}
	svcmetrics.DiscoveryStageLatency.WithLabelValues("candidates").Observe(time.Since(stage).Seconds())
	return cands, nil
}

// testAll fans candidates out over a worker pool. A failing candidate
// never takes the run down with it.
func (d *Discovery) testAll(ctx context.Context, cands []models.CandidatePair, series map[string]*models.PriceSeries, sum *RunSummary) {
	stage := time.Now()
	jobs := make(chan models.CandidatePair)
	var wg sync.WaitGroup
	for w := 0; w < d.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cand := range jobs {
				d.testOne(ctx, cand, series, sum)
			}
		}()
	}

	d.mu.Lock()
	d.promoted = nil
	d.mu.Unlock()

feed:
	for _, cand := range cands {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- cand:
		}
	}
	close(jobs)
	wg.Wait()
	svcmetrics.DiscoveryStageLatency.WithLabelValues("cointegration").Observe(time.Since(stage).Seconds())
}

func (d *Discovery) testOne(ctx context.Context, cand models.CandidatePair, series map[string]*models.PriceSeries, sum *RunSummary) {
	legs := make([]*models.PriceSeries, 0, cand.Size())
	for _, inst := range cand.Instruments {
		s, ok := series[inst]
		if !ok {
			return
		}
		legs = append(legs, s)
	}

	method := string(models.MethodEngleGranger)
	if cand.Size() > 2 {
		method = string(models.MethodJohansen)
	}
	d.metrics.RecordPairTested(method)

	res, err := d.engine.Test(ctx, cand, legs)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		d.log.Debug("cointegration test failed",
			logger.String("pair", cand.ID()), logger.Error(err))
		d.metrics.RecordError("coint_test")
		d.bump(sum, func() { sum.Errors++ })
		return
	}
	d.bump(sum, func() { sum.Tested++ })

	status, bt := d.vet(ctx, res, legs)
	if err := d.sink.PersistCointegration(ctx, res); err != nil {
		d.log.Error("persist cointegration result",
			logger.String("pair", res.PairID), logger.Error(err))
		d.metrics.RecordError("sink_coint")
	}
	if bt != nil {
		if err := d.sink.PersistBacktest(ctx, bt); err != nil {
			d.log.Error("persist backtest result",
				logger.String("pair", res.PairID), logger.Error(err))
			d.metrics.RecordError("sink_backtest")
		}
	}

	svcmetrics.DiscoveryPromotions.WithLabelValues(string(status)).Inc()

	switch status {
	case models.PairActive:
		d.metrics.RecordPairSignificant(method)
		pair := res.Pair(models.PairActive)
		d.mu.Lock()
		d.promoted = append(d.promoted, pair)
		sum.Significant++
		sum.Promoted++
		sum.Promotions = append(sum.Promotions, pair.ID)
		d.mu.Unlock()
	case models.PairMonitoring:
		d.metrics.RecordPairSignificant(method)
		d.bump(sum, func() { sum.Significant++; sum.Monitoring++ })
	default:
		d.bump(sum, func() { sum.Rejected++ })
	}
}

// vet applies the promotion gates. Every gate must pass: p-value,
// half-life band, then backtest Sharpe. A pair that is statistically
// significant but fails a later gate stays on the monitoring list.
func (d *Discovery) vet(ctx context.Context, res *models.CointegrationResult, legs []*models.PriceSeries) (models.PairStatus, *models.BacktestResult) {
	if !res.Significant(d.cfg.MaxPValue) {
		return models.PairRejected, nil
	}
	if !res.HalfLifeInBand(d.cfg.MinHalfLifeDays, d.cfg.MaxHalfLifeDays) {
		return models.PairMonitoring, nil
	}

	bt, err := d.backtestPair(res, legs)
	if err != nil {
		d.log.Debug("backtest failed",
			logger.String("pair", res.PairID), logger.Error(err))
		d.metrics.RecordError("backtest")
		return models.PairMonitoring, nil
	}
	if !bt.Passes(d.cfg.MinSharpe) {
		return models.PairMonitoring, bt
	}
	return models.PairActive, bt
}

func (d *Discovery) backtestPair(res *models.CointegrationResult, legs []*models.PriceSeries) (*models.BacktestResult, error) {
	cols, dates := models.AlignSeries(legs...)
	pair := res.Pair(models.PairMonitoring)
	spread := make([]float64, len(dates))
	for t := range dates {
		prices := make([]float64, len(cols))
		for i := range cols {
			prices[i] = cols[i][t]
		}
		spread[t] = pair.Spread(prices)
	}
	obs := signal.Observations(pair, spread, dates)
	return d.bt.Run(pair, obs)
}

func (d *Discovery) bump(sum *RunSummary, fn func()) {
	d.mu.Lock()
	fn()
	d.mu.Unlock()
}

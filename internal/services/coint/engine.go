package coint

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"PairScout/internal/domain/models"
	"PairScout/pkg/logger"
)

type Config struct {
	MinObservations int // aligned rows required before testing
	ADFLags         int // 0 means the cube-root rule
}

func DefaultConfig() Config {
	return Config{MinObservations: 252}
}

// Engine tests candidate tuples for cointegration. Two instruments go
// through the residual-based two-step test, larger tuples through the
// trace test. The engine is stateless and safe for concurrent use.
type Engine struct {
	cfg    Config
	logger *logger.Logger
}

func NewEngine(cfg Config, lgr *logger.Logger) *Engine {
	if cfg.MinObservations <= 0 {
		cfg.MinObservations = 252
	}
	return &Engine{cfg: cfg, logger: lgr}
}

// Test aligns the series on shared dates and runs the appropriate test
// for the tuple size. The series order must match cand.Instruments.
func (e *Engine) Test(ctx context.Context, cand models.CandidatePair, series []*models.PriceSeries) (*models.CointegrationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cols, dates := models.AlignSeries(series...)
	if len(dates) < e.cfg.MinObservations {
		return nil, models.Reason(models.ErrInsufficientData,
			"tuple %s has %d aligned observations, need %d", cand.ID(), len(dates), e.cfg.MinObservations)
	}

	var (
		res *models.CointegrationResult
		err error
	)
	if cand.Size() == 2 {
		res, err = e.engleGranger(cand, cols)
	} else {
		res, err = e.johansenTest(cand, cols)
	}
	if err != nil {
		return nil, err
	}

	res.Observations = len(dates)
	res.Start = dates[0]
	res.End = dates[len(dates)-1]
	res.CreatedAt = time.Now().UTC()

	if e.logger != nil {
		e.logger.Debug("tuple tested",
			logger.String("pair_id", res.PairID),
			logger.String("method", string(res.Method)),
			logger.Float64("p_value", res.PValue),
			logger.Float64("half_life_days", res.HalfLifeDays))
	}
	return res, nil
}

func (e *Engine) engleGranger(cand models.CandidatePair, cols [][]float64) (*models.CointegrationResult, error) {
	y, x := cols[0], cols[1]

	varX := stat.PopVariance(x, nil)
	varY := stat.PopVariance(y, nil)
	if varX < 1e-12 || varY < 1e-12 {
		return nil, models.Reason(models.ErrDegenerateRegression,
			"tuple %s has a constant price column", cand.ID())
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)
	resid := make([]float64, len(y))
	for i := range y {
		resid[i] = y[i] - beta*x[i] - alpha
	}
	if stat.PopVariance(resid, nil) < 1e-12 {
		return nil, models.Reason(models.ErrDegenerateRegression,
			"tuple %s leaves no residual variance", cand.ID())
	}

	lags := e.cfg.ADFLags
	if lags <= 0 {
		lags = defaultADFLags(len(resid))
	}
	tau, err := adfStat(resid, lags)
	if err != nil {
		return nil, err
	}
	p := tauPValue(tau, egTauQuantiles)

	return &models.CointegrationResult{
		PairID:        cand.ID(),
		Instruments:   cand.Instruments,
		Method:        models.MethodEngleGranger,
		TestStatistic: tau,
		PValue:        sanitizeP(p),
		CriticalValues: map[string]float64{
			"1%":  egTauQuantiles[0].stat,
			"5%":  egTauQuantiles[1].stat,
			"10%": egTauQuantiles[2].stat,
		},
		HedgeRatios:  []float64{1, beta},
		Intercept:    alpha,
		ResidualMean: stat.Mean(resid, nil),
		ResidualStd:  math.Sqrt(stat.Variance(resid, nil)),
		HalfLifeDays: halfLifeDays(resid),
		Correlation:  stat.Correlation(y, x, nil),
	}, nil
}

func (e *Engine) johansenTest(cand models.CandidatePair, cols [][]float64) (*models.CointegrationResult, error) {
	jr, err := johansen(cols)
	if err != nil {
		return nil, err
	}

	n := len(cols)
	hedge := make([]float64, n)
	hedge[0] = 1
	for i := 1; i < n; i++ {
		hedge[i] = -jr.vector[i]
	}

	// spread under the pair convention, demeaned via the intercept
	T := len(cols[0])
	spread := make([]float64, T)
	for t := 0; t < T; t++ {
		s := cols[0][t]
		for i := 1; i < n; i++ {
			s -= hedge[i] * cols[i][t]
		}
		spread[t] = s
	}
	intercept := stat.Mean(spread, nil)
	resid := make([]float64, T)
	for t := range spread {
		resid[t] = spread[t] - intercept
	}
	if stat.PopVariance(resid, nil) < 1e-12 {
		return nil, models.Reason(models.ErrDegenerateRegression,
			"tuple %s leaves no spread variance", cand.ID())
	}

	cv := traceCritical[n]
	return &models.CointegrationResult{
		PairID:        cand.ID(),
		Instruments:   cand.Instruments,
		Method:        models.MethodJohansen,
		TestStatistic: jr.traceStats[0],
		PValue:        sanitizeP(tracePValue(jr.traceStats[0], n)),
		CriticalValues: map[string]float64{
			"1%":  cv.p99,
			"5%":  cv.p95,
			"10%": cv.p90,
		},
		HedgeRatios:  hedge,
		Intercept:    intercept,
		ResidualMean: 0,
		ResidualStd:  math.Sqrt(stat.Variance(resid, nil)),
		HalfLifeDays: halfLifeDays(resid),
		TraceStats:   jr.traceStats,
		Rank:         jr.rank,
	}, nil
}

// sanitizeP keeps p-values inside [0, 1]; undefined statistics read as
// not cointegrated.
func sanitizeP(p float64) float64 {
	if math.IsNaN(p) {
		return 1.0
	}
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1.0
	}
	return p
}

package api

import (
	"errors"
	"net/http"
	"time"

	models "PairScout/internal/domain/models"
	drepo "PairScout/internal/domain/repository"
	"PairScout/internal/service/ratelimit"
	"PairScout/internal/services/simindex"
	"PairScout/internal/usecase"
	"PairScout/pkg/cache"
	xhttp "PairScout/pkg/http"
	xlogger "PairScout/pkg/logger"
	"PairScout/pkg/queue"

	"github.com/labstack/echo/v4"
)

// PairsHandler serves the read API over the discovery state and queues
// new discovery runs.
type PairsHandler struct {
	logger  *xlogger.Logger
	monitor *usecase.LiveMonitor
	index   simindex.Index
	reader  drepo.ResultReader
	jobs    queue.QueueService
	rl      *ratelimit.Limiter

	cache    cache.Service
	cacheTTL time.Duration
}

func NewPairsHandler(
	logger *xlogger.Logger,
	monitor *usecase.LiveMonitor,
	index simindex.Index,
	reader drepo.ResultReader,
	jobs queue.QueueService,
) *PairsHandler {
	return &PairsHandler{
		logger:  logger,
		monitor: monitor,
		index:   index,
		reader:  reader,
		jobs:    jobs,
		rl:      ratelimit.New(),
	}
}

// SetCache enables read caching for the result endpoints.
func (h *PairsHandler) SetCache(c cache.Service, ttl time.Duration) {
	h.cache = c
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	h.cacheTTL = ttl
}

func (h *PairsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/pairs", h.ListPairs)
	g.GET("/pairs/:id", h.GetPair)
	g.GET("/neighbors", h.Neighbors)
	g.GET("/signals", h.Signals)
	g.GET("/results", h.Results)
	g.GET("/backtests", h.Backtests)
	g.POST("/discovery/run", h.RunDiscovery)
}

// ListPairs returns the pairs under live evaluation.
func (h *PairsHandler) ListPairs(c echo.Context) error {
	pairs := h.monitor.Pairs()
	return xhttp.ListResponse(c, pairs, int64(len(pairs)))
}

// GetPair returns one tracked pair by canonical ID.
func (h *PairsHandler) GetPair(c echo.Context) error {
	id := c.Param("id")
	pair, ok := h.monitor.Pair(id)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("pair %s is not tracked", id))
	}
	stats, _ := h.monitor.PairStats(id)
	return xhttp.SuccessResponse(c, echo.Map{"pair": pair, "spread": stats})
}

// Neighbors returns the most similar instruments from the embedding
// index built by the last discovery run.
func (h *PairsHandler) Neighbors(c echo.Context) error {
	req := &models.NeighborsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	neighbors, err := h.index.Query(req.Instrument, req.K)
	if err != nil {
		if errors.Is(err, models.ErrNotIndexed) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("instrument %s is not indexed", req.Instrument))
		}
		h.logger.Error("neighbor query", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, neighbors, int64(len(neighbors)))
}

// Signals returns recently emitted signals, newest first.
func (h *PairsHandler) Signals(c echo.Context) error {
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ctx := c.Request().Context()
	key := cache.GenerateKeyWithParams("signals:recent", req.Limit)
	if h.cache != nil {
		var cached []*models.SignalRecord
		if err := h.cache.Get(ctx, key, &cached); err == nil {
			return xhttp.ListResponse(c, cached, int64(len(cached)))
		}
	}

	sigs, err := h.reader.RecentSignals(ctx, req.Limit)
	if err != nil {
		h.logger.Error("recent signals", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, key, sigs, h.cacheTTL); err != nil {
			h.logger.Warn("cache signals", xlogger.Error(err))
		}
	}
	return xhttp.ListResponse(c, sigs, int64(len(sigs)))
}

// Results returns recent cointegration test results, newest first.
func (h *PairsHandler) Results(c echo.Context) error {
	req := &models.ResultsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ctx := c.Request().Context()
	key := cache.GenerateKeyWithParams("results:latest", req.Limit)
	if h.cache != nil {
		var cached []*models.CointegrationResult
		if err := h.cache.Get(ctx, key, &cached); err == nil {
			return xhttp.ListResponse(c, cached, int64(len(cached)))
		}
	}

	results, err := h.reader.LatestCointegrations(ctx, req.Limit)
	if err != nil {
		h.logger.Error("latest cointegrations", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, key, results, h.cacheTTL); err != nil {
			h.logger.Warn("cache results", xlogger.Error(err))
		}
	}
	return xhttp.ListResponse(c, results, int64(len(results)))
}

// Backtests returns recent backtest results, newest first.
func (h *PairsHandler) Backtests(c echo.Context) error {
	req := &models.ResultsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ctx := c.Request().Context()
	key := cache.GenerateKeyWithParams("backtests:latest", req.Limit)
	if h.cache != nil {
		var cached []*models.BacktestResult
		if err := h.cache.Get(ctx, key, &cached); err == nil {
			return xhttp.ListResponse(c, cached, int64(len(cached)))
		}
	}

	results, err := h.reader.LatestBacktests(ctx, req.Limit)
	if err != nil {
		h.logger.Error("latest backtests", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, key, results, h.cacheTTL); err != nil {
			h.logger.Warn("cache backtests", xlogger.Error(err))
		}
	}
	return xhttp.ListResponse(c, results, int64(len(results)))
}

// RunDiscovery queues an asynchronous discovery run. Runs are heavy, so
// triggers are rate limited per caller.
func (h *PairsHandler) RunDiscovery(c echo.Context) error {
	if !h.rl.Allow(c.RealIP()+":discovery", 1, 1.0/60) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests,
			map[string]string{"error": "a discovery run was triggered recently, try again later"})
	}

	req := &models.DiscoveryRunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	payload := usecase.DiscoveryRunPayload{AsOf: req.AsOf, Universe: req.Universe}
	if err := h.jobs.PublishMessage(c.Request().Context(), "discovery.run", payload); err != nil {
		h.logger.Error("queue discovery run", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	h.logger.Info("discovery run queued",
		xlogger.String("as_of", req.AsOf),
		xlogger.Int("universe", len(req.Universe)))
	return xhttp.DataResponse(c, http.StatusAccepted, map[string]interface{}{
		"queued": true,
		"ts":     time.Now().UTC().Format(time.RFC3339),
	})
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"PairScout/internal/domain/models"
	drepo "PairScout/internal/domain/repository"
	ssink "PairScout/internal/repository"
	"PairScout/internal/services/signal"
	"PairScout/internal/services/simindex"
	"PairScout/internal/usecase"
	"PairScout/pkg/logger"

	"github.com/labstack/echo/v4"
)

type fakeQueue struct {
	published []string
}

func (q *fakeQueue) PublishMessage(_ context.Context, msgType string, _ interface{}) error {
	q.published = append(q.published, msgType)
	return nil
}

func newTestHandler(t *testing.T) (*PairsHandler, *usecase.LiveMonitor, *ssink.MemorySink, *fakeQueue) {
	t.Helper()
	lgr, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	sink := ssink.NewMemorySink()
	mon := usecase.NewLiveMonitor(signal.DefaultConfig(), sink, nil, drepo.NopMetrics{}, lgr)

	idx := simindex.NewExactIndex()
	vec := func(seed float64) []float64 {
		v := make([]float64, models.EmbeddingDim)
		for i := range v {
			v[i] = seed + float64(i)
		}
		return v
	}
	for i, inst := range []string{"AAA", "BBB", "CCC"} {
		if err := idx.Upsert(inst, vec(float64(i))); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	q := &fakeQueue{}
	return NewPairsHandler(lgr, mon, idx, sink, q), mon, sink, q
}

func doRequest(t *testing.T, h echo.HandlerFunc, req *http.Request, pathParams map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for k, v := range pathParams {
		c.SetParamNames(k)
		c.SetParamValues(v)
	}
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	return rec
}

func envelopeStatus(t *testing.T, rec *httptest.ResponseRecorder) int {
	t.Helper()
	var body struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return body.Status
}

func TestListPairs(t *testing.T) {
	h, mon, _, _ := newTestHandler(t)
	mon.Track(&models.Pair{
		ID:          "AAA~BBB",
		Instruments: []string{"AAA", "BBB"},
		HedgeRatios: []float64{1, 1},
		ResidualStd: 1,
	})

	rec := doRequest(t, h.ListPairs, httptest.NewRequest(http.MethodGet, "/api/pairs", nil), nil)
	if got := envelopeStatus(t, rec); got != http.StatusOK {
		t.Fatalf("status = %d, want 200", got)
	}
	if !strings.Contains(rec.Body.String(), "AAA~BBB") {
		t.Fatalf("response does not list the tracked pair: %s", rec.Body.String())
	}
}

func TestGetPairNotFound(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	rec := doRequest(t, h.GetPair,
		httptest.NewRequest(http.MethodGet, "/api/pairs/XXX~YYY", nil),
		map[string]string{"id": "XXX~YYY"})
	if got := envelopeStatus(t, rec); got != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", got)
	}
}

func TestNeighbors(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	rec := doRequest(t, h.Neighbors,
		httptest.NewRequest(http.MethodGet, "/api/neighbors?instrument=AAA&k=2", nil), nil)
	if got := envelopeStatus(t, rec); got != http.StatusOK {
		t.Fatalf("status = %d, want 200", got)
	}

	var body struct {
		Data struct {
			Rows []simindex.Neighbor `json:"rows"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data.Rows) != 2 {
		t.Fatalf("got %d neighbors, want 2", len(body.Data.Rows))
	}
	for _, n := range body.Data.Rows {
		if n.Instrument == "AAA" {
			t.Fatalf("query instrument returned as its own neighbor")
		}
	}
}

func TestNeighborsUnknownInstrument(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	rec := doRequest(t, h.Neighbors,
		httptest.NewRequest(http.MethodGet, "/api/neighbors?instrument=ZZZ", nil), nil)
	if got := envelopeStatus(t, rec); got != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", got)
	}
}

func TestNeighborsMissingInstrument(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	rec := doRequest(t, h.Neighbors,
		httptest.NewRequest(http.MethodGet, "/api/neighbors", nil), nil)
	if got := envelopeStatus(t, rec); got != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", got)
	}
}

func TestSignalsReadsFromSink(t *testing.T) {
	h, _, sink, _ := newTestHandler(t)
	err := sink.PersistSignal(context.Background(), &models.SignalRecord{
		PairID:    "AAA~BBB",
		Type:      models.TransitionEntryLong,
		State:     models.StateLongSpread,
		Timestamp: time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC),
		ZScore:    -2.4,
	})
	if err != nil {
		t.Fatalf("persist: %v", err)
	}

	rec := doRequest(t, h.Signals,
		httptest.NewRequest(http.MethodGet, "/api/signals?limit=10", nil), nil)
	if got := envelopeStatus(t, rec); got != http.StatusOK {
		t.Fatalf("status = %d, want 200", got)
	}
	if !strings.Contains(rec.Body.String(), "ENTRY_LONG") {
		t.Fatalf("persisted signal missing from response: %s", rec.Body.String())
	}
}

func TestBacktestsReadsFromSink(t *testing.T) {
	h, _, sink, _ := newTestHandler(t)
	err := sink.PersistBacktest(context.Background(), &models.BacktestResult{
		PairID:      "AAA~BBB",
		TotalReturn: 0.12,
		SharpeRatio: 1.8,
		TradeCount:  4,
		CreatedAt:   time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("persist: %v", err)
	}

	rec := doRequest(t, h.Backtests,
		httptest.NewRequest(http.MethodGet, "/api/backtests?limit=10", nil), nil)
	if got := envelopeStatus(t, rec); got != http.StatusOK {
		t.Fatalf("status = %d, want 200", got)
	}
	if !strings.Contains(rec.Body.String(), "AAA~BBB") {
		t.Fatalf("persisted backtest missing from response: %s", rec.Body.String())
	}
}

func TestRunDiscoveryQueuesAndThrottles(t *testing.T) {
	h, _, _, q := newTestHandler(t)

	newRun := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/discovery/run",
			strings.NewReader(`{"universe":["AAA","BBB"]}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		return req
	}

	rec := doRequest(t, h.RunDiscovery, newRun(), nil)
	if got := envelopeStatus(t, rec); got != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", got)
	}
	if len(q.published) != 1 || q.published[0] != "discovery.run" {
		t.Fatalf("queue publish = %v, want one discovery.run", q.published)
	}

	// second trigger from the same caller inside the refill window
	rec = doRequest(t, h.RunDiscovery, newRun(), nil)
	if got := envelopeStatus(t, rec); got != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", got)
	}
	if len(q.published) != 1 {
		t.Fatalf("throttled trigger still queued a run")
	}
}

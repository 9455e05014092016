package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PairScout/internal/domain/models"
	domrepo "PairScout/internal/domain/repository"
)

// Proc is the minimal downstream interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, q *models.Quote) error
}

// QuotePipeline sits between the live feed and the signal engines. It
// validates quotes, drops out-of-order and duplicate ticks so position
// state never sees time run backwards, throttles per instrument, and
// buffers when the downstream is unavailable.
type QuotePipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	maxRPS  int
	bufSize int
	bufCh   chan *models.Quote
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
	// per-instrument admission state
	lastSeen map[string]time.Time // last accepted wall-clock time
	lastTick map[string]int64     // last accepted quote timestamp
	// metrics hooks
	bufDepthGauge func(int)
	throttleWarn  func(string)
}

type PipelineOption func(*QuotePipeline)

// WithMaxRPS sets the max quotes per second per instrument. Zero or a
// negative value disables the throttle.
func WithMaxRPS(n int) PipelineOption {
	return func(p *QuotePipeline) {
		p.maxRPS = n
	}
}

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *QuotePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewQuotePipeline creates a new pipeline.
func NewQuotePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *QuotePipeline {
	p := &QuotePipeline{
		proc:     proc,
		metrics:  metrics,
		maxRPS:   20,   // default throttle per instrument
		bufSize:  1000, // default buffer
		bufCh:    make(chan *models.Quote, 1000),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
		lastTick: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.Quote, p.bufSize)
	}
	p.bufDepthGauge = func(n int) { p.metrics.RecordLatency("pipeline_buffer_depth", float64(n)) }
	p.throttleWarn = func(inst string) { p.metrics.RecordError("pipeline_throttle_" + inst) }
	p.started = true
	go p.flush()
	return p
}

// flush retries buffered quotes against the downstream. It runs from
// construction until Stop, independent of which ingest path feeds the
// pipeline.
func (p *QuotePipeline) flush() {
	ctx := context.Background()
	backoff := 50 * time.Millisecond
	for {
		select {
		case <-p.stopCh:
			return
		case q := <-p.bufCh:
			if q == nil {
				continue
			}
			if err := p.proc.Process(ctx, q); err != nil {
				// exponential backoff with cap
				if backoff < 2*time.Second {
					backoff *= 2
				}
				p.metrics.RecordError("pipeline_flush")
				time.Sleep(backoff)
				// requeue if space; drop otherwise
				select {
				case p.bufCh <- q:
				default:
					p.metrics.RecordError("pipeline_buffer_drop")
				}
			} else {
				backoff = 50 * time.Millisecond
			}
		}
	}
}

// Stop stops the background flushing.
func (p *QuotePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, orders, throttles and forwards a quote, buffering
// on downstream errors. Rejected quotes never reach the downstream, so
// stale data cannot corrupt signal state.
func (p *QuotePipeline) Process(ctx context.Context, q *models.Quote) error {
	start := time.Now()
	if err := validateQuote(q); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.inOrder(q) {
		// stale or duplicate tick; record and drop
		p.metrics.RecordError("pipeline_out_of_order")
		return nil
	}
	if !p.allow(q.Instrument, start) {
		p.metrics.RecordError("pipeline_throttle")
		if p.throttleWarn != nil {
			p.throttleWarn(q.Instrument)
		}
		return nil
	}

	if err := p.proc.Process(ctx, q); err != nil {
		p.metrics.RecordError("pipeline_process")
		// buffer non-blocking
		select {
		case p.bufCh <- q:
			if p.bufDepthGauge != nil {
				p.bufDepthGauge(len(p.bufCh))
			}
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateQuote(q *models.Quote) error {
	if q == nil {
		return fmt.Errorf("quote nil")
	}
	if q.Instrument == "" {
		return fmt.Errorf("instrument empty")
	}
	if q.Timestamp <= 0 {
		return fmt.Errorf("timestamp invalid")
	}
	if q.Price <= 0 || q.Volume < 0 {
		return fmt.Errorf("non-positive price or negative volume")
	}
	return nil
}

// inOrder admits a quote only if it advances the instrument's clock.
func (p *QuotePipeline) inOrder(q *models.Quote) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if last, ok := p.lastTick[q.Instrument]; ok && q.Timestamp <= last {
		return false
	}
	p.lastTick[q.Instrument] = q.Timestamp
	return true
}

func (p *QuotePipeline) allow(instrument string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	// simple throttle: at most maxRPS quotes per second per instrument
	last := p.lastSeen[instrument]
	if last.IsZero() {
		p.lastSeen[instrument] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[instrument] = now
	return true
}

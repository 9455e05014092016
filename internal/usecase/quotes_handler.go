package usecase

import (
	"context"
	"encoding/json"
	"time"

	"PairScout/internal/domain/models"
	drepo "PairScout/internal/domain/repository"
	mid "PairScout/internal/middleware"
	pkgkafka "PairScout/pkg/kafka"
)

// KafkaQuotesHandler consumes quote messages from Kafka and routes them
// into the quote pipeline, so a Kafka topic can replace the websocket
// feed as the live source.
type KafkaQuotesHandler struct {
	topic   string
	pipe    *mid.QuotePipeline
	metrics drepo.Metrics
}

func NewKafkaQuotesHandler(topic string, pipe *mid.QuotePipeline, metrics drepo.Metrics) *KafkaQuotesHandler {
	return &KafkaQuotesHandler{topic: topic, pipe: pipe, metrics: metrics}
}

func (h *KafkaQuotesHandler) Topic() string { return h.topic }

// incoming message schema: {instrument, price, volume, ts}
func (h *KafkaQuotesHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Instrument string  `json:"instrument"`
		Price      float64 `json:"price"`
		Volume     float64 `json:"volume"`
		TS         int64   `json:"ts"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.TS < 1e11 { // seconds, normalize to ms
		m.TS = m.TS * 1000
	}
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.UnixMilli(m.TS)).Seconds())

	return h.pipe.Process(ctx, &models.Quote{
		Instrument: m.Instrument,
		Price:      m.Price,
		Volume:     m.Volume,
		Timestamp:  m.TS,
	})
}

var _ pkgkafka.MessageHandler = (*KafkaQuotesHandler)(nil)

package repository

import (
	"context"

	"PairScout/internal/domain/models"
	"PairScout/internal/domain/repository"
	pkgkafka "PairScout/pkg/kafka"
)

// KafkaSignalPublisher fans signals out to the signals topic, keyed by
// pair so each pair's signals stay ordered within a partition.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) repository.SignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

func (p *KafkaSignalPublisher) Publish(ctx context.Context, s *models.SignalRecord) error {
	return p.producer.Publish(ctx, p.topic, []byte(s.PairID), map[string]interface{}{
		"pair_id":    s.PairID,
		"type":       string(s.Type),
		"reason":     s.Reason,
		"state":      s.State.String(),
		"ts":         s.Timestamp.UnixMilli(),
		"spread":     s.Spread,
		"z_score":    s.ZScore,
		"confidence": s.Confidence,
		"legs":       s.Legs,
	})
}

func (p *KafkaSignalPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

package queue

import (
	"context"
	"fmt"

	"PairScout/pkg/logger"
)

// InlineQueue dispatches messages straight to their registered jobs on
// a fresh goroutine. It stands in for the Redis queue when Redis is
// disabled: no persistence, no retries.
type InlineQueue struct {
	logger *logger.Logger
	jobs   map[string]Job
}

func NewInlineQueue(lgr *logger.Logger, jobs []Job) *InlineQueue {
	m := make(map[string]Job, len(jobs))
	for _, j := range jobs {
		m[j.Type()] = j
	}
	return &InlineQueue{logger: lgr, jobs: m}
}

func (q *InlineQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	job, ok := q.jobs[msgType]
	if !ok {
		return fmt.Errorf("no job registered for message type %s", msgType)
	}
	go func() {
		if err := job.Handle(context.Background(), payload); err != nil {
			q.logger.Error("inline job failed",
				logger.String("job", job.Name()), logger.Error(err))
		}
	}()
	return nil
}

var _ QueueService = (*InlineQueue)(nil)

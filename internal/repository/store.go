package repository

import "PairScout/internal/domain/repository"

// ResultStore is a sink that can also serve reads. Both the ClickHouse
// and the in-memory implementations satisfy it, so the wiring can hand
// the same instance to the pipeline and the read API.
type ResultStore interface {
	repository.ResultSink
	repository.ResultReader
}

var (
	_ ResultStore = (*CHResultSink)(nil)
	_ ResultStore = (*MemorySink)(nil)
)

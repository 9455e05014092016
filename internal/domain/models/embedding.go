package models

import "time"

// EmbeddingDim is the fixed length of instrument feature vectors:
// 10 statistical dims, 10 shape dims, 5 spectral dims.
const EmbeddingDim = 25

// Embedding is the L2-normalized feature vector for one instrument over
// one lookback window.
type Embedding struct {
	Instrument string
	Vector     []float64
	WindowDays int
	Start      time.Time
	End        time.Time
	CreatedAt  time.Time
}

package simindex

import (
	"fmt"
	"math"

	"PairScout/internal/domain/models"
)

// Neighbor is one query hit.
type Neighbor struct {
	Instrument string
	Similarity float64
}

// Index stores embeddings and answers nearest-neighbor queries by
// cosine similarity. Implementations are interchangeable: the exact
// index is the correctness reference, the graph index trades a little
// recall for sublinear queries.
type Index interface {
	// Upsert stores or replaces the vector for an instrument.
	Upsert(instrument string, vector []float64) error
	// Query returns up to k nearest neighbors of a stored instrument,
	// excluding the instrument itself, ordered by descending similarity.
	// Returns NOT_INDEXED if the instrument has no stored vector.
	Query(instrument string, k int) ([]Neighbor, error)
	// QueryVector is Query for an ad-hoc vector. Nothing is excluded.
	QueryVector(vector []float64, k int) ([]Neighbor, error)
	// Len reports the number of stored instruments.
	Len() int
}

// Cosine computes cosine similarity. Zero vectors yield 0.
func Cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func checkVector(vec []float64) error {
	if len(vec) != models.EmbeddingDim {
		return fmt.Errorf("vector has %d dims, want %d", len(vec), models.EmbeddingDim)
	}
	for _, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("vector has non-finite components")
		}
	}
	return nil
}

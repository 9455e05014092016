package simindex

import (
	"sort"
	"sync"

	"PairScout/internal/domain/models"
)

// ExactIndex scans every stored vector on each query. Linear per query
// but exact, and the reference the graph index is measured against.
type ExactIndex struct {
	mu      sync.RWMutex
	vectors map[string][]float64
}

func NewExactIndex() *ExactIndex {
	return &ExactIndex{vectors: make(map[string][]float64)}
}

func (idx *ExactIndex) Upsert(instrument string, vector []float64) error {
	if err := checkVector(vector); err != nil {
		return err
	}
	cp := make([]float64, len(vector))
	copy(cp, vector)

	idx.mu.Lock()
	idx.vectors[instrument] = cp
	idx.mu.Unlock()
	return nil
}

func (idx *ExactIndex) Query(instrument string, k int) ([]Neighbor, error) {
	idx.mu.RLock()
	vec, ok := idx.vectors[instrument]
	idx.mu.RUnlock()
	if !ok {
		return nil, models.Reason(models.ErrNotIndexed, "instrument %q is not indexed", instrument)
	}
	return idx.search(vec, k, instrument)
}

func (idx *ExactIndex) QueryVector(vector []float64, k int) ([]Neighbor, error) {
	if err := checkVector(vector); err != nil {
		return nil, err
	}
	return idx.search(vector, k, "")
}

func (idx *ExactIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

func (idx *ExactIndex) search(query []float64, k int, exclude string) ([]Neighbor, error) {
	idx.mu.RLock()
	hits := make([]Neighbor, 0, len(idx.vectors))
	for name, vec := range idx.vectors {
		if name == exclude {
			continue
		}
		hits = append(hits, Neighbor{Instrument: name, Similarity: Cosine(query, vec)})
	}
	idx.mu.RUnlock()

	// ties broken by name so results are stable across runs
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].Instrument < hits[j].Instrument
	})

	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

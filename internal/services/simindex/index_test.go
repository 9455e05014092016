package simindex

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"PairScout/internal/domain/models"
)

func randomVector(rng *rand.Rand) []float64 {
	vec := make([]float64, models.EmbeddingDim)
	var sum float64
	for i := range vec {
		vec[i] = rng.NormFloat64()
		sum += vec[i] * vec[i]
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

func TestCosineBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		a, b := randomVector(rng), randomVector(rng)
		sim := Cosine(a, b)
		if sim < -1.0000001 || sim > 1.0000001 {
			t.Fatalf("cosine out of bounds: %v", sim)
		}
	}
	v := randomVector(rng)
	if math.Abs(Cosine(v, v)-1) > 1e-9 {
		t.Fatalf("self similarity should be 1, got %v", Cosine(v, v))
	}
}

func TestExactQueryExcludesSelfAndSorts(t *testing.T) {
	idx := NewExactIndex()
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 20; i++ {
		if err := idx.Upsert(fmt.Sprintf("INST%02d", i), randomVector(rng)); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	hits, err := idx.Query("INST00", 5)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) != 5 {
		t.Fatalf("expected 5 hits, got %d", len(hits))
	}
	for i, h := range hits {
		if h.Instrument == "INST00" {
			t.Fatalf("query returned the instrument itself")
		}
		if i > 0 && hits[i-1].Similarity < h.Similarity {
			t.Fatalf("hits not sorted by similarity")
		}
	}
}

func TestExactQueryNotIndexed(t *testing.T) {
	idx := NewExactIndex()
	_, err := idx.Query("MISSING", 3)
	if err == nil {
		t.Fatalf("expected error for unknown instrument")
	}
	if !errors.Is(err, models.ErrNotIndexed) {
		t.Fatalf("expected NOT_INDEXED, got %v", err)
	}
}

func TestExactUpsertReplaces(t *testing.T) {
	idx := NewExactIndex()
	rng := rand.New(rand.NewSource(3))
	a := randomVector(rng)
	b := randomVector(rng)
	if err := idx.Upsert("A", a); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := idx.Upsert("A", b); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if idx.Len() != 1 {
		t.Fatalf("expected 1 stored vector, got %d", idx.Len())
	}
	hits, err := idx.QueryVector(b, 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if math.Abs(hits[0].Similarity-1) > 1e-9 {
		t.Fatalf("replacement vector not stored, similarity %v", hits[0].Similarity)
	}
}

func TestGraphRecallAgainstExact(t *testing.T) {
	exact := NewExactIndex()
	graph := NewGraphIndex()
	rng := rand.New(rand.NewSource(4))

	n := 300
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("INST%03d", i)
		vec := randomVector(rng)
		if err := exact.Upsert(name, vec); err != nil {
			t.Fatalf("exact upsert: %v", err)
		}
		if err := graph.Upsert(name, vec); err != nil {
			t.Fatalf("graph upsert: %v", err)
		}
	}

	k := 10
	var found, want int
	for i := 0; i < 50; i++ {
		name := fmt.Sprintf("INST%03d", i*6)
		truth, err := exact.Query(name, k)
		if err != nil {
			t.Fatalf("exact query: %v", err)
		}
		approx, err := graph.Query(name, k)
		if err != nil {
			t.Fatalf("graph query: %v", err)
		}
		truthSet := make(map[string]bool, len(truth))
		for _, h := range truth {
			truthSet[h.Instrument] = true
		}
		for _, h := range approx {
			if truthSet[h.Instrument] {
				found++
			}
		}
		want += len(truth)
	}

	recall := float64(found) / float64(want)
	if recall < 0.9 {
		t.Fatalf("graph recall too low: %.3f", recall)
	}
}

func TestGraphQueryDeterministic(t *testing.T) {
	graph := NewGraphIndex()
	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 100; i++ {
		if err := graph.Upsert(fmt.Sprintf("INST%03d", i), randomVector(rng)); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	a, err := graph.Query("INST050", 8)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	b, err := graph.Query("INST050", 8)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("graph query is not deterministic")
	}
}

func TestGraphUpsertPrunesCrowdedPeers(t *testing.T) {
	graph := NewGraphIndex(WithDegree(2), WithSearchWidth(8))
	rng := rand.New(rand.NewSource(6))

	// a low degree forces neighbor-list overflow on almost every
	// insert, so peers get pruned while the newest node is in play
	n := 40
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("INST%03d", i)
		if err := graph.Upsert(name, randomVector(rng)); err != nil {
			t.Fatalf("upsert %s: %v", name, err)
		}
	}
	if graph.Len() != n {
		t.Fatalf("len = %d, want %d", graph.Len(), n)
	}

	for i := 0; i < n; i++ {
		name := fmt.Sprintf("INST%03d", i)
		hits, err := graph.Query(name, 3)
		if err != nil {
			t.Fatalf("query %s: %v", name, err)
		}
		if len(hits) == 0 {
			t.Fatalf("query %s returned no neighbors", name)
		}
		for _, h := range hits {
			if h.Instrument == name {
				t.Fatalf("query %s returned itself", name)
			}
		}
	}
}

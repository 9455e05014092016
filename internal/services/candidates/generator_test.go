package candidates

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"PairScout/internal/domain/models"
	"PairScout/internal/services/simindex"
)

func seededIndex(t *testing.T, n int, seed int64) (*simindex.ExactIndex, []string) {
	t.Helper()
	idx := simindex.NewExactIndex()
	rng := rand.New(rand.NewSource(seed))
	universe := make([]string, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("INST%03d", i)
		vec := make([]float64, models.EmbeddingDim)
		var sum float64
		for j := range vec {
			vec[j] = rng.NormFloat64()
			sum += vec[j] * vec[j]
		}
		norm := math.Sqrt(sum)
		for j := range vec {
			vec[j] /= norm
		}
		if err := idx.Upsert(name, vec); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		universe = append(universe, name)
	}
	return idx, universe
}

func TestPairsDeduplicated(t *testing.T) {
	idx, universe := seededIndex(t, 40, 1)
	gen := NewGenerator(idx, 10)

	pairs, err := gen.Pairs(universe)
	if err != nil {
		t.Fatalf("pairs: %v", err)
	}
	seen := make(map[string]bool)
	for _, p := range pairs {
		if p.Size() != 2 {
			t.Fatalf("expected 2-way tuple, got %d-way", p.Size())
		}
		if p.Instruments[0] >= p.Instruments[1] {
			t.Fatalf("tuple %v is not canonical", p.Instruments)
		}
		if seen[p.ID()] {
			t.Fatalf("duplicate tuple %s", p.ID())
		}
		seen[p.ID()] = true
	}
}

func TestPairsUpperBound(t *testing.T) {
	idx, universe := seededIndex(t, 200, 2)
	gen := NewGenerator(idx, 10)

	pairs, err := gen.Pairs(universe)
	if err != nil {
		t.Fatalf("pairs: %v", err)
	}
	if len(pairs) > 200*10 {
		t.Fatalf("expected at most 2000 candidates, got %d", len(pairs))
	}
	if len(pairs) == 0 {
		t.Fatalf("expected some candidates")
	}
}

func TestPairsSkipsUnindexed(t *testing.T) {
	idx, universe := seededIndex(t, 10, 3)
	gen := NewGenerator(idx, 5)

	pairs, err := gen.Pairs(append(universe, "UNKNOWN"))
	if err != nil {
		t.Fatalf("pairs: %v", err)
	}
	for _, p := range pairs {
		for _, inst := range p.Instruments {
			if inst == "UNKNOWN" {
				t.Fatalf("unindexed instrument leaked into candidates")
			}
		}
	}
}

func TestTuplesMutualOnly(t *testing.T) {
	idx, universe := seededIndex(t, 30, 4)
	gen := NewGenerator(idx, 8)

	pairs, err := gen.Pairs(universe)
	if err != nil {
		t.Fatalf("pairs: %v", err)
	}
	triples, err := gen.Tuples(pairs, 3)
	if err != nil {
		t.Fatalf("tuples: %v", err)
	}

	seen := make(map[string]bool)
	for _, tr := range triples {
		if tr.Size() != 3 {
			t.Fatalf("expected 3-way tuple, got %d-way", tr.Size())
		}
		if seen[tr.ID()] {
			t.Fatalf("duplicate tuple %s", tr.ID())
		}
		seen[tr.ID()] = true
		if tr.Provenance != models.ProvenanceMutual {
			t.Fatalf("expected mutual provenance, got %s", tr.Provenance)
		}
		// every member must be a neighbor of at least the other two
		// through the mutual construction
		a, b, c := tr.Instruments[0], tr.Instruments[1], tr.Instruments[2]
		pairFound := false
		for _, p := range pairs {
			m := map[string]bool{p.Instruments[0]: true, p.Instruments[1]: true}
			hit := 0
			for _, inst := range []string{a, b, c} {
				if m[inst] {
					hit++
				}
			}
			if hit == 2 {
				pairFound = true
				break
			}
		}
		if !pairFound {
			t.Fatalf("triple %s does not extend an accepted pair", tr.ID())
		}
	}
}

func TestTuplesSizeTwoReturnsNothing(t *testing.T) {
	idx, universe := seededIndex(t, 10, 5)
	gen := NewGenerator(idx, 5)
	pairs, err := gen.Pairs(universe)
	if err != nil {
		t.Fatalf("pairs: %v", err)
	}
	tuples, err := gen.Tuples(pairs, 2)
	if err != nil {
		t.Fatalf("tuples: %v", err)
	}
	if len(tuples) != 0 {
		t.Fatalf("expected no tuples for size 2, got %d", len(tuples))
	}
}

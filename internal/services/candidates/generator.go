package candidates

import (
	"errors"
	"sort"

	"PairScout/internal/domain/models"
	"PairScout/internal/services/simindex"
)

// Generator proposes candidate tuples from the similarity index.
// Output is canonical and deduplicated: each unordered tuple appears
// once regardless of which member produced it, so a universe of n
// instruments with top-k queries yields at most n*k pairs.
type Generator struct {
	index simindex.Index
	topK  int
}

func NewGenerator(index simindex.Index, topK int) *Generator {
	if topK <= 0 {
		topK = 10
	}
	return &Generator{index: index, topK: topK}
}

// Pairs generates 2-way candidates for every indexed instrument in the
// universe. Instruments missing from the index are skipped rather than
// failing the whole batch.
func (g *Generator) Pairs(universe []string) ([]models.CandidatePair, error) {
	seen := make(map[string]models.CandidatePair)
	for _, inst := range universe {
		hits, err := g.index.Query(inst, g.topK)
		if err != nil {
			if errors.Is(err, models.ErrNotIndexed) {
				continue
			}
			return nil, err
		}
		for rank, hit := range hits {
			cand := models.NewCandidatePair(
				[]string{inst, hit.Instrument},
				models.ProvenanceNeighbor,
				hit.Similarity,
				rank,
			)
			id := cand.ID()
			// keep the better-ranked discovery of a duplicate tuple
			if prev, ok := seen[id]; ok && prev.Rank <= cand.Rank {
				continue
			}
			seen[id] = cand
		}
	}
	return sortCandidates(seen), nil
}

// Tuples extends accepted 2-way candidates to (size)-way tuples. A
// third instrument joins a pair only when it appears in the neighbor
// lists of both members, keeping the tuple mutually similar. Larger
// sizes extend recursively from the previously accepted level.
func (g *Generator) Tuples(pairs []models.CandidatePair, size int) ([]models.CandidatePair, error) {
	if size <= 2 {
		return nil, nil
	}

	neighborSets := make(map[string]map[string]float64)
	neighbors := func(inst string) (map[string]float64, error) {
		if set, ok := neighborSets[inst]; ok {
			return set, nil
		}
		hits, err := g.index.Query(inst, g.topK)
		if err != nil {
			return nil, err
		}
		set := make(map[string]float64, len(hits))
		for _, h := range hits {
			set[h.Instrument] = h.Similarity
		}
		neighborSets[inst] = set
		return set, nil
	}

	level := pairs
	var out []models.CandidatePair
	for want := 3; want <= size; want++ {
		seen := make(map[string]models.CandidatePair)
		for _, cand := range level {
			joint, err := mutualNeighbors(cand.Instruments, neighbors)
			if err != nil {
				if errors.Is(err, models.ErrNotIndexed) {
					continue
				}
				return nil, err
			}
			for ext, sim := range joint {
				if contains(cand.Instruments, ext) {
					continue
				}
				next := models.NewCandidatePair(
					append(append([]string{}, cand.Instruments...), ext),
					models.ProvenanceMutual,
					minFloat(cand.Similarity, sim),
					cand.Rank,
				)
				if _, ok := seen[next.ID()]; !ok {
					seen[next.ID()] = next
				}
			}
		}
		level = sortCandidates(seen)
		out = append(out, level...)
	}
	return out, nil
}

// mutualNeighbors returns instruments present in every member's
// neighbor set, mapped to their weakest similarity across members.
func mutualNeighbors(members []string, neighbors func(string) (map[string]float64, error)) (map[string]float64, error) {
	var joint map[string]float64
	for _, m := range members {
		set, err := neighbors(m)
		if err != nil {
			return nil, err
		}
		if joint == nil {
			joint = make(map[string]float64, len(set))
			for k, v := range set {
				joint[k] = v
			}
			continue
		}
		for k, v := range joint {
			sim, ok := set[k]
			if !ok {
				delete(joint, k)
				continue
			}
			if sim < v {
				joint[k] = sim
			}
		}
	}
	return joint, nil
}

func sortCandidates(seen map[string]models.CandidatePair) []models.CandidatePair {
	out := make([]models.CandidatePair, 0, len(seen))
	for _, c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

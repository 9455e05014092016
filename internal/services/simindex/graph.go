package simindex

import (
	"container/heap"
	"sort"
	"sync"

	"PairScout/internal/domain/models"
)

const (
	defaultGraphDegree = 16
	defaultGraphSearch = 64
)

// GraphIndex is a navigable small-world graph over the stored vectors.
// Queries greedily walk the graph from a fixed entry point, so results
// are approximate but repeatable: the graph is built deterministically
// from insertion order and every traversal breaks ties by instrument
// name.
type GraphIndex struct {
	mu     sync.RWMutex
	nodes  map[string]*graphNode
	order  []string // insertion order, first element is the entry point
	degree int      // neighbor links kept per node
	search int      // beam width during traversal
}

type graphNode struct {
	vector    []float64
	neighbors []string // kept sorted for deterministic expansion
}

type GraphOption func(*GraphIndex)

func WithDegree(m int) GraphOption {
	return func(g *GraphIndex) {
		if m > 0 {
			g.degree = m
		}
	}
}

func WithSearchWidth(ef int) GraphOption {
	return func(g *GraphIndex) {
		if ef > 0 {
			g.search = ef
		}
	}
}

func NewGraphIndex(opts ...GraphOption) *GraphIndex {
	g := &GraphIndex{
		nodes:  make(map[string]*graphNode),
		degree: defaultGraphDegree,
		search: defaultGraphSearch,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GraphIndex) Upsert(instrument string, vector []float64) error {
	if err := checkVector(vector); err != nil {
		return err
	}
	cp := make([]float64, len(vector))
	copy(cp, vector)

	g.mu.Lock()
	defer g.mu.Unlock()

	if node, ok := g.nodes[instrument]; ok {
		// re-embedding keeps the node's position in the graph
		node.vector = cp
		return nil
	}

	node := &graphNode{vector: cp}
	if len(g.nodes) == 0 {
		g.nodes[instrument] = node
		g.order = append(g.order, instrument)
		return nil
	}

	closest := g.traverse(cp, g.search, "")
	if len(closest) > g.degree {
		closest = closest[:g.degree]
	}

	// insert before wiring reverse links: pruning a peer rescans
	// both endpoints of every edge by name
	g.nodes[instrument] = node
	g.order = append(g.order, instrument)

	for _, hit := range closest {
		node.neighbors = insertSorted(node.neighbors, hit.Instrument)
		peer := g.nodes[hit.Instrument]
		peer.neighbors = insertSorted(peer.neighbors, instrument)
		g.pruneLocked(hit.Instrument, peer)
	}
	return nil
}

func (g *GraphIndex) Query(instrument string, k int) ([]Neighbor, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, ok := g.nodes[instrument]
	if !ok {
		return nil, models.Reason(models.ErrNotIndexed, "instrument %q is not indexed", instrument)
	}
	hits := g.traverse(node.vector, max(g.search, 4*k), instrument)
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (g *GraphIndex) QueryVector(vector []float64, k int) ([]Neighbor, error) {
	if err := checkVector(vector); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	hits := g.traverse(vector, max(g.search, 4*k), "")
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (g *GraphIndex) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// traverse runs a beam search of width ef from the entry point and
// returns visited nodes ordered by descending similarity. Callers hold
// at least a read lock.
func (g *GraphIndex) traverse(query []float64, ef int, exclude string) []Neighbor {
	if len(g.order) == 0 {
		return nil
	}

	entry := g.order[0]
	visited := map[string]bool{entry: true}
	frontier := &simHeap{{Instrument: entry, Similarity: Cosine(query, g.nodes[entry].vector)}}
	var results []Neighbor

	for frontier.Len() > 0 {
		cur := heap.Pop(frontier).(Neighbor)
		if len(results) >= ef && cur.Similarity < results[len(results)-1].Similarity {
			break
		}
		results = insertResult(results, cur, ef)

		for _, name := range g.nodes[cur.Instrument].neighbors {
			if visited[name] {
				continue
			}
			visited[name] = true
			heap.Push(frontier, Neighbor{
				Instrument: name,
				Similarity: Cosine(query, g.nodes[name].vector),
			})
		}
	}

	if exclude != "" {
		filtered := results[:0]
		for _, r := range results {
			if r.Instrument != exclude {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}
	return results
}

// pruneLocked caps a node's neighbor list at degree, keeping the most
// similar links.
func (g *GraphIndex) pruneLocked(name string, node *graphNode) {
	if len(node.neighbors) <= g.degree {
		return
	}
	scored := make([]Neighbor, 0, len(node.neighbors))
	for _, peer := range node.neighbors {
		scored = append(scored, Neighbor{
			Instrument: peer,
			Similarity: Cosine(node.vector, g.nodes[peer].vector),
		})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].Instrument < scored[j].Instrument
	})

	dropped := scored[g.degree:]
	node.neighbors = node.neighbors[:0]
	for _, s := range scored[:g.degree] {
		node.neighbors = insertSorted(node.neighbors, s.Instrument)
	}

	// drop the reverse links of pruned edges
	for _, d := range dropped {
		peer := g.nodes[d.Instrument]
		peer.neighbors = removeSorted(peer.neighbors, name)
	}
}

// insertResult keeps results sorted by descending similarity, capped at
// ef entries, with name ties resolved lexicographically.
func insertResult(results []Neighbor, n Neighbor, ef int) []Neighbor {
	i := sort.Search(len(results), func(i int) bool {
		if results[i].Similarity != n.Similarity {
			return results[i].Similarity < n.Similarity
		}
		return results[i].Instrument > n.Instrument
	})
	results = append(results, Neighbor{})
	copy(results[i+1:], results[i:])
	results[i] = n
	if len(results) > ef {
		results = results[:ef]
	}
	return results
}

func insertSorted(names []string, name string) []string {
	i := sort.SearchStrings(names, name)
	if i < len(names) && names[i] == name {
		return names
	}
	names = append(names, "")
	copy(names[i+1:], names[i:])
	names[i] = name
	return names
}

func removeSorted(names []string, name string) []string {
	i := sort.SearchStrings(names, name)
	if i < len(names) && names[i] == name {
		return append(names[:i], names[i+1:]...)
	}
	return names
}

// simHeap is a max-heap of neighbors by similarity.
type simHeap []Neighbor

func (h simHeap) Len() int { return len(h) }
func (h simHeap) Less(i, j int) bool {
	if h[i].Similarity != h[j].Similarity {
		return h[i].Similarity > h[j].Similarity
	}
	return h[i].Instrument < h[j].Instrument
}
func (h simHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *simHeap) Push(x interface{}) { *h = append(*h, x.(Neighbor)) }
func (h *simHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

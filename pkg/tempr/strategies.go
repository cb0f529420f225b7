package tempr

import (
	"container/heap"
	"context"
	"sort"
	"strings"
)

// rankedList is one strategy's output: units in rank order (best first).
// Fusion only needs rank position, not the raw score, matching RRF's
// definition in spec §4.7.
type rankedList struct {
	name  string
	units []MemoryUnit
}

// runSemantic implements spec §4.6.1: embed once, vector_knn with
// k=4*budgetN, min_sim=0.3, ranked by similarity descending.
func runSemantic(ctx context.Context, fs *factStore, bankID string, types []FactType, queryVec []float32, budgetN int) (rankedList, error) {
	scored, err := fs.vectorKNN(ctx, bankID, types, queryVec, 4*budgetN, 0.3)
	if err != nil {
		return rankedList{name: "semantic"}, err
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return rankedList{name: "semantic", units: unitsOf(scored)}, nil
}

// runKeyword implements spec §4.6.2. The query is reduced to its
// stopword-filtered terms (keywordTerms); each term is quoted and the terms
// are OR-ed into one FTS5 match expression, ranked by BM25.
func runKeyword(ctx context.Context, fs *factStore, bankID string, types []FactType, query string, budgetN int) (rankedList, error) {
	terms := keywordTerms(query)
	for i, t := range terms {
		terms[i] = `"` + t + `"`
	}
	scored, err := fs.keywordSearch(ctx, bankID, types, strings.Join(terms, " OR "), 4*budgetN)
	if err != nil {
		return rankedList{name: "keyword"}, err
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return rankedList{name: "keyword", units: unitsOf(scored)}, nil
}

func unitsOf(scored []scoredUnit) []MemoryUnit {
	out := make([]MemoryUnit, len(scored))
	for i, s := range scored {
		out[i] = s.Unit
	}
	return out
}

// activationNode tracks one node's accumulated activation during
// spreading activation (spec §4.6.3 / §9's note: accumulated activation,
// never a visited/unvisited boolean, so cycles resolve naturally).
type activationNode struct {
	unitID     string
	activation float64
	hop        int
}

// pqItem is one entry in the priority queue of pending activation to
// propagate. Multiple entries for the same node may coexist; the
// visited map below is what prevents reprocessing after a node's
// final activation is fixed.
type pqItem struct {
	unitID     string
	activation float64
	hop        int
}

type activationQueue []pqItem

func (q activationQueue) Len() int            { return len(q) }
func (q activationQueue) Less(i, j int) bool   { return q[i].activation > q[j].activation }
func (q activationQueue) Swap(i, j int)        { q[i], q[j] = q[j], q[i] }
func (q *activationQueue) Push(x any)          { *q = append(*q, x.(pqItem)) }
func (q *activationQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

func causalBoost(linkType LinkType, kind CausalKind) float64 {
	if linkType != LinkCausal {
		return 1.0
	}
	switch kind {
	case Causes, CausedBy:
		return 2.0
	case Enables, Prevents:
		return 1.5
	default:
		return 1.0
	}
}

// spreadingActivationParams bundles the per-call knobs so the temporal
// strategy (spec §4.6.4) can reuse the same engine with different hop
// count, retention predicate, and edge-type universe.
type spreadingActivationParams struct {
	maxHops       int
	decay         float64
	minActivation float64
	maxVisited    int
	// retain, if non-nil, is consulted before a neighbour's contribution is
	// accepted; returning false drops the contribution entirely (used by
	// the temporal strategy's broadened-interval overlap check).
	retain func(unitID string) bool
}

// spreadingActivation runs the algorithm from spec §4.6.3 starting from
// seeds (unit id -> initial activation), returning all activated nodes
// ranked by final activation descending, ties by hop ascending then id
// lexicographically.
func spreadingActivation(ctx context.Context, gs *graphStore, seeds map[string]float64, p spreadingActivationParams) ([]activationNode, error) {
	activation := make(map[string]float64, len(seeds))
	bestHop := make(map[string]int, len(seeds))
	pq := &activationQueue{}
	heap.Init(pq)
	for id, a := range seeds {
		activation[id] = a
		bestHop[id] = 0
		heap.Push(pq, pqItem{unitID: id, activation: a, hop: 0})
	}

	visited := make(map[string]bool)
	for pq.Len() > 0 && len(visited) < p.maxVisited {
		item := heap.Pop(pq).(pqItem)
		if visited[item.unitID] {
			continue
		}
		// the top of the queue may be stale (superseded by a later, higher
		// contribution already folded into activation[]); always propagate
		// using the node's current total activation, not the popped value.
		current := activation[item.unitID]
		if current < p.minActivation {
			break
		}
		visited[item.unitID] = true

		if item.hop >= p.maxHops {
			continue
		}
		neighbors, err := gs.neighbors(ctx, item.unitID, nil)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			if p.retain != nil && !p.retain(n.Dst) {
				continue
			}
			boost := causalBoost(n.LinkType, n.CausalKind)
			effective := n.Weight * boost
			contribution := current * p.decay * effective
			if contribution <= 0 {
				continue
			}
			newTotal := activation[n.Dst] + contribution
			if newTotal > boost {
				newTotal = boost
			}
			activation[n.Dst] = newTotal
			hop := item.hop + 1
			if existing, ok := bestHop[n.Dst]; !ok || hop < existing {
				bestHop[n.Dst] = hop
			}
			if !visited[n.Dst] {
				heap.Push(pq, pqItem{unitID: n.Dst, activation: newTotal, hop: bestHop[n.Dst]})
			}
		}
	}

	out := make([]activationNode, 0, len(visited))
	for id := range visited {
		out = append(out, activationNode{unitID: id, activation: activation[id], hop: bestHop[id]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].activation != out[j].activation {
			return out[i].activation > out[j].activation
		}
		if out[i].hop != out[j].hop {
			return out[i].hop < out[j].hop
		}
		return out[i].unitID < out[j].unitID
	})
	return out, nil
}

// runGraph implements spec §4.6.3: seed with top-S semantic matches, then
// spread.
func runGraph(ctx context.Context, fs *factStore, gs *graphStore, cfg Config, bankID string, types []FactType, queryVec []float32, budgetN int) (rankedList, error) {
	seedCount := 20
	if budgetN/5 < seedCount {
		seedCount = budgetN / 5
	}
	if seedCount < 1 {
		seedCount = 1
	}
	seedScored, err := fs.vectorKNN(ctx, bankID, types, queryVec, seedCount, 0.3)
	if err != nil {
		return rankedList{name: "graph"}, err
	}
	if len(seedScored) == 0 {
		return rankedList{name: "graph"}, nil
	}
	seeds := make(map[string]float64, len(seedScored))
	byID := make(map[string]MemoryUnit, len(seedScored))
	for _, s := range seedScored {
		seeds[s.Unit.ID] = s.Score
		byID[s.Unit.ID] = s.Unit
	}

	nodes, err := spreadingActivation(ctx, gs, seeds, spreadingActivationParams{
		maxHops: cfg.GraphMaxHops, decay: cfg.GraphDecay, minActivation: cfg.MinActivation, maxVisited: budgetN,
	})
	if err != nil {
		return rankedList{name: "graph"}, err
	}

	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if _, ok := byID[n.unitID]; !ok {
			ids = append(ids, n.unitID)
		}
	}
	fetched, err := fs.getMany(ctx, ids)
	if err != nil {
		return rankedList{name: "graph"}, err
	}
	for _, u := range fetched {
		byID[u.ID] = u
	}

	units := make([]MemoryUnit, 0, len(nodes))
	for _, n := range nodes {
		if u, ok := byID[n.unitID]; ok {
			units = append(units, u)
		}
	}
	return rankedList{name: "graph", units: units}, nil
}

// runTemporal implements spec §4.6.4: active only when the temporal parser
// resolved an interval. Seeds are range_lookup hits (activation 1.0);
// propagation uses H=3 and retains a neighbour only if its own interval
// still overlaps the widened I' = I +/- 30 days.
func runTemporal(ctx context.Context, fs *factStore, gs *graphStore, cfg Config, bankID string, types []FactType, iv Interval, budgetN int) (rankedList, error) {
	candidates, err := fs.rangeLookup(ctx, bankID, types, iv)
	if err != nil {
		return rankedList{name: "temporal"}, err
	}
	if len(candidates) == 0 {
		return rankedList{name: "temporal"}, nil
	}

	seeds := make(map[string]float64, len(candidates))
	byID := make(map[string]MemoryUnit, len(candidates))
	for _, u := range candidates {
		seeds[u.ID] = 1.0
		byID[u.ID] = u
	}

	widened := iv.Widen(cfg.TemporalWiden)
	// retain fetches and caches each newly-seen neighbour's interval on
	// demand so the overlap predicate from spec §4.6.4 gates propagation
	// itself, not just the final result set.
	retain := func(unitID string) bool {
		u, ok := byID[unitID]
		if !ok {
			fetched, err := fs.getMany(ctx, []string{unitID})
			if err != nil || len(fetched) == 0 {
				return false
			}
			u = fetched[0]
			byID[unitID] = u
		}
		if u.OccurredStart == nil || u.OccurredEnd == nil {
			return false
		}
		return widened.overlapsClosed(*u.OccurredStart, *u.OccurredEnd)
	}

	nodes, err := spreadingActivation(ctx, gs, seeds, spreadingActivationParams{
		maxHops: cfg.TemporalMaxHops, decay: cfg.GraphDecay, minActivation: cfg.MinActivation, maxVisited: budgetN, retain: retain,
	})
	if err != nil {
		return rankedList{name: "temporal"}, err
	}

	units := make([]MemoryUnit, 0, len(nodes))
	for _, n := range nodes {
		if u, ok := byID[n.unitID]; ok {
			units = append(units, u)
		}
	}
	return rankedList{name: "temporal", units: units}, nil
}

package tempr

import "sort"

// fusedEntry is one unit's RRF aggregate, tracking enough provenance to
// implement the tie-break rule from spec §4.7 (best single-list rank,
// then id).
type fusedEntry struct {
	unit        MemoryUnit
	score       float64
	bestRank    int
}

// rrfFuse implements spec §4.7: fused score = sum over lists containing u
// of 1/(k+rank_i(u)), 1-indexed ranks. Output sorted by fused score
// descending, ties broken by best single-list rank ascending then id.
// Stable under permutation of the input lists since the formula only
// depends on the multiset of (list, rank) pairs each unit appears at.
func rrfFuse(lists []rankedList, k int) []fusedEntry {
	byID := make(map[string]*fusedEntry)
	order := make([]string, 0)

	for _, list := range lists {
		for rank, u := range list.units {
			rank1 := rank + 1
			e, ok := byID[u.ID]
			if !ok {
				e = &fusedEntry{unit: u, bestRank: rank1}
				byID[u.ID] = e
				order = append(order, u.ID)
			}
			e.score += 1.0 / float64(k+rank1)
			if rank1 < e.bestRank {
				e.bestRank = rank1
			}
		}
	}

	out := make([]fusedEntry, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		if out[i].bestRank != out[j].bestRank {
			return out[i].bestRank < out[j].bestRank
		}
		return out[i].unit.ID < out[j].unit.ID
	})
	return out
}

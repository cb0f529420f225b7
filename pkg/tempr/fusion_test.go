package tempr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unit(id string) MemoryUnit { return MemoryUnit{ID: id} }

func TestRRFFuse_CombinesAcrossLists(t *testing.T) {
	lists := []rankedList{
		{name: "semantic", units: []MemoryUnit{unit("a"), unit("b"), unit("c")}},
		{name: "keyword", units: []MemoryUnit{unit("b"), unit("a")}},
	}
	fused := rrfFuse(lists, 60)
	require.Len(t, fused, 3)

	// "a" is rank 1 in semantic (1/61) and rank 2 in keyword (1/62);
	// "b" is rank 2 in semantic (1/62) and rank 1 in keyword (1/61) — same
	// pair of contributions, so a and b tie in score and the tie-break
	// (best single-list rank, then id) must decide.
	assert.InDelta(t, fused[0].score, fused[1].score, 1e-9)
	assert.Equal(t, "a", fused[0].unit.ID)
	assert.Equal(t, "b", fused[1].unit.ID)
	assert.Equal(t, "c", fused[2].unit.ID)
}

func TestRRFFuse_AbsentFromListContributesZero(t *testing.T) {
	lists := []rankedList{
		{name: "semantic", units: []MemoryUnit{unit("a")}},
	}
	fused := rrfFuse(lists, 60)
	require.Len(t, fused, 1)
	assert.InDelta(t, 1.0/61.0, fused[0].score, 1e-9)
}

func TestRRFFuse_StableUnderPermutationOfLists(t *testing.T) {
	a := []rankedList{
		{name: "semantic", units: []MemoryUnit{unit("x"), unit("y")}},
		{name: "keyword", units: []MemoryUnit{unit("y"), unit("z")}},
		{name: "graph", units: []MemoryUnit{unit("z"), unit("x")}},
	}
	b := []rankedList{a[2], a[0], a[1]} // same multiset, different order

	fa := rrfFuse(a, 60)
	fb := rrfFuse(b, 60)
	require.Len(t, fa, len(fb))
	for i := range fa {
		assert.Equal(t, fa[i].unit.ID, fb[i].unit.ID)
		assert.InDelta(t, fa[i].score, fb[i].score, 1e-9)
	}
}

func TestRRFFuse_EmptyListsProduceEmptyResult(t *testing.T) {
	fused := rrfFuse(nil, 60)
	assert.Empty(t, fused)
}

package tempr

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tempr-dev/tempr/internal/store"
)

func TestCausalBoost(t *testing.T) {
	assert.Equal(t, 2.0, causalBoost(LinkCausal, Causes))
	assert.Equal(t, 2.0, causalBoost(LinkCausal, CausedBy))
	assert.Equal(t, 1.5, causalBoost(LinkCausal, Enables))
	assert.Equal(t, 1.5, causalBoost(LinkCausal, Prevents))
	assert.Equal(t, 1.0, causalBoost(LinkEntity, ""))
	assert.Equal(t, 1.0, causalBoost(LinkSemantic, ""))
}

func TestActivationQueueOrdering(t *testing.T) {
	q := &activationQueue{}
	q.Push(pqItem{unitID: "a", activation: 0.2})
	q.Push(pqItem{unitID: "b", activation: 0.9})
	q.Push(pqItem{unitID: "c", activation: 0.5})

	assert.Equal(t, 3, q.Len())
	// activationQueue.Less defines a max-heap (higher activation first);
	// heap.Init/Pop ordering is exercised end-to-end in
	// TestSpreadingActivation_TerminatesOnCyclicGraph below via the real heap
	// package, so this only checks the comparator's direction.
	assert.True(t, q.Less(1, 0)) // b (0.9) should sort before a (0.2)
}

// TestSpreadingActivation_TerminatesOnCyclicGraph exercises spec §8's
// "terminates for any finite graph and budget" invariant directly: a
// 3-cycle (A->B->C->A) would loop forever under a naive "keep
// propagating while activation is nonzero" walk, but accumulated-
// activation visitation (spec §9) must still halt once every node has
// been finalised.
func TestSpreadingActivation_TerminatesOnCyclicGraph(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "cycle.db")
	db, err := store.Open(ctx, dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, db.PutUnit(ctx, store.Unit{ID: id, BankID: "b1", Text: id, Embedding: []float32{1}, MentionedAt: 1, FactType: "world"}))
	}
	require.NoError(t, db.AddEdge(ctx, store.EdgeRow{ID: "e1", BankID: "b1", Src: "a", Dst: "b", LinkType: "semantic", Weight: 0.9}))
	require.NoError(t, db.AddEdge(ctx, store.EdgeRow{ID: "e2", BankID: "b1", Src: "b", Dst: "c", LinkType: "semantic", Weight: 0.9}))
	require.NoError(t, db.AddEdge(ctx, store.EdgeRow{ID: "e3", BankID: "b1", Src: "c", Dst: "a", LinkType: "semantic", Weight: 0.9}))

	gs := &graphStore{db: db}
	done := make(chan struct{})
	var nodes []activationNode
	go func() {
		nodes, err = spreadingActivation(ctx, gs, map[string]float64{"a": 1.0}, spreadingActivationParams{
			maxHops: 5, decay: 0.8, minActivation: 0.05, maxVisited: 100,
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("spreadingActivation did not terminate on a cyclic graph")
	}

	require.NoError(t, err)
	require.Len(t, nodes, 3)
	require.Equal(t, "a", nodes[0].unitID) // seed keeps the highest activation
}

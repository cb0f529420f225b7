package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tempr.db")
	s, err := Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func vec(xs ...float32) []float32 { return xs }

func TestPutUnitAndGetMany_PreservesOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	units := []Unit{
		{ID: "u1", BankID: "b1", Text: "Alice works at Google", Embedding: vec(1, 0, 0), MentionedAt: 100, FactType: "world"},
		{ID: "u2", BankID: "b1", Text: "Bob likes coffee", Embedding: vec(0, 1, 0), MentionedAt: 200, FactType: "world"},
	}
	for _, u := range units {
		require.NoError(t, s.PutUnit(ctx, u))
	}

	got, err := s.GetMany(ctx, []string{"u2", "u1", "missing"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "u2", got[0].ID)
	require.Equal(t, "u1", got[1].ID)
}

func TestVectorKNN_ExcludesObservationsAndFiltersBySimilarity(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.PutUnit(ctx, Unit{ID: "close", BankID: "b1", Text: "close match", Embedding: vec(1, 0, 0), MentionedAt: 1, FactType: "world"}))
	require.NoError(t, s.PutUnit(ctx, Unit{ID: "far", BankID: "b1", Text: "far match", Embedding: vec(0, 1, 0), MentionedAt: 1, FactType: "world"}))
	require.NoError(t, s.PutUnit(ctx, Unit{ID: "obs", BankID: "b1", Text: "an observation", Embedding: vec(1, 0, 0), MentionedAt: 1, FactType: "observation"}))

	results, err := s.VectorKNN(ctx, "b1", []string{"world", "bank", "opinion"}, vec(1, 0, 0), 10, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "close", results[0].Unit.ID)
}

func TestRangeLookup_HalfOpenOverlap(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	start1, end1 := int64(1000), int64(2000)
	start2, end2 := int64(3000), int64(4000)
	require.NoError(t, s.PutUnit(ctx, Unit{ID: "inside", BankID: "b1", Text: "inside", Embedding: vec(1), MentionedAt: 1, FactType: "world", OccurredStart: &start1, OccurredEnd: &end1}))
	require.NoError(t, s.PutUnit(ctx, Unit{ID: "outside", BankID: "b1", Text: "outside", Embedding: vec(1), MentionedAt: 1, FactType: "world", OccurredStart: &start2, OccurredEnd: &end2}))

	// Query interval [1500, 2500): overlaps "inside" ([1000,2000)) since
	// 1000 < 2500 and 1500 < 2000, but not "outside".
	results, err := s.RangeLookup(ctx, "b1", []string{"world"}, 1500, 2500)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "inside", results[0].ID)
}

func TestPutDocument_ReplacesPriorUnitsOnReingest(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.PutDocument(ctx, "doc1", "b1"))
	require.NoError(t, s.PutUnit(ctx, Unit{ID: "u1", BankID: "b1", Text: "first pass", Embedding: vec(1), MentionedAt: 1, FactType: "world", DocumentID: "doc1"}))

	got, err := s.GetMany(ctx, []string{"u1"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	// Re-ingest: putting the document again cascades away its prior units.
	require.NoError(t, s.PutDocument(ctx, "doc1", "b1"))
	got, err = s.GetMany(ctx, []string{"u1"})
	require.NoError(t, err)
	require.Empty(t, got)
}

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func seedUnits(t *testing.T, s *Store, ids ...string) {
	t.Helper()
	ctx := context.Background()
	for _, id := range ids {
		require.NoError(t, s.PutUnit(ctx, Unit{ID: id, BankID: "b1", Text: id, Embedding: vec(1), MentionedAt: 1, FactType: "world"}))
	}
}

func TestAddEdgeAndNeighbors(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedUnits(t, s, "a", "b", "c")

	require.NoError(t, s.AddEdge(ctx, EdgeRow{ID: "e1", BankID: "b1", Src: "a", Dst: "b", LinkType: "semantic", Weight: 0.8}))
	require.NoError(t, s.AddEdge(ctx, EdgeRow{ID: "e2", BankID: "b1", Src: "a", Dst: "c", LinkType: "causal", Weight: 1.0, CausalKind: "causes"}))

	neighbors, err := s.Neighbors(ctx, "a", nil)
	require.NoError(t, err)
	require.Len(t, neighbors, 2)

	causalOnly, err := s.Neighbors(ctx, "a", []string{"causal"})
	require.NoError(t, err)
	require.Len(t, causalOnly, 1)
	require.Equal(t, "c", causalOnly[0].Dst)
	require.Equal(t, "causes", causalOnly[0].CausalKind)
}

func TestRemoveEdgesFor(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedUnits(t, s, "a", "b")
	require.NoError(t, s.AddEdge(ctx, EdgeRow{ID: "e1", BankID: "b1", Src: "a", Dst: "b", LinkType: "semantic", Weight: 0.8}))

	require.NoError(t, s.RemoveEdgesFor(ctx, "a"))
	neighbors, err := s.Neighbors(ctx, "a", nil)
	require.NoError(t, err)
	require.Empty(t, neighbors)
}

func TestDeleteUnitCascadesEdgesAndLinks(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedUnits(t, s, "a", "b")
	require.NoError(t, s.AddEdge(ctx, EdgeRow{ID: "e1", BankID: "b1", Src: "a", Dst: "b", LinkType: "semantic", Weight: 0.8}))
	require.NoError(t, s.PutEntity(ctx, EntityRow{ID: "ent1", BankID: "b1", CanonicalName: "Alice", EntityType: "PERSON", Aliases: []string{}}))
	require.NoError(t, s.LinkEntity(ctx, "a", "ent1"))

	require.NoError(t, s.DeleteUnit(ctx, "a"))

	neighbors, err := s.Neighbors(ctx, "a", nil)
	require.NoError(t, err)
	require.Empty(t, neighbors)

	mentioning, err := s.UnitsMentioning(ctx, "ent1")
	require.NoError(t, err)
	require.Empty(t, mentioning)
}

func TestEntityResolution_CandidatesByBankAndFoldedLookup(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.PutEntity(ctx, EntityRow{ID: "ent1", BankID: "b1", CanonicalName: "Google", EntityType: "ORG", Aliases: []string{}}))

	found, ok, err := s.GetEntityByFoldedName(ctx, "b1", "google")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "ent1", found.ID)

	require.NoError(t, s.AddAlias(ctx, "ent1", "Alphabet"))
	candidates, err := s.CandidatesByBank(ctx, "b1", "ORG")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Contains(t, candidates[0].Aliases, "Alphabet")
}

package tempr

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// stubExtractor ignores the content and returns the given facts, enough to
// drive Retain in tests without a real LLM.
func stubExtractor(facts ...ExtractedFact) FactExtractorFn {
	return func(ctx context.Context, bankID, content, context string) (ExtractResult, error) {
		return ExtractResult{Facts: facts}, nil
	}
}

func newTestEngine(t *testing.T, hooks Hooks) *Engine {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tempr.db")
	e, err := New(ctx, path, HashEmbedder{}, hooks)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestRetainThenRecall_DirectHit(t *testing.T) {
	// Scenario 1 from spec §8: a single matching unit comes back as the
	// sole result with weight >= 0.8 when nothing else competes for rank.
	ctx := context.Background()
	e := newTestEngine(t, Hooks{
		FactExtractor: stubExtractor(ExtractedFact{Text: "Alice works at Google in Mountain View", FactType: WorldFact}),
	})

	retained, err := e.Retain(ctx, RetainRequest{BankID: "b1", Content: "Alice works at Google in Mountain View"})
	require.NoError(t, err)
	require.Len(t, retained.UnitIDs, 1)

	resp, err := e.Recall(ctx, RecallRequest{BankID: "b1", Query: "Where does Alice work?", Budget: BudgetLow, MaxTokens: 1000})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	require.Equal(t, retained.UnitIDs[0], resp.Results[0].ID)
	require.GreaterOrEqual(t, resp.Results[0].Weight, 0.8)
}

func TestRecall_DegradedRerankStillSucceeds(t *testing.T) {
	// Scenario 6 from spec §8: a failing reranker degrades to RRF order
	// with a warning, not a failed call.
	ctx := context.Background()
	failingRerank := func(ctx context.Context, query string, texts []string) ([]float64, error) {
		return nil, CoreUnavailablef("cross-encoder down")
	}
	e := newTestEngine(t, Hooks{
		FactExtractor: stubExtractor(ExtractedFact{Text: "Deployed the Foobar-9000 to prod on Tuesday", FactType: WorldFact}),
		CrossEncoder:  failingRerank,
	})

	_, err := e.Retain(ctx, RetainRequest{BankID: "b1", Content: "Deployed the Foobar-9000 to prod on Tuesday"})
	require.NoError(t, err)

	resp, err := e.Recall(ctx, RecallRequest{BankID: "b1", Query: "Foobar-9000", Budget: BudgetLow, MaxTokens: 1000})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	require.Contains(t, resp.Warnings, WarnRerankUnavailable)
}

func TestRecall_RequiresBankIDAndQuery(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Hooks{})

	_, err := e.Recall(ctx, RecallRequest{Query: "x"})
	require.Error(t, err)
	require.True(t, IsInvalid(err))

	_, err = e.Recall(ctx, RecallRequest{BankID: "b1"})
	require.Error(t, err)
	require.True(t, IsInvalid(err))
}

func TestRetain_RejectsEmptyContent(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Hooks{FactExtractor: stubExtractor()})

	_, err := e.Retain(ctx, RetainRequest{BankID: "b1", Content: "   "})
	require.Error(t, err)
	require.True(t, IsInvalid(err))
}

func TestRetainThenRecall_MultiHopViaEntity(t *testing.T) {
	// Scenario 2 from spec §8: A="Alice works at Google", B="Google's
	// office in Mountain View has a gym", linked via a shared "Google"
	// entity. Querying for A's exact text guarantees A is the top direct
	// hit (the hash embedder and keyword index both see an exact match);
	// B is reached from A by the graph strategy over the entity edge, and
	// the keyword strategy also matches it on the term "google".
	ctx := context.Background()
	var facts []ExtractedFact
	e := newTestEngine(t, Hooks{FactExtractor: func(ctx context.Context, bankID, content, context string) (ExtractResult, error) {
		return ExtractResult{Facts: facts}, nil
	}})

	facts = []ExtractedFact{{
		Text: "Alice works at Google", FactType: WorldFact,
		Mentions: []EntityMention{{Text: "Google", Type: EntityOrg}},
	}}
	_, err := e.Retain(ctx, RetainRequest{BankID: "b1", Content: "Alice works at Google"})
	require.NoError(t, err)

	facts = []ExtractedFact{{
		Text: "Google's office in Mountain View has a gym", FactType: WorldFact,
		Mentions: []EntityMention{{Text: "Google", Type: EntityOrg}},
	}}
	_, err = e.Retain(ctx, RetainRequest{BankID: "b1", Content: "Google's office in Mountain View has a gym"})
	require.NoError(t, err)

	resp, err := e.Recall(ctx, RecallRequest{BankID: "b1", Query: "Alice works at Google", Budget: BudgetLow, MaxTokens: 1000})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	require.Contains(t, resp.Results[0].Text, "Alice works at Google")
}

func TestRetainThenRecall_TemporalFilter(t *testing.T) {
	// Scenario 3 from spec §8: only the unit whose occurred range falls
	// inside "last June" (now=2024-02-01) comes back.
	ctx := context.Background()
	yosemiteStart := time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)
	yosemiteEnd := yosemiteStart.Add(24 * time.Hour)
	seattleStart := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	seattleEnd := seattleStart.Add(24 * time.Hour)

	var facts []ExtractedFact
	e := newTestEngine(t, Hooks{FactExtractor: func(ctx context.Context, bankID, content, context string) (ExtractResult, error) {
		return ExtractResult{Facts: facts}, nil
	}})

	facts = []ExtractedFact{{Text: "Went to Yosemite", FactType: WorldFact, OccurredStart: &yosemiteStart, OccurredEnd: &yosemiteEnd}}
	_, err := e.Retain(ctx, RetainRequest{BankID: "b1", Content: "Went to Yosemite"})
	require.NoError(t, err)

	facts = []ExtractedFact{{Text: "Moved to Seattle", FactType: WorldFact, OccurredStart: &seattleStart, OccurredEnd: &seattleEnd}}
	_, err = e.Retain(ctx, RetainRequest{BankID: "b1", Content: "Moved to Seattle"})
	require.NoError(t, err)

	// An absolute ISO range stands in for "last June" here since Recall
	// resolves the temporal expression against the real wall clock and a
	// relative phrase would not deterministically mean June 2023 on every
	// test run.
	resp, err := e.Recall(ctx, RecallRequest{BankID: "b1", Query: "What did I do 2023-06-01 to 2023-06-30?", Budget: BudgetLow, MaxTokens: 1000})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	require.Contains(t, resp.Results[0].Text, "Yosemite")
}

func TestRetainThenRecall_KeywordOverSemantic(t *testing.T) {
	// Scenario 4 from spec §8: an exact keyword hit ranks first even
	// though the hash embedder gives it no real semantic edge over noise.
	ctx := context.Background()
	var facts []ExtractedFact
	e := newTestEngine(t, Hooks{FactExtractor: func(ctx context.Context, bankID, content, context string) (ExtractResult, error) {
		return ExtractResult{Facts: facts}, nil
	}})

	for _, text := range []string{
		"Deployed the Foobar-9000 to prod on Tuesday",
		"The weather was nice on Wednesday",
		"Lunch was sandwiches again",
	} {
		facts = []ExtractedFact{{Text: text, FactType: WorldFact}}
		_, err := e.Retain(ctx, RetainRequest{BankID: "b1", Content: text})
		require.NoError(t, err)
	}

	resp, err := e.Recall(ctx, RecallRequest{BankID: "b1", Query: "Foobar-9000", Budget: BudgetLow, MaxTokens: 1000})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	require.Contains(t, resp.Results[0].Text, "Foobar-9000")
}

func TestRetainThenRecall_BudgetTruncation(t *testing.T) {
	// Scenario 5 from spec §8: ten 100-token units matched, max_tokens=350
	// keeps exactly 3, in rank order.
	ctx := context.Background()
	var facts []ExtractedFact
	e := newTestEngine(t, Hooks{FactExtractor: func(ctx context.Context, bankID, content, context string) (ExtractResult, error) {
		return ExtractResult{Facts: facts}, nil
	}})

	for i := 0; i < 10; i++ {
		text := hundredTokenText()
		facts = []ExtractedFact{{Text: text, FactType: WorldFact}}
		_, err := e.Retain(ctx, RetainRequest{BankID: "b1", Content: text})
		require.NoError(t, err)
	}

	resp, err := e.Recall(ctx, RecallRequest{BankID: "b1", Query: "repeated word filler content", Budget: BudgetLow, MaxTokens: 350})
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)
}

package tempr

import (
	"context"
	"time"
)

// This file is the core's only boundary to LLM and cross-encoder model
// code. tempr never calls an LLM directly; every touchpoint spec.md
// describes in prose ("LLM extraction returns...", "ask the LLM once per
// ambiguity", "Ask the LLM for 3-5 concise...") is a caller-supplied hook
// below, validated into one of this package's closed types the moment it
// returns. Grounded on the donor's pkg/hindsight/hooks.go FactExtractorFn/
// RerankerFn pattern, generalised to the four touchpoints this spec needs.

// CausalHint is an in-batch causal relationship between two facts in the
// same extraction result, referenced by index into ExtractResult.Facts.
type CausalHint struct {
	SrcIndex int
	DstIndex int
	Kind     CausalKind
}

// EntityMention is a raw (text, type) pair surfaced by extraction, not yet
// resolved to an Entity.
type EntityMention struct {
	Text string
	Type EntityType
}

// ExtractedFact is one structured fact returned by a FactExtractorFn,
// mirroring spec §4.11 step 1's field list exactly.
type ExtractedFact struct {
	Text            string
	FactType        FactType
	ConfidenceScore *float64
	OccurredStart   *time.Time
	OccurredEnd     *time.Time
	Mentions        []EntityMention
}

// ExtractResult is the full output of one FactExtractorFn call.
type ExtractResult struct {
	Facts       []ExtractedFact
	CausalHints []CausalHint
}

// FactExtractorFn turns raw content into structured facts. The core
// validates the result at the boundary (non-empty text, valid fact_type,
// confidence_score iff opinion) before anything downstream sees it.
type FactExtractorFn func(ctx context.Context, bankID, content, context string) (ExtractResult, error)

// AmbiguityResolverFn is consulted when entity resolution finds more than
// one plausible existing-entity match for a mention (spec §4.11 step 4).
// It returns the chosen entity id, or "" to force creation of a new entity.
type AmbiguityResolverFn func(ctx context.Context, mention EntityMention, factText string, candidates []Entity) (string, error)

// ObservationSynthesizerFn asks the LLM for 3-5 concise objective
// statements about an entity (spec §4.12 step 2). personality/CARA is
// never consulted here or anywhere in this package.
type ObservationSynthesizerFn func(ctx context.Context, entity Entity, units []MemoryUnit) ([]string, error)

// CrossEncoderFn scores (query, candidate) pairs jointly. Input ordering
// is preserved in the output slice; the caller (rerank in rerank.go) sorts
// by score descending. Grounded on the donor's RerankerFn / core.Reranker.
type CrossEncoderFn func(ctx context.Context, query string, texts []string) ([]float64, error)

// Hooks bundles every LLM/model touchpoint an Engine needs. A nil field
// degrades gracefully per spec §7's fail-open-on-reranking / fail-loud-
// on-write policy: a nil CrossEncoder skips reranking with a warning; a
// nil FactExtractor makes retain return Invalid; a nil
// ObservationSynthesizer makes the worker skip synthesis for that task
// silently (not fatal, since observation synthesis is a best-effort
// background job).
type Hooks struct {
	FactExtractor         FactExtractorFn
	AmbiguityResolver     AmbiguityResolverFn
	ObservationSynthesizer ObservationSynthesizerFn
	CrossEncoder          CrossEncoderFn
}

func (fact *ExtractedFact) validate() error {
	if fact.Text == "" {
		return Invalidf("extracted fact: text is required")
	}
	if !fact.FactType.Valid() {
		return Invalidf("extracted fact: unknown fact_type %q", fact.FactType)
	}
	isOpinion := fact.FactType == OpinionFact
	hasConfidence := fact.ConfidenceScore != nil
	if isOpinion != hasConfidence {
		return Invalidf("extracted fact: confidence_score required iff fact_type=opinion")
	}
	if fact.FactType == ObservationFact {
		return Invalidf("extracted fact: extraction may not produce observation facts directly")
	}
	return nil
}

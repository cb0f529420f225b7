package tempr

import (
	"log/slog"
	"time"
)

// Config holds the tunables for an Engine, following the donor's
// Config/DefaultConfig pattern (pkg/hindsight.Config) combined with the
// functional-Option style used by glyphoxa's hotctx.Assembler.
type Config struct {
	// RRFConstant is the k in RRF's 1/(k+rank) formula. Spec fixes this at 60.
	RRFConstant int

	// MinActivation is the graph strategy's termination threshold, left
	// configurable per spec §9's open question.
	MinActivation float64

	// GraphDecay is γ in the spreading-activation propagation formula.
	GraphDecay float64

	// GraphMaxHops / TemporalMaxHops bound spreading activation depth.
	GraphMaxHops    int
	TemporalMaxHops int

	// TemporalWiden is the ± window added to an active temporal interval
	// before a spreading-activation neighbour is retained (spec §4.6.4).
	TemporalWiden time.Duration

	// Timeouts, defaults per spec §5. Recall applies RerankTimeout to the
	// context of the cross-encoder call. The other timeout fields and
	// RerankBatchSize are not read by the Engine: strategies and embedding
	// run under the caller's ctx only, and all rerank candidates go to the
	// cross-encoder in one call.
	EmbedTimeout         time.Duration
	VectorKNNTimeout     time.Duration
	KeywordTimeout       time.Duration
	GraphTimeout         time.Duration
	TemporalParseTimeout time.Duration
	RerankTimeout        time.Duration
	RerankBatchSize      int

	// ObservationWorkers is the bounded pool size for the async executor.
	ObservationWorkers int

	// MaxSemanticEdgesPerUnit / MaxTemporalEdgesPerUnit cap edge fan-out
	// during ingest (spec §4.11 step 5).
	MaxSemanticEdgesPerUnit int
	MaxTemporalEdgesPerUnit int

	// EntitySimilarityThreshold is the Levenshtein-ratio bar for matching
	// an entity mention to an existing entity (spec §4.11 step 4).
	EntitySimilarityThreshold float64

	// DefaultMaxTokens / DefaultMaxEntityTokens / DefaultBudget mirror the
	// recall interface defaults from spec §6.
	DefaultMaxTokens       int
	DefaultMaxEntityTokens int
	DefaultBudget          Budget

	Logger *slog.Logger
}

// DefaultConfig returns the defaults specified throughout spec.md §5 and §6.
func DefaultConfig() Config {
	return Config{
		RRFConstant:               60,
		MinActivation:             0.05,
		GraphDecay:                0.8,
		GraphMaxHops:              5,
		TemporalMaxHops:           3,
		TemporalWiden:             30 * 24 * time.Hour,
		EmbedTimeout:              2 * time.Second,
		VectorKNNTimeout:          500 * time.Millisecond,
		KeywordTimeout:            500 * time.Millisecond,
		GraphTimeout:              time.Second,
		TemporalParseTimeout:      100 * time.Millisecond,
		RerankTimeout:             800 * time.Millisecond,
		RerankBatchSize:           50,
		ObservationWorkers:        4,
		MaxSemanticEdgesPerUnit:   5,
		MaxTemporalEdgesPerUnit:   10,
		EntitySimilarityThreshold: 0.85,
		DefaultMaxTokens:          4096,
		DefaultMaxEntityTokens:    500,
		DefaultBudget:             BudgetMid,
		Logger:                    slog.Default(),
	}
}

// Option mutates a Config at construction time.
type Option func(*Config)

// WithLogger overrides the structured logger used for strategy-failure
// warnings and observation-worker errors. Skipped reranks are reported
// through RecallResponse.Warnings and TraceInfo.RerankSkipped, not logged;
// access_count update failures are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithMinActivation overrides the graph strategy's termination threshold.
func WithMinActivation(v float64) Option {
	return func(c *Config) { c.MinActivation = v }
}

// WithObservationWorkers overrides the async executor's pool size.
func WithObservationWorkers(n int) Option {
	return func(c *Config) { c.ObservationWorkers = n }
}

// WithEntitySimilarityThreshold overrides the entity-resolution match bar.
func WithEntitySimilarityThreshold(v float64) Option {
	return func(c *Config) { c.EntitySimilarityThreshold = v }
}

// WithRerankTimeout overrides the deadline Recall sets on the context of
// the cross-encoder call.
func WithRerankTimeout(d time.Duration) Option {
	return func(c *Config) { c.RerankTimeout = d }
}

func newConfig(opts ...Option) Config {
	c := DefaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

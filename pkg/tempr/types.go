package tempr

import "time"

// FactType is the epistemic category of a MemoryUnit.
type FactType string

const (
	WorldFact       FactType = "world"
	BankFact        FactType = "bank"
	OpinionFact     FactType = "opinion"
	ObservationFact FactType = "observation"
)

// Valid reports whether f is one of the four recognised fact types.
func (f FactType) Valid() bool {
	switch f {
	case WorldFact, BankFact, OpinionFact, ObservationFact:
		return true
	}
	return false
}

// DefaultFactTypes is the default type set recall() searches per spec §6:
// everything except observations, which are never searched, only used for
// optional response augmentation.
func DefaultFactTypes() []FactType {
	return []FactType{WorldFact, BankFact, OpinionFact}
}

// EntityType classifies an Entity's referent.
type EntityType string

const (
	EntityPerson   EntityType = "PERSON"
	EntityOrg      EntityType = "ORG"
	EntityLocation EntityType = "LOCATION"
	EntityProduct  EntityType = "PRODUCT"
	EntityConcept  EntityType = "CONCEPT"
	EntityOther    EntityType = "OTHER"
)

// LinkType is the edge kind in the memory graph.
type LinkType string

const (
	LinkTemporal LinkType = "temporal"
	LinkSemantic LinkType = "semantic"
	LinkEntity   LinkType = "entity"
	LinkCausal   LinkType = "causal"
)

// CausalKind refines a causal edge's semantics.
type CausalKind string

const (
	Causes    CausalKind = "causes"
	CausedBy  CausalKind = "caused_by"
	Enables   CausalKind = "enables"
	Prevents  CausalKind = "prevents"
)

// MemoryUnit is an atomic, self-contained narrative fact. See spec §3.
type MemoryUnit struct {
	ID       string
	BankID   string
	Text     string
	Embedding []float32

	// OccurredStart/OccurredEnd bound the closed interval during which the
	// fact was true in the world. Both are optional but, when both are
	// set, OccurredStart must not be after OccurredEnd.
	OccurredStart *time.Time
	OccurredEnd   *time.Time

	// MentionedAt is wall-clock time when the fact was learned (ingest time).
	MentionedAt time.Time

	Context  string
	FactType FactType

	// ConfidenceScore is required when FactType == OpinionFact and must be
	// absent (nil) otherwise.
	ConfidenceScore *float64

	// AccessCount is bumped (best-effort) on every retrieval hit.
	AccessCount int64

	// DocumentID associates this unit with the Document that produced it,
	// if any. Empty when the unit was retained without a document.
	DocumentID string
}

// EventDate is a read-only alias of OccurredStart, per spec §9's Open
// Questions: the source's separate event_date field is treated as
// synonymous on output rather than independently meaningful.
func (m *MemoryUnit) EventDate() *time.Time { return m.OccurredStart }

// Validate checks the MemoryUnit invariants from spec §3.
func (m *MemoryUnit) Validate() error {
	if m.Text == "" {
		return Invalidf("memory unit: text is required")
	}
	if len(m.Embedding) == 0 {
		return Invalidf("memory unit: embedding is required")
	}
	if m.OccurredStart != nil && m.OccurredEnd != nil && m.OccurredStart.After(*m.OccurredEnd) {
		return Invalidf("memory unit: occurred_start must not be after occurred_end")
	}
	if !m.FactType.Valid() {
		return Invalidf("memory unit: unknown fact_type %q", m.FactType)
	}
	isOpinion := m.FactType == OpinionFact
	hasConfidence := m.ConfidenceScore != nil
	if isOpinion && !hasConfidence {
		return Invalidf("memory unit: opinion facts require confidence_score")
	}
	if !isOpinion && hasConfidence {
		return Invalidf("memory unit: confidence_score is only valid for opinion facts")
	}
	if hasConfidence && (*m.ConfidenceScore < 0 || *m.ConfidenceScore > 1) {
		return Invalidf("memory unit: confidence_score must be in [0,1]")
	}
	return nil
}

// Entity is a canonical identity referenced by one or more memory units.
type Entity struct {
	ID            string
	BankID        string
	CanonicalName string
	EntityType    EntityType
	Aliases       []string
}

// Edge is a typed, weighted, directed edge between two MemoryUnits.
type Edge struct {
	ID         string
	BankID     string
	Src        string
	Dst        string
	LinkType   LinkType
	Weight     float64
	CausalKind CausalKind // only set when LinkType == LinkCausal
}

// Validate enforces the per-type weight invariants from spec §3.
func (e *Edge) Validate() error {
	if e.Src == e.Dst {
		return Invalidf("edge: src and dst must be distinct")
	}
	switch e.LinkType {
	case LinkEntity:
		if e.Weight != 1.0 {
			return Invalidf("edge: entity edges must have weight 1.0")
		}
	case LinkSemantic:
		if e.Weight < 0.7 || e.Weight > 1.0 {
			return Invalidf("edge: semantic edges must have weight >= 0.7")
		}
	case LinkTemporal:
		if e.Weight < 0.3 || e.Weight > 1.0 {
			return Invalidf("edge: temporal edges must have weight >= 0.3")
		}
	case LinkCausal:
		if e.Weight < 0 || e.Weight > 1 {
			return Invalidf("edge: causal edge weight must be in [0,1]")
		}
		switch e.CausalKind {
		case Causes, CausedBy, Enables, Prevents:
		default:
			return Invalidf("edge: causal edges require a causal_kind")
		}
	default:
		return Invalidf("edge: unknown link_type %q", e.LinkType)
	}
	return nil
}

// Document groups ingested memories by source. Upserting a document with
// an existing id replaces (cascade-deletes) its prior memories.
type Document struct {
	ID     string
	BankID string
}

// Interval is a half-open time range: [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// overlapsClosed reports whether the closed interval [start, end] overlaps i,
// using the half-open overlap predicate from spec §4.4:
// unit.start < i.end && i.start < unit.end.
func (i Interval) overlapsClosed(start, end time.Time) bool {
	return start.Before(i.End) && i.Start.Before(end)
}

// Widen returns a new interval expanded by d on both sides.
func (i Interval) Widen(d time.Duration) Interval {
	return Interval{Start: i.Start.Add(-d), End: i.End.Add(d)}
}

// Budget is the recall-time node/recall scale knob from spec §4.10.
type Budget string

const (
	BudgetLow  Budget = "low"
	BudgetMid  Budget = "mid"
	BudgetHigh Budget = "high"
)

// VisitedNodes maps a Budget to the graph strategy's max-visited-node
// count, per spec §4.10's budget-to-scale mapping.
func (b Budget) VisitedNodes() int {
	switch b {
	case BudgetLow:
		return 100
	case BudgetHigh:
		return 600
	default:
		return 300
	}
}

// ResultItem is one ranked, reranked, budget-accepted recall result.
type ResultItem struct {
	ID        string
	Text      string
	Context   string
	EventDate *time.Time
	Weight    float64
	FactType  FactType
}

// EntityObservation bundles an entity with its current observation
// statements, for optional response augmentation.
type EntityObservation struct {
	ID           string
	Name         string
	Type         EntityType
	Observations []string
}

// RecallRequest is the input to Recall.
type RecallRequest struct {
	BankID           string
	Query            string
	Types            []FactType
	Budget           Budget
	MaxTokens        int
	Trace            bool
	IncludeEntities  bool
	MaxEntityTokens  int
}

// TraceInfo reports per-strategy diagnostics when RecallRequest.Trace is set.
type TraceInfo struct {
	StrategyCounts  map[string]int
	StrategyErrors  map[string]string
	RerankSkipped   bool
	TemporalActive  bool
}

// RecallResponse is the output of Recall.
type RecallResponse struct {
	Results  []ResultItem
	Entities []EntityObservation
	Trace    *TraceInfo
	Warnings []string
}

// OperationState is the lifecycle state of an async Retain call (spec §6).
type OperationState string

const (
	OperationPending   OperationState = "pending"
	OperationRunning   OperationState = "running"
	OperationCompleted OperationState = "completed"
	OperationFailed    OperationState = "failed"
)

// OperationStatus is the result of operation_status(operation_id): spec §6
// says only that status must be queryable, not its exact shape, so this
// mirrors RetainResponse's fields directly once the operation finishes.
type OperationStatus struct {
	ID      string
	State   OperationState
	UnitIDs []string
	Err     string
}

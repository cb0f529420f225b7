package tempr

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RetainRequest is the input to Retain, mirroring the retain interface
// from spec §6.
type RetainRequest struct {
	BankID     string
	Content    string
	Context    string
	DocumentID string
	Timestamp  time.Time

	// Async, when true, makes Retain return immediately with an
	// OperationID instead of running the pipeline inline; the result is
	// then queryable via Engine.OperationStatus (spec §6).
	Async bool
}

// RetainResponse is the output of Retain. Exactly one of OperationID
// (async=true) or UnitIDs (async=false, or omitted) is meaningful per
// call, matching spec §6's `{ operation_id?, unit_ids: [id] }`.
type RetainResponse struct {
	OperationID string
	UnitIDs     []string
}

// Retain implements the ingest pipeline from spec §4.11. When
// req.Async is set, the pipeline runs in the background on a detached
// context (grounded on the executor's own fire-and-forget pattern in
// executor.go, since the caller's ctx may be cancelled long before a
// slow extraction/embedding pipeline finishes) and Retain returns a
// trackable operation id immediately; poll Engine.OperationStatus for
// the eventual unit ids or failure.
func (e *Engine) Retain(ctx context.Context, req RetainRequest) (RetainResponse, error) {
	if req.BankID == "" {
		return RetainResponse{}, Invalidf("retain: bank_id is required")
	}
	if strings.TrimSpace(req.Content) == "" {
		return RetainResponse{}, Invalidf("retain: content must be non-empty")
	}
	if e.hooks.FactExtractor == nil {
		return RetainResponse{}, Invalidf("retain: no fact extractor hook configured")
	}

	if req.Async {
		opID := uuid.NewString()
		e.operations.start(opID)
		go func() {
			resp, err := e.retainSync(context.Background(), req)
			if err != nil {
				e.operations.fail(opID, err)
				return
			}
			e.operations.complete(opID, resp.UnitIDs)
		}()
		return RetainResponse{OperationID: opID}, nil
	}

	return e.retainSync(ctx, req)
}

// retainSync is the synchronous body of the ingest pipeline; Retain
// either runs it inline or hands it to a background goroutine.
func (e *Engine) retainSync(ctx context.Context, req RetainRequest) (RetainResponse, error) {
	now := req.Timestamp
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if req.DocumentID != "" {
		if err := e.fact.putDocument(ctx, req.DocumentID, req.BankID); err != nil {
			return RetainResponse{}, err
		}
	}

	// Step 1: LLM extraction.
	extracted, err := e.hooks.FactExtractor(ctx, req.BankID, req.Content, req.Context)
	if err != nil {
		return RetainResponse{}, LlmUnavailablef("retain: extract facts")
	}
	for i := range extracted.Facts {
		if err := extracted.Facts[i].validate(); err != nil {
			return RetainResponse{}, err
		}
	}
	if len(extracted.Facts) == 0 {
		return RetainResponse{UnitIDs: nil}, nil
	}

	// Step 2: embed all fact texts in one batch.
	texts := make([]string, len(extracted.Facts))
	for i, f := range extracted.Facts {
		texts[i] = f.Text
	}
	vectors, err := e.embed.Embed(ctx, texts)
	if err != nil || len(vectors) != len(texts) {
		return RetainResponse{}, EmbedUnavailablef("retain: embed facts")
	}

	// Step 3: persist fact units.
	units := make([]MemoryUnit, len(extracted.Facts))
	for i, f := range extracted.Facts {
		units[i] = MemoryUnit{
			ID: uuid.NewString(), BankID: req.BankID, Text: f.Text, Embedding: vectors[i],
			OccurredStart: f.OccurredStart, OccurredEnd: f.OccurredEnd, MentionedAt: now,
			Context: req.Context, FactType: f.FactType, ConfidenceScore: f.ConfidenceScore,
			DocumentID: req.DocumentID,
		}
		if err := e.fact.put(ctx, units[i]); err != nil {
			return RetainResponse{}, err
		}
	}

	// Step 4: entity resolution.
	mentionEntities := make([][]string, len(units)) // per-unit resolved entity ids
	for i, f := range extracted.Facts {
		for _, mention := range f.Mentions {
			entityID, err := e.resolveEntity(ctx, req.BankID, mention, f.Text)
			if err != nil {
				return RetainResponse{}, err
			}
			mentionEntities[i] = append(mentionEntities[i], entityID)
			if err := e.ent.link(ctx, units[i].ID, entityID); err != nil {
				return RetainResponse{}, err
			}
		}
	}

	// Step 5: edges.
	if err := e.buildEntityEdges(ctx, req.BankID, units, mentionEntities); err != nil {
		return RetainResponse{}, err
	}
	if err := e.buildSemanticEdges(ctx, req.BankID, units); err != nil {
		return RetainResponse{}, err
	}
	if err := e.buildTemporalEdges(ctx, req.BankID, units); err != nil {
		return RetainResponse{}, err
	}
	if err := e.buildCausalEdges(ctx, req.BankID, units, extracted.CausalHints); err != nil {
		return RetainResponse{}, err
	}

	// Step 6: enqueue ObservationRegenerate per distinct entity, deduped
	// within this call.
	seen := make(map[string]bool)
	for _, ids := range mentionEntities {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				e.executor.Enqueue(req.BankID, id)
			}
		}
	}

	unitIDs := make([]string, len(units))
	for i, u := range units {
		unitIDs[i] = u.ID
	}
	return RetainResponse{UnitIDs: unitIDs}, nil
}

// resolveEntity implements spec §4.11 step 4: look up candidates by
// normalised name/alias; if several pass the threshold, ask the
// AmbiguityResolver hook once; create a new entity if none pass.
func (e *Engine) resolveEntity(ctx context.Context, bankID string, mention EntityMention, factText string) (string, error) {
	candidates, err := e.ent.candidates(ctx, bankID, mention.Text, mention.Type)
	if err != nil {
		return "", err
	}
	switch len(candidates) {
	case 0:
		created, err := e.ent.create(ctx, bankID, mention.Text, mention.Type)
		if err != nil {
			return "", err
		}
		return created.ID, nil
	case 1:
		if !strings.EqualFold(candidates[0].CanonicalName, mention.Text) {
			_ = e.ent.addAlias(ctx, candidates[0].ID, mention.Text)
		}
		return candidates[0].ID, nil
	default:
		if e.hooks.AmbiguityResolver == nil {
			// Fail-open to the best-ranked candidate rather than blocking
			// ingest entirely when no resolver hook is configured.
			return candidates[0].ID, nil
		}
		chosen, err := e.hooks.AmbiguityResolver(ctx, mention, factText, candidates)
		if err != nil {
			return "", LlmUnavailablef("retain: resolve entity ambiguity for %q", mention.Text)
		}
		if chosen == "" {
			created, err := e.ent.create(ctx, bankID, mention.Text, mention.Type)
			if err != nil {
				return "", err
			}
			return created.ID, nil
		}
		return chosen, nil
	}
}

// buildEntityEdges implements spec §4.11 step 5's entity edges: weight
// 1.0, bidirectional, for every pair of newly-stored units sharing a
// resolved entity and for each new unit paired with each existing unit
// mentioning that entity.
func (e *Engine) buildEntityEdges(ctx context.Context, bankID string, units []MemoryUnit, mentionEntities [][]string) error {
	entityToNewUnits := make(map[string][]string)
	for i, ids := range mentionEntities {
		for _, eid := range ids {
			entityToNewUnits[eid] = append(entityToNewUnits[eid], units[i].ID)
		}
	}

	linked := make(map[string]bool) // unordered pair key, avoid duplicate edges
	pairKey := func(a, b string) string {
		if a < b {
			return a + "|" + b
		}
		return b + "|" + a
	}

	for eid, newUnitIDs := range entityToNewUnits {
		for i := 0; i < len(newUnitIDs); i++ {
			for j := i + 1; j < len(newUnitIDs); j++ {
				key := pairKey(newUnitIDs[i], newUnitIDs[j])
				if linked[key] {
					continue
				}
				linked[key] = true
				if err := e.graph.addBidirectionalEdge(ctx, Edge{BankID: bankID, Src: newUnitIDs[i], Dst: newUnitIDs[j], LinkType: LinkEntity, Weight: 1.0}); err != nil {
					return err
				}
			}
		}
		existing, err := e.graph.unitsMentioning(ctx, eid)
		if err != nil {
			return err
		}
		newSet := make(map[string]bool, len(newUnitIDs))
		for _, id := range newUnitIDs {
			newSet[id] = true
		}
		for _, existingID := range existing {
			if newSet[existingID] {
				continue // already handled above
			}
			for _, newID := range newUnitIDs {
				key := pairKey(existingID, newID)
				if linked[key] {
					continue
				}
				linked[key] = true
				if err := e.graph.addBidirectionalEdge(ctx, Edge{BankID: bankID, Src: newID, Dst: existingID, LinkType: LinkEntity, Weight: 1.0}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// buildSemanticEdges implements spec §4.11 step 5's semantic edges:
// cosine-similarity >= 0.7 neighbours via vector_knn, symmetric, capped at
// 5 new edges per unit.
func (e *Engine) buildSemanticEdges(ctx context.Context, bankID string, units []MemoryUnit) error {
	for _, u := range units {
		neighbors, err := e.fact.vectorKNN(ctx, bankID, DefaultFactTypes(), u.Embedding, e.cfg.MaxSemanticEdgesPerUnit+1, 0.7)
		if err != nil {
			return err
		}
		added := 0
		for _, n := range neighbors {
			if n.Unit.ID == u.ID || added >= e.cfg.MaxSemanticEdgesPerUnit {
				continue
			}
			// Rounding in the float32 dot product can put identical texts a
			// hair above 1.0, which Edge.Validate would reject.
			weight := n.Score
			if weight > 1.0 {
				weight = 1.0
			}
			if err := e.graph.addBidirectionalEdge(ctx, Edge{BankID: bankID, Src: u.ID, Dst: n.Unit.ID, LinkType: LinkSemantic, Weight: weight}); err != nil {
				return err
			}
			added++
		}
	}
	return nil
}

// buildTemporalEdges implements spec §4.11 step 5's temporal edges:
// connect to units mentioned within 24h, weight max(0.3, 1-delta/24h),
// capped at 10 per unit.
func (e *Engine) buildTemporalEdges(ctx context.Context, bankID string, units []MemoryUnit) error {
	const window = 24 * time.Hour
	for _, u := range units {
		near, err := e.unitsMentionedNear(ctx, bankID, u, window)
		if err != nil {
			return err
		}
		added := 0
		for _, n := range near {
			if n.ID == u.ID || added >= e.cfg.MaxTemporalEdgesPerUnit {
				continue
			}
			delta := u.MentionedAt.Sub(n.MentionedAt)
			if delta < 0 {
				delta = -delta
			}
			weight := 1 - delta.Hours()/24.0
			if weight < 0.3 {
				weight = 0.3
			}
			if err := e.graph.addEdge(ctx, Edge{BankID: bankID, Src: u.ID, Dst: n.ID, LinkType: LinkTemporal, Weight: weight}); err != nil {
				return err
			}
			added++
		}
	}
	return nil
}

// unitsMentionedNear finds units in bankID whose mentioned_at is within
// window of u.MentionedAt. range_lookup operates on occurred_start/end,
// not mentioned_at, and the storage layer has no mentioned_at query, so
// this calls vector_knn with minSim -1.0 (no similarity filter, every unit
// of the bank is scored) and k=200, then filters by |Δt| <= window. Only
// the 200 units most similar to u are considered; a unit mentioned within
// the window but outside those 200 is not returned.
func (e *Engine) unitsMentionedNear(ctx context.Context, bankID string, u MemoryUnit, window time.Duration) ([]MemoryUnit, error) {
	candidates, err := e.fact.vectorKNN(ctx, bankID, DefaultFactTypes(), u.Embedding, 200, -1.0)
	if err != nil {
		return nil, err
	}
	var out []MemoryUnit
	for _, c := range candidates {
		delta := u.MentionedAt.Sub(c.Unit.MentionedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta <= window {
			out = append(out, c.Unit)
		}
	}
	return out, nil
}

// buildCausalEdges implements spec §4.11 step 5's causal edges: directed,
// weight 1.0, from in-batch hints.
func (e *Engine) buildCausalEdges(ctx context.Context, bankID string, units []MemoryUnit, hints []CausalHint) error {
	for _, h := range hints {
		if h.SrcIndex < 0 || h.SrcIndex >= len(units) || h.DstIndex < 0 || h.DstIndex >= len(units) {
			continue
		}
		if err := e.graph.addEdge(ctx, Edge{
			BankID: bankID, Src: units[h.SrcIndex].ID, Dst: units[h.DstIndex].ID,
			LinkType: LinkCausal, Weight: 1.0, CausalKind: h.Kind,
		}); err != nil {
			return err
		}
	}
	return nil
}

// synthesizeObservations is the ObservationRegenerate(entity_id) worker
// body from spec §4.12, run by the executor's coalescing pool.
func (e *Engine) synthesizeObservations(ctx context.Context, bankID, entityID string) {
	logger := e.cfg.Logger
	if e.hooks.ObservationSynthesizer == nil {
		return // best-effort background job; nothing to do without a synthesizer
	}

	unitIDs, err := e.graph.unitsMentioning(ctx, entityID)
	if err != nil {
		logger.Error("observation synthesis: units_mentioning", "entity_id", entityID, "error", err)
		return
	}
	units, err := e.fact.getMany(ctx, unitIDs)
	if err != nil {
		logger.Error("observation synthesis: get_many", "entity_id", entityID, "error", err)
		return
	}

	var nonObservation, existingObservations []MemoryUnit
	for _, u := range units {
		if u.FactType == ObservationFact {
			existingObservations = append(existingObservations, u)
		} else {
			nonObservation = append(nonObservation, u)
		}
	}
	if len(nonObservation) == 0 {
		return
	}

	entityRows, err := e.ent.entitiesForUnits(ctx, []string{nonObservation[0].ID})
	var entity Entity
	for _, row := range entityRows {
		if row.ID == entityID {
			entity = row
		}
	}
	if entity.ID == "" {
		entity = Entity{ID: entityID, BankID: bankID}
	}

	statements, err := e.hooks.ObservationSynthesizer(ctx, entity, nonObservation)
	if err != nil {
		logger.Error("observation synthesis: synthesizer hook failed", "entity_id", entityID, "error", err)
		return
	}
	if len(statements) == 0 {
		return
	}
	if len(statements) > 5 {
		statements = statements[:5]
	}

	for _, old := range existingObservations {
		if err := e.fact.deleteUnit(ctx, old.ID); err != nil {
			logger.Error("observation synthesis: delete stale observation", "unit_id", old.ID, "error", err)
		}
	}

	now := time.Now().UTC()
	vectors, err := e.embed.Embed(ctx, statements)
	if err != nil || len(vectors) != len(statements) {
		logger.Error("observation synthesis: embed statements", "entity_id", entityID, "error", err)
		return
	}
	for i, text := range statements {
		u := MemoryUnit{ID: uuid.NewString(), BankID: bankID, Text: text, Embedding: vectors[i], MentionedAt: now, FactType: ObservationFact}
		if err := e.fact.put(ctx, u); err != nil {
			logger.Error("observation synthesis: persist observation", "entity_id", entityID, "error", err)
			continue
		}
		if err := e.ent.link(ctx, u.ID, entityID); err != nil {
			logger.Error("observation synthesis: link observation", "entity_id", entityID, "error", err)
		}
	}
}

package tempr

import (
	"context"
	"sync"
	"time"

	"github.com/tempr-dev/tempr/internal/store"
)

// Engine is the retrieval core's single entry point, bundling the fact
// store, graph store, entity store, hooks, and config the orchestrator
// needs. Grounded on the donor's hindsight.System, generalised so the
// core owns no LLM/embedding code directly (see hooks.go).
type Engine struct {
	cfg   Config
	fact  *factStore
	graph *graphStore
	ent   *entityStore
	hooks Hooks
	embed Embedder
	tok   Tokenizer

	executor   *executor
	operations *operationTracker
}

// New opens a store at dbPath and returns a ready Engine. embed supplies
// the embedding client (spec §4.1); pass tempr.HashEmbedder{} for tests.
func New(ctx context.Context, dbPath string, embed Embedder, hooks Hooks, opts ...Option) (*Engine, error) {
	db, err := store.Open(ctx, dbPath)
	if err != nil {
		return nil, CoreUnavailablef("open store")
	}
	cfg := newConfig(opts...)
	e := &Engine{
		cfg:   cfg,
		fact:  &factStore{db: db},
		graph: &graphStore{db: db},
		ent:   &entityStore{db: db, threshold: cfg.EntitySimilarityThreshold},
		hooks: hooks,
		embed: embed,
	}
	e.executor = newExecutor(cfg.ObservationWorkers, e.synthesizeObservations, cfg.Logger)
	e.operations = newOperationTracker()
	return e, nil
}

// Close releases the underlying store and stops the async executor.
func (e *Engine) Close() error {
	e.executor.stop()
	return e.fact.db.Close()
}

// OperationStatus reports the state of an async Retain call started with
// RetainRequest.Async, per spec §6's operation_status(operation_id).
func (e *Engine) OperationStatus(ctx context.Context, operationID string) (OperationStatus, error) {
	status, ok := e.operations.get(operationID)
	if !ok {
		return OperationStatus{}, NotFoundf("operation_status: unknown operation_id %q", operationID)
	}
	return status, nil
}

func applyRecallDefaults(req RecallRequest, cfg Config) RecallRequest {
	if len(req.Types) == 0 {
		req.Types = DefaultFactTypes()
	}
	if req.Budget == "" {
		req.Budget = cfg.DefaultBudget
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = cfg.DefaultMaxTokens
	}
	if req.MaxEntityTokens == 0 {
		req.MaxEntityTokens = cfg.DefaultMaxEntityTokens
	}
	return req
}

// strategyOutcome is the result of one strategy's fan-out goroutine: a
// ranked list on success, or a recorded warning on failure/timeout. This
// is NOT errgroup's fail-fast model: spec §5/§7 require every strategy to
// fail closed to the empty list independent of the others.
type strategyOutcome struct {
	name string
	list rankedList
	err  error
}

// Recall implements spec §4.10's recall(bank_id, query, fact_types,
// budget, max_tokens, include_entities) -> Result.
func (e *Engine) Recall(ctx context.Context, req RecallRequest) (RecallResponse, error) {
	if req.BankID == "" {
		return RecallResponse{}, Invalidf("recall: bank_id is required")
	}
	if req.Query == "" {
		return RecallResponse{}, Invalidf("recall: query must be non-empty")
	}
	req = applyRecallDefaults(req, e.cfg)
	if req.MaxTokens <= 0 {
		return RecallResponse{}, Invalidf("recall: max_tokens must be > 0")
	}

	budgetN := req.Budget.VisitedNodes()

	queryVecs, err := e.embed.Embed(ctx, []string{req.Query})
	if err != nil || len(queryVecs) == 0 {
		return RecallResponse{}, EmbedUnavailablef("recall: embed query")
	}
	queryVec := queryVecs[0]

	interval, temporalActive := TemporalParser{}.Parse(req.Query, time.Now().UTC())

	// Step 1+2: run the four strategies concurrently; await all with a
	// shared deadline. A strategy that fails or times out contributes the
	// empty list plus a logged warning, never an error (spec §4.10 step 2).
	names := []string{"semantic", "keyword", "graph"}
	if temporalActive {
		names = append(names, "temporal")
	}
	results := make(chan strategyOutcome, len(names))
	var wg sync.WaitGroup
	run := func(name string, fn func() (rankedList, error)) {
		defer wg.Done()
		list, err := fn()
		results <- strategyOutcome{name: name, list: list, err: err}
	}

	wg.Add(len(names))
	go run("semantic", func() (rankedList, error) { return runSemantic(ctx, e.fact, req.BankID, req.Types, queryVec, budgetN) })
	go run("keyword", func() (rankedList, error) { return runKeyword(ctx, e.fact, req.BankID, req.Types, req.Query, budgetN) })
	go run("graph", func() (rankedList, error) { return runGraph(ctx, e.fact, e.graph, e.cfg, req.BankID, req.Types, queryVec, budgetN) })
	if temporalActive {
		go run("temporal", func() (rankedList, error) {
			return runTemporal(ctx, e.fact, e.graph, e.cfg, req.BankID, req.Types, interval, budgetN)
		})
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var lists []rankedList
	var warnings []string
	trace := &TraceInfo{StrategyCounts: map[string]int{}, StrategyErrors: map[string]string{}, TemporalActive: temporalActive}
	semanticOK, keywordOK := false, false
	for outcome := range results {
		if outcome.err != nil {
			e.cfg.Logger.Warn("recall: strategy failed, contributing empty list", "strategy", outcome.name, "bank_id", req.BankID, "error", outcome.err)
			warnings = append(warnings, WarnStrategyFailed+":"+outcome.name)
			trace.StrategyErrors[outcome.name] = outcome.err.Error()
			continue
		}
		lists = append(lists, outcome.list)
		trace.StrategyCounts[outcome.name] = len(outcome.list.units)
		if outcome.name == "semantic" && len(outcome.list.units) > 0 {
			semanticOK = true
		}
		if outcome.name == "keyword" && len(outcome.list.units) > 0 {
			keywordOK = true
		}
	}

	select {
	case <-ctx.Done():
		if !semanticOK && !keywordOK {
			return RecallResponse{}, DeadlineExceededf("recall: deadline expired before semantic or keyword produced results")
		}
	default:
	}

	// Step 3: RRF-fuse.
	fused := rrfFuse(lists, e.cfg.RRFConstant)

	// Step 4: truncate to 4*budget units before reranking.
	cap4 := 4 * budgetN
	if len(fused) > cap4 {
		fused = fused[:cap4]
	}
	candidateUnits := make([]MemoryUnit, len(fused))
	for i, f := range fused {
		candidateUnits[i] = f.unit
	}

	// Step 5: rerank (fail-open per spec §7).
	rerankCtx, cancelRerank := context.WithTimeout(ctx, e.cfg.RerankTimeout)
	reranked, rerankOK := rerank(rerankCtx, e.hooks.CrossEncoder, req.Query, candidateUnits)
	cancelRerank()
	if !rerankOK {
		warnings = append(warnings, WarnRerankUnavailable)
		trace.RerankSkipped = true
	}

	// Step 6: budget-filter.
	final := budgetFilter(e.tok, reranked, req.MaxTokens)

	resp := RecallResponse{Results: final, Warnings: warnings}
	if req.Trace {
		resp.Trace = trace
	}

	ids := make([]string, len(final))
	for i, r := range final {
		ids[i] = r.ID
	}
	e.fact.bumpAccessCount(ctx, ids)

	// Step 7: include_entities.
	if req.IncludeEntities && len(ids) > 0 {
		entities, err := e.ent.entitiesForUnits(ctx, ids)
		if err == nil {
			resp.Entities = e.buildEntityObservations(ctx, req.BankID, entities, req.MaxEntityTokens)
		}
	}

	return resp, nil
}

func (e *Engine) buildEntityObservations(ctx context.Context, bankID string, entities []Entity, maxEntityTokens int) []EntityObservation {
	out := make([]EntityObservation, 0, len(entities))
	for _, ent := range entities {
		unitIDs, err := e.graph.unitsMentioning(ctx, ent.ID)
		if err != nil {
			continue
		}
		units, err := e.fact.getMany(ctx, unitIDs)
		if err != nil {
			continue
		}
		var statements []string
		sum := 0
		for _, u := range units {
			if u.FactType != ObservationFact {
				continue
			}
			cost := e.tok.Count(u.Text)
			if sum+cost > maxEntityTokens {
				break
			}
			statements = append(statements, u.Text)
			sum += cost
		}
		out = append(out, EntityObservation{ID: ent.ID, Name: ent.CanonicalName, Type: ent.EntityType, Observations: statements})
	}
	return out
}

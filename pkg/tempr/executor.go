package tempr

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// executor is the bounded worker pool for observation regeneration (spec
// §4.12, §5). It implements the coalescing semantics spec §4.11 step 6 and
// §4.12 require: at-most-one-in-flight-per-(bank_id, entity_id), with
// at-least-one-additional-run queued if a new request arrives mid-run.
//
// Grounded on the donor's chat.go fire-and-forget goroutine+WaitGroup
// pattern for the async boundary, and glyphoxa's hotctx use of
// golang.org/x/sync primitives for bounding concurrent work; unlike
// errgroup, a failing task here must never cancel its siblings, so the
// pool is hand-rolled around a semaphore rather than built on errgroup.
type executor struct {
	sem     *semaphore.Weighted
	mu      sync.Mutex
	running map[string]bool
	pending map[string]bool
	wg      sync.WaitGroup
	work    func(ctx context.Context, bankID, entityID string)
	logger  *slog.Logger
}

func newExecutor(workers int, work func(ctx context.Context, bankID, entityID string), logger *slog.Logger) *executor {
	if workers < 1 {
		workers = 1
	}
	return &executor{
		sem:     semaphore.NewWeighted(int64(workers)),
		running: make(map[string]bool),
		pending: make(map[string]bool),
		work:    work,
		logger:  logger,
	}
}

func coalesceKey(bankID, entityID string) string { return bankID + "\x00" + entityID }

// Enqueue posts an ObservationRegenerate(entity_id) task, deduplicated
// within the current retain call by the caller (spec §4.11 step 6); here
// it additionally coalesces across concurrent enqueues for the same key.
func (e *executor) Enqueue(bankID, entityID string) {
	key := coalesceKey(bankID, entityID)
	e.mu.Lock()
	if e.running[key] {
		e.pending[key] = true
		e.mu.Unlock()
		return
	}
	e.running[key] = true
	e.mu.Unlock()

	e.wg.Add(1)
	go e.runLoop(key, bankID, entityID)
}

func (e *executor) runLoop(key, bankID, entityID string) {
	defer e.wg.Done()
	ctx := context.Background()
	for {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			e.logger.Error("observation worker: acquire semaphore", "bank_id", bankID, "entity_id", entityID, "error", err)
			e.finish(key)
			return
		}
		func() {
			defer e.sem.Release(1)
			e.work(ctx, bankID, entityID)
		}()

		e.mu.Lock()
		if e.pending[key] {
			delete(e.pending, key)
			e.mu.Unlock()
			continue
		}
		delete(e.running, key)
		e.mu.Unlock()
		return
	}
}

func (e *executor) finish(key string) {
	e.mu.Lock()
	delete(e.running, key)
	delete(e.pending, key)
	e.mu.Unlock()
}

// stop waits for all in-flight and coalesced-pending work to drain.
func (e *executor) stop() {
	e.wg.Wait()
}

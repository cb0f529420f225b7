// Package tempr implements Hindsight's retrieval engine: the subsystem that
// turns a natural-language query and a bank identifier into a ranked,
// token-budgeted set of previously ingested facts.
//
// Four heterogeneous search strategies (semantic, keyword, graph,
// temporal) run in parallel, are fused with Reciprocal Rank Fusion,
// reranked by a cross-encoder hook, and truncated to a caller-supplied
// token budget. The package also owns the write-side structures the
// retrieval engine depends on: entity resolution, edge construction, and
// asynchronous observation synthesis.
//
// tempr calls no LLM itself. Every LLM and cross-encoder touchpoint is
// expressed as a caller-supplied hook (see hooks.go) validated at the
// boundary into this package's closed types. Text embedding goes through
// the caller-supplied Embedder (see embed.go); HashEmbedder is a
// deterministic placeholder, not a real model.
package tempr

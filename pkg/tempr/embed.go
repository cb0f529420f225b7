package tempr

import (
	"context"
	"crypto/sha256"
	"math"
)

// EmbedDim is the fixed output width spec §4.1 requires (semantics
// equivalent to BGE-small-en-v1.5).
const EmbedDim = 384

// Embedder maps text to an L2-normalised 384-dim vector. Batches preserve
// input order. Implementations fail with EmbedUnavailable on model error;
// the core treats that as fatal for the calling request (spec §4.1).
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderFunc adapts a function to the Embedder interface, mirroring the
// donor's RerankerFunc-style function-to-interface adapter pattern.
type EmbedderFunc func(ctx context.Context, texts []string) ([][]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

// HashEmbedder is a deterministic, dependency-free placeholder embedder
// for tests and examples: a fixed model would otherwise require a real
// inference runtime this package intentionally does not own (the
// Embedder interface exists precisely so callers can swap in one).
// Grounded on the donor's examples/hindsight/main.go mockEmbedding, but
// L2-normalised so it actually satisfies the embed(text) -> unit vector
// contract instead of returning raw byte magnitudes.
type HashEmbedder struct{}

func (HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashVector(t)
	}
	return out, nil
}

func hashVector(text string) []float32 {
	vec := make([]float32, EmbedDim)
	sum := sha256.Sum256([]byte(text))
	seed := sum[:]
	for i := range vec {
		b := seed[i%len(seed)]
		// Spread the byte across a signed range so the vector isn't
		// all-positive, then fold in position to avoid repeating blocks.
		vec[i] = float32(int(b)-128) / 128.0
		if i >= len(seed) {
			vec[i] *= float32(1.0 / float64(1+i/len(seed)))
		}
	}
	return l2Normalize(vec)
}

func l2Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// cosineSimilarity assumes both vectors are already L2-normalised, in
// which case it reduces to a plain dot product.
func cosineSimilarity(a, b []float32) float64 {
	var dot float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

package routing

import (
	"hash/fnv"
	"math"
	"strings"
)

// Embedder maps text to a dense vector. A sentence-embedding service
// can be plugged in; HashedEmbedder is the deterministic fallback used
// when none is configured.
type Embedder interface {
	Encode(text string) []float64
	Dimension() int
}

// CosineSimilarity computes the cosine of the angle between two
// vectors. Returns 0 for mismatched or zero-magnitude inputs.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// HashedEmbedder is a deterministic hashed bag-of-words embedder.
// Identical inputs always produce identical vectors, which keeps
// semantic mode usable and testable without a model dependency.
type HashedEmbedder struct {
	dim int
}

// NewHashedEmbedder creates an embedder with the given dimensionality
func NewHashedEmbedder(dim int) *HashedEmbedder {
	if dim <= 0 {
		dim = 256
	}
	return &HashedEmbedder{dim: dim}
}

// Encode hashes each word into a bucket and L2-normalizes the counts
func (h *HashedEmbedder) Encode(text string) []float64 {
	vec := make([]float64, h.dim)
	for _, word := range strings.Fields(NormalizeQuery(text)) {
		hasher := fnv.New32a()
		hasher.Write([]byte(word))
		vec[int(hasher.Sum32())%h.dim]++
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

// Dimension returns the vector dimensionality
func (h *HashedEmbedder) Dimension() int {
	return h.dim
}

package embeddings

import (
	"context"
	"hash/fnv"
	"math"
)

// MockEmbedder produces deterministic unit vectors from a text hash. It
// backs the "mock" provider for local development and tests that need a
// working pipeline without API access.
type MockEmbedder struct {
	dims int
}

// NewMockEmbedder creates a mock embedder with the given dimension count.
func NewMockEmbedder(dims int) *MockEmbedder {
	if dims <= 0 {
		dims = 384
	}
	return &MockEmbedder{dims: dims}
}

func (m *MockEmbedder) Name() string    { return "mock" }
func (m *MockEmbedder) Dimensions() int { return m.dims }

func (m *MockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = deterministicVector(text, m.dims)
	}
	return vectors, nil
}

// deterministicVector derives a unit vector from an FNV hash of the text, so
// identical text always embeds identically.
func deterministicVector(text string, dims int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dims)
	var sumSquares float64
	for i := range vector {
		seed = seed*1664525 + 1013904223
		vector[i] = float32(seed%2000)/1000.0 - 1.0
		sumSquares += float64(vector[i]) * float64(vector[i])
	}

	if sumSquares > 0 {
		norm := float32(1.0 / math.Sqrt(sumSquares))
		for i := range vector {
			vector[i] *= norm
		}
	}
	return vector
}

package embeddings

import "context"

// Embedder defines the interface for generating text embeddings.
type Embedder interface {
	// Embed generates embeddings for one or more texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the number of dimensions in the embedding vectors.
	Dimensions() int

	// Name returns the name/identifier of the embedding model.
	Name() string
}

// Record pairs an embedding vector with the chunk it was produced for.
type Record struct {
	ChunkID    string    `json:"chunk_id"`
	Vector     []float32 `json:"vector"`
	Dimensions int       `json:"dimensions"`
	Preview    string    `json:"preview"`
}

// previewLen bounds the content preview stored alongside a vector.
const previewLen = 80

// NewRecord builds a Record for a chunk's vector with a truncated content
// preview.
func NewRecord(chunkID, content string, vector []float32) Record {
	preview := content
	if len(preview) > previewLen {
		preview = preview[:previewLen]
	}
	return Record{
		ChunkID:    chunkID,
		Vector:     vector,
		Dimensions: len(vector),
		Preview:    preview,
	}
}

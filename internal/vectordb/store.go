package vectordb

import (
	"context"
	"errors"
)

// ErrDimensionMismatch indicates a vector whose dimension does not match the
// collection it is being written to. Collections are keyed per embedding
// model, so this always means a routing bug and is a hard error.
var ErrDimensionMismatch = errors.New("vector dimension does not match collection")

// VectorStore stores chunk embeddings and performs similarity search.
// A collection holds vectors of exactly one dimension (one collection per
// embedding model).
type VectorStore interface {
	// Upsert adds or replaces entries in the named collection.
	Upsert(ctx context.Context, collection string, entries []Entry) error

	// Search returns entries whose similarity to the query vector is at
	// least scoreThreshold, most similar first, at most limit results.
	Search(ctx context.Context, collection string, queryVector []float32, limit int, scoreThreshold float32, filter *Filter) ([]Result, error)

	// Delete removes entries by id from the named collection. Missing ids
	// are not an error.
	Delete(ctx context.Context, collection string, ids ...string) error

	// Count returns the number of entries in the named collection.
	Count(collection string) int
}

// Filter narrows a search by payload fields before scoring.
type Filter struct {
	Project      string
	Category     string
	DocumentHash string
}

// Empty reports whether the filter imposes no constraint.
func (f *Filter) Empty() bool {
	return f == nil || (f.Project == "" && f.Category == "" && f.DocumentHash == "")
}

// Package retriever runs similarity search for processed queries and ranks
// the results. A query that matches nothing returns an empty result, not an
// error.
package retriever

import (
	"context"
	"fmt"
	"sort"

	"github.com/docpipe/docpipe/internal/embeddings"
	"github.com/docpipe/docpipe/internal/query"
	"github.com/docpipe/docpipe/internal/vectordb"
)

// overFetchFactor widens the vector query so post-filtering still fills
// MaxResults.
const overFetchFactor = 2

// RetrievedChunk is one ranked search hit with enough attribution for the
// caller to name its source.
type RetrievedChunk struct {
	ChunkID      string  `json:"chunk_id"`
	AssetID      string  `json:"asset_id"`
	DocumentHash string  `json:"document_hash"`
	Title        string  `json:"title"`
	DocType      string  `json:"doc_type"`
	Seq          int     `json:"seq"`
	Content      string  `json:"content"`
	Score        float64 `json:"score"`
	Rank         int     `json:"rank"`
}

// Params tunes one retrieval call. FromQuery derives it from a processed
// query's search parameters.
type Params struct {
	MinSimilarity float64
	MaxResults    int
	Project       string
	Category      string
}

// FromQuery lifts a processed query's derived parameters and scope into
// retrieval params.
func FromQuery(q *query.ProcessedQuery) Params {
	return Params{
		MinSimilarity: q.Parameters.MinSimilarity,
		MaxResults:    q.Parameters.MaxResults,
		Project:       q.Scope.Project,
		Category:      q.Scope.Category,
	}
}

// Retriever embeds query text and searches one vector collection.
type Retriever struct {
	embedder   embeddings.Embedder
	store      vectordb.VectorStore
	collection string
}

// NewRetriever creates a Retriever over the given collection.
func NewRetriever(embedder embeddings.Embedder, store vectordb.VectorStore, collection string) *Retriever {
	return &Retriever{embedder: embedder, store: store, collection: collection}
}

// Retrieve returns the best-matching chunks for the query, most similar
// first, each stamped with a 1-based rank.
func (r *Retriever) Retrieve(ctx context.Context, q *query.ProcessedQuery, params Params) ([]RetrievedChunk, error) {
	if params.MaxResults <= 0 {
		params.MaxResults = q.Parameters.MaxResults
	}
	if params.MaxResults <= 0 {
		params.MaxResults = 20
	}

	vectors, err := r.embedder.Embed(ctx, []string{q.Cleaned})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding query: empty result")
	}

	var filter *vectordb.Filter
	if params.Project != "" || params.Category != "" {
		filter = &vectordb.Filter{Project: params.Project, Category: params.Category}
	}

	limit := params.MaxResults * overFetchFactor
	hits, err := r.store.Search(ctx, r.collection, vectors[0], limit, float32(params.MinSimilarity), filter)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	chunks := make([]RetrievedChunk, 0, len(hits))
	for _, hit := range hits {
		chunks = append(chunks, RetrievedChunk{
			ChunkID:      hit.Entry.Payload.ChunkID,
			AssetID:      hit.Entry.Payload.AssetID,
			DocumentHash: hit.Entry.Payload.DocumentHash,
			Title:        hit.Entry.Payload.Title,
			DocType:      hit.Entry.Payload.DocType,
			Seq:          hit.Entry.Payload.Seq,
			Content:      hit.Entry.Content,
			Score:        float64(hit.Score),
		})
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})
	if len(chunks) > params.MaxResults {
		chunks = chunks[:params.MaxResults]
	}
	for i := range chunks {
		chunks[i].Rank = i + 1
	}
	return chunks, nil
}

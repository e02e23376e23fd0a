package vectordb

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// ChromemStore implements VectorStore using chromem-go.
type ChromemStore struct {
	db *chromem.DB

	mu   sync.Mutex
	dims map[string]int // collection -> established vector dimension
}

// NewChromemStore creates a persistent ChromemStore rooted at dir.
func NewChromemStore(dir string) (*ChromemStore, error) {
	db, err := chromem.NewPersistentDB(dir, true)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}
	return newStore(db), nil
}

// NewMemoryStore creates an in-memory ChromemStore (useful for testing).
func NewMemoryStore() *ChromemStore {
	return newStore(chromem.NewDB())
}

func newStore(db *chromem.DB) *ChromemStore {
	s := &ChromemStore{db: db, dims: make(map[string]int)}
	// Collections restored from disk learn their dimension lazily on the
	// first upsert.
	for name := range db.ListCollections() {
		s.dims[name] = 0
	}
	return s
}

// noEmbedFunc guards against chromem embedding on our behalf: every entry
// must carry an explicit vector routed to the right collection.
func noEmbedFunc(_ context.Context, _ string) ([]float32, error) {
	return nil, fmt.Errorf("vector store requires precomputed embeddings")
}

func (s *ChromemStore) collection(name string) (*chromem.Collection, error) {
	return s.db.GetOrCreateCollection(name, nil, noEmbedFunc)
}

// checkDimension establishes the collection's dimension on first write and
// rejects mismatched vectors afterwards.
func (s *ChromemStore) checkDimension(collection string, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	established, ok := s.dims[collection]
	if !ok || established == 0 {
		s.dims[collection] = dim
		return nil
	}
	if established != dim {
		return fmt.Errorf("%w: collection %q holds %d-d vectors, got %d-d",
			ErrDimensionMismatch, collection, established, dim)
	}
	return nil
}

func (s *ChromemStore) Upsert(ctx context.Context, collection string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	for _, e := range entries {
		if err := s.checkDimension(collection, len(e.Vector)); err != nil {
			return err
		}
	}

	col, err := s.collection(collection)
	if err != nil {
		return fmt.Errorf("get collection %q: %w", collection, err)
	}

	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		docs[i] = chromem.Document{
			ID:        e.ID,
			Content:   e.Content,
			Embedding: e.Vector,
			Metadata:  payloadToMap(e.Payload),
		}
	}

	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("upsert into %q: %w", collection, err)
	}
	return nil
}

func (s *ChromemStore) Search(ctx context.Context, collection string, queryVector []float32, limit int, scoreThreshold float32, filter *Filter) ([]Result, error) {
	if limit <= 0 {
		limit = 10
	}

	col := s.db.GetCollection(collection, noEmbedFunc)
	if col == nil {
		return nil, nil
	}

	// chromem-go requires nResults <= collection size.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	results, err := col.QueryEmbedding(ctx, queryVector, limit, buildWhereClause(filter), nil)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", collection, err)
	}

	out := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Similarity < scoreThreshold {
			continue
		}
		out = append(out, Result{
			Entry: Entry{
				ID:      r.ID,
				Content: r.Content,
				Vector:  r.Embedding,
				Payload: mapToPayload(r.Metadata),
			},
			Score: r.Similarity,
		})
	}
	return out, nil
}

func (s *ChromemStore) Delete(ctx context.Context, collection string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	col := s.db.GetCollection(collection, noEmbedFunc)
	if col == nil {
		return nil
	}
	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("delete from %q: %w", collection, err)
	}
	return nil
}

func (s *ChromemStore) Count(collection string) int {
	col := s.db.GetCollection(collection, noEmbedFunc)
	if col == nil {
		return 0
	}
	return col.Count()
}

// payloadToMap converts a Payload to a flat map[string]string for chromem.
func payloadToMap(p Payload) map[string]string {
	return map[string]string{
		"document_hash": p.DocumentHash,
		"asset_id":      p.AssetID,
		"chunk_id":      p.ChunkID,
		"seq":           strconv.Itoa(p.Seq),
		"title":         p.Title,
		"doc_type":      p.DocType,
		"project":       p.Project,
		"category":      p.Category,
	}
}

// mapToPayload converts a flat map[string]string back to a Payload.
func mapToPayload(m map[string]string) Payload {
	seq, _ := strconv.Atoi(m["seq"])
	return Payload{
		DocumentHash: m["document_hash"],
		AssetID:      m["asset_id"],
		ChunkID:      m["chunk_id"],
		Seq:          seq,
		Title:        m["title"],
		DocType:      m["doc_type"],
		Project:      m["project"],
		Category:     m["category"],
	}
}

// buildWhereClause converts a Filter to a chromem where clause.
func buildWhereClause(filter *Filter) map[string]string {
	if filter.Empty() {
		return nil
	}
	where := make(map[string]string)
	if filter.Project != "" {
		where["project"] = filter.Project
	}
	if filter.Category != "" {
		where["category"] = filter.Category
	}
	if filter.DocumentHash != "" {
		where["document_hash"] = filter.DocumentHash
	}
	return where
}

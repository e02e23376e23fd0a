// Package assets aggregates pipeline output into durable knowledge assets.
// Assembly is pure; persistence is a separate, transactional concern.
package assets

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docpipe/docpipe/internal/chunker"
	"github.com/docpipe/docpipe/internal/document"
	"github.com/docpipe/docpipe/internal/embeddings"
)

// ErrCountMismatch indicates a chunk set whose embedding count differs from
// its chunk count. Fatal for the run: truncating or padding would corrupt
// retrieval quality invisibly.
var ErrCountMismatch = errors.New("chunk count does not match embedding count")

// Stats summarizes one ingestion run.
type Stats struct {
	ChunkCount    int   `json:"chunk_count"`
	TokenEstimate int   `json:"token_estimate"`
	CharCount     int   `json:"char_count"`
	DurationMS    int64 `json:"duration_ms"`
}

// KnowledgeAsset is the durable result of one successful ingestion. Reruns
// create a new version rather than mutating an old asset, because downstream
// consumers may hold references to a specific asset id.
type KnowledgeAsset struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	DocType    string          `json:"doc_type"`
	SourceHash string          `json:"source_hash"`
	Version    int             `json:"version"`
	Stats      Stats           `json:"stats"`
	Chunks     []chunker.Chunk `json:"chunks,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Metadata names the document being assembled.
type Metadata struct {
	Title      string    `json:"title"`
	DocType    string    `json:"doc_type"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Assemble aggregates a validated, chunked, embedded document into a
// knowledge asset. It does not talk to storage; callers persist the result
// transactionally so an asset with zero chunks is never visible to retrieval.
func Assemble(validation document.ValidationResult, chunks []chunker.Chunk, records []embeddings.Record, meta Metadata) (*KnowledgeAsset, error) {
	if len(chunks) != len(records) {
		return nil, ErrCountMismatch
	}

	stats := Stats{ChunkCount: len(chunks)}
	for _, c := range chunks {
		stats.TokenEstimate += len(strings.Fields(c.Content))
		stats.CharCount += c.CharCount
	}
	if !meta.FinishedAt.IsZero() && !meta.StartedAt.IsZero() {
		stats.DurationMS = meta.FinishedAt.Sub(meta.StartedAt).Milliseconds()
	}

	docType := meta.DocType
	if docType == "" {
		docType = "document"
	}

	return &KnowledgeAsset{
		ID:         uuid.New().String(),
		Title:      meta.Title,
		DocType:    docType,
		SourceHash: validation.Hash,
		Version:    1,
		Stats:      stats,
		Chunks:     chunks,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

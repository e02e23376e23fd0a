package assets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/docpipe/docpipe/internal/chunker"
	"github.com/docpipe/docpipe/internal/db"
)

// ErrNotFound is returned when an asset id does not exist.
var ErrNotFound = errors.New("knowledge asset not found")

// Store persists knowledge assets and their chunks in SQLite.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Save writes the asset and all its chunks in a single transaction.
// The asset's version is assigned here: one greater than the highest stored
// version for the same source hash, so re-ingesting a byte-identical
// document appends history instead of overwriting it.
func (s *Store) Save(ctx context.Context, asset *KnowledgeAsset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var maxVersion sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(version) FROM knowledge_assets WHERE source_hash = ?`,
		asset.SourceHash).Scan(&maxVersion)
	if err != nil {
		return fmt.Errorf("reading current version: %w", err)
	}
	asset.Version = int(maxVersion.Int64) + 1

	_, err = tx.ExecContext(ctx, `
		INSERT INTO knowledge_assets
			(id, title, doc_type, source_hash, version, chunk_count, token_estimate, char_count, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		asset.ID, asset.Title, asset.DocType, asset.SourceHash, asset.Version,
		asset.Stats.ChunkCount, asset.Stats.TokenEstimate, asset.Stats.CharCount,
		asset.Stats.DurationMS, asset.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting asset: %w", err)
	}

	for _, c := range asset.Chunks {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO asset_chunks
				(asset_id, seq, chunk_id, content, char_count, word_count, start_offset, end_offset, size_appropriate, ends_at_sentence, non_trivial)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			asset.ID, c.Index, c.ID, c.Content, c.CharCount, c.WordCount,
			c.StartOffset, c.EndOffset,
			boolInt(c.Quality.SizeAppropriate), boolInt(c.Quality.EndsAtSentence), boolInt(c.Quality.NonTrivial))
		if err != nil {
			return fmt.Errorf("inserting chunk %d: %w", c.Index, err)
		}
	}

	return tx.Commit()
}

// Delete removes an asset and its chunks. Deleting a missing id is not an
// error, so a compensating delete after a partial ingestion is idempotent.
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM asset_chunks WHERE asset_id = ?`, id); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM knowledge_assets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting asset: %w", err)
	}
	return tx.Commit()
}

// Get loads one asset by id, without its chunks.
func (s *Store) Get(ctx context.Context, id string) (*KnowledgeAsset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, doc_type, source_hash, version, chunk_count, token_estimate, char_count, duration_ms, created_at
		FROM knowledge_assets WHERE id = ?`, id)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return asset, err
}

// List returns stored assets, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]KnowledgeAsset, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, doc_type, source_hash, version, chunk_count, token_estimate, char_count, duration_ms, created_at
		FROM knowledge_assets ORDER BY created_at DESC, version DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing assets: %w", err)
	}
	defer rows.Close()

	var out []KnowledgeAsset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *asset)
	}
	return out, rows.Err()
}

// Chunks loads the ordered chunk set of one asset.
func (s *Store) Chunks(ctx context.Context, assetID string) ([]chunker.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, seq, content, char_count, word_count, start_offset, end_offset, size_appropriate, ends_at_sentence, non_trivial
		FROM asset_chunks WHERE asset_id = ? ORDER BY seq`, assetID)
	if err != nil {
		return nil, fmt.Errorf("loading chunks: %w", err)
	}
	defer rows.Close()

	var out []chunker.Chunk
	for rows.Next() {
		var c chunker.Chunk
		var sizeOK, sentence, nonTrivial int
		err := rows.Scan(&c.ID, &c.Index, &c.Content, &c.CharCount, &c.WordCount,
			&c.StartOffset, &c.EndOffset, &sizeOK, &sentence, &nonTrivial)
		if err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.Quality.SizeAppropriate = sizeOK != 0
		c.Quality.EndsAtSentence = sentence != 0
		c.Quality.NonTrivial = nonTrivial != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// Versions returns all assets sharing one source hash, oldest version first.
func (s *Store) Versions(ctx context.Context, sourceHash string) ([]KnowledgeAsset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, doc_type, source_hash, version, chunk_count, token_estimate, char_count, duration_ms, created_at
		FROM knowledge_assets WHERE source_hash = ? ORDER BY version`, sourceHash)
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}
	defer rows.Close()

	var out []KnowledgeAsset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *asset)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*KnowledgeAsset, error) {
	var a KnowledgeAsset
	var createdAt string
	err := row.Scan(&a.ID, &a.Title, &a.DocType, &a.SourceHash, &a.Version,
		&a.Stats.ChunkCount, &a.Stats.TokenEstimate, &a.Stats.CharCount,
		&a.Stats.DurationMS, &createdAt)
	if err != nil {
		return nil, err
	}
	if t, perr := time.Parse(time.RFC3339, createdAt); perr == nil {
		a.CreatedAt = t
	}
	return &a, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

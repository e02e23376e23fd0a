// Package jobs records one row per pipeline run. A failed job never retries
// itself; the external engine decides retries and creates a new job when it
// redispatches the task.
package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/docpipe/docpipe/internal/db"
)

// ErrNotFound is returned when a job id does not exist.
var ErrNotFound = errors.New("processing job not found")

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job is one pipeline run for one document at one stage.
type Job struct {
	ID           string    `json:"id"`
	DocumentHash string    `json:"document_hash"`
	Stage        string    `json:"stage"`
	Status       Status    `json:"status"`
	Progress     int       `json:"progress"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store persists jobs in SQLite.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Create inserts a pending job and returns it.
func (s *Store) Create(ctx context.Context, documentHash, stage string) (*Job, error) {
	job := &Job{
		ID:           uuid.New().String(),
		DocumentHash: documentHash,
		Stage:        stage,
		Status:       StatusPending,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO processing_jobs (id, document_hash, stage, status) VALUES (?, ?, ?, ?)`,
		job.ID, job.DocumentHash, job.Stage, job.Status)
	if err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	return job, nil
}

// Start marks a job running.
func (s *Store) Start(ctx context.Context, id string) error {
	return s.update(ctx, id, `status = 'running'`)
}

// Progress updates the progress percentage of a running job.
func (s *Store) Progress(ctx context.Context, id string, percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE processing_jobs SET progress = ?, updated_at = datetime('now') WHERE id = ?`,
		percent, id)
	if err != nil {
		return fmt.Errorf("updating progress: %w", err)
	}
	return checkFound(res)
}

// Complete marks a job completed at 100 percent.
func (s *Store) Complete(ctx context.Context, id string) error {
	return s.update(ctx, id, `status = 'completed', progress = 100`)
}

// Fail marks a job failed with the given error text.
func (s *Store) Fail(ctx context.Context, id, message string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE processing_jobs SET status = 'failed', error = ?, updated_at = datetime('now') WHERE id = ?`,
		message, id)
	if err != nil {
		return fmt.Errorf("failing job: %w", err)
	}
	return checkFound(res)
}

// Get loads one job by id.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_hash, stage, status, progress, error, created_at, updated_at
		FROM processing_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return job, err
}

// List returns jobs newest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, status Status, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, document_hash, stage, status, progress, error, created_at, updated_at
		FROM processing_jobs`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

func (s *Store) update(ctx context.Context, id, set string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE processing_jobs SET `+set+`, updated_at = datetime('now') WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("updating job: %w", err)
	}
	return checkFound(res)
}

func checkFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var created, updated string
	err := row.Scan(&j.ID, &j.DocumentHash, &j.Stage, &j.Status, &j.Progress, &j.Error, &created, &updated)
	if err != nil {
		return nil, err
	}
	j.CreatedAt = parseSQLiteTime(created)
	j.UpdatedAt = parseSQLiteTime(updated)
	return &j, nil
}

func parseSQLiteTime(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

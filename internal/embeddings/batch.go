package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultBatchSize is the number of texts sent per provider call.
const DefaultBatchSize = 10

// ErrNoEmbeddings indicates that no batch produced any vectors.
var ErrNoEmbeddings = errors.New("no embeddings produced")

// BatchError records the failure of a single batch.
type BatchError struct {
	Batch int
	Start int
	End   int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d (texts %d-%d): %v", e.Batch, e.Start, e.End-1, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// BatchResult is the outcome of a batched embedding call. Vectors preserve
// input order; texts from failed batches are simply absent.
type BatchResult struct {
	Vectors []([]float32)
	Indexes []int // input index of each vector
	Errors  []*BatchError
}

// Complete reports whether every input text produced a vector.
func (r *BatchResult) Complete() bool { return len(r.Errors) == 0 }

// Batcher splits embedding work into provider-sized batches. A failed batch
// is recorded and the remaining batches still run; the call as a whole fails
// only when zero vectors were produced. Cancellation is checked between
// batches so an expired task lease aborts promptly.
type Batcher struct {
	embedder  Embedder
	batchSize int
	timeout   time.Duration
}

// NewBatcher wraps an Embedder with batching. A non-positive batchSize
// falls back to DefaultBatchSize; a non-positive timeout disables the
// per-batch deadline.
func NewBatcher(embedder Embedder, batchSize int, timeout time.Duration) *Batcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Batcher{embedder: embedder, batchSize: batchSize, timeout: timeout}
}

// EmbedAll embeds every text, batch by batch.
func (b *Batcher) EmbedAll(ctx context.Context, texts []string) (*BatchResult, error) {
	result := &BatchResult{}
	if len(texts) == 0 {
		return result, nil
	}

	batch := 0
	for start := 0; start < len(texts); start += b.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := start + b.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := b.embedBatch(ctx, texts[start:end])
		if err == nil && len(vectors) != end-start {
			// A provider returning the wrong count would silently shift
			// every vector after it onto the wrong text.
			err = fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), end-start)
		}
		if err != nil {
			result.Errors = append(result.Errors, &BatchError{Batch: batch, Start: start, End: end, Err: err})
			batch++
			continue
		}

		result.Vectors = append(result.Vectors, vectors...)
		for i := start; i < end; i++ {
			result.Indexes = append(result.Indexes, i)
		}
		batch++
	}

	if len(result.Vectors) == 0 {
		return nil, fmt.Errorf("%w: all %d batches failed", ErrNoEmbeddings, batch)
	}
	return result, nil
}

func (b *Batcher) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	return b.embedder.Embed(ctx, texts)
}

package vectordb

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// axisVector returns a unit vector along the given axis, handy for building
// predictable cosine similarities.
func axisVector(dims, axis int) []float32 {
	v := make([]float32, dims)
	v[axis] = 1
	return v
}

func testEntries(n, dims int) []Entry {
	entries := make([]Entry, n)
	for i := range entries {
		entries[i] = Entry{
			ID:      fmt.Sprintf("e%d", i),
			Content: fmt.Sprintf("content %d", i),
			Vector:  axisVector(dims, i%dims),
			Payload: Payload{
				ChunkID: fmt.Sprintf("chunk%d", i),
				Seq:     i,
				Title:   "Test Doc",
				Project: "alpha",
			},
		}
	}
	return entries
}

func TestUpsertAndSearch(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Upsert(ctx, "model-a", testEntries(4, 8)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if s.Count("model-a") != 4 {
		t.Fatalf("expected 4 entries, got %d", s.Count("model-a"))
	}

	// Query along axis 0: entries 0 (axis 0) should score 1.0.
	results, err := s.Search(ctx, "model-a", axisVector(8, 0), 10, 0.5, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	if results[0].Entry.ID != "e0" {
		t.Errorf("expected e0 first, got %s", results[0].Entry.ID)
	}
	if results[0].Score < 0.99 {
		t.Errorf("expected near-perfect score, got %f", results[0].Score)
	}
	// Payload survives the round trip.
	if results[0].Entry.Payload.Project != "alpha" || results[0].Entry.Payload.Seq != 0 {
		t.Errorf("payload lost in round trip: %+v", results[0].Entry.Payload)
	}
}

func TestSearch_ScoreThresholdFiltersResults(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Upsert(ctx, "model-a", testEntries(4, 8)); err != nil {
		t.Fatal(err)
	}

	// Orthogonal entries score ~0 against axis 0; only e0 passes 0.9.
	results, err := s.Search(ctx, "model-a", axisVector(8, 0), 10, 0.9, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly 1 result above threshold, got %d", len(results))
	}
}

func TestSearch_EmptyCollection(t *testing.T) {
	s := NewMemoryStore()
	results, err := s.Search(context.Background(), "nothing-here", axisVector(8, 0), 5, 0, nil)
	if err != nil {
		t.Fatalf("empty collection should not error: %v", err)
	}
	if results != nil {
		t.Errorf("expected nil results, got %v", results)
	}
}

func TestUpsert_DimensionMismatch(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Upsert(ctx, "model-a", testEntries(2, 8)); err != nil {
		t.Fatal(err)
	}

	bad := []Entry{{ID: "wrong", Content: "x", Vector: axisVector(16, 0)}}
	err := s.Upsert(ctx, "model-a", bad)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}

	// A different collection accepts the other dimension.
	if err := s.Upsert(ctx, "model-b", bad); err != nil {
		t.Errorf("separate collection should accept 16-d vectors: %v", err)
	}
}

func TestSearch_ProjectFilter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	entries := testEntries(4, 8)
	entries[2].Payload.Project = "beta"
	entries[3].Payload.Project = "beta"
	if err := s.Upsert(ctx, "model-a", entries); err != nil {
		t.Fatal(err)
	}

	results, err := s.Search(ctx, "model-a", axisVector(8, 0), 10, 0, &Filter{Project: "beta"})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.Entry.Payload.Project != "beta" {
			t.Errorf("filter leaked entry from project %q", r.Entry.Payload.Project)
		}
	}
	if len(results) != 2 {
		t.Errorf("expected 2 beta entries, got %d", len(results))
	}
}

func TestUpsert_ReplacesExistingID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first := []Entry{{ID: "same", Content: "old", Vector: axisVector(4, 0)}}
	if err := s.Upsert(ctx, "model-a", first); err != nil {
		t.Fatal(err)
	}
	second := []Entry{{ID: "same", Content: "new", Vector: axisVector(4, 0)}}
	if err := s.Upsert(ctx, "model-a", second); err != nil {
		t.Fatal(err)
	}

	if s.Count("model-a") != 1 {
		t.Errorf("expected 1 entry after replacing same id, got %d", s.Count("model-a"))
	}
}

func TestDelete_RemovesByID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Upsert(ctx, "model-a", testEntries(4, 8)); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "model-a", "e1", "e2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.Count("model-a") != 2 {
		t.Errorf("expected 2 entries left, got %d", s.Count("model-a"))
	}

	// Missing ids and missing collections are quiet no-ops.
	if err := s.Delete(ctx, "model-a", "e1"); err != nil {
		t.Errorf("repeat delete should be a no-op: %v", err)
	}
	if err := s.Delete(ctx, "no-such-collection", "x"); err != nil {
		t.Errorf("deleting from a missing collection should be a no-op: %v", err)
	}
}

func TestSearch_DocumentHashFilter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	entries := testEntries(4, 8)
	entries[1].Payload.DocumentHash = "hash-wanted"
	if err := s.Upsert(ctx, "model-a", entries); err != nil {
		t.Fatal(err)
	}

	// Query along an unrelated axis: the hash filter must still surface
	// the entry regardless of similarity.
	results, err := s.Search(ctx, "model-a", axisVector(8, 7), 10, -1, &Filter{DocumentHash: "hash-wanted"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Entry.ID != "e1" {
		t.Errorf("expected only the hash-matched entry, got %+v", results)
	}
}

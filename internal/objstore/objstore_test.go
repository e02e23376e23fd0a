package objstore

import (
	"bytes"
	"errors"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	content := []byte("requirement document body")

	if err := store.Put("abc123", content); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	got, err := store.Get("abc123")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("content mismatch: %q", got)
	}
	if !store.Exists("abc123") {
		t.Error("exists should report stored key")
	}
}

func TestGetMissing(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if store.Exists("nope") {
		t.Error("exists should report missing key as false")
	}
}

func TestPutIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	content := []byte("same bytes")

	if err := store.Put("k", content); err != nil {
		t.Fatal(err)
	}
	if err := store.Put("k", content); err != nil {
		t.Fatalf("second put of identical content failed: %v", err)
	}
	got, err := store.Get("k")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("content mismatch after rewrite: %q", got)
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	if err := store.Put("k", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete("k"); err != nil {
		t.Fatal(err)
	}
	if store.Exists("k") {
		t.Error("object should be gone after delete")
	}
	if err := store.Delete("k"); err != nil {
		t.Errorf("deleting a missing key should not error: %v", err)
	}
}

func TestInvalidKeys(t *testing.T) {
	store := newTestStore(t)
	for _, key := range []string{"", "../escape", "a/b", `a\b`} {
		if err := store.Put(key, []byte("x")); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("key %q: expected ErrInvalidKey, got %v", key, err)
		}
	}
}

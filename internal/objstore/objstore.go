// Package objstore keeps raw document bytes on disk, keyed by content hash.
// Documents are immutable once stored; a key always maps to the same bytes.
package objstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when no object exists for a key.
var ErrNotFound = errors.New("object not found")

// ErrInvalidKey is returned for keys that would escape the store directory.
var ErrInvalidKey = errors.New("invalid object key")

// Store is a filesystem object store sharded by key prefix. Keys are
// content hashes, so writes are naturally idempotent.
type Store struct {
	dir string
}

// NewStore creates the backing directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating object store directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Put stores the bytes under key. Rewriting an existing key with the same
// content is a no-op by construction.
func (s *Store) Put(key string, data []byte) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating shard directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing object: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("committing object: %w", err)
	}
	return nil
}

// Get returns the bytes stored under key.
func (s *Store) Get(key string) ([]byte, error) {
	path, err := s.keyPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading object: %w", err)
	}
	return data, nil
}

// Exists reports whether an object is stored under key.
func (s *Store) Exists(key string) bool {
	path, err := s.keyPath(key)
	if err != nil {
		return false
	}
	_, statErr := os.Stat(path)
	return statErr == nil
}

// Delete removes the object under key. Deleting a missing key is not an
// error.
func (s *Store) Delete(key string) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting object: %w", err)
	}
	return nil
}

// keyPath maps a key into a two-character prefix shard, keeping any one
// directory from accumulating every stored object.
func (s *Store) keyPath(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, "/\\") || strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	shard := key
	if len(shard) > 2 {
		shard = shard[:2]
	}
	return filepath.Join(s.dir, shard, key), nil
}

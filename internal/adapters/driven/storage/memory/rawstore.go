package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/vulnsync/internal/core/domain"
	"github.com/custodia-labs/vulnsync/internal/core/ports/driven"
)

// Ensure RawStore implements the interface.
var _ driven.RawStore = (*RawStore)(nil)

// RawStore is an in-memory implementation of driven.RawStore.
type RawStore struct {
	mu   sync.RWMutex
	docs map[string]map[string][]byte
}

// NewRawStore creates a new in-memory raw store.
func NewRawStore() *RawStore {
	return &RawStore{
		docs: make(map[string]map[string][]byte),
	}
}

// Put stores or replaces a document.
func (s *RawStore) Put(_ context.Context, partition, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs[partition] == nil {
		s.docs[partition] = make(map[string][]byte)
	}
	s.docs[partition][name] = append([]byte(nil), data...)
	return nil
}

// Get retrieves a document.
func (s *RawStore) Get(_ context.Context, partition, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[partition][name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// List returns the stored names of a partition, sorted.
func (s *RawStore) List(_ context.Context, partition string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.docs[partition]))
	for name := range s.docs[partition] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Partitions returns the partitions holding at least one document, sorted.
func (s *RawStore) Partitions(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.docs))
	for partition, docs := range s.docs {
		if len(docs) > 0 {
			out = append(out, partition)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Close is a no-op.
func (s *RawStore) Close() error { return nil }

package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/vulnsync/internal/core/domain"
	"github.com/custodia-labs/vulnsync/internal/core/ports/driven"
)

// Ensure RecordStore implements the interfaces.
var (
	_ driven.RecordSink = (*RecordStore)(nil)
	_ driven.Reconciler = (*RecordStore)(nil)
)

// RecordStore is an in-memory implementation of driven.RecordSink.
// Batches are staged and folded into the target on Reconcile.
type RecordStore struct {
	mu      sync.RWMutex
	staged  []domain.Record
	target  map[string]domain.Record
	batches []domain.Batch
}

// NewRecordStore creates a new in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		target: make(map[string]domain.Record),
	}
}

// Name identifies the sink.
func (s *RecordStore) Name() string { return "memory" }

// WriteBatch stages a batch.
func (s *RecordStore) WriteBatch(_ context.Context, batch domain.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]domain.Record, len(batch.Records))
	for i, r := range batch.Records {
		copied[i] = r.Clone()
	}
	s.staged = append(s.staged, copied...)
	batch.Records = copied
	s.batches = append(s.batches, batch)
	return nil
}

// Reconcile folds staged records into the target and clears staging.
func (s *RecordStore) Reconcile(_ context.Context) (domain.MergeStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := domain.Reconcile(s.target, s.staged)
	s.staged = nil
	return stats, nil
}

// Get retrieves a reconciled record by id.
func (s *RecordStore) Get(_ context.Context, id string) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.target[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := r.Clone()
	return &c, nil
}

// Records returns all reconciled records sorted by id.
func (s *RecordStore) Records() []domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Record, 0, len(s.target))
	for _, r := range s.target {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Staged returns the number of records awaiting reconciliation.
func (s *RecordStore) Staged() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.staged)
}

// Batches returns every batch received, in arrival order.
func (s *RecordStore) Batches() []domain.Batch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Batch(nil), s.batches...)
}

// Close is a no-op.
func (s *RecordStore) Close() error { return nil }

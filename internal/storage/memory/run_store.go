package memory

import (
	"context"
	"sync"

	"decred-onchain-lab/internal/domain"
	"decred-onchain-lab/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunRecord // keyed by run_id
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		data: make(map[string]*domain.RunRecord),
	}
}

func copyRun(r *domain.RunRecord) *domain.RunRecord {
	c := *r
	c.Steps = append([]string(nil), r.Steps...)
	return &c
}

// Insert adds a run record. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(_ context.Context, r *domain.RunRecord) error {
	if r == nil || r.RunID == "" || r.Status == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[r.RunID] = copyRun(r)
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(_ context.Context, runID string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyRun(r), nil
}

// GetLatest retrieves the most recently started run. Returns ErrNotFound if none.
func (s *RunStore) GetLatest(_ context.Context) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.RunRecord
	for _, r := range s.data {
		if latest == nil || r.StartedAt.After(latest.StartedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return copyRun(latest), nil
}

var _ storage.RunStore = (*RunStore)(nil)

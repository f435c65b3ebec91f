package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"decred-onchain-lab/internal/domain"
	"decred-onchain-lab/internal/storage"
)

// InsightStore is an in-memory implementation of storage.InsightStore.
type InsightStore struct {
	mu        sync.RWMutex
	overview  map[string]*domain.OverviewRecord // keyed by (run_id, table_name, metric)
	headlines map[string]*domain.HeadlineRecord // keyed by (run_id, name)
}

// NewInsightStore creates a new in-memory insight store.
func NewInsightStore() *InsightStore {
	return &InsightStore{
		overview:  make(map[string]*domain.OverviewRecord),
		headlines: make(map[string]*domain.HeadlineRecord),
	}
}

func overviewKey(r *domain.OverviewRecord) string {
	return fmt.Sprintf("%s|%s|%s", r.RunID, r.TableName, r.Metric)
}

func headlineKey(r *domain.HeadlineRecord) string {
	return r.RunID + "|" + r.Name
}

// InsertOverview adds insight table rows. Fails entire batch on duplicate.
func (s *InsightStore) InsertOverview(_ context.Context, rows []*domain.OverviewRecord) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if r == nil || r.RunID == "" || r.TableName == "" || r.Metric == "" {
			return storage.ErrInvalidInput
		}
		key := overviewKey(r)
		if _, exists := s.overview[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}
	for _, r := range rows {
		rowCopy := *r
		s.overview[overviewKey(r)] = &rowCopy
	}
	return nil
}

// InsertHeadlines adds headline insights. Fails entire batch on duplicate.
func (s *InsightStore) InsertHeadlines(_ context.Context, rows []*domain.HeadlineRecord) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if r == nil || r.RunID == "" || r.Name == "" {
			return storage.ErrInvalidInput
		}
		key := headlineKey(r)
		if _, exists := s.headlines[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}
	for _, r := range rows {
		rowCopy := *r
		s.headlines[headlineKey(r)] = &rowCopy
	}
	return nil
}

// GetOverview retrieves the rows of one insight table, ordered by position.
func (s *InsightStore) GetOverview(_ context.Context, runID, tableName string) ([]*domain.OverviewRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OverviewRecord
	for _, r := range s.overview {
		if r.RunID == runID && r.TableName == tableName {
			rowCopy := *r
			result = append(result, &rowCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Position < result[j].Position })
	return result, nil
}

// GetHeadlines retrieves the headlines of a run, ordered by position.
func (s *InsightStore) GetHeadlines(_ context.Context, runID string) ([]*domain.HeadlineRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.HeadlineRecord
	for _, r := range s.headlines {
		if r.RunID == runID {
			rowCopy := *r
			result = append(result, &rowCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Position < result[j].Position })
	return result, nil
}

var _ storage.InsightStore = (*InsightStore)(nil)

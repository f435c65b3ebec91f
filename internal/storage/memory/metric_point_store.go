package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"decred-onchain-lab/internal/domain"
	"decred-onchain-lab/internal/storage"
)

// MetricPointStore is an in-memory implementation of storage.MetricPointStore.
type MetricPointStore struct {
	mu   sync.RWMutex
	data map[string]*domain.MetricPoint // keyed by (run_id, metric, timestamp_ms)
}

// NewMetricPointStore creates a new in-memory metric point store.
func NewMetricPointStore() *MetricPointStore {
	return &MetricPointStore{
		data: make(map[string]*domain.MetricPoint),
	}
}

func metricPointKey(runID, metric string, timestampMs int64) string {
	return fmt.Sprintf("%s|%s|%d", runID, metric, timestampMs)
}

// InsertBulk adds multiple points. Fails entire batch on duplicate.
func (s *MetricPointStore) InsertBulk(_ context.Context, points []*domain.MetricPoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.RunID == "" || p.Metric == "" || math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return storage.ErrInvalidInput
		}
		key := metricPointKey(p.RunID, p.Metric, p.TimestampMs)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, p := range points {
		pointCopy := *p
		s.data[metricPointKey(p.RunID, p.Metric, p.TimestampMs)] = &pointCopy
	}
	return nil
}

// GetByMetric retrieves the points of one metric in a run, ordered by timestamp ASC.
func (s *MetricPointStore) GetByMetric(_ context.Context, runID, metric string) ([]*domain.MetricPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MetricPoint
	for _, p := range s.data {
		if p.RunID == runID && p.Metric == metric {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
	return result, nil
}

// Count returns the number of stored points.
func (s *MetricPointStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

var _ storage.MetricPointStore = (*MetricPointStore)(nil)

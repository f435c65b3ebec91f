package clickhouse

import (
	"context"
	"fmt"
	"math"

	"decred-onchain-lab/internal/domain"
	"decred-onchain-lab/internal/storage"
)

// MetricPointStore implements storage.MetricPointStore using ClickHouse.
type MetricPointStore struct {
	conn *Conn
}

// NewMetricPointStore creates a new MetricPointStore.
func NewMetricPointStore(conn *Conn) *MetricPointStore {
	return &MetricPointStore{conn: conn}
}

// Compile-time interface check.
var _ storage.MetricPointStore = (*MetricPointStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate.
func (s *MetricPointStore) InsertBulk(ctx context.Context, points []*domain.MetricPoint) error {
	if len(points) == 0 {
		return nil
	}

	type key struct {
		metric      string
		timestampMs int64
	}
	seen := make(map[key]struct{}, len(points))
	byMetric := make(map[string]string) // metric -> run id
	for _, p := range points {
		if p == nil || p.RunID == "" || p.Metric == "" || math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return storage.ErrInvalidInput
		}
		k := key{p.RunID + "|" + p.Metric, p.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		byMetric[p.RunID+"|"+p.Metric] = p.RunID
	}

	// MergeTree does not enforce keys; compare against stored timestamps
	// one metric at a time.
	for rk, runID := range byMetric {
		metric := rk[len(runID)+1:]
		stored, err := s.timestamps(ctx, runID, metric)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		for _, ts := range stored {
			if _, dup := seen[key{rk, ts}]; dup {
				return storage.ErrDuplicateKey
			}
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO metric_points (run_id, metric, timestamp_ms, value)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, p := range points {
		if err := batch.Append(p.RunID, p.Metric, uint64(p.TimestampMs), p.Value); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByMetric retrieves the points of one metric in a run, ordered by timestamp ASC.
func (s *MetricPointStore) GetByMetric(ctx context.Context, runID, metric string) ([]*domain.MetricPoint, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT run_id, metric, timestamp_ms, value
		FROM metric_points
		WHERE run_id = ? AND metric = ?
		ORDER BY timestamp_ms ASC
	`, runID, metric)
	if err != nil {
		return nil, fmt.Errorf("query by metric: %w", err)
	}
	defer rows.Close()

	return scanMetricPoints(rows)
}

func (s *MetricPointStore) timestamps(ctx context.Context, runID, metric string) ([]int64, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT timestamp_ms FROM metric_points
		WHERE run_id = ? AND metric = ?
	`, runID, metric)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var ts uint64
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		out = append(out, int64(ts))
	}
	return out, rows.Err()
}

func scanMetricPoints(rows chRows) ([]*domain.MetricPoint, error) {
	var points []*domain.MetricPoint
	for rows.Next() {
		var p domain.MetricPoint
		var timestampMs uint64
		if err := rows.Scan(&p.RunID, &p.Metric, &timestampMs, &p.Value); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		p.TimestampMs = int64(timestampMs)
		points = append(points, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return points, nil
}

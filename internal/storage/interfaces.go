package storage

import (
	"context"

	"decred-onchain-lab/internal/domain"
)

// MetricPointStore provides access to metric_points storage.
type MetricPointStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate (run_id, metric, timestamp_ms).
	InsertBulk(ctx context.Context, points []*domain.MetricPoint) error

	// GetByMetric retrieves the points of one metric in a run, ordered by timestamp ASC.
	GetByMetric(ctx context.Context, runID, metric string) ([]*domain.MetricPoint, error)
}

// RunStore provides access to pipeline_runs storage.
type RunStore interface {
	// Insert adds a run record. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunRecord) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunRecord, error)

	// GetLatest retrieves the most recently started run. Returns ErrNotFound if none.
	GetLatest(ctx context.Context) (*domain.RunRecord, error)
}

// InsightStore provides access to insight_rows and headline_insights storage.
type InsightStore interface {
	// InsertOverview adds insight table rows. Fails entire batch on duplicate (run_id, table_name, metric).
	InsertOverview(ctx context.Context, rows []*domain.OverviewRecord) error

	// InsertHeadlines adds headline insights. Fails entire batch on duplicate (run_id, name).
	InsertHeadlines(ctx context.Context, rows []*domain.HeadlineRecord) error

	// GetOverview retrieves the rows of one insight table, ordered by position.
	GetOverview(ctx context.Context, runID, tableName string) ([]*domain.OverviewRecord, error)

	// GetHeadlines retrieves the headlines of a run, ordered by position.
	GetHeadlines(ctx context.Context, runID string) ([]*domain.HeadlineRecord, error)
}

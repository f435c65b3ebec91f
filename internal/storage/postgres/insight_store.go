package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"decred-onchain-lab/internal/domain"
	"decred-onchain-lab/internal/storage"
)

// InsightStore implements storage.InsightStore using PostgreSQL.
type InsightStore struct {
	pool *Pool
}

// NewInsightStore creates a new InsightStore.
func NewInsightStore(pool *Pool) *InsightStore {
	return &InsightStore{pool: pool}
}

// Compile-time interface check.
var _ storage.InsightStore = (*InsightStore)(nil)

// InsertOverview adds insight table rows atomically. Fails entire batch on any duplicate.
func (s *InsightStore) InsertOverview(ctx context.Context, rows []*domain.OverviewRecord) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		if r == nil || r.RunID == "" || r.TableName == "" || r.Metric == "" {
			return storage.ErrInvalidInput
		}
		batch.Queue(`
			INSERT INTO insight_rows (run_id, table_name, metric, position, today, yesterday, past_week, ma_28)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, r.RunID, r.TableName, r.Metric, r.Position, r.Today, r.Yesterday, r.PastWeek, r.MA28)
	}
	return s.sendBatch(ctx, batch, "insight rows")
}

// InsertHeadlines adds headline insights atomically. Fails entire batch on any duplicate.
func (s *InsightStore) InsertHeadlines(ctx context.Context, rows []*domain.HeadlineRecord) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		if r == nil || r.RunID == "" || r.Name == "" {
			return storage.ErrInvalidInput
		}
		batch.Queue(`
			INSERT INTO headline_insights (run_id, name, position, primary_value, secondary_value, statusbar, description)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, r.RunID, r.Name, r.Position, r.Primary, r.Secondary, r.StatusBar, r.Description)
	}
	return s.sendBatch(ctx, batch, "headlines")
}

func (s *InsightStore) sendBatch(ctx context.Context, batch *pgx.Batch, what string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert %s: %w", what, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetOverview retrieves the rows of one insight table, ordered by position.
func (s *InsightStore) GetOverview(ctx context.Context, runID, tableName string) ([]*domain.OverviewRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, table_name, metric, position, today, yesterday, past_week, ma_28
		FROM insight_rows
		WHERE run_id = $1 AND table_name = $2
		ORDER BY position ASC
	`, runID, tableName)
	if err != nil {
		return nil, fmt.Errorf("get insight rows: %w", err)
	}
	defer rows.Close()

	var out []*domain.OverviewRecord
	for rows.Next() {
		var r domain.OverviewRecord
		if err := rows.Scan(&r.RunID, &r.TableName, &r.Metric, &r.Position, &r.Today, &r.Yesterday, &r.PastWeek, &r.MA28); err != nil {
			return nil, fmt.Errorf("scan insight row: %w", err)
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate insight rows: %w", err)
	}
	return out, nil
}

// GetHeadlines retrieves the headlines of a run, ordered by position.
func (s *InsightStore) GetHeadlines(ctx context.Context, runID string) ([]*domain.HeadlineRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, name, position, primary_value, secondary_value, statusbar, description
		FROM headline_insights
		WHERE run_id = $1
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get headlines: %w", err)
	}
	defer rows.Close()

	var out []*domain.HeadlineRecord
	for rows.Next() {
		var r domain.HeadlineRecord
		if err := rows.Scan(&r.RunID, &r.Name, &r.Position, &r.Primary, &r.Secondary, &r.StatusBar, &r.Description); err != nil {
			return nil, fmt.Errorf("scan headline row: %w", err)
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate headline rows: %w", err)
	}
	return out, nil
}

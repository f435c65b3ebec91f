package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"decred-onchain-lab/internal/domain"
	"decred-onchain-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const runColumns = `
	run_id, started_at, finished_at, status, steps, row_count, column_count,
	last_date, s2f_slope, s2f_intercept, s2f_r_squared, error
`

// Insert adds a run record. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.RunRecord) error {
	if r == nil || r.RunID == "" || r.Status == "" {
		return storage.ErrInvalidInput
	}
	steps := r.Steps
	if steps == nil {
		steps = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pipeline_runs (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		r.RunID,
		r.StartedAt,
		r.FinishedAt,
		r.Status,
		steps,
		r.Rows,
		r.Columns,
		r.LastDate,
		r.S2FSlope,
		r.S2FIntercept,
		r.S2FRSquared,
		r.Error,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.RunRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM pipeline_runs WHERE run_id = $1`, runID)
	return scanRun(row)
}

// GetLatest retrieves the most recently started run. Returns ErrNotFound if none.
func (s *RunStore) GetLatest(ctx context.Context) (*domain.RunRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM pipeline_runs ORDER BY started_at DESC LIMIT 1`)
	return scanRun(row)
}

func scanRun(row pgx.Row) (*domain.RunRecord, error) {
	var r domain.RunRecord
	var lastDate *time.Time
	err := row.Scan(
		&r.RunID,
		&r.StartedAt,
		&r.FinishedAt,
		&r.Status,
		&r.Steps,
		&r.Rows,
		&r.Columns,
		&lastDate,
		&r.S2FSlope,
		&r.S2FIntercept,
		&r.S2FRSquared,
		&r.Error,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if lastDate != nil {
		d := lastDate.UTC()
		r.LastDate = &d
	}
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	return &r, nil
}

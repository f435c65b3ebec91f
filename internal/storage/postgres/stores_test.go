package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"decred-onchain-lab/internal/domain"
	"decred-onchain-lab/internal/storage"
)

func sampleRun(id string, started time.Time) *domain.RunRecord {
	return &domain.RunRecord{
		RunID:      id,
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
		Status:     domain.RunStatusOK,
		Steps:      []string{"base", "mvrv", "s2f"},
		Rows:       3000,
		Columns:    140,
		LastDate:   ptr(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)),
		S2FSlope:   ptr(3.36),
	}
}

func TestRunStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)
	ctx := context.Background()
	t0 := time.Date(2024, 5, 2, 6, 0, 0, 0, time.UTC)

	require.NoError(t, store.Insert(ctx, sampleRun("run-a", t0)))
	require.NoError(t, store.Insert(ctx, sampleRun("run-b", t0.Add(24*time.Hour))))
	assert.ErrorIs(t, store.Insert(ctx, sampleRun("run-a", t0)), storage.ErrDuplicateKey)

	got, err := store.GetByID(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "mvrv", "s2f"}, got.Steps)
	assert.Equal(t, 3000, got.Rows)
	require.NotNil(t, got.LastDate)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), *got.LastDate)
	require.NotNil(t, got.S2FSlope)
	assert.Equal(t, 3.36, *got.S2FSlope)
	assert.Nil(t, got.S2FIntercept)

	latest, err := store.GetLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-b", latest.RunID)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestInsightStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, NewRunStore(pool).Insert(ctx, sampleRun("run-a", time.Now().UTC())))

	store := NewInsightStore(pool)
	rows := []*domain.OverviewRecord{
		{RunID: "run-a", TableName: "homepage_metric_table", Metric: "TxCnt", Position: 1, Today: ptr(4500.0)},
		{RunID: "run-a", TableName: "homepage_metric_table", Metric: "PriceUSD", Position: 0, Today: ptr(20.0), MA28: nil},
	}
	require.NoError(t, store.InsertOverview(ctx, rows))
	assert.ErrorIs(t, store.InsertOverview(ctx, rows[:1]), storage.ErrDuplicateKey)

	got, err := store.GetOverview(ctx, "run-a", "homepage_metric_table")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "PriceUSD", got[0].Metric)
	assert.Nil(t, got[0].MA28)

	hl := []*domain.HeadlineRecord{
		{RunID: "run-a", Name: "Decred Power", Position: 0, Primary: ptr(20.0), StatusBar: ptr(-4.5), Description: "price"},
	}
	require.NoError(t, store.InsertHeadlines(ctx, hl))
	heads, err := store.GetHeadlines(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, heads, 1)
	assert.Equal(t, -4.5, *heads[0].StatusBar)
	assert.Nil(t, heads[0].Secondary)
}

package pipeline

import (
	"context"
	"fmt"
	"math"

	"decred-onchain-lab/internal/domain"
	"decred-onchain-lab/internal/frame"
	"decred-onchain-lab/internal/storage"
)

// DefaultPointBatch is the number of metric points per InsertBulk call.
const DefaultPointBatch = 50000

// Archive records runs in the configured stores. Nil stores are skipped.
// The archive is write-only: nothing is read back into a run.
type Archive struct {
	Runs     storage.RunStore
	Insights storage.InsightStore
	Points   storage.MetricPointStore

	BatchSize int
	Observe   func(store string, err error) // optional, called once per store
}

// Write stores the run record, then the insights and metric points of a
// successful run. runErr marks the run failed and skips everything but the
// run record.
func (a *Archive) Write(ctx context.Context, res *Result, runErr error) error {
	if a.Runs != nil {
		err := a.Runs.Insert(ctx, runRecord(res, runErr))
		a.observe("runs", err)
		if err != nil {
			return fmt.Errorf("run record: %w", err)
		}
	}
	if runErr != nil || res.Table == nil {
		return nil
	}

	if a.Insights != nil && res.Insights != nil {
		over, heads := insightRecords(res)
		err := a.Insights.InsertOverview(ctx, over)
		if err == nil {
			err = a.Insights.InsertHeadlines(ctx, heads)
		}
		a.observe("insights", err)
		if err != nil {
			return fmt.Errorf("insights: %w", err)
		}
	}

	if a.Points != nil {
		err := a.writePoints(ctx, res)
		a.observe("points", err)
		if err != nil {
			return fmt.Errorf("metric points: %w", err)
		}
	}
	return nil
}

func (a *Archive) writePoints(ctx context.Context, res *Result) error {
	size := a.BatchSize
	if size <= 0 {
		size = DefaultPointBatch
	}
	points := MetricPoints(res.RunID, res.Table)
	for from := 0; from < len(points); from += size {
		to := min(from+size, len(points))
		if err := a.Points.InsertBulk(ctx, points[from:to]); err != nil {
			return err
		}
	}
	return nil
}

func (a *Archive) observe(store string, err error) {
	if a.Observe != nil {
		a.Observe(store, err)
	}
}

// MetricPoints flattens the finite cells of t into long format.
func MetricPoints(runID string, t *frame.Table) []*domain.MetricPoint {
	var out []*domain.MetricPoint
	for _, name := range t.Columns() {
		col, _ := t.Column(name)
		for i, v := range col {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			out = append(out, &domain.MetricPoint{
				RunID:       runID,
				Metric:      name,
				TimestampMs: t.Date(i).UnixMilli(),
				Value:       v,
			})
		}
	}
	return out
}

func runRecord(res *Result, runErr error) *domain.RunRecord {
	r := &domain.RunRecord{
		RunID:      res.RunID,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Status:     domain.RunStatusOK,
		Steps:      res.Steps,
	}
	if runErr != nil {
		r.Status = domain.RunStatusFailed
		r.Error = runErr.Error()
	}
	if res.Table != nil && res.Table.Len() > 0 {
		r.Rows = res.Table.Len()
		r.Columns = len(res.Table.Columns())
		last := res.Table.Date(res.Table.Len() - 1)
		r.LastDate = &last
	}
	if res.Fit != nil {
		r.S2FSlope = domain.Nullable(res.Fit.Slope)
		r.S2FIntercept = domain.Nullable(res.Fit.Intercept)
		r.S2FRSquared = domain.Nullable(res.Fit.RSquared)
	}
	return r
}

func insightRecords(res *Result) ([]*domain.OverviewRecord, []*domain.HeadlineRecord) {
	var over []*domain.OverviewRecord
	for _, name := range res.Insights.Order {
		for i, row := range res.Insights.Tables[name] {
			over = append(over, &domain.OverviewRecord{
				RunID:     res.RunID,
				TableName: name,
				Metric:    row.Name,
				Position:  i,
				Today:     domain.Nullable(row.Today.Float()),
				Yesterday: domain.Nullable(row.Yesterday.Float()),
				PastWeek:  domain.Nullable(row.PastWeek.Float()),
				MA28:      domain.Nullable(row.MA28.Float()),
			})
		}
	}
	heads := make([]*domain.HeadlineRecord, len(res.Insights.Insights))
	for i, h := range res.Insights.Insights {
		heads[i] = &domain.HeadlineRecord{
			RunID:       res.RunID,
			Name:        h.Name,
			Position:    i,
			Primary:     domain.Nullable(h.Primary.Float()),
			Secondary:   domain.Nullable(h.Secondary.Float()),
			StatusBar:   domain.Nullable(h.StatusBar.Float()),
			Description: h.Description,
		}
	}
	return over, heads
}

package domain

import (
	"math"
	"time"
)

// MetricPoint is one finite value of the enriched table in long format.
// Corresponds to metric_points table in ClickHouse.
type MetricPoint struct {
	RunID       string  // pipeline run identifier
	Metric      string  // column name
	TimestampMs int64   // UTC day start in milliseconds
	Value       float64 // never NaN or Inf
}

// Run statuses.
const (
	RunStatusOK     = "ok"
	RunStatusFailed = "failed"
)

// RunRecord describes one pipeline run.
// Corresponds to pipeline_runs table in PostgreSQL.
type RunRecord struct {
	RunID        string
	StartedAt    time.Time
	FinishedAt   time.Time
	Status       string
	Steps        []string // metric steps that ran
	Rows         int
	Columns      int
	LastDate     *time.Time // last table day, NULL when no table was built
	S2FSlope     *float64
	S2FIntercept *float64
	S2FRSquared  *float64
	Error        string
}

// OverviewRecord is one row of an insight table.
// Corresponds to insight_rows table in PostgreSQL.
type OverviewRecord struct {
	RunID     string
	TableName string
	Metric    string
	Position  int // row order within the table
	Today     *float64
	Yesterday *float64
	PastWeek  *float64
	MA28      *float64
}

// HeadlineRecord is a headline insight.
// Corresponds to headline_insights table in PostgreSQL.
type HeadlineRecord struct {
	RunID       string
	Name        string
	Position    int
	Primary     *float64
	Secondary   *float64
	StatusBar   *float64
	Description string
}

// Nullable maps NaN and Inf to NULL.
func Nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Package observability provides Prometheus metrics for pipeline runs.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds the metrics of one pipeline run on its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	// Upstream metrics
	FetchesTotal *prometheus.CounterVec
	FetchLatency *prometheus.HistogramVec

	// Pipeline metrics
	StepsTotal    *prometheus.CounterVec
	PhaseDuration *prometheus.HistogramVec
	TableRows     prometheus.Gauge
	TableColumns  prometheus.Gauge

	// Output metrics
	ArtifactsWritten prometheus.Counter
	ArtifactBytes    prometheus.Counter
	ArchiveWrites    *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a Metrics instance with every metric registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "dcr_onchain"
	}
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		FetchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sources",
			Name:      "fetches_total",
			Help:      "Upstream requests by source and status",
		}, []string{"source", "status"}),
		FetchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sources",
			Name:      "fetch_latency_seconds",
			Help:      "Upstream request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),

		StepsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "metric_steps_total",
			Help:      "Metric steps run by step and status",
		}, []string{"step", "status"}),
		PhaseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "phase_duration_seconds",
			Help:      "Pipeline phase duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"phase", "status"}),
		TableRows: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "table_rows",
			Help:      "Rows of the enriched daily table",
		}),
		TableColumns: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "table_columns",
			Help:      "Columns of the enriched daily table",
		}),

		ArtifactsWritten: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "output",
			Name:      "artifacts_written_total",
			Help:      "Artifacts written to the output bucket",
		}),
		ArtifactBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "output",
			Name:      "artifact_bytes_total",
			Help:      "Bytes written to the output bucket",
		}),
		ArchiveWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "writes_total",
			Help:      "Archive writes by store and status",
		}, []string{"store", "status"}),

		LastSuccessfulRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last successful pipeline run",
		}),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordFetch records an upstream request.
func (m *Metrics) RecordFetch(source string, elapsed time.Duration, err error) {
	m.FetchesTotal.WithLabelValues(source, status(err)).Inc()
	m.FetchLatency.WithLabelValues(source).Observe(elapsed.Seconds())
}

// RecordStep records a metric step outcome.
func (m *Metrics) RecordStep(step string, err error) {
	m.StepsTotal.WithLabelValues(step, status(err)).Inc()
}

// RecordPhase records a pipeline phase.
func (m *Metrics) RecordPhase(phase string, elapsed time.Duration, err error) {
	m.PhaseDuration.WithLabelValues(phase, status(err)).Observe(elapsed.Seconds())
}

// RecordTable records the enriched table shape.
func (m *Metrics) RecordTable(rows, columns int) {
	m.TableRows.Set(float64(rows))
	m.TableColumns.Set(float64(columns))
}

// RecordArtifact records one written artifact.
func (m *Metrics) RecordArtifact(bytes int) {
	m.ArtifactsWritten.Inc()
	m.ArtifactBytes.Add(float64(bytes))
}

// RecordArchive records an archive write.
func (m *Metrics) RecordArchive(store string, err error) {
	m.ArchiveWrites.WithLabelValues(store, status(err)).Inc()
}

// MarkSuccess stamps the last successful run.
func (m *Metrics) MarkSuccess(at time.Time) {
	m.LastSuccessfulRun.Set(float64(at.Unix()))
}

// Handler returns an HTTP handler exposing the run registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Push sends the registry to a Pushgateway, grouped by run id.
func (m *Metrics) Push(ctx context.Context, url, job, runID string) error {
	if err := push.New(url, job).Gatherer(m.Registry).Grouping("run_id", runID).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

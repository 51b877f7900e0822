package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Query engine Prometheus metrics.
var (
	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exifdex",
			Name:      "pipeline_runs_total",
			Help:      "Aggregation pipeline runs by outcome",
		},
		[]string{"outcome"}, // "ok" / "malformed" / "error"
	)

	PipelineStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "exifdex",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "In-memory stage execution time by stage kind",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"stage"},
	)

	PipelineFullScansTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "exifdex",
			Name:      "pipeline_full_scans_total",
			Help:      "Pipelines seeded by fetching the whole collection",
		},
	)

	PipelineSeedDocuments = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "exifdex",
			Name:      "pipeline_seed_documents",
			Help:      "Documents returned by the store to seed a pipeline",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	KeyIndexRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exifdex",
			Name:      "key_index_refresh_total",
			Help:      "Metadata key index rebuilds by source",
		},
		[]string{"source"}, // "scan" / "snapshot"
	)

	KeyIndexKeys = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "exifdex",
			Name:      "key_index_keys",
			Help:      "Distinct metadata field names in the key index",
		},
	)
)

var queryMetricsOnce sync.Once

// RegisterQueryMetrics registers pipeline and key index metrics. Safe to call more than once.
func RegisterQueryMetrics() {
	queryMetricsOnce.Do(func() {
		prometheus.MustRegister(
			PipelineRunsTotal,
			PipelineStageDuration,
			PipelineFullScansTotal,
			PipelineSeedDocuments,
			KeyIndexRefreshTotal,
			KeyIndexKeys,
		)
	})
}

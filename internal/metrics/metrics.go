// Package metrics holds the Prometheus collectors shared by the batch
// pipelines and the demo server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RowsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forest_energy_rows_skipped_total",
			Help: "Log rows skipped because they could not be parsed.",
		},
		[]string{"source", "reason"},
	)
	FilesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forest_energy_files_skipped_total",
			Help: "Log files skipped because they were missing or had an unexpected schema.",
		},
		[]string{"reason"},
	)
	RunsExported = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forest_energy_runs_exported_total",
			Help: "Runs written to an export document, by trace origin.",
		},
		[]string{"backend", "trace"},
	)
	CorrelationOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forest_energy_correlation_outcomes_total",
			Help: "Fallback correlation results: matched, miss or power_only.",
		},
		[]string{"backend", "outcome"},
	)
	GenerateRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forest_energy_demo_generate_total",
			Help: "Demo generate requests served, by trace origin.",
		},
		[]string{"backend", "origin"},
	)
	GenerateLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forest_energy_demo_generate_latency_seconds",
			Help:    "Replay latency of demo generate requests.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"backend"},
	)
)

func init() {
	prometheus.MustRegister(RowsSkipped)
	prometheus.MustRegister(FilesSkipped)
	prometheus.MustRegister(RunsExported)
	prometheus.MustRegister(CorrelationOutcomes)
	prometheus.MustRegister(GenerateRequests)
	prometheus.MustRegister(GenerateLatency)
}

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AssetsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "anvil_assets_total",
			Help: "Total number of assets in the Data Set",
		},
	)

	ArtifactsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "anvil_artifacts_total",
			Help: "Total number of artifacts in the artifact store",
		},
	)

	ImportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anvil_imports_total",
			Help: "Total number of import requests processed, by outcome",
		},
		[]string{"outcome"},
	)

	ImportDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "anvil_import_duration_seconds",
			Help:    "Time taken to import a single source file",
			Buckets: prometheus.DefBuckets,
		},
	)

	JobsRunTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anvil_jobs_run_total",
			Help: "Total number of builder/job runs, by cache outcome",
		},
		[]string{"outcome"}, // "ran" or "cache_hit"
	)

	JobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "anvil_job_duration_seconds",
			Help:    "Time taken to run a builder or job (excluding cache hits)",
			Buckets: prometheus.DefBuckets,
		},
	)

	LoaderHandlesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "anvil_loader_handles_total",
			Help: "Live load handles by state",
		},
		[]string{"state"},
	)

	LoaderLoadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "anvil_loader_load_duration_seconds",
			Help:    "Time from WaitingForMetadata to Loaded for a handle",
			Buckets: prometheus.DefBuckets,
		},
	)

	HotReloadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "anvil_hot_reloads_total",
			Help: "Total number of hot-reload groups committed",
		},
	)

	ArtifactSweepOrphansTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "anvil_artifact_sweep_orphans_total",
			Help: "Total number of orphaned artifacts removed by sweeps",
		},
	)
)

func init() {
	prometheus.MustRegister(
		AssetsTotal,
		ArtifactsTotal,
		ImportsTotal,
		ImportDuration,
		JobsRunTotal,
		JobDuration,
		LoaderHandlesTotal,
		LoaderLoadDuration,
		HotReloadsTotal,
		ArtifactSweepOrphansTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

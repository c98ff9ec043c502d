// Package metrics exposes the pipeline's Prometheus counters and
// histograms: ingest gateway throughput and the phase-2 batch scheduler's
// per-run outcomes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Ingest gateway metrics
	IngestRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civicquant_ingest_requests_total",
			Help: "Total number of ingest requests by outcome",
		},
		[]string{"status"},
	)

	IngestRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "civicquant_ingest_request_duration_seconds",
			Help:    "Ingest request handling duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Phase-2 batch scheduler metrics
	Phase2RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civicquant_phase2_runs_total",
			Help: "Total number of phase-2 batch runs by outcome",
		},
		[]string{"outcome"},
	)

	Phase2RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "civicquant_phase2_run_duration_seconds",
			Help:    "Phase-2 batch run wall-clock duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	Phase2MessagesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civicquant_phase2_messages_total",
			Help: "Total number of messages processed by a phase-2 run, by result",
		},
		[]string{"result"},
	)

	Phase2SelectedBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "civicquant_phase2_selected_batch_size",
			Help:    "Number of eligible messages selected per phase-2 run",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	// Digest metrics
	DigestRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civicquant_digest_runs_total",
			Help: "Total number of digest runs by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(IngestRequestsTotal)
	prometheus.MustRegister(IngestRequestDuration)
	prometheus.MustRegister(Phase2RunsTotal)
	prometheus.MustRegister(Phase2RunDuration)
	prometheus.MustRegister(Phase2MessagesProcessed)
	prometheus.MustRegister(Phase2SelectedBatchSize)
	prometheus.MustRegister(DigestRunsTotal)
}

// Handler serves the registered metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed wall-clock time for a single operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

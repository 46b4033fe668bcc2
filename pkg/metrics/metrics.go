// Package metrics exposes Prometheus instrumentation for polyglot.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Model lifecycle metrics
	modelLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyglot_model_loads_total",
			Help: "Total number of model construction attempts",
		},
		[]string{"backend", "status"},
	)

	modelLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polyglot_model_load_duration_seconds",
			Help:    "Time spent constructing the model and tokenizer",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"backend"},
	)

	modelLoaded = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "polyglot_model_loaded",
			Help: "1 when the model handle is loaded, 0 otherwise",
		},
		[]string{"backend"},
	)

	// Translation request metrics
	translationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyglot_translation_requests_total",
			Help: "Total number of translation requests",
		},
		[]string{"backend", "status"},
	)

	translationRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polyglot_translation_request_duration_seconds",
			Help:    "Duration of translation requests in seconds",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"backend", "status"},
	)

	translationRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polyglot_translation_request_size_bytes",
			Help:    "Size of translation request text in bytes",
			Buckets: []float64{16, 64, 256, 1024, 4096, 16384},
		},
		[]string{"backend"},
	)

	translationResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polyglot_translation_response_size_bytes",
			Help:    "Size of translated text in bytes",
			Buckets: []float64{16, 64, 256, 1024, 4096, 16384},
		},
		[]string{"backend"},
	)

	// Localization metrics
	localizationSubstitutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyglot_localization_substitutions_total",
			Help: "Number of pattern rewrites applied by the localizer",
		},
		[]string{"kind"},
	)

	// Batch metrics
	batchRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyglot_batch_rows_total",
			Help: "Number of batch rows processed",
		},
		[]string{"status"},
	)

	batchJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyglot_batch_jobs_total",
			Help: "Number of batch jobs by final status",
		},
		[]string{"status"},
	)

	batchJobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "polyglot_batch_jobs_in_flight",
			Help: "Number of batch jobs currently queued or processing",
		},
	)
)

// Collector records metrics for a single model backend.
type Collector struct {
	backend string
}

// NewCollector creates a collector labelled with the backend name.
func NewCollector(backend string) *Collector {
	if backend == "" {
		backend = "unknown"
	}
	return &Collector{backend: backend}
}

// RecordModelLoad records a model construction attempt.
func (c *Collector) RecordModelLoad(duration time.Duration, success bool) {
	modelLoadsTotal.WithLabelValues(c.backend, status(success)).Inc()
	if success {
		modelLoadDuration.WithLabelValues(c.backend).Observe(duration.Seconds())
		modelLoaded.WithLabelValues(c.backend).Set(1)
	}
}

// RecordModelUnload marks the model as released.
func (c *Collector) RecordModelUnload() {
	modelLoaded.WithLabelValues(c.backend).Set(0)
}

// RecordTranslationRequest records metrics for a translation request.
func (c *Collector) RecordTranslationRequest(duration time.Duration, success bool, requestSize, responseSize int) {
	s := status(success)
	translationRequestsTotal.WithLabelValues(c.backend, s).Inc()
	translationRequestDuration.WithLabelValues(c.backend, s).Observe(duration.Seconds())
	translationRequestSize.WithLabelValues(c.backend).Observe(float64(requestSize))
	if success {
		translationResponseSize.WithLabelValues(c.backend).Observe(float64(responseSize))
	}
}

// RecordSubstitutions records n localizer rewrites of the given kind
// ("currency", "miles", "fahrenheit").
func RecordSubstitutions(kind string, n int) {
	if n <= 0 {
		return
	}
	localizationSubstitutionsTotal.WithLabelValues(kind).Add(float64(n))
}

// RecordBatchRow records one processed batch row.
func RecordBatchRow(success bool) {
	batchRowsTotal.WithLabelValues(status(success)).Inc()
}

// JobStarted increments the in-flight job gauge.
func JobStarted() {
	batchJobsInFlight.Inc()
}

// JobFinished decrements the in-flight gauge and counts the final status.
func JobFinished(success bool) {
	batchJobsInFlight.Dec()
	batchJobsTotal.WithLabelValues(status(success)).Inc()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

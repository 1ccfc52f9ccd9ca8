// Package metrics holds the Prometheus collectors for the ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Run results
const (
	ResultOK     = "ok"
	ResultEmpty  = "empty"
	ResultFailed = "failed"
)

// Image results
const (
	ImageDownloaded = "downloaded"
	ImageMissing    = "missing"
	ImageFailed     = "failed"
	ImageURLOnly    = "url_only"
)

// Metrics groups the ingestion collectors registered on one registry.
type Metrics struct {
	Registry    *prometheus.Registry
	runs        *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	images      *prometheus.CounterVec
}

// New creates the collectors on a fresh registry, along with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cgpvp_ingest_runs_total",
			Help: "Ingestion runs by source and result.",
		}, []string{"source", "result"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cgpvp_ingest_run_duration_seconds",
			Help:    "Duration of one source ingestion run.",
			Buckets: []float64{5, 10, 15, 20, 30, 45, 60, 120, 300, 600},
		}, []string{"source"}),
		images: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cgpvp_ingest_images_total",
			Help: "Post image outcomes.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.runs,
		m.runDuration,
		m.images,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRun records one finished source run. Safe on a nil receiver.
func (m *Metrics) ObserveRun(source, result string, seconds float64) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(source, result).Inc()
	m.runDuration.WithLabelValues(source).Observe(seconds)
}

// ObserveImage records an image outcome. Safe on a nil receiver.
func (m *Metrics) ObserveImage(result string) {
	if m == nil {
		return
	}
	m.images.WithLabelValues(result).Inc()
}

// Package metrics exposes Prometheus instrumentation for the download
// pipeline. All collectors are registered at init via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grabtube_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grabtube_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Extraction metrics
var (
	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grabtube_extractions_total",
			Help: "Total number of metadata extraction attempts",
		},
		[]string{"strategy", "status"},
	)

	CatalogRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grabtube_catalog_requests_total",
			Help: "Total number of format catalog requests",
		},
	)
)

// Download job metrics
var (
	JobsStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grabtube_jobs_started_total",
			Help: "Total number of download jobs started",
		},
		[]string{"intent"},
	)

	JobsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grabtube_jobs_finished_total",
			Help: "Total number of download jobs finished",
		},
		[]string{"intent", "status"},
	)

	JobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "grabtube_jobs_in_flight",
			Help: "Number of download jobs currently running",
		},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grabtube_job_duration_seconds",
			Help:    "Download job duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"intent"},
	)

	DownloadedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grabtube_downloaded_bytes_total",
			Help: "Total bytes retrieved across all streams",
		},
	)

	MergesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grabtube_merges_total",
			Help: "Total number of ffmpeg merge operations",
		},
		[]string{"status"},
	)
)

// Package metrics holds Prometheus instruments that are used across the
// forms engine.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_submissions_total",
			Help: "Submission attempts by outcome code.",
		}, []string{"outcome"})

	SubmissionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "form_submission_duration_seconds",
			Help:    "Time spent processing one submission attempt.",
			Buckets: prometheus.DefBuckets,
		})

	UploadBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "form_upload_bytes_total",
			Help: "Cumulative bytes of accepted file uploads.",
		})

	DraftPublishTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "form_draft_publish_total",
			Help: "Cumulative number of drafts published.",
		})

	DraftDiscardTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "form_draft_discard_total",
			Help: "Cumulative number of drafts discarded.",
		})

	SchemaCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "form_schema_cache_hits_total",
			Help: "Form loads served from the in-memory cache.",
		})

	SchemaCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "form_schema_cache_misses_total",
			Help: "Form loads that went to the database.",
		})
)

func init() {
	prometheus.MustRegister(
		SubmissionsTotal,
		SubmissionDuration,
		UploadBytesTotal,
		DraftPublishTotal,
		DraftDiscardTotal,
		SchemaCacheHits,
		SchemaCacheMisses,
	)
}

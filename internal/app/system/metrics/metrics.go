// Package metrics registers the Prometheus collectors for the course library.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BlobOperations counts blob store calls by backend, operation and result.
	BlobOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unigrading_blob_operations_total",
			Help: "Total number of blob store operations",
		},
		[]string{"backend", "op", "result"},
	)

	// MissingBlobs counts file records found pointing at an absent blob while listing.
	MissingBlobs = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "unigrading_missing_blobs_total",
			Help: "File records whose blob could not be located in storage",
		},
	)

	// SuppressedDeleteFailures counts blob deletions that failed and were skipped
	// so the file record could still be removed.
	SuppressedDeleteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "unigrading_blob_delete_failures_total",
			Help: "Blob deletions that failed during record deletion",
		},
	)

	// TreeOperations counts course tree mutations by operation and outcome kind.
	TreeOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unigrading_tree_operations_total",
			Help: "Course tree operations by outcome",
		},
		[]string{"op", "outcome"},
	)

	// FilesWithoutBlob is the number of file records the last storage scan
	// found without a blob.
	FilesWithoutBlob = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "unigrading_files_without_blob",
			Help: "File records without a blob as of the last storage scan",
		},
	)

	// JobRuns counts background job executions by job and result.
	JobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unigrading_job_runs_total",
			Help: "Background job executions",
		},
		[]string{"job", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		BlobOperations,
		MissingBlobs,
		SuppressedDeleteFailures,
		TreeOperations,
		FilesWithoutBlob,
		JobRuns,
	)
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

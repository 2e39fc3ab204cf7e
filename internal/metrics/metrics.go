// GreenPulse - Sustainability Metrics Ingestion and Dashboard Backend
// Copyright 2026 accidentalscientist
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accidentalscientist/greenpulse

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the ingestion pipeline and API:
// - Ingestion run outcomes and durations
// - Per-collection upsert counts, labeled by data provenance
// - External source call outcomes (OWID CSV, World Bank API)
// - Circuit breaker state for the bulk CSV endpoint
// - API endpoint latency and throughput
// - MongoDB operation performance

var (
	// Ingestion Run Metrics
	IngestRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_runs_total",
			Help: "Total number of ingestion runs by outcome",
		},
		[]string{"outcome"}, // "live", "synthetic", "skipped_fresh", "failed"
	)

	IngestRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_run_duration_seconds",
			Help:    "Duration of ingestion runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	IngestLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingest_last_success_timestamp",
			Help: "Unix timestamp of last successful ingestion run",
		},
	)

	IngestRecordsUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_records_upserted_total",
			Help: "Total number of records upserted during ingestion",
		},
		[]string{"collection", "source"}, // collection: "emissions", "energy"; source: "owid", "world_bank", "synthetic"
	)

	IngestRowsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_rows_rejected_total",
			Help: "Total number of source rows rejected during reconciliation",
		},
		[]string{"source", "reason"}, // reason: "missing_country", "missing_year", "no_numeric_fields"
	)

	// External Source Metrics
	SourceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_requests_total",
			Help: "Total number of external source requests by outcome",
		},
		[]string{"source", "outcome"}, // source: "owid", "world_bank"; outcome: "success", "error", "empty"
	)

	SourceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_request_duration_seconds",
			Help:    "Duration of external source requests in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"source"},
	)

	SourceRowsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_rows_fetched_total",
			Help: "Total number of raw rows fetched from external sources",
		},
		[]string{"source"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// MongoDB Metrics
	MongoOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mongodb_operation_duration_seconds",
			Help:    "Duration of MongoDB operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "collection"},
	)

	MongoOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mongodb_operation_errors_total",
			Help: "Total number of MongoDB operation errors",
		},
		[]string{"operation", "collection"},
	)
)

// RecordIngestRun records the outcome and duration of an ingestion run.
func RecordIngestRun(outcome string, duration time.Duration) {
	IngestRunsTotal.WithLabelValues(outcome).Inc()
	IngestRunDuration.Observe(duration.Seconds())
	if outcome == "live" || outcome == "synthetic" {
		IngestLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordUpserts records records written to a collection with their provenance.
func RecordUpserts(collection, source string, count int) {
	if count > 0 {
		IngestRecordsUpserted.WithLabelValues(collection, source).Add(float64(count))
	}
}

// RecordRowRejected records a raw source row dropped during reconciliation.
func RecordRowRejected(source, reason string) {
	IngestRowsRejected.WithLabelValues(source, reason).Inc()
}

// RecordSourceRequest records an external source request outcome.
func RecordSourceRequest(source, outcome string, duration time.Duration) {
	SourceRequestsTotal.WithLabelValues(source, outcome).Inc()
	SourceRequestDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordSourceRows records the number of raw rows fetched from a source.
func RecordSourceRows(source string, count int) {
	if count > 0 {
		SourceRowsFetched.WithLabelValues(source).Add(float64(count))
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordMongoOperation records a MongoDB operation metric.
func RecordMongoOperation(operation, collection string, duration time.Duration, err error) {
	MongoOperationDuration.WithLabelValues(operation, collection).Observe(duration.Seconds())
	if err != nil {
		MongoOperationErrors.WithLabelValues(operation, collection).Inc()
	}
}

// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/basketgraph/internal/recommend"
)

var (
	// Pipeline Stage Metrics
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"stage"},
	)

	StageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_errors_total",
			Help: "Total number of failed pipeline stages",
		},
		[]string{"stage", "kind"}, // kind: "schema", "sparsity", "configuration", "upstream", "internal"
	)

	RowsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_rows_dropped_total",
			Help: "Total number of input rows dropped by a stage",
		},
		[]string{"stage", "reason"},
	)

	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"status"}, // status: "success", "failure"
	)

	LastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_last_success_timestamp",
			Help: "Unix timestamp of the last successful pipeline run",
		},
	)

	// Cluster Metrics
	SegmentSilhouette = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_segment_silhouette",
			Help: "Silhouette score of the most recent clustering per segment",
		},
		[]string{"segment"},
	)

	SegmentClusters = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_segment_clusters",
			Help: "Number of clusters selected per segment",
		},
		[]string{"segment"},
	)

	// Mining and Ranking Metrics
	RulesMined = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_rules_mined_total",
			Help: "Total number of association rules emitted",
		},
	)

	RecommendationsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_recommendations_total",
			Help: "Total number of recommendations emitted",
		},
		[]string{"path"}, // path: "rule", "fallback"
	)

	// Calibration Metrics
	FeedbackAcceptanceRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_feedback_acceptance_rate",
			Help: "Acceptance rate observed in the most recent calibration",
		},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
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

	// Event Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_events_published_total",
			Help: "Total number of run events handed to the message bus",
		},
		[]string{"status"}, // status: "success", "failure", "rejected"
	)

	// Ops API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of ops API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Ops API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordStage records the duration and outcome of one pipeline stage.
func RecordStage(stage string, duration time.Duration, err error) {
	StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	if err != nil {
		StageErrors.WithLabelValues(stage, recommend.ErrorKindName(err)).Inc()
	}
}

// RecordDropped adds n dropped rows for a stage. Non-positive n is ignored.
func RecordDropped(stage, reason string, n int) {
	if n <= 0 {
		return
	}
	RowsDropped.WithLabelValues(stage, reason).Add(float64(n))
}

// RecordRun records the outcome of a complete pipeline run.
func RecordRun(err error) {
	if err != nil {
		PipelineRuns.WithLabelValues("failure").Inc()
		return
	}
	PipelineRuns.WithLabelValues("success").Inc()
	LastRunTimestamp.Set(float64(time.Now().Unix()))
}

// RecordSegment records the clustering outcome for a segment.
func RecordSegment(segment string, k int, silhouette float64) {
	SegmentClusters.WithLabelValues(segment).Set(float64(k))
	SegmentSilhouette.WithLabelValues(segment).Set(silhouette)
}

// RecordRecommendations counts emitted recommendations by path.
func RecordRecommendations(rule, fallback int) {
	RecommendationsEmitted.WithLabelValues("rule").Add(float64(rule))
	RecommendationsEmitted.WithLabelValues("fallback").Add(float64(fallback))
}

// RecordDBQuery records one DuckDB query. Errors are labelled by class so
// the series count stays bounded.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table, dbErrorClass(err)).Inc()
	}
}

func dbErrorClass(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	case errors.Is(err, recommend.ErrSchema):
		return "schema"
	default:
		return "query"
	}
}

// RecordBreakerTransition records a circuit breaker state change.
// States are the gobreaker names: "closed", "half-open", "open".
func RecordBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// RecordEventPublish records a run event publish attempt.
func RecordEventPublish(status string) {
	EventsPublished.WithLabelValues(status).Inc()
}

// RecordAPIRequest records one ops API request. endpoint is the route
// pattern, not the raw path.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

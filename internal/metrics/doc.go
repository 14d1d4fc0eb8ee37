// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

/*
Package metrics provides Prometheus metrics for the recommendation pipeline.

All collectors are registered on the default registry via promauto and are
exposed by the ops HTTP service at /metrics.

# Available Metrics

Pipeline Metrics:
  - pipeline_stage_duration_seconds: Stage wall time (histogram)
    Labels: stage
  - pipeline_stage_errors_total: Failed stages (counter)
    Labels: stage, kind (schema, sparsity, configuration, upstream, internal)
  - pipeline_rows_dropped_total: Rows dropped by row-level recovery (counter)
    Labels: stage, reason
  - pipeline_runs_total: Completed runs (counter)
    Labels: status
  - pipeline_last_success_timestamp: Unix time of last successful run (gauge)

Model Metrics:
  - pipeline_segment_clusters: Selected k per segment (gauge)
  - pipeline_segment_silhouette: Silhouette per segment (gauge)
  - pipeline_rules_mined_total: Association rules emitted (counter)
  - pipeline_recommendations_total: Recommendations emitted (counter)
    Labels: path (rule, fallback)
  - pipeline_feedback_acceptance_rate: Latest acceptance rate (gauge)

Infrastructure Metrics:
  - duckdb_query_duration_seconds, duckdb_query_errors_total
  - circuit_breaker_state, circuit_breaker_state_transitions_total
  - pipeline_events_published_total

# Usage

	start := time.Now()
	res, err := builder.Build(ctx, inputs)
	metrics.RecordStage(recommend.StageBasket, time.Since(start), err)

Example PromQL queries:

	# p95 stage latency
	histogram_quantile(0.95, rate(pipeline_stage_duration_seconds_bucket[1h]))

	# Share of fallback recommendations
	sum(rate(pipeline_recommendations_total{path="fallback"}[1d])) / sum(rate(pipeline_recommendations_total[1d]))

# Thread Safety

All recording functions are safe for concurrent use from pipeline workers.
*/
package metrics

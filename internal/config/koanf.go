// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/basketgraph/config.yaml",
	"/etc/basketgraph/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load reads defaults, the first config file found and the environment,
// then validates the result.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit config file. An empty path skips the
// file layer.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths are split on commas when they arrive as strings.
var sliceConfigPaths = []string{
	"recommend.cluster.feature_groups",
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
var envMappings = map[string]string{
	// Inputs
	"duckdb_path":               "inputs.duckdb_path",
	"duckdb_threads":            "inputs.threads",
	"duckdb_max_memory":         "inputs.max_memory",
	"inputs_from_tables":        "inputs.from_tables",
	"inputs_customers":          "inputs.customers",
	"inputs_products":           "inputs.products",
	"inputs_invoices":           "inputs.invoices",
	"inputs_feedback":           "inputs.feedback",
	"inputs_query_timeout":      "inputs.query_timeout",
	"feedback_breaker_failures": "inputs.breaker.failure_threshold",
	"feedback_breaker_timeout":  "inputs.breaker.timeout",

	// Output and models
	"output_dir":  "output.dir",
	"models_dir":  "models.dir",
	"models_keep": "models.keep",

	// Pipeline
	"recommend_workers":                "recommend.workers",
	"recommend_seed":                   "recommend.seed",
	"recommend_recency_cutoff_days":    "recommend.basket.recency_cutoff_days",
	"recommend_min_invoices":           "recommend.basket.min_invoices",
	"recommend_max_k":                  "recommend.cluster.max_k",
	"recommend_elbow_threshold":        "recommend.cluster.elbow_threshold",
	"recommend_min_cluster_customers":  "recommend.cluster.min_customers",
	"recommend_feature_groups":         "recommend.cluster.feature_groups",
	"recommend_silhouette_warn":        "recommend.cluster.silhouette_warn",
	"recommend_n_init":                 "recommend.cluster.n_init",
	"recommend_max_iterations":         "recommend.cluster.max_iterations",
	"recommend_window_days":            "recommend.mining.window_days",
	"recommend_min_pair_floor":         "recommend.mining.min_pair_floor",
	"recommend_min_pair_ratio":         "recommend.mining.min_pair_ratio",
	"recommend_mining_min_lift":        "recommend.mining.min_lift",
	"recommend_mining_min_support":     "recommend.mining.min_support",
	"recommend_mining_min_confidence":  "recommend.mining.min_confidence",
	"recommend_decay_rate":             "recommend.mining.decay_rate",
	"recommend_top_k":                  "recommend.ranking.top_k",
	"recommend_min_support":            "recommend.ranking.min_support",
	"recommend_min_confidence":         "recommend.ranking.min_confidence",
	"recommend_min_lift":               "recommend.ranking.min_lift",
	"recommend_weight_confidence":      "recommend.ranking.weights.confidence",
	"recommend_weight_support":         "recommend.ranking.weights.support",
	"recommend_weight_lift":            "recommend.ranking.weights.lift",
	"recommend_weight_recency":         "recommend.ranking.weights.recency",
	"recommend_lift_ceiling":           "recommend.ranking.lift_ceiling",
	"recommend_clamp_scores":           "recommend.ranking.clamp_scores",
	"recommend_tie_break_margin":       "recommend.ranking.tie_break_margin",
	"recommend_fallback_floor":         "recommend.ranking.fallback_floor",
	"recommend_score_cutoff":           "recommend.calibration.score_cutoff",
	"recommend_feedback_window_days":   "recommend.calibration.window_days",
	"recommend_weight_high":            "recommend.calibration.weight_high",
	"recommend_weight_medium_positive": "recommend.calibration.weight_medium_positive",
	"recommend_weight_medium_negative": "recommend.calibration.weight_medium_negative",
	"recommend_weight_low":             "recommend.calibration.weight_low",
	"recommend_weight_unmatched":       "recommend.calibration.weight_unmatched",

	// Calibration summary
	"recommend_acceptance_tighten_below": "recommend.calibration.acceptance_tighten_below",
	"recommend_acceptance_relax_above":   "recommend.calibration.acceptance_relax_above",

	// Checkpoints
	"checkpoint_path":      "checkpoint.path",
	"checkpoint_in_memory": "checkpoint.in_memory",

	// Events
	"events_enabled": "events.enabled",
	"nats_url":       "events.url",
	"nats_subject":   "events.subject",
	"nats_stream":    "events.stream",
	"nats_embedded":  "events.embedded",
	"nats_store_dir": "events.store_dir",

	// Serve
	"http_addr":              "server.addr",
	"http_cors_origins":      "server.cors_origins",
	"http_rate_limit":        "server.rate_limit",
	"http_rate_limit_window": "server.rate_limit_window",
	"schedule_interval":      "schedule.interval",
	"schedule_run_on_start":  "schedule.run_on_start",
	"schedule_timeout":       "schedule.timeout",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable to its koanf path. Unmapped
// variables return "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

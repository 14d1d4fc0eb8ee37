// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package database

import (
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/basketgraph/internal/metrics"
	"github.com/tomtom215/basketgraph/internal/recommend"
)

const feedbackBreakerName = "feedback_source"

// BreakerConfig tunes the feedback-source circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the consecutive failures that open the breaker.
	FailureThreshold uint32 `koanf:"failure_threshold" validate:"min=1"`

	// Timeout is how long the breaker stays open before a trial load.
	Timeout time.Duration `koanf:"timeout"`

	// Interval resets failure counts while closed. 0 never resets.
	Interval time.Duration `koanf:"interval"`
}

// DefaultBreakerConfig opens after three consecutive failures for ten minutes.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		Timeout:          10 * time.Minute,
	}
}

//nolint:gocritic // hugeParam: zerolog.Logger is passed by value per zerolog convention
func newFeedbackBreaker(cfg BreakerConfig, logger zerolog.Logger) *gobreaker.CircuitBreaker[recommend.FeedbackSource] {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = DefaultBreakerConfig().FailureThreshold
	}
	settings := gobreaker.Settings{
		Name:        feedbackBreakerName,
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordBreakerTransition(name, from.String(), to.String())
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	}
	return gobreaker.NewCircuitBreaker[recommend.FeedbackSource](settings)
}

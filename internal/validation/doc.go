// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

// Package validation wraps go-playground/validator with a singleton instance.
//
// It is used for two things: rejecting out-of-range pipeline configuration
// before any stage runs, and structural checks on loaded input records
// (required identifiers, positive quantities).
//
// Error messages name fields by their koanf key so they can be matched to
// config.yaml directly:
//
//	recommend.ranking.top_k must be at least 1
package validation

// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

// Package feedback implements the Feedback Calibrator stage.
//
// Reviewer feedback on (customer, product) recommendations is resolved to a
// Sentiment and a score multiplier:
//
//	High             weight_high             (1.3)
//	Medium positive  weight_medium_positive  (1.0)
//	Medium negative  weight_medium_negative  (0.4)
//	Low              weight_low              (0.1)
//	no feedback      weight_unmatched        (1.0)
//
// An explicit polarity beats the reason code. Reason codes outside both
// lookup tables count as Medium positive.
//
// Calibrated rows scoring below score_cutoff are dropped and each customer's
// remaining rows are re-ranked and truncated to top_k. With no usable
// feedback the input passes through unchanged.
//
// Summarize always produces a Summary, including advisory threshold
// suggestions that are never applied automatically.
package feedback

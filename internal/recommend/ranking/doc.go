// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

// Package ranking implements the Ranker stage.
//
// The primary path scores every rule of the customer's cluster whose
// antecedent the customer owns and whose consequent the customer does not
// own and is in stock:
//
//	score     = w_conf*confidence + w_supp*weighted_support
//	          + w_lift*lift_norm + w_recency*recency
//	lift_norm = clamp((lift-1)/(ceiling-1), 0, 1)
//	recency   = 1 / (1 + mean recency days of the customer)
//	bonus     = customer's L3 share of the target's L3 * margin
//
// Each component is clipped to [0, 1] before weighting. When several rules
// recommend the same product the best-scoring rule is the trigger.
//
// Customers with fewer than top_k primary candidates are topped up from the
// category-affinity fallback: segment products the customer does not own,
// scored floor + the customer's quantity share of the product's L2, ties
// broken by segment popularity.
//
// Final rows are ordered by score, then bonus, then segment popularity, then
// product id, and ranked 1..N with N <= top_k.
package ranking

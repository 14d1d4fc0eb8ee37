// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

// Package mining implements the Association Miner stage.
//
// Invoices carry no order grouping, so purchase sessions are rebuilt per
// customer: a line starts a new session when it falls more than window days
// after the previous line. Session ids are the customer id joined with a
// per-customer counter, which keeps them unique across the whole data set
// and stops two customers' first sessions from counting as one.
//
// For every (segment, cluster) the miner counts, over sessions:
//
//	support          = n(A and B) / n(sessions)
//	confidence       = n(A and B) / n(A)
//	lift             = confidence / (n(B) / n(sessions))
//	weighted_support = sum over sessions with A and B of exp(-decay * age) / n(sessions)
//
// where age is measured in days from the newest session in the data set.
// A rule survives when n(A) clears ceil(max(min_pair_floor,
// min_pair_ratio * n(sessions))) and lift, support and confidence clear
// their minimums. Rules are directed: A->B and B->A are mined separately.
package mining

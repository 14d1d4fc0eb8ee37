// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

// Package basket implements the Basket Builder stage.
//
// The builder joins invoice lines to the customer and product tables, drops
// lines that fail validation or reference unknown entities, applies the
// recency cutoff (measured from the newest invoice, never the wall clock) and
// the minimum-activity filter, and aggregates what remains into one
// recommend.BasketRow per (customer, product).
//
// Engagement scores are customer-level and min-max normalised across the
// whole data set:
//
//	recency   = minmax(-days since last purchase)
//	frequency = minmax(distinct invoice dates)
//	monetary  = minmax(total spend), or 0.5 when no prices exist
//
// Price bands are tertiles of unit price within each segment.
package basket

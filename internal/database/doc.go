// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

// Package database loads pipeline inputs through DuckDB.
//
// Each input is a relation: a CSV file read with read_csv_auto, or a table in
// a DuckDB database file when Config.FromTables is set. Columns are discovered
// with DESCRIBE before the load query is built, which drives two behaviours:
//
//   - Optional columns that are absent load as NULL instead of failing.
//     Products may carry their price under unit_price, price, list_price,
//     unit_cost or sale_price; the first present alias wins.
//   - Missing required columns fail with recommend.ErrSchema.
//
// Every value is cast to VARCHAR in SQL and parsed in Go so CSV files and
// typed tables load identically. Malformed numbers and dates become zero
// values, which the Basket Builder counts as invalid lines.
//
// Feedback is optional. Its load runs behind a gobreaker circuit breaker and
// never fails the run: a missing file, a missing required column or a tripped
// breaker all yield recommend.FeedbackUnavailable.
package database

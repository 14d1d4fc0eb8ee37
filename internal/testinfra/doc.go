// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

// Package testinfra provides test infrastructure for pipeline tests.
//
// Dataset is a small fluent builder for hand-written fixtures:
//
//	ds := testinfra.NewDataset().
//	    Customer("C1", "North", "Plumbing").
//	    Product("P1", "Pipe", "Acme", "Plumbing", "Pipes", true, 4.5).
//	    Buy("C1", "P1", 2, testinfra.Day(0))
//
// Synthetic generates a seeded, multi-segment data set in the shape of a
// distributor's invoice history, large enough to exercise elbow selection and
// rule mining.
//
// WriteCSV writes a data set as the customers/products/invoices/feedback CSV
// files the DuckDB loader reads, so loader and end-to-end tests share
// fixtures with the unit tests.
package testinfra

// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

// Package pipeline runs the five recommendation stages end to end.
//
// A run loads recommend.Inputs from a Source and then executes, in order:
//
//	basket       -> basket_rows.csv
//	cluster      -> cluster_assignments.csv, segments_v{N}.gob.gz, model_registry.json
//	mining       -> association_rules.csv
//	ranking      -> recommendations_ranked.csv
//	calibration  -> recommendations.csv, calibration_summary.json
//
// Every stage output is published atomically and recorded in the checkpoint
// ledger before the next stage starts. A stage refuses to run unless its
// predecessor is recorded for the same run, so a crash never leaves a later
// artifact built from an earlier run's inputs.
//
// Stage failures are returned as *recommend.StageError where the stage
// classified them; the run is marked failed in the ledger and no event is
// sent. A missing or failing feedback source does not fail the run.
//
// Outputs are a pure function of the inputs and recommend.Config: two runs
// over the same data and seed produce byte-identical CSV files.
//
// Assigner places customers into clusters with the latest published segment
// models, without retraining.
package pipeline

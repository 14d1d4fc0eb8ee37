// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

// Package recommend defines the shared domain model for the basket
// recommendation pipeline.
//
// # Architecture
//
// The pipeline is a strict five stage DAG. Each stage lives in its own
// subpackage and consumes the published output of the previous one:
//
//   - basket: joins raw entities and aggregates per customer x product rows
//   - cluster: per-segment k-means with elbow selection of k
//   - mining: basket session reconstruction and pairwise association rules
//   - ranking: multi-factor scoring with a category-affinity fallback
//   - feedback: sentiment-weighted recalibration and a calibration summary
//
// The pipeline subpackage sequences the stages, publishes every stage output
// atomically, and fans independent partitions out over a worker pool.
//
// # Segments
//
// A segment is region + "_" + trade. Customers are only ever compared within
// their own segment: clustering, mining and fallback popularity never cross a
// segment boundary.
//
// # Determinism
//
// Given identical inputs and the same Config.Seed, a run produces
// byte-identical output regardless of worker scheduling.
//
// # Usage
//
//	cfg := recommend.DefaultConfig()
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	runner := pipeline.NewRunner(source, cfg, opts, logger)
//	result, err := runner.Run(ctx)
package recommend

// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

// Package checkpoint records pipeline runs and published stage outputs in
// BadgerDB.
//
// Every run is a Run record keyed by run ID. Each stage that publishes its
// output appends an Entry carrying the artifact checksums and entity counts.
// Stages are ordered: RecordStage refuses stage N unless stage N-1 of the same
// run is already recorded, which lets the pipeline runner guarantee that no
// stage consumes an unpublished upstream artifact.
//
// Key layout:
//
//	run:<run_id>                 -> Run (JSON)
//	stage:<run_id>:<NN>:<stage>  -> Entry (JSON)
//	latest                       -> run_id of the most recently started run
package checkpoint

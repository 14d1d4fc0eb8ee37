// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

// Package storage persists pipeline artifacts.
//
// # Model Registry
//
// Per-segment clustering state (cluster.Models) is stored as versioned
// files. Each file starts with one JSON line of ModelMetadata, including the
// SHA-256 of the uncompressed payload, followed by the gzip-compressed gob
// payload. Listing versions reads only the header line.
//
//	/var/lib/basketgraph/models/
//	  segments_v1.gob.gz
//	  segments_v2.gob.gz     <- latest
//	  model_registry.json    <- manifest of the latest version
//
// Loads verify the checksum before decoding. Registry.Publish assigns the
// next version and prunes to the configured number of kept versions.
//
// # Publisher
//
// Stage outputs are written with WriteFileAtomic: a temporary file in the
// target directory is filled, synced and renamed over the destination, so
// readers never observe a partially written file. Every Publisher method
// returns an Artifact with the SHA-256 of the bytes written.
//
// Float columns use the shortest exact decimal representation, which keeps
// output byte-identical across runs with identical input and seed.
package storage

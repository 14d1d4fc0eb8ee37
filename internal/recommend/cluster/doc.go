// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

// Package cluster implements the Cluster Engine stage.
//
// Customers are only ever compared within their segment. For each segment
// the engine:
//
//  1. Builds a feature matrix from the enabled feature groups. The l2, brand
//     and functional groups are purchase-quantity proportions, each row
//     normalised on its own so volume does not dominate. The engagement group
//     adds the recency, frequency and monetary scores.
//  2. Drops columns with zero variance inside the segment.
//  3. Standardises the remaining columns (population standard deviation).
//  4. Fits k-means (k-means++ seeding, several restarts) for k = 2..max_k and
//     picks k with the elbow rule. Segments smaller than min_customers get a
//     single cluster.
//  5. Scores the partition with the silhouette coefficient.
//
// The scaler and centres of every segment are returned as a SegmentModel so
// later stages, and the assign command, can place customers without
// retraining.
package cluster

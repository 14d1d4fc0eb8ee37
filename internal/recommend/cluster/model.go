// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package cluster

import (
	"errors"
	"fmt"

	"github.com/tomtom215/basketgraph/internal/recommend"
)

// ErrUnknownSegment is returned by Models.Assign for a segment with no model.
var ErrUnknownSegment = errors.New("no model for segment")

// SegmentModel is the persisted clustering state of one segment.
type SegmentModel struct {
	Segment       string      `json:"segment"`
	FeatureGroups []string    `json:"feature_groups"`
	Columns       []string    `json:"feature_cols"`
	Mean          []float64   `json:"scaler_mean"`
	Scale         []float64   `json:"scaler_scale"`
	Centers       [][]float64 `json:"centers"`
	K             int         `json:"k"`
	Inertia       float64     `json:"inertia"`
	Silhouette    float64     `json:"silhouette"`
	Customers     int         `json:"n_customers"`
}

// Assign places a profile in the nearest cluster using the stored scaler and
// centres. A model without feature columns always answers cluster 0.
func (m *SegmentModel) Assign(p *Profile) recommend.ClusterKey {
	key := recommend.ClusterKey{Segment: m.Segment}
	if len(m.Columns) == 0 || len(m.Centers) == 0 {
		return key
	}

	scaler := &Scaler{Mean: m.Mean, Scale: m.Scale}
	v := scaler.TransformRow(vectorize(p.Features(m.FeatureGroups), m.Columns))
	key.Index = nearest(v, m.Centers)
	return key
}

// Models holds one SegmentModel per segment.
type Models map[string]*SegmentModel

// Assign routes a profile to the model of its segment.
func (ms Models) Assign(segment string, p *Profile) (recommend.ClusterKey, error) {
	m, ok := ms[segment]
	if !ok {
		return recommend.ClusterKey{}, fmt.Errorf("%w: %s", ErrUnknownSegment, segment)
	}
	return m.Assign(p), nil
}

// Segments returns the segment names in sorted order.
func (ms Models) Segments() []string {
	return recommend.SortedKeys(ms)
}

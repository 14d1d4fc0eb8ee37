// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package cluster

import (
	"context"
	"errors"
	"hash/fnv"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/tomtom215/basketgraph/internal/metrics"
	"github.com/tomtom215/basketgraph/internal/recommend"
)

// Result is the Cluster Engine output.
type Result struct {
	// Assignments is sorted by customer id.
	Assignments []recommend.Assignment

	// ByCustomer indexes Assignments.
	ByCustomer map[string]recommend.ClusterKey

	Models Models
}

// Engine clusters customers per segment.
type Engine struct {
	cfg     recommend.ClusterConfig
	seed    int64
	workers int
	logger  zerolog.Logger
}

// NewEngine creates a Cluster Engine.
//
//nolint:gocritic // hugeParam: zerolog.Logger is passed by value per zerolog convention
func NewEngine(cfg recommend.ClusterConfig, seed int64, workers int, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		seed:    seed,
		workers: workers,
		logger:  logger.With().Str("component", "cluster").Logger(),
	}
}

// segmentFit is the per-segment work product.
type segmentFit struct {
	model     *SegmentModel
	customers []string
	labels    []int
}

// Fit clusters every segment present in rows. Segments are processed
// concurrently; results are merged in segment order.
func (e *Engine) Fit(ctx context.Context, rows []recommend.BasketRow) (*Result, error) {
	bySegment := make(map[string][]recommend.BasketRow)
	for i := range rows {
		bySegment[rows[i].Segment] = append(bySegment[rows[i].Segment], rows[i])
	}
	if len(bySegment) == 0 {
		return nil, recommend.NewStageError(recommend.StageCluster, recommend.ErrDataSparsity,
			map[string]int{"rows": 0}, errors.New("no basket rows to cluster"))
	}

	segments := recommend.SortedKeys(bySegment)
	fits := make([]segmentFit, len(segments))

	err := recommend.ForEach(ctx, e.workers, len(segments), func(_ context.Context, i int) error {
		fits[i] = e.fitSegment(segments[i], bySegment[segments[i]])
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &Result{
		ByCustomer: make(map[string]recommend.ClusterKey),
		Models:     make(Models, len(segments)),
	}
	for _, f := range fits {
		res.Models[f.model.Segment] = f.model
		for j, id := range f.customers {
			res.ByCustomer[id] = recommend.ClusterKey{Segment: f.model.Segment, Index: f.labels[j]}
		}
	}
	for _, id := range recommend.SortedKeys(res.ByCustomer) {
		res.Assignments = append(res.Assignments, recommend.Assignment{CustomerID: id, Cluster: res.ByCustomer[id]})
	}

	e.logger.Info().
		Int("segments", len(segments)).
		Int("customers", len(res.Assignments)).
		Msg("Clustering complete")

	return res, nil
}

func (e *Engine) fitSegment(segment string, rows []recommend.BasketRow) segmentFit {
	logger := e.logger.With().Str("segment", segment).Logger()
	m := BuildMatrix(Profiles(rows), e.cfg.FeatureGroups)
	n := len(m.Customers)

	model := &SegmentModel{
		Segment:       segment,
		FeatureGroups: append([]string(nil), e.cfg.FeatureGroups...),
		Columns:       m.Columns,
		K:             1,
		Customers:     n,
	}
	out := segmentFit{model: model, customers: m.Customers, labels: make([]int, n)}

	if len(m.Columns) == 0 {
		logger.Warn().Int("customers", n).Msg("No usable features in segment; assigning a single cluster")
		metrics.RecordSegment(segment, 1, 0)
		return out
	}

	scaler := FitScaler(m.X)
	x := scaler.Transform(m.X)
	model.Mean, model.Scale = scaler.Mean, scaler.Scale

	rng := rand.New(rand.NewSource(e.segmentSeed(segment))) //nolint:gosec // reproducible clustering, not security

	var chosen *Fit
	maxK := e.cfg.MaxK
	if maxK > n-1 {
		maxK = n - 1
	}

	if n < e.cfg.MinCustomers || maxK < 2 {
		chosen = KMeans(x, 1, 1, e.cfg.MaxIterations, rng)
		logger.Debug().Int("customers", n).Msg("Segment below minimum size; using k=1")
	} else {
		fits := make(map[int]*Fit, maxK)
		inertias := make(map[int]float64, maxK)
		for k := 2; k <= maxK; k++ {
			f := KMeans(x, k, e.cfg.NInit, e.cfg.MaxIterations, rng)
			fits[k] = f
			inertias[k] = f.Inertia
		}
		chosen = fits[ElbowK(inertias, maxK, e.cfg.ElbowThreshold)]
	}

	model.K = chosen.K
	model.Centers = chosen.Centers
	model.Inertia = chosen.Inertia
	out.labels = chosen.Labels

	if chosen.K >= 2 {
		model.Silhouette = Silhouette(x, chosen.Labels, chosen.K)
		if model.Silhouette < e.cfg.SilhouetteWarn {
			logger.Warn().
				Float64("silhouette", model.Silhouette).
				Float64("threshold", e.cfg.SilhouetteWarn).
				Int("k", chosen.K).
				Msg("Low cluster quality")
		}
	}

	metrics.RecordSegment(segment, model.K, model.Silhouette)
	logger.Info().
		Int("customers", n).
		Int("features", len(m.Columns)).
		Int("k", model.K).
		Float64("inertia", model.Inertia).
		Float64("silhouette", model.Silhouette).
		Msg("Segment clustered")

	return out
}

// segmentSeed derives a per-segment seed so a segment's clustering does not
// depend on which other segments are present or on worker scheduling.
func (e *Engine) segmentSeed(segment string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(segment))
	return e.seed ^ int64(h.Sum64()) //nolint:gosec // wraparound is fine for a seed
}

// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/tomtom215/basketgraph/internal/recommend"
	"github.com/tomtom215/basketgraph/internal/recommend/basket"
	"github.com/tomtom215/basketgraph/internal/recommend/cluster"
	"github.com/tomtom215/basketgraph/internal/recommend/storage"
)

// ErrNoPurchases is reported for a customer with no surviving basket rows.
var ErrNoPurchases = errors.New("customer has no purchases in the recency window")

// Placement is the cluster chosen for one customer.
type Placement struct {
	CustomerID   string               `json:"customer_id"`
	Segment      string               `json:"segment"`
	Cluster      recommend.ClusterKey `json:"-"`
	ClusterID    string               `json:"cluster_id,omitempty"`
	ModelVersion int                  `json:"model_version"`
	Err          error                `json:"-"`
	Error        string               `json:"error,omitempty"`
}

// Assigner places customers with stored segment models.
type Assigner struct {
	registry *storage.Registry
	cfg      recommend.BasketConfig
	logger   zerolog.Logger
}

// NewAssigner creates an Assigner reading models from registry.
//
//nolint:gocritic // hugeParam: zerolog.Logger is passed by value per zerolog convention
func NewAssigner(registry *storage.Registry, cfg recommend.BasketConfig, logger zerolog.Logger) *Assigner {
	return &Assigner{
		registry: registry,
		cfg:      cfg,
		logger:   logger.With().Str("component", "assigner").Logger(),
	}
}

// Assign builds purchase profiles from in and places each customer in
// customerIDs with model version (0 for the latest). An empty customerIDs
// places every customer with purchases. Per-customer failures are reported
// in Placement.Err; the returned error covers model loading and input
// defects only.
func (a *Assigner) Assign(ctx context.Context, in *recommend.Inputs, version int, customerIDs []string) ([]Placement, error) {
	models, meta, err := a.registry.Load(ctx, version)
	if err != nil {
		return nil, fmt.Errorf("load segment models: %w", err)
	}

	baskets, err := basket.NewBuilder(a.cfg, a.logger).Build(ctx, in)
	if err != nil {
		return nil, err
	}
	profiles := cluster.Profiles(baskets.Rows)

	ids := customerIDs
	if len(ids) == 0 {
		ids = make([]string, 0, len(profiles))
		for id := range profiles {
			ids = append(ids, id)
		}
		sort.Strings(ids)
	}

	segments := make(map[string]string, len(in.Customers))
	for _, c := range in.Customers {
		segments[c.ID] = c.Segment()
	}

	out := make([]Placement, 0, len(ids))
	for _, id := range ids {
		p := Placement{CustomerID: id, Segment: segments[id], ModelVersion: meta.Version}
		profile, ok := profiles[id]
		if !ok {
			p.Err = ErrNoPurchases
		} else if key, err := models.Assign(p.Segment, profile); err != nil {
			p.Err = err
		} else {
			p.Cluster = key
			p.ClusterID = key.String()
		}
		if p.Err != nil {
			p.Error = p.Err.Error()
		}
		out = append(out, p)
	}

	a.logger.Info().
		Int("model_version", meta.Version).
		Int("customers", len(out)).
		Msg("Customers assigned")
	return out, nil
}

// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/basketgraph/internal/recommend/cluster"
)

// SegmentsModelName is the model family of per-segment clustering state.
const SegmentsModelName = "segments"

// ManifestFile is the human-readable registry written next to the models.
const ManifestFile = "model_registry.json"

// Manifest describes the latest published segment model set.
type Manifest struct {
	Version   int            `json:"version"`
	RunID     string         `json:"run_id,omitempty"`
	TrainedAt time.Time      `json:"trained_at"`
	Checksum  string         `json:"checksum"`
	Segments  []SegmentEntry `json:"segments"`
}

// SegmentEntry summarises one segment model.
type SegmentEntry struct {
	Segment        string   `json:"segment"`
	K              int      `json:"k"`
	Silhouette     float64  `json:"silhouette"`
	Inertia        float64  `json:"inertia"`
	Customers      int      `json:"n_customers"`
	FeatureColumns []string `json:"feature_cols"`
}

// Registry versions cluster.Models sets on top of a Store.
type Registry struct {
	store  *Store
	dir    string
	keep   int
	logger zerolog.Logger
}

// NewRegistry opens a registry in dir keeping at most keep versions.
//
//nolint:gocritic // hugeParam: zerolog.Logger is passed by value per zerolog convention
func NewRegistry(dir string, keep int, logger zerolog.Logger) (*Registry, error) {
	store, err := NewStore(dir)
	if err != nil {
		return nil, err
	}
	return &Registry{
		store:  store,
		dir:    dir,
		keep:   keep,
		logger: logger.With().Str("component", "model_registry").Logger(),
	}, nil
}

// Publish stores models as the next version, rewrites the manifest and
// prunes old versions.
func (r *Registry) Publish(ctx context.Context, models cluster.Models, runID string, trainedAt time.Time, took time.Duration) (*Manifest, error) {
	version := 1
	if v, ok := r.store.LatestVersion(SegmentsModelName); ok {
		version = v + 1
	}

	customers := 0
	for _, m := range models {
		customers += m.Customers
	}

	meta, err := r.store.Save(ctx, SegmentsModelName, version, models, ModelMetadata{
		RunID:              runID,
		TrainedAt:          trainedAt.UTC(),
		Segments:           len(models),
		Customers:          customers,
		TrainingDurationMS: took.Milliseconds(),
	})
	if err != nil {
		return nil, fmt.Errorf("save segment models: %w", err)
	}

	manifest := &Manifest{
		Version:   meta.Version,
		RunID:     runID,
		TrainedAt: meta.TrainedAt,
		Checksum:  meta.Checksum,
		Segments:  make([]SegmentEntry, 0, len(models)),
	}
	for _, seg := range models.Segments() {
		m := models[seg]
		manifest.Segments = append(manifest.Segments, SegmentEntry{
			Segment:        m.Segment,
			K:              m.K,
			Silhouette:     m.Silhouette,
			Inertia:        m.Inertia,
			Customers:      m.Customers,
			FeatureColumns: m.Columns,
		})
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	err = WriteFileAtomic(filepath.Join(r.dir, ManifestFile), func(w io.Writer) error {
		_, werr := w.Write(data)
		return werr
	})
	if err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	if r.keep > 0 {
		removed, err := r.store.Prune(ctx, SegmentsModelName, r.keep)
		if err != nil {
			r.logger.Warn().Err(err).Msg("Failed to prune old model versions")
		} else if removed > 0 {
			r.logger.Debug().Int("removed", removed).Msg("Pruned old model versions")
		}
	}

	r.logger.Info().
		Int("version", meta.Version).
		Int("segments", meta.Segments).
		Int64("size_bytes", meta.SizeBytes).
		Msg("Segment models published")

	return manifest, nil
}

// Load returns a stored model set. Version 0 loads the latest.
func (r *Registry) Load(ctx context.Context, version int) (cluster.Models, *ModelMetadata, error) {
	var models cluster.Models
	meta, err := r.store.Load(ctx, SegmentsModelName, version, &models)
	if err != nil {
		return nil, nil, err
	}
	return models, meta, nil
}

// Versions lists stored model sets, newest first.
func (r *Registry) Versions(ctx context.Context) ([]ModelMetadata, error) {
	return r.store.List(ctx, SegmentsModelName)
}

// ReadManifest reads the manifest from dir.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile)) //nolint:gosec // dir is operator configuration
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

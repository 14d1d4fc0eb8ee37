// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package recommend

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error = %v", err)
	}

	if cfg.Ranking.TopK != 5 {
		t.Errorf("Ranking.TopK = %d, want 5", cfg.Ranking.TopK)
	}
	if got := cfg.Ranking.Weights.Sum(); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("Ranking.Weights.Sum() = %f, want 1.0", got)
	}
	if cfg.Mining.DecayRate != 0.001 {
		t.Errorf("Mining.DecayRate = %f, want 0.001", cfg.Mining.DecayRate)
	}
	if cfg.Calibration.ScoreCutoff != 0.08 {
		t.Errorf("Calibration.ScoreCutoff = %f, want 0.08", cfg.Calibration.ScoreCutoff)
	}
	if cfg.Ranking.ClampScores {
		t.Error("Ranking.ClampScores should be false by default")
	}
	if len(cfg.Cluster.FeatureGroups) != 4 {
		t.Errorf("len(Cluster.FeatureGroups) = %d, want 4", len(cfg.Cluster.FeatureGroups))
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"zero top_k", func(c *Config) { c.Ranking.TopK = 0 }, "top_k"},
		{"max_k below two", func(c *Config) { c.Cluster.MaxK = 1 }, "max_k"},
		{"elbow threshold of one", func(c *Config) { c.Cluster.ElbowThreshold = 1 }, "elbow_threshold"},
		{"negative decay", func(c *Config) { c.Mining.DecayRate = -0.1 }, "decay_rate"},
		{"negative recency cutoff", func(c *Config) { c.Basket.RecencyCutoffDays = -1 }, "recency_cutoff_days"},
		{"lift ceiling of one", func(c *Config) { c.Ranking.LiftCeiling = 1 }, "lift_ceiling"},
		{"unknown feature group", func(c *Config) { c.Cluster.FeatureGroups = []string{"colour"} }, "feature_groups"},
		{"no feature groups", func(c *Config) { c.Cluster.FeatureGroups = nil }, "feature_groups"},
		{"weights do not sum to one", func(c *Config) { c.Ranking.Weights.Confidence = 0.9 }, "ranking.weights must sum"},
		{"weights within tolerance", func(c *Config) { c.Ranking.Weights.Confidence = 0.455 }, ""},
		{"window bounds inverted", func(c *Config) { c.Mining.MinWindowDays = 100 }, "min_window_days"},
		{"medium negative above positive", func(c *Config) { c.Calibration.WeightMediumNegative = 1.1 }, "weight_medium_negative"},
		{"low above medium negative", func(c *Config) { c.Calibration.WeightLow = 0.5 }, "weight_low"},
		{"high below medium positive", func(c *Config) { c.Calibration.WeightHigh = 0.9 }, "weight_high"},
		{"neutral calibration weights", func(c *Config) {
			c.Calibration = CalibrationConfig{
				WeightHigh: 1, WeightMediumPositive: 1, WeightMediumNegative: 1,
				WeightLow: 1, WeightUnmatched: 1, ScoreCutoff: 0,
				AcceptanceTightenBelow: 0.5, AcceptanceRelaxAbove: 0.8,
			}
		}, ""},
		{"acceptance bounds inverted", func(c *Config) { c.Calibration.AcceptanceTightenBelow = 0.9 }, "acceptance_tighten_below"},
		{"acceptance bound above one", func(c *Config) { c.Calibration.AcceptanceRelaxAbove = 1.5 }, "acceptance_relax_above"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want error containing %q", tt.wantErr)
			}
			if !errors.Is(err, ErrConfiguration) {
				t.Errorf("Validate() error = %v, want ErrConfiguration", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestScoreWeights_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   ScoreWeights
		want ScoreWeights
	}{
		{
			name: "already normalized",
			in:   ScoreWeights{Confidence: 0.45, Support: 0.20, Lift: 0.20, Recency: 0.15},
			want: ScoreWeights{Confidence: 0.45, Support: 0.20, Lift: 0.20, Recency: 0.15},
		},
		{
			name: "doubled",
			in:   ScoreWeights{Confidence: 0.9, Support: 0.4, Lift: 0.4, Recency: 0.3},
			want: ScoreWeights{Confidence: 0.45, Support: 0.20, Lift: 0.20, Recency: 0.15},
		},
		{
			name: "all zero",
			in:   ScoreWeights{},
			want: ScoreWeights{Confidence: 0.25, Support: 0.25, Lift: 0.25, Recency: 0.25},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			if math.Abs(got.Confidence-tt.want.Confidence) > 1e-9 ||
				math.Abs(got.Support-tt.want.Support) > 1e-9 ||
				math.Abs(got.Lift-tt.want.Lift) > 1e-9 ||
				math.Abs(got.Recency-tt.want.Recency) > 1e-9 {
				t.Errorf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestConfig_Clone(t *testing.T) {
	cfg := DefaultConfig()
	clone := cfg.Clone()

	clone.Cluster.FeatureGroups[0] = "brand"
	clone.Ranking.TopK = 99

	if cfg.Cluster.FeatureGroups[0] != FeatureGroupL2 {
		t.Errorf("Clone() shares FeatureGroups with original")
	}
	if cfg.Ranking.TopK != 5 {
		t.Errorf("Clone() shares Ranking with original")
	}
}

func TestConfig_HasFeatureGroup(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cluster.FeatureGroups = []string{FeatureGroupL2}

	if !cfg.HasFeatureGroup(FeatureGroupL2) {
		t.Error("HasFeatureGroup(l2) = false, want true")
	}
	if cfg.HasFeatureGroup(FeatureGroupBrand) {
		t.Error("HasFeatureGroup(brand) = true, want false")
	}
}

func TestConfig_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(DefaultConfig())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	ranking, ok := decoded["ranking"].(map[string]interface{})
	if !ok {
		t.Fatalf("ranking section missing in %s", data)
	}
	if ranking["top_k"] != float64(5) {
		t.Errorf("ranking.top_k = %v, want 5", ranking["top_k"])
	}
}

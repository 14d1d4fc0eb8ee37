// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package recommend

import (
	"math"

	"github.com/goccy/go-json"

	"github.com/tomtom215/basketgraph/internal/validation"
)

// Feature groups accepted by ClusterConfig.FeatureGroups.
const (
	FeatureGroupL2         = "l2"
	FeatureGroupBrand      = "brand"
	FeatureGroupFunctional = "functional"
	FeatureGroupEngagement = "engagement"
)

// weightSumTolerance bounds how far ScoreWeights may drift from summing to 1.0.
const weightSumTolerance = 0.01

// Config holds every tunable threshold and weight of the pipeline.
type Config struct {
	Basket      BasketConfig      `koanf:"basket" json:"basket"`
	Cluster     ClusterConfig     `koanf:"cluster" json:"cluster"`
	Mining      MiningConfig      `koanf:"mining" json:"mining"`
	Ranking     RankingConfig     `koanf:"ranking" json:"ranking"`
	Calibration CalibrationConfig `koanf:"calibration" json:"calibration"`

	// Workers bounds per-segment and per-customer fan-out.
	// 0 means runtime.NumCPU().
	Workers int `koanf:"workers" json:"workers" validate:"gte=0"`

	// Seed drives k-means initialisation.
	Seed int64 `koanf:"seed" json:"seed"`
}

// BasketConfig contains Basket Builder filters.
type BasketConfig struct {
	// RecencyCutoffDays drops invoice lines older than this many days before
	// the newest invoice in the data set. 0 disables the cutoff.
	// Default: 730.
	RecencyCutoffDays int `koanf:"recency_cutoff_days" json:"recency_cutoff_days" validate:"gte=0"`

	// MinInvoices drops customers with fewer distinct invoice dates.
	// Default: 1.
	MinInvoices int `koanf:"min_invoices" json:"min_invoices" validate:"min=1"`
}

// ClusterConfig contains Cluster Engine parameters.
type ClusterConfig struct {
	// MaxK is the largest cluster count tried by elbow selection.
	// Default: 8.
	MaxK int `koanf:"max_k" json:"max_k" validate:"min=2"`

	// ElbowThreshold is the minimum fractional inertia drop that justifies
	// one more cluster. Default: 0.10.
	ElbowThreshold float64 `koanf:"elbow_threshold" json:"elbow_threshold" validate:"gt=0,lt=1"`

	// MinCustomers is the segment size below which k=1 is used.
	// Default: 6.
	MinCustomers int `koanf:"min_customers" json:"min_customers" validate:"min=1"`

	// FeatureGroups selects the feature blocks of the clustering matrix.
	FeatureGroups []string `koanf:"feature_groups" json:"feature_groups" validate:"min=1,dive,oneof=l2 brand functional engagement"`

	// SilhouetteWarn logs a quality warning below this score.
	// Default: 0.2.
	SilhouetteWarn float64 `koanf:"silhouette_warn" json:"silhouette_warn" validate:"gte=-1,lte=1"`

	// NInit is the number of k-means restarts per k.
	// Default: 10.
	NInit int `koanf:"n_init" json:"n_init" validate:"min=1"`

	// MaxIterations caps Lloyd iterations per restart.
	// Default: 300.
	MaxIterations int `koanf:"max_iterations" json:"max_iterations" validate:"min=1"`
}

// MiningConfig contains Association Miner parameters.
type MiningConfig struct {
	// WindowDays is the basket session gap. 0 selects the data-driven window.
	WindowDays int `koanf:"window_days" json:"window_days" validate:"gte=0"`

	// MinWindowDays and MaxWindowDays clamp the auto window.
	MinWindowDays int `koanf:"min_window_days" json:"min_window_days" validate:"min=1"`
	MaxWindowDays int `koanf:"max_window_days" json:"max_window_days" validate:"min=1"`

	// DefaultWindowDays is used when no customer has two purchase dates.
	DefaultWindowDays int `koanf:"default_window_days" json:"default_window_days" validate:"min=1"`

	// MinPairFloor is the absolute floor of the antecedent frequency threshold.
	// Default: 2.
	MinPairFloor int `koanf:"min_pair_floor" json:"min_pair_floor" validate:"min=1"`

	// MinPairRatio scales the antecedent threshold with cluster basket count.
	// Default: 0.03.
	MinPairRatio float64 `koanf:"min_pair_ratio" json:"min_pair_ratio" validate:"unit"`

	// MinLift drops pairs without genuine affinity. Default: 1.2.
	MinLift float64 `koanf:"min_lift" json:"min_lift" validate:"gte=0"`

	// MinSupport and MinConfidence are optional mining-time floors. Default: 0.
	MinSupport    float64 `koanf:"min_support" json:"min_support" validate:"unit"`
	MinConfidence float64 `koanf:"min_confidence" json:"min_confidence" validate:"unit"`

	// DecayRate is lambda in exp(-lambda * age_days). Default: 0.001.
	DecayRate float64 `koanf:"decay_rate" json:"decay_rate" validate:"gte=0"`
}

// ScoreWeights are the ranking score component weights.
type ScoreWeights struct {
	Confidence float64 `koanf:"confidence" json:"confidence" validate:"unit"`
	Support    float64 `koanf:"support" json:"support" validate:"unit"`
	Lift       float64 `koanf:"lift" json:"lift" validate:"unit"`
	Recency    float64 `koanf:"recency" json:"recency" validate:"unit"`
}

// Sum returns the total of all weights.
func (w ScoreWeights) Sum() float64 {
	return w.Confidence + w.Support + w.Lift + w.Recency
}

// Normalize returns a copy with weights normalized to sum to 1.0.
func (w ScoreWeights) Normalize() ScoreWeights {
	sum := w.Sum()
	if sum == 0 {
		return ScoreWeights{Confidence: 0.25, Support: 0.25, Lift: 0.25, Recency: 0.25}
	}
	return ScoreWeights{
		Confidence: w.Confidence / sum,
		Support:    w.Support / sum,
		Lift:       w.Lift / sum,
		Recency:    w.Recency / sum,
	}
}

// RankingConfig contains Ranker parameters.
type RankingConfig struct {
	// TopK is the maximum recommendations per customer. Default: 5.
	TopK int `koanf:"top_k" json:"top_k" validate:"min=1,max=1000"`

	MinSupport    float64 `koanf:"min_support" json:"min_support" validate:"unit"`
	MinConfidence float64 `koanf:"min_confidence" json:"min_confidence" validate:"unit"`
	MinLift       float64 `koanf:"min_lift" json:"min_lift" validate:"gte=0"`

	Weights ScoreWeights `koanf:"weights" json:"weights"`

	// LiftCeiling maps lift onto [0, 1] as (lift-1)/(ceiling-1). Default: 5.
	LiftCeiling float64 `koanf:"lift_ceiling" json:"lift_ceiling" validate:"gt=1"`

	// TieBreakMargin scales the L3 sub-category bonus. Default: 0.02.
	TieBreakMargin float64 `koanf:"tie_break_margin" json:"tie_break_margin" validate:"unit"`

	// FallbackFloor is the constant part of the fallback score. Default: 0.1.
	FallbackFloor float64 `koanf:"fallback_floor" json:"fallback_floor" validate:"unit"`

	// ClampScores clamps final scores to [0, 1] after the tie-break bonus.
	// Default: false.
	ClampScores bool `koanf:"clamp_scores" json:"clamp_scores"`
}

// CalibrationConfig contains Feedback Calibrator parameters.
type CalibrationConfig struct {
	WeightHigh           float64 `koanf:"weight_high" json:"weight_high" validate:"gte=0"`
	WeightMediumPositive float64 `koanf:"weight_medium_positive" json:"weight_medium_positive" validate:"gte=0"`
	WeightMediumNegative float64 `koanf:"weight_medium_negative" json:"weight_medium_negative" validate:"gte=0"`
	WeightLow            float64 `koanf:"weight_low" json:"weight_low" validate:"gte=0"`
	WeightUnmatched      float64 `koanf:"weight_unmatched" json:"weight_unmatched" validate:"gte=0"`

	// ScoreCutoff drops calibrated rows scoring below it. Default: 0.08.
	ScoreCutoff float64 `koanf:"score_cutoff" json:"score_cutoff" validate:"gte=0"`

	// WindowDays ignores feedback older than this, measured from the newest
	// feedback record. 0 disables the window. Default: 365.
	WindowDays int `koanf:"window_days" json:"window_days" validate:"gte=0"`

	// AcceptanceTightenBelow and AcceptanceRelaxAbove bound the acceptance
	// rate outside which the summary suggests tighter or looser thresholds.
	// Defaults: 0.5 and 0.8.
	AcceptanceTightenBelow float64 `koanf:"acceptance_tighten_below" json:"acceptance_tighten_below" validate:"unit"`
	AcceptanceRelaxAbove   float64 `koanf:"acceptance_relax_above" json:"acceptance_relax_above" validate:"unit"`
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() *Config {
	return &Config{
		Basket: BasketConfig{
			RecencyCutoffDays: 730,
			MinInvoices:       1,
		},
		Cluster: ClusterConfig{
			MaxK:           8,
			ElbowThreshold: 0.10,
			MinCustomers:   6,
			FeatureGroups: []string{
				FeatureGroupL2, FeatureGroupBrand, FeatureGroupFunctional, FeatureGroupEngagement,
			},
			SilhouetteWarn: 0.2,
			NInit:          10,
			MaxIterations:  300,
		},
		Mining: MiningConfig{
			WindowDays:        0,
			MinWindowDays:     7,
			MaxWindowDays:     90,
			DefaultWindowDays: 30,
			MinPairFloor:      2,
			MinPairRatio:      0.03,
			MinLift:           1.2,
			DecayRate:         0.001,
		},
		Ranking: RankingConfig{
			TopK:          5,
			MinSupport:    0.01,
			MinConfidence: 0.05,
			MinLift:       1.2,
			Weights: ScoreWeights{
				Confidence: 0.45,
				Support:    0.20,
				Lift:       0.20,
				Recency:    0.15,
			},
			LiftCeiling:    5.0,
			TieBreakMargin: 0.02,
			FallbackFloor:  0.1,
			ClampScores:    false,
		},
		Calibration: CalibrationConfig{
			WeightHigh:           1.3,
			WeightMediumPositive: 1.0,
			WeightMediumNegative: 0.4,
			WeightLow:            0.1,
			WeightUnmatched:      1.0,
			ScoreCutoff:          0.08,
			WindowDays:           365,

			AcceptanceTightenBelow: 0.5,
			AcceptanceRelaxAbove:   0.8,
		},
		Workers: 0,
		Seed:    42,
	}
}

// Validate checks the configuration for errors. Every failure wraps
// ErrConfiguration so callers can fail fast before any stage runs.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return ConfigError("%v", err)
	}

	if c.Mining.MinWindowDays > c.Mining.MaxWindowDays {
		return ConfigError("mining.min_window_days must be <= mining.max_window_days, got %d > %d",
			c.Mining.MinWindowDays, c.Mining.MaxWindowDays)
	}

	sum := c.Ranking.Weights.Sum()
	if math.Abs(sum-1.0) > weightSumTolerance {
		return ConfigError("ranking.weights must sum to 1.0 (+/- %.2f), got %.4f", weightSumTolerance, sum)
	}

	cal := c.Calibration
	if cal.WeightMediumNegative > cal.WeightMediumPositive {
		return ConfigError("calibration.weight_medium_negative must be <= weight_medium_positive, got %.2f > %.2f",
			cal.WeightMediumNegative, cal.WeightMediumPositive)
	}
	if cal.WeightLow > cal.WeightMediumNegative {
		return ConfigError("calibration.weight_low must be <= weight_medium_negative, got %.2f > %.2f",
			cal.WeightLow, cal.WeightMediumNegative)
	}
	if cal.WeightHigh < cal.WeightMediumPositive {
		return ConfigError("calibration.weight_high must be >= weight_medium_positive, got %.2f < %.2f",
			cal.WeightHigh, cal.WeightMediumPositive)
	}
	if cal.AcceptanceTightenBelow >= cal.AcceptanceRelaxAbove {
		return ConfigError("calibration.acceptance_tighten_below must be < acceptance_relax_above, got %.2f >= %.2f",
			cal.AcceptanceTightenBelow, cal.AcceptanceRelaxAbove)
	}

	return nil
}

// HasFeatureGroup reports whether the named feature group is enabled.
func (c *Config) HasFeatureGroup(name string) bool {
	for _, g := range c.Cluster.FeatureGroups {
		if g == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Cluster.FeatureGroups = append([]string(nil), c.Cluster.FeatureGroups...)
	return &clone
}

// MarshalJSON renders the configuration for run manifests.
func (c *Config) MarshalJSON() ([]byte, error) {
	type Alias Config
	return json.Marshal((*Alias)(c))
}

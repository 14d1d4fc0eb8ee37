// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package feedback

import (
	"strings"

	"github.com/tomtom215/basketgraph/internal/recommend"
)

// Sentiment is the resolved reviewer verdict.
type Sentiment int

const (
	// SentimentNone means the record carried no usable signal.
	SentimentNone Sentiment = iota
	SentimentHigh
	SentimentMediumPositive
	SentimentMediumNegative
	SentimentLow
)

// String returns the summary label.
func (s Sentiment) String() string {
	switch s {
	case SentimentHigh:
		return "high"
	case SentimentMediumPositive:
		return "medium_positive"
	case SentimentMediumNegative:
		return "medium_negative"
	case SentimentLow:
		return "low"
	default:
		return "none"
	}
}

// NegativeReasonCodes resolve a Medium rating to Medium negative.
var NegativeReasonCodes = map[string]struct{}{
	"not_relevant":            {},
	"wrong_category":          {},
	"already_have_contract":   {},
	"customer_not_interested": {},
	"price_too_high":          {},
	"out_of_territory":        {},
	"competitor_product":      {},
	"not_applicable":          {},
	"poor_quality_signal":     {},
}

// PositiveReasonCodes resolve a Medium rating to Medium positive.
var PositiveReasonCodes = map[string]struct{}{
	"good_fit":             {},
	"high_potential":       {},
	"customer_interested":  {},
	"complements_existing": {},
	"strong_affinity":      {},
	"recommended_and_sold": {},
}

// NormalizeReasonCode lower-cases and trims a reason code.
func NormalizeReasonCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// Resolve maps a signal to a Sentiment. High and Low ratings are final. A
// Medium rating, or an absent rating with a polarity or reason code, is
// resolved by polarity first, then by reason code.
func Resolve(sig recommend.Signal) Sentiment {
	switch sig.Rating {
	case recommend.RatingHigh:
		return SentimentHigh
	case recommend.RatingLow:
		return SentimentLow
	case recommend.RatingMedium:
		return resolveMedium(sig)
	}

	if sig.Polarity != recommend.PolarityAbsent || NormalizeReasonCode(sig.ReasonCode) != "" {
		return resolveMedium(sig)
	}
	return SentimentNone
}

func resolveMedium(sig recommend.Signal) Sentiment {
	switch sig.Polarity {
	case recommend.PolarityPositive:
		return SentimentMediumPositive
	case recommend.PolarityNegative:
		return SentimentMediumNegative
	}
	if _, ok := NegativeReasonCodes[NormalizeReasonCode(sig.ReasonCode)]; ok {
		return SentimentMediumNegative
	}
	return SentimentMediumPositive
}

// Weight returns the score multiplier for s under cfg.
func Weight(cfg recommend.CalibrationConfig, s Sentiment) float64 {
	switch s {
	case SentimentHigh:
		return cfg.WeightHigh
	case SentimentMediumPositive:
		return cfg.WeightMediumPositive
	case SentimentMediumNegative:
		return cfg.WeightMediumNegative
	case SentimentLow:
		return cfg.WeightLow
	default:
		return cfg.WeightUnmatched
	}
}

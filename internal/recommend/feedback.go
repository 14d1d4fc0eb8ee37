// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package recommend

import (
	"strings"
	"time"
)

// Rating is the explicit reviewer rating on a recommendation.
type Rating int

const (
	// RatingAbsent means the row carries no explicit rating.
	RatingAbsent Rating = iota
	RatingHigh
	RatingMedium
	RatingLow
)

// ParseRating maps free-form text to a Rating. Unrecognised text is RatingAbsent.
func ParseRating(s string) Rating {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return RatingHigh
	case "medium":
		return RatingMedium
	case "low":
		return RatingLow
	default:
		return RatingAbsent
	}
}

// String returns the canonical rating label.
func (r Rating) String() string {
	switch r {
	case RatingHigh:
		return "High"
	case RatingMedium:
		return "Medium"
	case RatingLow:
		return "Low"
	default:
		return ""
	}
}

// Polarity is the optional explicit sentiment direction attached to a Medium rating.
type Polarity int

const (
	PolarityAbsent Polarity = iota
	PolarityPositive
	PolarityNegative
)

// ParsePolarity maps "positive"/"negative" to a Polarity.
func ParsePolarity(s string) Polarity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive":
		return PolarityPositive
	case "negative":
		return PolarityNegative
	default:
		return PolarityAbsent
	}
}

// Signal is the reviewer signal on one recommendation. Any field may be absent;
// the zero value carries no signal at all.
type Signal struct {
	Rating     Rating
	Polarity   Polarity
	ReasonCode string
}

// FeedbackRecord is one reviewer verdict on a (customer, product) recommendation.
// A zero Date means the record is undated and never falls outside the window.
type FeedbackRecord struct {
	CustomerID string
	ProductID  string
	Signal     Signal
	Date       time.Time
}

// FeedbackSource is either a set of records or an explicit unavailable marker.
// The zero value is an available source with no records.
type FeedbackSource struct {
	Records     []FeedbackRecord
	Unavailable bool
	Reason      string
}

// FeedbackAvailable wraps loaded feedback records.
func FeedbackAvailable(records []FeedbackRecord) FeedbackSource {
	return FeedbackSource{Records: records}
}

// FeedbackUnavailable marks the feedback source as missing for this run.
func FeedbackUnavailable(reason string) FeedbackSource {
	return FeedbackSource{Unavailable: true, Reason: reason}
}

// Empty reports whether the source has nothing to calibrate with.
func (s FeedbackSource) Empty() bool {
	return s.Unavailable || len(s.Records) == 0
}

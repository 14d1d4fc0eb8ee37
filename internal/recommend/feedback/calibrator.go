// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package feedback

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/basketgraph/internal/metrics"
	"github.com/tomtom215/basketgraph/internal/recommend"
)

// Result is the Feedback Calibrator output.
type Result struct {
	// Recommendations is sorted by customer id, then rank.
	Recommendations []recommend.Recommendation

	Summary Summary

	// Applied is false when the input passed through unchanged.
	Applied bool
}

// Counts flattens the result for logs and checkpoints.
func (r *Result) Counts() map[string]int {
	return map[string]int{
		"rows_in":       r.Summary.RowsIn,
		"rows_out":      r.Summary.RowsOut,
		"rows_dropped":  r.Summary.RowsDropped,
		"rows_matched":  r.Summary.RowsMatched,
		"feedback_rows": r.Summary.TotalFeedbackRows,
	}
}

// Calibrator applies reviewer feedback to ranked recommendations.
type Calibrator struct {
	cfg           recommend.CalibrationConfig
	topK          int
	minConfidence float64
	logger        zerolog.Logger
}

// NewCalibrator creates a Feedback Calibrator. topK and minConfidence come
// from the ranking configuration.
//
//nolint:gocritic // hugeParam: zerolog.Logger is passed by value per zerolog convention
func NewCalibrator(cfg recommend.CalibrationConfig, topK int, minConfidence float64, logger zerolog.Logger) *Calibrator {
	return &Calibrator{
		cfg:           cfg,
		topK:          topK,
		minConfidence: minConfidence,
		logger:        logger.With().Str("component", "calibration").Logger(),
	}
}

type pairKey struct {
	customer string
	product  string
}

// verdict is the deduplicated feedback for one (customer, product).
type verdict struct {
	sentiment Sentiment
	weight    float64
	date      time.Time
}

// Calibrate reweights recs by feedback from src. ref anchors the feedback
// window; a zero ref uses the newest feedback date. recs must be ordered by
// customer then rank, as the Ranker emits them.
func (c *Calibrator) Calibrate(ctx context.Context, recs []recommend.Recommendation, src recommend.FeedbackSource, ref time.Time) (*Result, error) {
	if recommend.ContextCancelled(ctx) {
		return nil, ctx.Err()
	}

	records, notice := c.usable(src, ref)
	if notice != "" {
		out := append([]recommend.Recommendation(nil), recs...)
		res := &Result{
			Recommendations: out,
			Summary:         c.Summarize(nil, recs, len(out)),
		}
		res.Summary.Notice = notice
		if src.Unavailable {
			c.logger.Warn().Str("reason", src.Reason).Msg(notice)
		} else {
			c.logger.Info().Msg(notice)
		}
		return res, nil
	}

	verdicts := c.dedupe(records)

	scored := make([]recommend.Recommendation, 0, len(recs))
	matched, dropped := 0, 0
	for _, r := range recs {
		w := c.cfg.WeightUnmatched
		if v, ok := verdicts[pairKey{customer: r.CustomerID, product: r.ProductID}]; ok {
			w = v.weight
			matched++
		}
		r.Score *= w
		if r.Score < c.cfg.ScoreCutoff {
			dropped++
			continue
		}
		scored = append(scored, r)
	}

	out := c.rerank(scored)
	metrics.RecordDropped(recommend.StageCalibration, "below_cutoff", dropped)

	summary := c.Summarize(records, recs, len(out))
	summary.RowsMatched = matched
	summary.RowsDropped = len(recs) - len(out)
	metrics.FeedbackAcceptanceRate.Set(summary.Overall.AcceptanceRate)

	c.logger.Info().
		Int("feedback_rows", len(records)).
		Int("rows_in", len(recs)).
		Int("matched", matched).
		Int("below_cutoff", dropped).
		Int("rows_out", len(out)).
		Float64("acceptance_rate", summary.Overall.AcceptanceRate).
		Msg("Calibration complete")

	return &Result{Recommendations: out, Summary: summary, Applied: true}, nil
}

// usable applies the feedback window. A non-empty notice means calibration
// is skipped.
func (c *Calibrator) usable(src recommend.FeedbackSource, ref time.Time) ([]recommend.FeedbackRecord, string) {
	if src.Unavailable {
		return nil, "Feedback source unavailable; publishing recommendations unchanged"
	}
	if len(src.Records) == 0 {
		return nil, "No feedback records; publishing recommendations unchanged"
	}
	if c.cfg.WindowDays == 0 {
		return src.Records, ""
	}

	if ref.IsZero() {
		for _, r := range src.Records {
			if r.Date.After(ref) {
				ref = r.Date
			}
		}
	}
	cutoff := recommend.TruncateDay(ref).AddDate(0, 0, -c.cfg.WindowDays)

	kept := make([]recommend.FeedbackRecord, 0, len(src.Records))
	for _, r := range src.Records {
		if r.Date.IsZero() || !recommend.TruncateDay(r.Date).Before(cutoff) {
			kept = append(kept, r)
		}
	}
	if stale := len(src.Records) - len(kept); stale > 0 {
		metrics.RecordDropped(recommend.StageCalibration, "stale_feedback", stale)
		c.logger.Debug().Int("stale", stale).Int("window_days", c.cfg.WindowDays).Msg("Feedback outside window ignored")
	}
	if len(kept) == 0 {
		return nil, "No feedback inside the recency window; publishing recommendations unchanged"
	}
	return kept, ""
}

// dedupe keeps the most recent record per (customer, product). Undated
// records lose to dated ones; among equal dates the later record wins.
func (c *Calibrator) dedupe(records []recommend.FeedbackRecord) map[pairKey]verdict {
	out := make(map[pairKey]verdict, len(records))
	for _, r := range records {
		k := pairKey{customer: r.CustomerID, product: r.ProductID}
		if cur, ok := out[k]; ok && r.Date.Before(cur.date) {
			continue
		}
		s := Resolve(r.Signal)
		out[k] = verdict{sentiment: s, weight: Weight(c.cfg, s), date: r.Date}
	}
	return out
}

// rerank orders each customer's rows by score, keeping the previous rank
// order for ties, then truncates to topK and renumbers.
func (c *Calibrator) rerank(recs []recommend.Recommendation) []recommend.Recommendation {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.CustomerID != b.CustomerID {
			return a.CustomerID < b.CustomerID
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Rank < b.Rank
	})

	out := recs[:0]
	var cur string
	rank := 0
	for _, r := range recs {
		if r.CustomerID != cur {
			cur = r.CustomerID
			rank = 0
		}
		rank++
		if rank > c.topK {
			continue
		}
		r.Rank = rank
		out = append(out, r)
	}
	return out
}

// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package feedback

import (
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/basketgraph/internal/recommend"
	"github.com/tomtom215/basketgraph/internal/recommend/ranking"
)

// notProvided labels records without a reason code.
const notProvided = "not_provided"

// Summary is the calibration-summary record published each run.
type Summary struct {
	GeneratedAt       time.Time `json:"generated_at"`
	FeedbackAvailable bool      `json:"feedback_available"`
	Notice            string    `json:"notice,omitempty"`

	TotalFeedbackRows int `json:"total_feedback_rows"`
	RowsIn            int `json:"rows_in"`
	RowsOut           int `json:"rows_out"`
	RowsDropped       int `json:"rows_dropped"`
	RowsMatched       int `json:"rows_matched"`

	Overall                Rates                `json:"overall"`
	BySegment              map[string]GroupRate `json:"by_segment"`
	ByL2Category           map[string]GroupRate `json:"by_l2_category"`
	ReasonCodeDistribution map[string]int       `json:"reason_code_distribution"`
	ThresholdSuggestions   Suggestions          `json:"threshold_suggestions"`

	// Validation is filled by the pipeline over the final set.
	Validation *ranking.Report `json:"validation,omitempty"`
}

// Rates are shares of feedback rows.
type Rates struct {
	AcceptanceRate     float64 `json:"acceptance_rate"`
	HighRate           float64 `json:"high_rate"`
	MediumPositiveRate float64 `json:"medium_positive_rate"`
	MediumNegativeRate float64 `json:"medium_negative_rate"`
	LowRate            float64 `json:"low_rate"`
}

// GroupRate is the acceptance rate of one group.
type GroupRate struct {
	N              int     `json:"n"`
	AcceptanceRate float64 `json:"acceptance_rate"`
}

// Suggestions are advisory threshold changes for the next run.
type Suggestions struct {
	MinConfidence float64 `json:"min_confidence"`
	ScoreCutoff   float64 `json:"score_cutoff"`
	Rationale     string  `json:"rationale"`
}

// Summarize builds the calibration summary from windowed feedback records
// and the pre-calibration recommendations. Segment and L2 rates only count
// records that match a recommendation.
func (c *Calibrator) Summarize(records []recommend.FeedbackRecord, recs []recommend.Recommendation, rowsOut int) Summary {
	s := Summary{
		GeneratedAt:            time.Now().UTC(),
		FeedbackAvailable:      len(records) > 0,
		TotalFeedbackRows:      len(records),
		RowsIn:                 len(recs),
		RowsOut:                rowsOut,
		RowsDropped:            len(recs) - rowsOut,
		BySegment:              make(map[string]GroupRate),
		ByL2Category:           make(map[string]GroupRate),
		ReasonCodeDistribution: make(map[string]int),
	}

	byPair := make(map[pairKey]*recommend.Recommendation, len(recs))
	for i := range recs {
		byPair[pairKey{customer: recs[i].CustomerID, product: recs[i].ProductID}] = &recs[i]
	}

	type tally struct{ n, accepted int }
	segs := make(map[string]*tally)
	l2s := make(map[string]*tally)
	bump := func(m map[string]*tally, key string, accepted bool) {
		t, ok := m[key]
		if !ok {
			t = &tally{}
			m[key] = t
		}
		t.n++
		if accepted {
			t.accepted++
		}
	}

	var accepted, high, medPos, medNeg, low int
	for _, r := range records {
		sent := Resolve(r.Signal)
		ok := Weight(c.cfg, sent) >= c.cfg.WeightMediumPositive
		if ok {
			accepted++
		}
		switch sent {
		case SentimentHigh:
			high++
		case SentimentMediumPositive:
			medPos++
		case SentimentMediumNegative:
			medNeg++
		case SentimentLow:
			low++
		}

		code := NormalizeReasonCode(r.Signal.ReasonCode)
		if code == "" {
			code = notProvided
		}
		s.ReasonCodeDistribution[code]++

		if rec, found := byPair[pairKey{customer: r.CustomerID, product: r.ProductID}]; found {
			bump(segs, rec.Segment, ok)
			bump(l2s, rec.L2, ok)
		}
	}

	total := len(records)
	s.Overall = Rates{
		AcceptanceRate:     rate(accepted, total),
		HighRate:           rate(high, total),
		MediumPositiveRate: rate(medPos, total),
		MediumNegativeRate: rate(medNeg, total),
		LowRate:            rate(low, total),
	}
	for k, t := range segs {
		s.BySegment[k] = GroupRate{N: t.n, AcceptanceRate: rate(t.accepted, t.n)}
	}
	for k, t := range l2s {
		s.ByL2Category[k] = GroupRate{N: t.n, AcceptanceRate: rate(t.accepted, t.n)}
	}

	s.ThresholdSuggestions = Suggest(s.Overall.AcceptanceRate, total > 0, c.minConfidence, c.cfg)
	return s
}

// Suggest derives advisory thresholds from the acceptance rate, tightening
// below cfg.AcceptanceTightenBelow and relaxing above cfg.AcceptanceRelaxAbove.
// Without feedback both thresholds are held.
//
//nolint:gocritic // hugeParam: config is read-only
func Suggest(acceptance float64, haveFeedback bool, minConfidence float64, cfg recommend.CalibrationConfig) Suggestions {
	scoreCutoff := cfg.ScoreCutoff
	tightenBelow, relaxAbove := cfg.AcceptanceTightenBelow, cfg.AcceptanceRelaxAbove
	if !haveFeedback {
		return Suggestions{
			MinConfidence: minConfidence,
			ScoreCutoff:   scoreCutoff,
			Rationale:     "No feedback. Holding thresholds.",
		}
	}

	out := Suggestions{MinConfidence: minConfidence, ScoreCutoff: scoreCutoff}
	verb := "Holding"
	switch {
	case acceptance < tightenBelow:
		verb = "Tightening"
		out.MinConfidence = recommend.Round(math.Min(0.20, minConfidence+(tightenBelow-acceptance)*0.3), 3)
		out.ScoreCutoff = recommend.Round(math.Min(0.20, scoreCutoff+0.02), 3)
	case acceptance > relaxAbove:
		verb = "Relaxing"
		out.MinConfidence = recommend.Round(math.Max(0.02, minConfidence-(acceptance-relaxAbove)*0.1), 3)
		out.ScoreCutoff = recommend.Round(math.Max(0.04, scoreCutoff-0.01), 3)
	}
	out.Rationale = fmt.Sprintf("Acceptance rate=%.2f. %s thresholds.", acceptance, verb)
	return out
}

func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return recommend.Round(float64(n)/float64(total), 4)
}

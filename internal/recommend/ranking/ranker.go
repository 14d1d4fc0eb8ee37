// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package ranking

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/tomtom215/basketgraph/internal/metrics"
	"github.com/tomtom215/basketgraph/internal/recommend"
)

// Input is everything the Ranker reads from upstream stages.
type Input struct {
	Rows     []recommend.BasketRow
	Catalog  map[string]recommend.Product
	Clusters map[string]recommend.ClusterKey
	Rules    []recommend.Rule
}

// Result is the Ranker output.
type Result struct {
	// Recommendations is sorted by customer id, then rank.
	Recommendations []recommend.Recommendation

	Report Report

	Customers   int
	Primary     int
	Fallback    int
	Empty       int
	Unclustered int
}

// Counts flattens the result for logs and checkpoints.
func (r *Result) Counts() map[string]int {
	return map[string]int{
		"recommendations": len(r.Recommendations),
		"customers":       r.Customers,
		"primary":         r.Primary,
		"fallback":        r.Fallback,
		"empty":           r.Empty,
		"unclustered":     r.Unclustered,
	}
}

// Ranker produces top-K recommendations per customer.
type Ranker struct {
	cfg     recommend.RankingConfig
	weights recommend.ScoreWeights
	workers int
	logger  zerolog.Logger
}

// NewRanker creates a Ranker. Weights are normalised to sum to 1.
//
//nolint:gocritic // hugeParam: zerolog.Logger is passed by value per zerolog convention
func NewRanker(cfg recommend.RankingConfig, workers int, logger zerolog.Logger) *Ranker {
	return &Ranker{
		cfg:     cfg,
		weights: cfg.Weights.Normalize(),
		workers: workers,
		logger:  logger.With().Str("component", "ranking").Logger(),
	}
}

// candidate is a scored target before rank assignment.
type candidate struct {
	rec   recommend.Recommendation
	bonus float64
	pop   int
}

// Rank scores every clustered customer in in.Rows.
func (r *Ranker) Rank(ctx context.Context, in *Input) (*Result, error) {
	profiles, unclustered := buildProfiles(in.Rows, in.Clusters)
	res := &Result{Customers: len(profiles), Unclustered: len(unclustered)}
	if len(unclustered) > 0 {
		metrics.RecordDropped(recommend.StageRanking, "unclustered_customer", len(unclustered))
		r.logger.Warn().Int("customers", len(unclustered)).Msg("Customers without a cluster skipped")
	}

	idx := indexRules(in.Rules)
	popularity := segmentPopularity(in.Rows, in.Clusters)

	ids := recommend.SortedKeys(profiles)
	perCustomer := make([][]recommend.Recommendation, len(ids))

	err := recommend.ForEach(ctx, r.workers, len(ids), func(_ context.Context, i int) error {
		p := profiles[ids[i]]
		perCustomer[i] = r.rankCustomer(p, idx[p.cluster], popularity[p.segment], in.Catalog)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, recs := range perCustomer {
		if len(recs) == 0 {
			res.Empty++
		}
		for i := range recs {
			if recs[i].IsFallback() {
				res.Fallback++
			} else {
				res.Primary++
			}
		}
		res.Recommendations = append(res.Recommendations, recs...)
	}
	metrics.RecordRecommendations(res.Primary, res.Fallback)

	res.Report = Validate(res.Recommendations, in.Rows, in.Catalog, r.cfg.TopK)
	if !res.Report.OK() {
		r.logger.Warn().Interface("report", res.Report).Msg("Recommendation set failed validation")
	}

	r.logger.Info().
		Int("customers", res.Customers).
		Int("recommendations", len(res.Recommendations)).
		Int("primary", res.Primary).
		Int("fallback", res.Fallback).
		Int("empty", res.Empty).
		Msg("Ranking complete")

	return res, nil
}

// ruleIndex maps antecedent to rules for one cluster.
type ruleIndex map[string][]recommend.Rule

func indexRules(rules []recommend.Rule) map[recommend.ClusterKey]ruleIndex {
	out := make(map[recommend.ClusterKey]ruleIndex)
	for i := range rules {
		rule := rules[i]
		ci, ok := out[rule.Cluster]
		if !ok {
			ci = make(ruleIndex)
			out[rule.Cluster] = ci
		}
		ci[rule.Antecedent] = append(ci[rule.Antecedent], rule)
	}
	return out
}

func (r *Ranker) rankCustomer(p *customerProfile, rules ruleIndex, popularity map[string]int, catalog map[string]recommend.Product) []recommend.Recommendation {
	best := r.primaryCandidates(p, rules, popularity, catalog)

	cands := make([]candidate, 0, r.cfg.TopK)
	for _, id := range recommend.SortedKeys(best) {
		cands = append(cands, *best[id])
	}
	if len(cands) < r.cfg.TopK {
		cands = append(cands, r.fallbackCandidates(p, best, popularity, catalog, r.cfg.TopK-len(cands))...)
	}

	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.rec.Score != b.rec.Score {
			return a.rec.Score > b.rec.Score
		}
		if a.bonus != b.bonus {
			return a.bonus > b.bonus
		}
		if a.pop != b.pop {
			return a.pop > b.pop
		}
		return a.rec.ProductID < b.rec.ProductID
	})
	if len(cands) > r.cfg.TopK {
		cands = cands[:r.cfg.TopK]
	}

	out := make([]recommend.Recommendation, len(cands))
	for i := range cands {
		out[i] = cands[i].rec
		out[i].Rank = i + 1
	}
	return out
}

// primaryCandidates returns the best-scoring rule per target product.
func (r *Ranker) primaryCandidates(p *customerProfile, rules ruleIndex, popularity map[string]int, catalog map[string]recommend.Product) map[string]*candidate {
	best := make(map[string]*candidate)
	if len(rules) == 0 {
		return best
	}

	for _, a := range recommend.SortedKeys(p.owned) {
		for _, rule := range rules[a] {
			target, ok := catalog[rule.Consequent]
			if !ok || !target.InStock || p.owns(rule.Consequent) {
				continue
			}
			if rule.Support < r.cfg.MinSupport || rule.Confidence < r.cfg.MinConfidence || rule.Lift < r.cfg.MinLift {
				continue
			}

			bonus := p.l3Share[target.L3] * r.cfg.TieBreakMargin
			score := r.score(rule, p.recencyScore) + bonus
			if r.cfg.ClampScores {
				score = recommend.Clamp01(score)
			}

			if cur, ok := best[rule.Consequent]; ok && cur.rec.Score >= score {
				continue
			}

			trigger := catalog[rule.Antecedent]
			best[rule.Consequent] = &candidate{
				bonus: bonus,
				pop:   popularity[rule.Consequent],
				rec: recommend.Recommendation{
					CustomerID:        p.id,
					Segment:           p.segment,
					Cluster:           p.cluster,
					ProductID:         target.ID,
					ProductName:       target.Name,
					Brand:             target.Brand,
					L2:                target.L2,
					L3:                target.L3,
					TriggerProductID:  rule.Antecedent,
					TriggerName:       trigger.Name,
					Support:           rule.Support,
					Confidence:        rule.Confidence,
					Lift:              rule.Lift,
					Score:             score,
					SuggestedQuantity: suggestedQuantity([]float64{p.perOrder[rule.Antecedent]}),
					Reason: fmt.Sprintf("%s → %s (support=%.3f, confidence=%.3f, lift=%.2f)",
						rule.Antecedent, rule.Consequent, rule.Support, rule.Confidence, rule.Lift),
				},
			}
		}
	}
	return best
}

// score is the weighted rule score before the L3 bonus.
func (r *Ranker) score(rule recommend.Rule, recency float64) float64 {
	w := r.weights
	return w.Confidence*recommend.Clamp01(rule.Confidence) +
		w.Support*recommend.Clamp01(rule.WeightedSupport) +
		w.Lift*LiftNorm(rule.Lift, r.cfg.LiftCeiling) +
		w.Recency*recommend.Clamp01(recency)
}

// LiftNorm maps lift onto [0, 1]: 1 maps to 0 and ceiling maps to 1.
func LiftNorm(lift, ceiling float64) float64 {
	if ceiling <= 1 {
		return 0
	}
	return recommend.Clamp01((lift - 1) / (ceiling - 1))
}

func (r *Ranker) fallbackCandidates(p *customerProfile, taken map[string]*candidate, popularity map[string]int, catalog map[string]recommend.Product, slots int) []candidate {
	type pooled struct {
		product  recommend.Product
		affinity float64
		pop      int
	}

	var pool []pooled
	for id, pop := range popularity {
		if p.owns(id) {
			continue
		}
		if _, ok := taken[id]; ok {
			continue
		}
		prod, ok := catalog[id]
		if !ok || !prod.InStock {
			continue
		}
		pool = append(pool, pooled{product: prod, affinity: p.l2Share[prod.L2], pop: pop})
	}

	sort.Slice(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		if a.affinity != b.affinity {
			return a.affinity > b.affinity
		}
		if a.pop != b.pop {
			return a.pop > b.pop
		}
		return a.product.ID < b.product.ID
	})
	if len(pool) > slots {
		pool = pool[:slots]
	}

	out := make([]candidate, 0, len(pool))
	for _, c := range pool {
		score := r.cfg.FallbackFloor + c.affinity
		if r.cfg.ClampScores {
			score = recommend.Clamp01(score)
		}
		out = append(out, candidate{pop: c.pop, rec: recommend.Recommendation{
			CustomerID:        p.id,
			Segment:           p.segment,
			Cluster:           p.cluster,
			ProductID:         c.product.ID,
			ProductName:       c.product.Name,
			Brand:             c.product.Brand,
			L2:                c.product.L2,
			L3:                c.product.L3,
			TriggerProductID:  recommend.FallbackTrigger,
			Score:             score,
			SuggestedQuantity: suggestedQuantity(p.l2PerOrder[c.product.L2]),
			Reason:            fmt.Sprintf("Category-affinity fallback: %s affinity=%.2f", c.product.L2, c.affinity),
		}})
	}
	return out
}

// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package mining

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/basketgraph/internal/metrics"
	"github.com/tomtom215/basketgraph/internal/recommend"
)

// Result is the Association Miner output.
type Result struct {
	// Rules is sorted by (segment, cluster, antecedent, consequent).
	Rules []recommend.Rule

	// WindowDays is the session window actually used.
	WindowDays int

	Sessions  int
	Clusters  int
	Unmatched int
}

// Counts flattens the result for logs and checkpoints.
func (r *Result) Counts() map[string]int {
	return map[string]int{
		"rules":       len(r.Rules),
		"sessions":    r.Sessions,
		"clusters":    r.Clusters,
		"unmatched":   r.Unmatched,
		"window_days": r.WindowDays,
	}
}

// Miner mines directed pair rules per cluster.
type Miner struct {
	cfg     recommend.MiningConfig
	workers int
	logger  zerolog.Logger
}

// NewMiner creates an Association Miner.
//
//nolint:gocritic // hugeParam: zerolog.Logger is passed by value per zerolog convention
func NewMiner(cfg recommend.MiningConfig, workers int, logger zerolog.Logger) *Miner {
	return &Miner{
		cfg:     cfg,
		workers: workers,
		logger:  logger.With().Str("component", "mining").Logger(),
	}
}

// Mine rebuilds sessions from lines and mines rules inside each cluster of
// clusters. Lines of customers without a cluster are excluded and counted.
func (m *Miner) Mine(ctx context.Context, lines []recommend.InvoiceLine, clusters map[string]recommend.ClusterKey) (*Result, error) {
	res := &Result{WindowDays: m.cfg.WindowDays}
	if res.WindowDays == 0 {
		res.WindowDays = AutoWindow(lines, m.cfg.MinWindowDays, m.cfg.MaxWindowDays, m.cfg.DefaultWindowDays)
		m.logger.Info().Int("window_days", res.WindowDays).Msg("Using data-driven session window")
	}

	sessions := BuildSessions(lines, res.WindowDays)
	res.Sessions = len(sessions)

	var ref time.Time
	byCluster := make(map[recommend.ClusterKey][]Session)
	for _, s := range sessions {
		key, ok := clusters[s.CustomerID]
		if !ok {
			res.Unmatched++
			continue
		}
		byCluster[key] = append(byCluster[key], s)
		if s.Date.After(ref) {
			ref = s.Date
		}
	}
	if res.Unmatched > 0 {
		metrics.RecordDropped(recommend.StageMining, "unclustered_session", res.Unmatched)
		m.logger.Warn().Int("sessions", res.Unmatched).Msg("Sessions without a cluster excluded from mining")
	}

	keys := make([]recommend.ClusterKey, 0, len(byCluster))
	for k := range byCluster {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessCluster(keys[i], keys[j]) })
	res.Clusters = len(keys)

	perCluster := make([][]recommend.Rule, len(keys))
	err := recommend.ForEach(ctx, m.workers, len(keys), func(_ context.Context, i int) error {
		perCluster[i] = m.mineCluster(keys[i], byCluster[keys[i]], ref)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, rules := range perCluster {
		res.Rules = append(res.Rules, rules...)
	}
	metrics.RulesMined.Add(float64(len(res.Rules)))

	m.logger.Info().
		Int("sessions", res.Sessions).
		Int("clusters", res.Clusters).
		Int("rules", len(res.Rules)).
		Msg("Association mining complete")

	return res, nil
}

type pairKey struct {
	a, b string
}

type pairStat struct {
	count    int
	weighted float64
}

// mineCluster counts and filters rules for one cluster. Output is sorted by
// (antecedent, consequent).
func (m *Miner) mineCluster(key recommend.ClusterKey, sessions []Session, ref time.Time) []recommend.Rule {
	total := len(sessions)
	if total == 0 {
		return nil
	}

	freq := make(map[string]int)
	pairs := make(map[pairKey]*pairStat)
	for _, s := range sessions {
		w := math.Exp(-m.cfg.DecayRate * math.Max(0, float64(recommend.DaysBetween(s.Date, ref))))
		for _, p := range s.Products {
			freq[p]++
		}
		for i, a := range s.Products {
			for j, b := range s.Products {
				if i == j {
					continue
				}
				k := pairKey{a: a, b: b}
				st, ok := pairs[k]
				if !ok {
					st = &pairStat{}
					pairs[k] = st
				}
				st.count++
				st.weighted += w
			}
		}
	}

	minFreq := MinAntecedentFreq(total, m.cfg.MinPairFloor, m.cfg.MinPairRatio)
	n := float64(total)

	rules := make([]recommend.Rule, 0, len(pairs))
	for k, st := range pairs {
		freqA, freqB := freq[k.a], freq[k.b]
		if freqA < minFreq {
			continue
		}
		r := recommend.Rule{
			Cluster:         key,
			Antecedent:      k.a,
			Consequent:      k.b,
			PairFrequency:   st.count,
			AntecedentFreq:  freqA,
			ConsequentFreq:  freqB,
			TotalBaskets:    total,
			Support:         float64(st.count) / n,
			Confidence:      float64(st.count) / float64(freqA),
			WeightedSupport: st.weighted / n,
		}
		r.Lift = r.Confidence / (float64(freqB) / n)

		if r.Lift < m.cfg.MinLift || r.Support < m.cfg.MinSupport || r.Confidence < m.cfg.MinConfidence {
			continue
		}
		rules = append(rules, r)
	}

	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Antecedent != rules[j].Antecedent {
			return rules[i].Antecedent < rules[j].Antecedent
		}
		return rules[i].Consequent < rules[j].Consequent
	})

	m.logger.Debug().
		Str("cluster", key.String()).
		Int("sessions", total).
		Int("min_antecedent_freq", minFreq).
		Int("candidate_pairs", len(pairs)).
		Int("rules", len(rules)).
		Msg("Cluster mined")

	return rules
}

// MinAntecedentFreq is the antecedent session-count threshold for a cluster
// with total sessions: ceil(max(floor, ratio*total)).
func MinAntecedentFreq(total, floor int, ratio float64) int {
	return int(math.Ceil(math.Max(float64(floor), ratio*float64(total))))
}

func lessCluster(a, b recommend.ClusterKey) bool {
	if a.Segment != b.Segment {
		return a.Segment < b.Segment
	}
	return a.Index < b.Index
}

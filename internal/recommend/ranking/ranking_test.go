// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package ranking

import (
	"context"
	"math"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tomtom215/basketgraph/internal/recommend"
	"github.com/tomtom215/basketgraph/internal/recommend/basket"
	"github.com/tomtom215/basketgraph/internal/recommend/cluster"
	"github.com/tomtom215/basketgraph/internal/recommend/mining"
	"github.com/tomtom215/basketgraph/internal/testinfra"
)

var northPlumbing0 = recommend.ClusterKey{Segment: "North_Plumbing", Index: 0}

func buildBaskets(t *testing.T, ds *testinfra.Dataset) *basket.Result {
	t.Helper()
	res, err := basket.NewBuilder(recommend.BasketConfig{MinInvoices: 1}, zerolog.Nop()).
		Build(context.Background(), ds.Build())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return res
}

func singleCluster(b *basket.Result) map[string]recommend.ClusterKey {
	out := make(map[string]recommend.ClusterKey, len(b.Customers))
	for id := range b.Customers {
		out[id] = northPlumbing0
	}
	return out
}

func recsFor(recs []recommend.Recommendation, customer string) []recommend.Recommendation {
	var out []recommend.Recommendation
	for _, r := range recs {
		if r.CustomerID == customer {
			out = append(out, r)
		}
	}
	return out
}

func northPlumbingDataset() *testinfra.Dataset {
	return testinfra.NewDataset().
		Customer("X", "North", "Plumbing").
		Customer("Y", "North", "Plumbing").
		Customer("Z", "North", "Plumbing").
		Product("P1", "Acme", "Plumbing", "Pipes", true, 10).
		Product("P2", "Acme", "Plumbing", "Fittings", true, 5).
		Product("P3", "Bolt", "Electrical", "Cables", true, 20).
		Product("P4", "Bolt", "Plumbing", "Pipes", false, 8).
		Basket("X", testinfra.Day(0), "P1", "P2", "P4").
		Basket("X", testinfra.Day(30), "P1", "P2").
		Basket("X", testinfra.Day(60), "P1", "P2").
		Basket("X", testinfra.Day(90), "P3").
		Buy("Y", "P1", 4, testinfra.Day(80)).
		Buy("Y", "P1", 6, testinfra.Day(90)).
		Basket("Z", testinfra.Day(90), "P1", "P2", "P3")
}

func TestRank_SurfacesRuleTarget(t *testing.T) {
	b := buildBaskets(t, northPlumbingDataset())
	rules := []recommend.Rule{
		{Cluster: northPlumbing0, Antecedent: "P1", Consequent: "P2", Support: 0.75, Confidence: 0.75, Lift: 4.0 / 3.0, WeightedSupport: 0.7},
		{Cluster: northPlumbing0, Antecedent: "P1", Consequent: "P4", Support: 0.5, Confidence: 1, Lift: 3, WeightedSupport: 0.5},
	}

	res, err := NewRanker(recommend.DefaultConfig().Ranking, 2, zerolog.Nop()).Rank(context.Background(), &Input{
		Rows:     b.Rows,
		Catalog:  b.Catalog,
		Clusters: singleCluster(b),
		Rules:    rules,
	})
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}

	y := recsFor(res.Recommendations, "Y")
	if len(y) != 2 {
		t.Fatalf("len(recs for Y) = %d, want 2: %+v", len(y), y)
	}

	top := y[0]
	if top.ProductID != "P2" || top.TriggerProductID != "P1" || top.Rank != 1 {
		t.Errorf("top = %s via %s rank %d, want P2 via P1 rank 1", top.ProductID, top.TriggerProductID, top.Rank)
	}
	wantScore := 0.45*0.75 + 0.20*0.7 + 0.20*((4.0/3.0-1)/4) + 0.15*1
	if math.Abs(top.Score-wantScore) > 1e-9 {
		t.Errorf("top.Score = %v, want %v", top.Score, wantScore)
	}
	if top.SuggestedQuantity != 5 {
		t.Errorf("top.SuggestedQuantity = %d, want 5", top.SuggestedQuantity)
	}
	if want := "P1 → P2 (support=0.750, confidence=0.750, lift=1.33)"; top.Reason != want {
		t.Errorf("top.Reason = %q, want %q", top.Reason, want)
	}
	if top.ProductName != "Product P2" || top.TriggerName != "Product P1" || top.L3 != "Fittings" {
		t.Errorf("enrichment = %q/%q/%q", top.ProductName, top.TriggerName, top.L3)
	}

	second := y[1]
	if !second.IsFallback() || second.ProductID != "P3" || second.Rank != 2 {
		t.Errorf("second = %+v, want fallback P3 rank 2", second)
	}

	// X and Z own every in-stock product of the segment.
	for _, id := range []string{"X", "Z"} {
		if got := recsFor(res.Recommendations, id); len(got) != 0 {
			t.Errorf("recs for %s = %+v, want none", id, got)
		}
	}
	if res.Empty != 2 {
		t.Errorf("Empty = %d, want 2", res.Empty)
	}
	if !res.Report.OK() {
		t.Errorf("Report = %+v, want no violations", res.Report)
	}
}

func TestRank_BestTriggerWins(t *testing.T) {
	ds := testinfra.NewDataset().
		Customer("C1", "North", "Plumbing").
		Product("A", "Acme", "Plumbing", "Pipes", true, 1).
		Product("B", "Acme", "Plumbing", "Pipes", true, 1).
		Product("C", "Acme", "Plumbing", "Pipes", true, 1).
		Basket("C1", testinfra.Day(0), "A", "C")
	b := buildBaskets(t, ds)

	rules := []recommend.Rule{
		{Cluster: northPlumbing0, Antecedent: "A", Consequent: "B", Support: 0.3, Confidence: 0.3, Lift: 2, WeightedSupport: 0.3},
		{Cluster: northPlumbing0, Antecedent: "C", Consequent: "B", Support: 0.3, Confidence: 0.9, Lift: 2, WeightedSupport: 0.3},
	}
	res, err := NewRanker(recommend.DefaultConfig().Ranking, 1, zerolog.Nop()).Rank(context.Background(), &Input{
		Rows: b.Rows, Catalog: b.Catalog, Clusters: singleCluster(b), Rules: rules,
	})
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}

	if len(res.Recommendations) != 1 {
		t.Fatalf("len(Recommendations) = %d, want 1", len(res.Recommendations))
	}
	if got := res.Recommendations[0].TriggerProductID; got != "C" {
		t.Errorf("TriggerProductID = %q, want C", got)
	}
}

func TestRank_ThresholdsFilterRules(t *testing.T) {
	ds := testinfra.NewDataset().
		Customer("C1", "North", "Plumbing").
		Product("A", "Acme", "Plumbing", "Pipes", true, 1).
		Product("B", "Acme", "Plumbing", "Pipes", true, 1).
		Basket("C1", testinfra.Day(0), "A")
	b := buildBaskets(t, ds)

	tests := []struct {
		name string
		rule recommend.Rule
	}{
		{"low support", recommend.Rule{Support: 0.001, Confidence: 0.5, Lift: 2}},
		{"low confidence", recommend.Rule{Support: 0.5, Confidence: 0.01, Lift: 2}},
		{"low lift", recommend.Rule{Support: 0.5, Confidence: 0.5, Lift: 1.1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := tt.rule
			rule.Cluster, rule.Antecedent, rule.Consequent = northPlumbing0, "A", "B"
			res, err := NewRanker(recommend.DefaultConfig().Ranking, 1, zerolog.Nop()).Rank(context.Background(), &Input{
				Rows: b.Rows, Catalog: b.Catalog, Clusters: singleCluster(b), Rules: []recommend.Rule{rule},
			})
			if err != nil {
				t.Fatalf("Rank() error = %v", err)
			}
			if res.Primary != 0 {
				t.Errorf("Primary = %d, want 0", res.Primary)
			}
		})
	}
}

func TestRank_ClampScores(t *testing.T) {
	ds := testinfra.NewDataset().
		Customer("W", "North", "Plumbing").
		Product("P1", "Acme", "Plumbing", "Pipes", true, 1).
		Product("P5", "Acme", "Plumbing", "Pipes", true, 1).
		Basket("W", testinfra.Day(0), "P1")
	b := buildBaskets(t, ds)
	rules := []recommend.Rule{
		{Cluster: northPlumbing0, Antecedent: "P1", Consequent: "P5", Support: 1, Confidence: 1, Lift: 9, WeightedSupport: 1},
	}

	tests := []struct {
		name  string
		clamp bool
		check func(float64) bool
	}{
		{"unclamped exceeds one", false, func(s float64) bool { return s > 1.01 }},
		{"clamped to one", true, func(s float64) bool { return s == 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := recommend.DefaultConfig().Ranking
			cfg.ClampScores = tt.clamp
			res, err := NewRanker(cfg, 1, zerolog.Nop()).Rank(context.Background(), &Input{
				Rows: b.Rows, Catalog: b.Catalog, Clusters: singleCluster(b), Rules: rules,
			})
			if err != nil {
				t.Fatalf("Rank() error = %v", err)
			}
			if len(res.Recommendations) != 1 {
				t.Fatalf("len(Recommendations) = %d, want 1", len(res.Recommendations))
			}
			if s := res.Recommendations[0].Score; !tt.check(s) {
				t.Errorf("Score = %v", s)
			}
		})
	}
}

func TestRank_FallbackTopUp(t *testing.T) {
	ds := testinfra.NewDataset().
		Customer("F", "North", "Plumbing").
		Customer("G", "North", "Plumbing").
		Product("P1", "Acme", "Plumbing", "Pipes", true, 1).
		Product("P2", "Acme", "Plumbing", "Fittings", true, 1).
		Product("P3", "Bolt", "Electrical", "Cables", true, 1).
		Product("P6", "Acme", "Plumbing", "Valves", true, 1).
		Product("P7", "Bolt", "Electrical", "Switches", true, 1).
		Buy("F", "P1", 3, testinfra.Day(0)).
		Buy("F", "P3", 1, testinfra.Day(0)).
		Basket("G", testinfra.Day(0), "P2", "P6", "P7").
		Basket("G", testinfra.Day(10), "P6").
		Basket("G", testinfra.Day(20), "P6")
	b := buildBaskets(t, ds)

	res, err := NewRanker(recommend.DefaultConfig().Ranking, 1, zerolog.Nop()).Rank(context.Background(), &Input{
		Rows: b.Rows, Catalog: b.Catalog, Clusters: singleCluster(b),
	})
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}

	f := recsFor(res.Recommendations, "F")
	want := []struct {
		product string
		score   float64
		qty     int
	}{
		{"P6", 0.85, 3},
		{"P2", 0.85, 3},
		{"P7", 0.35, 1},
	}
	if len(f) != len(want) {
		t.Fatalf("len(recs for F) = %d, want %d: %+v", len(f), len(want), f)
	}
	for i, w := range want {
		if f[i].ProductID != w.product {
			t.Errorf("recs[%d].ProductID = %s, want %s", i, f[i].ProductID, w.product)
		}
		if math.Abs(f[i].Score-w.score) > 1e-9 {
			t.Errorf("recs[%d].Score = %v, want %v", i, f[i].Score, w.score)
		}
		if f[i].SuggestedQuantity != w.qty {
			t.Errorf("recs[%d].SuggestedQuantity = %d, want %d", i, f[i].SuggestedQuantity, w.qty)
		}
		if f[i].TriggerProductID != recommend.FallbackTrigger {
			t.Errorf("recs[%d].TriggerProductID = %q, want fallback", i, f[i].TriggerProductID)
		}
	}
	if want := "Category-affinity fallback: Plumbing affinity=0.75"; f[0].Reason != want {
		t.Errorf("Reason = %q, want %q", f[0].Reason, want)
	}
}

func TestRank_TopKTruncates(t *testing.T) {
	ds := testinfra.NewDataset().
		Customer("F", "North", "Plumbing").
		Customer("G", "North", "Plumbing").
		Product("P1", "Acme", "Plumbing", "Pipes", true, 1).
		Product("P2", "Acme", "Plumbing", "Pipes", true, 1).
		Product("P3", "Acme", "Plumbing", "Pipes", true, 1).
		Product("P4", "Acme", "Plumbing", "Pipes", true, 1).
		Basket("F", testinfra.Day(0), "P1").
		Basket("G", testinfra.Day(0), "P2", "P3", "P4")
	b := buildBaskets(t, ds)

	cfg := recommend.DefaultConfig().Ranking
	cfg.TopK = 2
	res, err := NewRanker(cfg, 1, zerolog.Nop()).Rank(context.Background(), &Input{
		Rows: b.Rows, Catalog: b.Catalog, Clusters: singleCluster(b),
	})
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if got := len(recsFor(res.Recommendations, "F")); got != 2 {
		t.Errorf("len(recs for F) = %d, want 2", got)
	}
}

func TestRank_UnclusteredCustomersSkipped(t *testing.T) {
	b := buildBaskets(t, northPlumbingDataset())
	clusters := singleCluster(b)
	delete(clusters, "Y")

	res, err := NewRanker(recommend.DefaultConfig().Ranking, 1, zerolog.Nop()).Rank(context.Background(), &Input{
		Rows: b.Rows, Catalog: b.Catalog, Clusters: clusters,
	})
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if res.Unclustered != 1 {
		t.Errorf("Unclustered = %d, want 1", res.Unclustered)
	}
	if got := recsFor(res.Recommendations, "Y"); len(got) != 0 {
		t.Errorf("recs for Y = %+v, want none", got)
	}
}

func TestRank_SyntheticPropertiesAndDeterminism(t *testing.T) {
	ctx := context.Background()
	cfg := recommend.DefaultConfig()
	in := testinfra.Synthetic(testinfra.DefaultSyntheticOptions())

	b, err := basket.NewBuilder(cfg.Basket, zerolog.Nop()).Build(ctx, in)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	cres, err := cluster.NewEngine(cfg.Cluster, cfg.Seed, 2, zerolog.Nop()).Fit(ctx, b.Rows)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	mres, err := mining.NewMiner(cfg.Mining, 2, zerolog.Nop()).Mine(ctx, b.Lines, cres.ByCustomer)
	if err != nil {
		t.Fatalf("Mine() error = %v", err)
	}
	input := &Input{Rows: b.Rows, Catalog: b.Catalog, Clusters: cres.ByCustomer, Rules: mres.Rules}

	first, err := NewRanker(cfg.Ranking, 1, zerolog.Nop()).Rank(ctx, input)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	second, err := NewRanker(cfg.Ranking, 8, zerolog.Nop()).Rank(ctx, input)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}

	if len(first.Recommendations) == 0 {
		t.Fatal("no recommendations produced")
	}
	if !reflect.DeepEqual(first.Recommendations, second.Recommendations) {
		t.Error("recommendations differ between worker counts")
	}
	if !first.Report.OK() {
		t.Errorf("Report = %+v, want no violations", first.Report)
	}
	for _, r := range first.Recommendations {
		if p := b.Catalog[r.ProductID]; !p.InStock {
			t.Errorf("%s recommended out-of-stock %s", r.CustomerID, r.ProductID)
		}
	}
}

func TestLiftNorm(t *testing.T) {
	tests := []struct {
		lift, ceiling, want float64
	}{
		{1, 5, 0},
		{0.5, 5, 0},
		{3, 5, 0.5},
		{5, 5, 1},
		{9, 5, 1},
		{2, 1, 0},
	}
	for _, tt := range tests {
		if got := LiftNorm(tt.lift, tt.ceiling); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("LiftNorm(%v, %v) = %v, want %v", tt.lift, tt.ceiling, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	rows := []recommend.BasketRow{
		{CustomerID: "C1", ProductID: "OWNED"},
		{CustomerID: "C2", ProductID: "OWNED"},
		{CustomerID: "C3", ProductID: "OWNED"},
	}
	catalog := map[string]recommend.Product{
		"A":     {ID: "A", InStock: true},
		"B":     {ID: "B", InStock: true},
		"OOS":   {ID: "OOS", InStock: false},
		"OWNED": {ID: "OWNED", InStock: true},
	}
	recs := []recommend.Recommendation{
		{CustomerID: "C1", ProductID: "A", Rank: 1, Score: 0.9},
		{CustomerID: "C1", ProductID: "B", Rank: 3, Score: 0.95},
		{CustomerID: "C2", ProductID: "OWNED", Rank: 1, Score: 0.5},
		{CustomerID: "C2", ProductID: "OOS", Rank: 2, Score: 0.4, TriggerProductID: recommend.FallbackTrigger},
		{CustomerID: "C2", ProductID: "OOS", Rank: 3, Score: 0.3},
	}

	got := Validate(recs, rows, catalog, 2)

	want := Report{
		Rows:             5,
		Customers:        3,
		CustomersCovered: 2,
		Coverage:         0.6667,
		Primary:          4,
		Fallback:         1,
		AlreadyPurchased: 1,
		OutOfStock:       2,
		Duplicates:       1,
		RankGaps:         1,
		NonMonotone:      1,
		OverTopK:         1,
	}
	if got != want {
		t.Errorf("Validate() = %+v, want %+v", got, want)
	}
	if got.OK() {
		t.Error("OK() = true, want false")
	}
}

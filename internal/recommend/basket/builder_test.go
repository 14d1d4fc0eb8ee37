// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package basket

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tomtom215/basketgraph/internal/recommend"
	"github.com/tomtom215/basketgraph/internal/testinfra"
)

func newTestBuilder(cfg recommend.BasketConfig) *Builder {
	return NewBuilder(cfg, zerolog.Nop())
}

func defaultBasketConfig() recommend.BasketConfig {
	return recommend.DefaultConfig().Basket
}

func findRow(t *testing.T, rows []recommend.BasketRow, customer, product string) recommend.BasketRow {
	t.Helper()
	for _, r := range rows {
		if r.CustomerID == customer && r.ProductID == product {
			return r
		}
	}
	t.Fatalf("row (%s, %s) not found", customer, product)
	return recommend.BasketRow{}
}

func TestBuilder_Aggregation(t *testing.T) {
	in := testinfra.NewDataset().
		Customer("C1", "North", "Plumbing").
		Customer("C2", "North", "Plumbing").
		Product("P1", "Acme", "Plumbing", "Pipes", true, 10).
		Product("P2", "Acme", "Plumbing", "Valves", true, 20).
		Buy("C1", "P1", 2, testinfra.Day(0)).
		Buy("C1", "P1", 3, testinfra.Day(10)).
		Buy("C1", "P1", 1, testinfra.Day(10)).
		Buy("C1", "P2", 1, testinfra.Day(5)).
		Buy("C2", "P2", 2, testinfra.Day(20)).
		Build()

	res, err := newTestBuilder(defaultBasketConfig()).Build(context.Background(), in)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if len(res.Rows) != 3 {
		t.Fatalf("len(Rows) = %d, want 3", len(res.Rows))
	}
	if !res.MaxDate.Equal(testinfra.Day(20)) {
		t.Errorf("MaxDate = %v, want %v", res.MaxDate, testinfra.Day(20))
	}

	r := findRow(t, res.Rows, "C1", "P1")
	if r.PurchaseFrequency != 2 {
		t.Errorf("PurchaseFrequency = %d, want 2 (distinct dates)", r.PurchaseFrequency)
	}
	if r.TotalQuantity != 6 {
		t.Errorf("TotalQuantity = %v, want 6", r.TotalQuantity)
	}
	if !r.TotalSpend.Known || r.TotalSpend.Value != 60 {
		t.Errorf("TotalSpend = %+v, want known 60", r.TotalSpend)
	}
	if r.RecencyDays != 10 {
		t.Errorf("RecencyDays = %d, want 10", r.RecencyDays)
	}
	if r.Segment != "North_Plumbing" {
		t.Errorf("Segment = %q, want North_Plumbing", r.Segment)
	}

	// C2 bought most recently; C1 has more distinct dates and more spend.
	c1 := findRow(t, res.Rows, "C1", "P2")
	c2 := findRow(t, res.Rows, "C2", "P2")
	if c2.RecencyScore != 1 || c1.RecencyScore != 0 {
		t.Errorf("RecencyScore C1=%v C2=%v, want 0 and 1", c1.RecencyScore, c2.RecencyScore)
	}
	if c1.FrequencyScore != 1 || c2.FrequencyScore != 0 {
		t.Errorf("FrequencyScore C1=%v C2=%v, want 1 and 0", c1.FrequencyScore, c2.FrequencyScore)
	}
	if c1.MonetaryScore != 1 || c2.MonetaryScore != 0 {
		t.Errorf("MonetaryScore C1=%v C2=%v, want 1 and 0", c1.MonetaryScore, c2.MonetaryScore)
	}

	// Rows are sorted by (customer, product).
	for i := 1; i < len(res.Rows); i++ {
		a, b := res.Rows[i-1], res.Rows[i]
		if a.CustomerID > b.CustomerID || (a.CustomerID == b.CustomerID && a.ProductID >= b.ProductID) {
			t.Errorf("rows not sorted at %d: (%s,%s) before (%s,%s)", i, a.CustomerID, a.ProductID, b.CustomerID, b.ProductID)
		}
	}
}

func TestBuilder_DropsSchemaDefects(t *testing.T) {
	in := testinfra.NewDataset().
		Customer("C1", "North", "Plumbing").
		Product("P1", "Acme", "Plumbing", "Pipes", true, 10).
		Buy("C1", "P1", 1, testinfra.Day(0)).
		Buy("C1", "MISSING", 1, testinfra.Day(1)).
		Buy("GHOST", "P1", 1, testinfra.Day(1)).
		Buy("C1", "P1", 0, testinfra.Day(1)).
		Build()

	res, err := newTestBuilder(defaultBasketConfig()).Build(context.Background(), in)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	rep := res.Report
	if rep.UnknownProducts != 1 {
		t.Errorf("UnknownProducts = %d, want 1", rep.UnknownProducts)
	}
	if rep.UnknownCustomers != 1 {
		t.Errorf("UnknownCustomers = %d, want 1", rep.UnknownCustomers)
	}
	if rep.InvalidLines != 1 {
		t.Errorf("InvalidLines = %d, want 1", rep.InvalidLines)
	}
	if rep.KeptLines != 1 || len(res.Rows) != 1 {
		t.Errorf("KeptLines = %d, rows = %d, want 1 and 1", rep.KeptLines, len(res.Rows))
	}
}

func TestBuilder_AllLinesDefective(t *testing.T) {
	in := testinfra.NewDataset().
		Customer("C1", "North", "Plumbing").
		Product("P1", "Acme", "Plumbing", "Pipes", true, 10).
		Buy("C1", "NOPE", 1, testinfra.Day(0)).
		Buy("NOBODY", "P1", 1, testinfra.Day(0)).
		Build()

	_, err := newTestBuilder(defaultBasketConfig()).Build(context.Background(), in)
	if !errors.Is(err, recommend.ErrSchema) {
		t.Fatalf("Build() error = %v, want ErrSchema", err)
	}

	var se *recommend.StageError
	if !errors.As(err, &se) {
		t.Fatalf("error %T is not a StageError", err)
	}
	if se.Stage != recommend.StageBasket {
		t.Errorf("Stage = %q, want %q", se.Stage, recommend.StageBasket)
	}
	if se.Counts[DropUnknownProduct] != 1 || se.Counts[DropUnknownCustomer] != 1 {
		t.Errorf("Counts = %v, want one of each unknown", se.Counts)
	}
}

func TestBuilder_Filters(t *testing.T) {
	in := testinfra.NewDataset().
		Customer("C1", "North", "Plumbing").
		Customer("C2", "North", "Plumbing").
		Product("P1", "Acme", "Plumbing", "Pipes", true, 10).
		Product("P2", "Acme", "Plumbing", "Valves", true, 10).
		Buy("C1", "P1", 1, testinfra.Day(0)).
		Buy("C1", "P2", 1, testinfra.Day(100)).
		Buy("C1", "P2", 1, testinfra.Day(110)).
		Buy("C2", "P1", 1, testinfra.Day(110)).
		Build()

	tests := []struct {
		name       string
		cfg        recommend.BasketConfig
		wantStale  int
		wantRows   int
		wantErr    error
		wantInact  int
		wantCustID []string
	}{
		{
			name:       "cutoff drops lines older than horizon",
			cfg:        recommend.BasketConfig{RecencyCutoffDays: 30, MinInvoices: 1},
			wantStale:  1,
			wantRows:   2,
			wantCustID: []string{"C1", "C2"},
		},
		{
			name:       "cutoff boundary is inclusive",
			cfg:        recommend.BasketConfig{RecencyCutoffDays: 110, MinInvoices: 1},
			wantRows:   3,
			wantCustID: []string{"C1", "C2"},
		},
		{
			name:       "min invoices counts distinct dates",
			cfg:        recommend.BasketConfig{RecencyCutoffDays: 0, MinInvoices: 2},
			wantRows:   2,
			wantInact:  1,
			wantCustID: []string{"C1"},
		},
		{
			name:    "nothing survives",
			cfg:     recommend.BasketConfig{RecencyCutoffDays: 0, MinInvoices: 10},
			wantErr: recommend.ErrDataSparsity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newTestBuilder(tt.cfg).Build(context.Background(), in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Build() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if res.Report.StaleLines != tt.wantStale {
				t.Errorf("StaleLines = %d, want %d", res.Report.StaleLines, tt.wantStale)
			}
			if res.Report.InactiveCustomer != tt.wantInact {
				t.Errorf("InactiveCustomer = %d, want %d", res.Report.InactiveCustomer, tt.wantInact)
			}
			if len(res.Rows) != tt.wantRows {
				t.Errorf("len(Rows) = %d, want %d", len(res.Rows), tt.wantRows)
			}
			for _, id := range tt.wantCustID {
				if _, ok := res.Customers[id]; !ok {
					t.Errorf("customer %s missing from result", id)
				}
			}
			if len(res.Customers) != len(tt.wantCustID) {
				t.Errorf("len(Customers) = %d, want %d", len(res.Customers), len(tt.wantCustID))
			}
		})
	}
}

func TestBuilder_NoPrices(t *testing.T) {
	in := testinfra.NewDataset().
		Customer("C1", "North", "Plumbing").
		Customer("C2", "North", "Plumbing").
		Product("P1", "Acme", "Plumbing", "Pipes", true, -1).
		Product("P2", "Acme", "Plumbing", "Valves", true, -1).
		Buy("C1", "P1", 1, testinfra.Day(0)).
		Buy("C2", "P2", 5, testinfra.Day(3)).
		Build()

	res, err := newTestBuilder(defaultBasketConfig()).Build(context.Background(), in)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if res.HasPrices {
		t.Error("HasPrices = true, want false")
	}
	for _, r := range res.Rows {
		if r.PriceBand != recommend.PriceBandUnknown {
			t.Errorf("PriceBand(%s,%s) = %q, want %q", r.CustomerID, r.ProductID, r.PriceBand, recommend.PriceBandUnknown)
		}
		if r.MonetaryScore != 0.5 {
			t.Errorf("MonetaryScore(%s) = %v, want 0.5", r.CustomerID, r.MonetaryScore)
		}
		if r.TotalSpend.Known {
			t.Errorf("TotalSpend(%s) known, want absent", r.CustomerID)
		}
	}
}

func TestBuilder_UnknownFill(t *testing.T) {
	in := &recommend.Inputs{
		Customers: []recommend.Customer{{ID: "C1", Region: " ", Trade: ""}},
		Products:  []recommend.Product{{ID: "P1", InStock: true}},
		Invoices: []recommend.InvoiceLine{
			{CustomerID: "C1", ProductID: "P1", Quantity: 1, Date: testinfra.Day(0)},
		},
	}

	res, err := newTestBuilder(defaultBasketConfig()).Build(context.Background(), in)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	r := res.Rows[0]
	if r.Segment != "Unknown_Unknown" {
		t.Errorf("Segment = %q, want Unknown_Unknown", r.Segment)
	}
	for name, got := range map[string]string{"Brand": r.Brand, "L2": r.L2, "L3": r.L3, "Functional": r.Functional} {
		if got != recommend.UnknownValue {
			t.Errorf("%s = %q, want %q", name, got, recommend.UnknownValue)
		}
	}
	// A single customer is a constant series.
	if r.RecencyScore != 0.5 || r.FrequencyScore != 0.5 {
		t.Errorf("scores = (%v, %v), want 0.5 for a constant series", r.RecencyScore, r.FrequencyScore)
	}
}

func TestBuilder_PriceBandsPerSegment(t *testing.T) {
	ds := testinfra.NewDataset().
		Customer("N1", "North", "Plumbing").
		Customer("S1", "South", "Plumbing")
	prices := []float64{1, 2, 3, 4, 5, 6}
	for i, p := range prices {
		id := string(rune('A' + i))
		ds.Product(id, "Acme", "Plumbing", "Pipes", true, p)
		ds.Buy("N1", id, 1, testinfra.Day(i))
	}
	// The south segment only buys two price points.
	ds.Buy("S1", "A", 1, testinfra.Day(0)).Buy("S1", "F", 1, testinfra.Day(1))

	res, err := newTestBuilder(defaultBasketConfig()).Build(context.Background(), ds.Build())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := map[string]string{"A": "Low", "B": "Low", "C": "Mid", "D": "Mid", "E": "High", "F": "High"}
	for id, band := range want {
		if got := findRow(t, res.Rows, "N1", id).PriceBand; got != band {
			t.Errorf("North band(%s) = %q, want %q", id, got, band)
		}
	}
	for _, id := range []string{"A", "F"} {
		if got := findRow(t, res.Rows, "S1", id).PriceBand; got != recommend.PriceBandMid {
			t.Errorf("South band(%s) = %q, want Mid", id, got)
		}
	}
}

func TestAssignPriceBands_WeightedByBuyers(t *testing.T) {
	catalog := map[string]recommend.Product{
		"A": {ID: "A", Price: recommend.KnownPrice(1)},
		"B": {ID: "B", Price: recommend.KnownPrice(2)},
		"C": {ID: "C", Price: recommend.KnownPrice(3)},
		"D": {ID: "D", Price: recommend.KnownPrice(4)},
	}
	var rows []recommend.BasketRow
	for _, id := range []string{"A", "B", "C"} {
		rows = append(rows, recommend.BasketRow{CustomerID: "X", ProductID: id, Segment: "S"})
	}
	// D is bought by six customers, so its price fills the upper two bins
	// and the edges collapse.
	for i := 0; i < 6; i++ {
		rows = append(rows, recommend.BasketRow{CustomerID: string(rune('a' + i)), ProductID: "D", Segment: "S"})
	}

	assignPriceBands(rows, catalog)
	for _, r := range rows {
		if r.PriceBand != recommend.PriceBandMid {
			t.Errorf("PriceBand(%s,%s) = %q, want %q", r.CustomerID, r.ProductID, r.PriceBand, recommend.PriceBandMid)
		}
	}
}

func TestTertiles(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   []string
	}{
		{"empty", nil, []string{}},
		{"two distinct", []float64{1, 1, 2}, []string{"Mid", "Mid", "Mid"}},
		{"three distinct", []float64{1, 2, 3}, []string{"Low", "Mid", "High"}},
		{"coinciding edges", []float64{1, 1, 1, 1, 1, 2, 3}, []string{"Mid", "Mid", "Mid", "Mid", "Mid", "Mid", "Mid"}},
		{"unsorted input", []float64{30, 10, 20}, []string{"High", "Low", "Mid"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tertiles(tt.prices)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Tertiles(%v)[%d] = %q, want %q", tt.prices, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	if got := quantile(sorted, 1.0/3.0); math.Abs(got-2) > 1e-9 {
		t.Errorf("quantile(1/3) = %v, want 2", got)
	}
	if got := quantile(sorted, 0.5); got != 2.5 {
		t.Errorf("quantile(0.5) = %v, want 2.5", got)
	}
}

func TestBuilder_Synthetic(t *testing.T) {
	in := testinfra.Synthetic(testinfra.DefaultSyntheticOptions())

	res, err := newTestBuilder(defaultBasketConfig()).Build(context.Background(), in)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if res.Report.Segments != 2 {
		t.Errorf("Segments = %d, want 2", res.Report.Segments)
	}
	for _, r := range res.Rows {
		for name, v := range map[string]float64{"recency": r.RecencyScore, "frequency": r.FrequencyScore, "monetary": r.MonetaryScore} {
			if v < 0 || v > 1 {
				t.Errorf("%s score %v out of [0,1] for %s", name, v, r.CustomerID)
			}
		}
	}
}

func TestBuilder_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := testinfra.Synthetic(testinfra.DefaultSyntheticOptions())
	if _, err := newTestBuilder(defaultBasketConfig()).Build(ctx, in); !errors.Is(err, context.Canceled) {
		t.Errorf("Build() error = %v, want context.Canceled", err)
	}
}

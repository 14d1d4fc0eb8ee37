// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package ranking

import (
	"github.com/tomtom215/basketgraph/internal/recommend"
)

// Report summarises structural checks over a recommendation set.
type Report struct {
	Rows             int     `json:"rows"`
	Customers        int     `json:"customers"`
	CustomersCovered int     `json:"customers_covered"`
	Coverage         float64 `json:"coverage"`
	Primary          int     `json:"primary"`
	Fallback         int     `json:"fallback"`

	AlreadyPurchased int `json:"already_purchased"`
	OutOfStock       int `json:"out_of_stock"`
	Duplicates       int `json:"duplicates"`
	RankGaps         int `json:"rank_gaps"`
	NonMonotone      int `json:"non_monotone"`
	OverTopK         int `json:"over_top_k"`
}

// OK reports whether no violation was found.
func (r Report) OK() bool {
	return r.AlreadyPurchased == 0 && r.OutOfStock == 0 && r.Duplicates == 0 &&
		r.RankGaps == 0 && r.NonMonotone == 0 && r.OverTopK == 0
}

// Validate checks recs against the basket rows and catalog. recs must be
// grouped by customer and ordered by rank within each customer.
func Validate(recs []recommend.Recommendation, rows []recommend.BasketRow, catalog map[string]recommend.Product, topK int) Report {
	owned := make(map[string]map[string]struct{})
	for i := range rows {
		set, ok := owned[rows[i].CustomerID]
		if !ok {
			set = make(map[string]struct{})
			owned[rows[i].CustomerID] = set
		}
		set[rows[i].ProductID] = struct{}{}
	}

	rep := Report{Rows: len(recs), Customers: len(owned)}

	var (
		cur       string
		expect    int
		prevScore float64
		seen      map[string]struct{}
		perCust   int
	)
	for i := range recs {
		r := &recs[i]
		if i == 0 || r.CustomerID != cur {
			if i > 0 && perCust > topK {
				rep.OverTopK++
			}
			cur = r.CustomerID
			expect = 1
			perCust = 0
			seen = make(map[string]struct{})
			rep.CustomersCovered++
		} else if r.Score > prevScore {
			rep.NonMonotone++
		}
		perCust++

		if r.Rank != expect {
			rep.RankGaps++
		}
		expect = r.Rank + 1
		prevScore = r.Score

		if _, dup := seen[r.ProductID]; dup {
			rep.Duplicates++
		}
		seen[r.ProductID] = struct{}{}

		if _, ok := owned[r.CustomerID][r.ProductID]; ok {
			rep.AlreadyPurchased++
		}
		if p, ok := catalog[r.ProductID]; !ok || !p.InStock {
			rep.OutOfStock++
		}
		if r.IsFallback() {
			rep.Fallback++
		} else {
			rep.Primary++
		}
	}
	if perCust > topK {
		rep.OverTopK++
	}

	if rep.Customers > 0 {
		rep.Coverage = recommend.Round(float64(rep.CustomersCovered)/float64(rep.Customers), 4)
	}
	return rep
}

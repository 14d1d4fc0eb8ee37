// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package basket

import (
	"math"
	"sort"

	"github.com/tomtom215/basketgraph/internal/recommend"
)

// assignPriceBands sets PriceBand on every row with a known unit price using
// tertiles computed per segment. Rows whose product has no price keep
// PriceBandUnknown.
func assignPriceBands(rows []recommend.BasketRow, catalog map[string]recommend.Product) {
	bySegment := make(map[string][]int)
	for i := range rows {
		if catalog[rows[i].ProductID].Price.Known {
			bySegment[rows[i].Segment] = append(bySegment[rows[i].Segment], i)
		}
	}

	for _, idx := range bySegment {
		prices := make([]float64, len(idx))
		for j, i := range idx {
			prices[j] = catalog[rows[i].ProductID].Price.Value
		}
		bands := Tertiles(prices)
		for j, i := range idx {
			rows[i].PriceBand = bands[j]
		}
	}
}

// Tertiles labels each price Low, Mid or High by equal-frequency bins.
// Fewer than three distinct prices, or bin edges that coincide, label
// everything Mid.
func Tertiles(prices []float64) []string {
	out := make([]string, len(prices))
	for i := range out {
		out[i] = recommend.PriceBandMid
	}
	if len(prices) == 0 {
		return out
	}

	distinct := make(map[float64]struct{}, len(prices))
	for _, p := range prices {
		distinct[p] = struct{}{}
	}
	if len(distinct) < 3 {
		return out
	}

	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)
	edges := [4]float64{
		sorted[0],
		quantile(sorted, 1.0/3.0),
		quantile(sorted, 2.0/3.0),
		sorted[len(sorted)-1],
	}
	for i := 1; i < len(edges); i++ {
		if edges[i] <= edges[i-1] {
			return out
		}
	}

	for i, p := range prices {
		switch {
		case p <= edges[1]:
			out[i] = recommend.PriceBandLow
		case p <= edges[2]:
			out[i] = recommend.PriceBandMid
		default:
			out[i] = recommend.PriceBandHigh
		}
	}
	return out
}

// quantile uses linear interpolation between closest ranks on sorted data.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package ranking

import (
	"math"

	"github.com/tomtom215/basketgraph/internal/recommend"
)

// customerProfile is the per-customer view the Ranker scores against.
type customerProfile struct {
	id      string
	segment string
	cluster recommend.ClusterKey

	owned map[string]struct{}

	recencyScore float64

	// l3Share is the purchase-frequency share per L3 sub-category.
	l3Share map[string]float64

	// l2Share is the quantity share per L2 category.
	l2Share map[string]float64

	// perOrder is total_quantity / purchase_frequency per owned product.
	perOrder map[string]float64

	// l2PerOrder collects perOrder values by L2 category.
	l2PerOrder map[string][]float64
}

// buildProfiles groups rows by customer. Customers absent from clusters are
// returned separately.
func buildProfiles(rows []recommend.BasketRow, clusters map[string]recommend.ClusterKey) (map[string]*customerProfile, []string) {
	type acc struct {
		recencySum float64
		n          int
		l3Freq     map[string]float64
		l2Qty      map[string]float64
	}

	profiles := make(map[string]*customerProfile)
	accs := make(map[string]*acc)
	unclustered := make(map[string]struct{})

	for i := range rows {
		r := &rows[i]
		key, ok := clusters[r.CustomerID]
		if !ok {
			unclustered[r.CustomerID] = struct{}{}
			continue
		}
		p, ok := profiles[r.CustomerID]
		if !ok {
			p = &customerProfile{
				id:         r.CustomerID,
				segment:    r.Segment,
				cluster:    key,
				owned:      make(map[string]struct{}),
				l3Share:    make(map[string]float64),
				l2Share:    make(map[string]float64),
				perOrder:   make(map[string]float64),
				l2PerOrder: make(map[string][]float64),
			}
			profiles[r.CustomerID] = p
			accs[r.CustomerID] = &acc{l3Freq: make(map[string]float64), l2Qty: make(map[string]float64)}
		}
		a := accs[r.CustomerID]

		p.owned[r.ProductID] = struct{}{}
		a.recencySum += float64(r.RecencyDays)
		a.n++
		a.l3Freq[r.L3] += float64(r.PurchaseFrequency)
		a.l2Qty[r.L2] += r.TotalQuantity

		freq := r.PurchaseFrequency
		if freq <= 0 {
			freq = 1
		}
		q := r.TotalQuantity / float64(freq)
		p.perOrder[r.ProductID] = q
		p.l2PerOrder[r.L2] = append(p.l2PerOrder[r.L2], q)
	}

	for id, p := range profiles {
		a := accs[id]
		p.recencyScore = 1 / (1 + a.recencySum/float64(a.n))
		p.l3Share = shares(a.l3Freq)
		p.l2Share = shares(a.l2Qty)
	}

	return profiles, recommend.SortedKeys(unclustered)
}

func shares(m map[string]float64) map[string]float64 {
	var total float64
	for _, v := range m {
		total += v
	}
	if total == 0 {
		total = 1
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v / total
	}
	return out
}

func (p *customerProfile) owns(productID string) bool {
	_, ok := p.owned[productID]
	return ok
}

// suggestedQuantity returns the rounded per-order quantity, floored at 1.
func suggestedQuantity(perOrder []float64) int {
	if len(perOrder) == 0 {
		return 1
	}
	q := int(math.Round(recommend.Median(perOrder)))
	if q < 1 {
		return 1
	}
	return q
}

// segmentPopularity sums purchase frequency per product within each segment,
// counting only clustered customers.
func segmentPopularity(rows []recommend.BasketRow, clusters map[string]recommend.ClusterKey) map[string]map[string]int {
	out := make(map[string]map[string]int)
	for i := range rows {
		r := &rows[i]
		if _, ok := clusters[r.CustomerID]; !ok {
			continue
		}
		seg, ok := out[r.Segment]
		if !ok {
			seg = make(map[string]int)
			out[r.Segment] = seg
		}
		seg[r.ProductID] += r.PurchaseFrequency
	}
	return out
}

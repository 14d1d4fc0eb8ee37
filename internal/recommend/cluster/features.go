// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package cluster

import (
	"sort"

	"github.com/tomtom215/basketgraph/internal/recommend"
)

// Engagement column names.
const (
	ColumnRecency   = "engagement:recency"
	ColumnFrequency = "engagement:frequency"
	ColumnMonetary  = "engagement:monetary"
)

// Profile is one customer's raw purchase behaviour: quantities per category
// value plus the engagement scores. It is the input to both training and
// Assign.
type Profile struct {
	L2         map[string]float64 `json:"l2,omitempty"`
	Brand      map[string]float64 `json:"brand,omitempty"`
	Functional map[string]float64 `json:"functional,omitempty"`
	Recency    float64            `json:"recency,omitempty"`
	Frequency  float64            `json:"frequency,omitempty"`
	Monetary   float64            `json:"monetary,omitempty"`
}

// Features converts the profile into named feature values for the given
// groups. Each proportion group sums to 1 unless the customer bought nothing
// in it.
func (p *Profile) Features(groups []string) map[string]float64 {
	out := make(map[string]float64)
	for _, g := range groups {
		switch g {
		case recommend.FeatureGroupL2:
			addProportions(out, g, p.L2)
		case recommend.FeatureGroupBrand:
			addProportions(out, g, p.Brand)
		case recommend.FeatureGroupFunctional:
			addProportions(out, g, p.Functional)
		case recommend.FeatureGroupEngagement:
			out[ColumnRecency] = p.Recency
			out[ColumnFrequency] = p.Frequency
			out[ColumnMonetary] = p.Monetary
		}
	}
	return out
}

func addProportions(out map[string]float64, group string, qty map[string]float64) {
	total := 0.0
	for _, q := range qty {
		total += q
	}
	if total <= 0 {
		return
	}
	for name, q := range qty {
		out[group+":"+name] += q / total
	}
}

// Profiles aggregates basket rows into one Profile per customer.
func Profiles(rows []recommend.BasketRow) map[string]*Profile {
	out := make(map[string]*Profile)
	for i := range rows {
		r := &rows[i]
		p, ok := out[r.CustomerID]
		if !ok {
			p = &Profile{
				L2:         make(map[string]float64),
				Brand:      make(map[string]float64),
				Functional: make(map[string]float64),
				Recency:    r.RecencyScore,
				Frequency:  r.FrequencyScore,
				Monetary:   r.MonetaryScore,
			}
			out[r.CustomerID] = p
		}
		p.L2[r.L2] += r.TotalQuantity
		p.Brand[r.Brand] += r.TotalQuantity
		p.Functional[r.Functional] += r.TotalQuantity
	}
	return out
}

// Matrix is a dense customer-by-feature matrix.
type Matrix struct {
	Customers []string
	Columns   []string
	X         [][]float64
}

// BuildMatrix builds the feature matrix for one segment. Rows follow the
// sorted customer ids and columns are sorted by name. Zero-variance columns
// are dropped.
func BuildMatrix(profiles map[string]*Profile, groups []string) *Matrix {
	customers := recommend.SortedKeys(profiles)

	feats := make([]map[string]float64, len(customers))
	colSet := make(map[string]struct{})
	for i, id := range customers {
		feats[i] = profiles[id].Features(groups)
		for col := range feats[i] {
			colSet[col] = struct{}{}
		}
	}

	cols := make([]string, 0, len(colSet))
	for col := range colSet {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	kept := cols[:0]
	for _, col := range cols {
		first := feats[0][col]
		for i := 1; i < len(feats); i++ {
			if feats[i][col] != first {
				kept = append(kept, col)
				break
			}
		}
	}

	m := &Matrix{Customers: customers, Columns: kept, X: make([][]float64, len(customers))}
	for i := range customers {
		m.X[i] = vectorize(feats[i], kept)
	}
	return m
}

func vectorize(feats map[string]float64, cols []string) []float64 {
	v := make([]float64, len(cols))
	for j, col := range cols {
		v[j] = feats[col]
	}
	return v
}

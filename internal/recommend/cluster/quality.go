// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package cluster

import "math"

// ElbowK picks k from inertias indexed by k (inertias[k] for k = 2..maxK).
// Walking up from k = 3, the first k whose fractional inertia drop versus
// k-1 falls below threshold selects k-1. If every step clears the threshold
// maxK is chosen.
func ElbowK(inertias map[int]float64, maxK int, threshold float64) int {
	if maxK < 2 {
		return 1
	}
	for k := 3; k <= maxK; k++ {
		prev := inertias[k-1]
		if prev <= 0 {
			return k - 1
		}
		drop := (prev - inertias[k]) / prev
		if drop < threshold {
			return k - 1
		}
	}
	return maxK
}

// Silhouette returns the mean silhouette coefficient of a labelling.
// It is 0 when fewer than two clusters are populated. Points in singleton
// clusters contribute 0.
func Silhouette(x [][]float64, labels []int, k int) float64 {
	n := len(x)
	if n < 2 || k < 2 {
		return 0
	}

	sizes := make([]int, k)
	for _, l := range labels {
		sizes[l]++
	}
	populated := 0
	for _, s := range sizes {
		if s > 0 {
			populated++
		}
	}
	if populated < 2 {
		return 0
	}

	total := 0.0
	sums := make([]float64, k)
	for i := 0; i < n; i++ {
		for c := range sums {
			sums[c] = 0
		}
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			sums[labels[j]] += math.Sqrt(sqDist(x[i], x[j]))
		}

		own := labels[i]
		if sizes[own] <= 1 {
			continue
		}
		a := sums[own] / float64(sizes[own]-1)
		b := math.Inf(1)
		for c := 0; c < k; c++ {
			if c == own || sizes[c] == 0 {
				continue
			}
			b = math.Min(b, sums[c]/float64(sizes[c]))
		}
		if denom := math.Max(a, b); denom > 0 {
			total += (b - a) / denom
		}
	}
	return total / float64(n)
}

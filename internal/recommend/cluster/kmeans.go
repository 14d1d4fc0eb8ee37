// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package cluster

import (
	"math"
	"math/rand"
)

// convergenceTol stops Lloyd iterations once no centre moves further than this.
const convergenceTol = 1e-9

// Fit is one k-means solution.
type Fit struct {
	K       int
	Centers [][]float64
	Labels  []int
	Inertia float64
}

// KMeans fits k clusters to x with nInit k-means++ restarts and keeps the
// lowest-inertia solution. Labels are renumbered in order of first appearance
// so equal partitions always carry equal labels.
func KMeans(x [][]float64, k, nInit, maxIter int, rng *rand.Rand) *Fit {
	if k < 1 {
		k = 1
	}
	if k > len(x) {
		k = len(x)
	}

	var best *Fit
	for run := 0; run < nInit; run++ {
		f := lloyd(x, seedPlusPlus(x, k, rng), maxIter)
		if best == nil || f.Inertia < best.Inertia {
			best = f
		}
	}
	canonicalize(best)
	return best
}

// seedPlusPlus picks k initial centres with D^2 weighting.
func seedPlusPlus(x [][]float64, k int, rng *rand.Rand) [][]float64 {
	centers := make([][]float64, 0, k)
	centers = append(centers, clone(x[rng.Intn(len(x))]))

	dist := make([]float64, len(x))
	for i := range x {
		dist[i] = sqDist(x[i], centers[0])
	}

	for len(centers) < k {
		total := 0.0
		for _, d := range dist {
			total += d
		}

		next := rng.Intn(len(x))
		if total > 0 {
			target := rng.Float64() * total
			acc := 0.0
			for i, d := range dist {
				acc += d
				if acc >= target && d > 0 {
					next = i
					break
				}
			}
		}

		c := clone(x[next])
		centers = append(centers, c)
		for i := range x {
			if d := sqDist(x[i], c); d < dist[i] {
				dist[i] = d
			}
		}
	}
	return centers
}

// lloyd runs assignment/update iterations from the given centres.
func lloyd(x [][]float64, centers [][]float64, maxIter int) *Fit {
	k := len(centers)
	dim := len(x[0])
	labels := make([]int, len(x))

	for iter := 0; iter < maxIter; iter++ {
		for i := range x {
			labels[i] = nearest(x[i], centers)
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, l := range labels {
			counts[l]++
			for j, v := range x[i] {
				sums[l][j] += v
			}
		}

		shift := 0.0
		for c := range centers {
			// An empty cluster keeps its previous centre.
			if counts[c] == 0 {
				continue
			}
			for j := range sums[c] {
				sums[c][j] /= float64(counts[c])
			}
			shift = math.Max(shift, sqDist(sums[c], centers[c]))
			centers[c] = sums[c]
		}
		if shift <= convergenceTol {
			break
		}
	}

	inertia := 0.0
	for i := range x {
		labels[i] = nearest(x[i], centers)
		inertia += sqDist(x[i], centers[labels[i]])
	}
	return &Fit{K: k, Centers: centers, Labels: labels, Inertia: inertia}
}

// canonicalize renumbers labels by first appearance and reorders centres.
func canonicalize(f *Fit) {
	mapping := make(map[int]int, f.K)
	for _, l := range f.Labels {
		if _, ok := mapping[l]; !ok {
			mapping[l] = len(mapping)
		}
	}
	// Unused centres go last in their original order.
	for c := 0; c < f.K; c++ {
		if _, ok := mapping[c]; !ok {
			mapping[c] = len(mapping)
		}
	}

	centers := make([][]float64, f.K)
	for old, nw := range mapping {
		centers[nw] = f.Centers[old]
	}
	for i, l := range f.Labels {
		f.Labels[i] = mapping[l]
	}
	f.Centers = centers
}

func nearest(v []float64, centers [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, center := range centers {
		if d := sqDist(v, center); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}

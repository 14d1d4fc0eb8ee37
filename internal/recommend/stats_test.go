// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package recommend

import (
	"context"
	"math"
	"testing"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want float64
	}{
		{"empty", nil, 0},
		{"single", []float64{4}, 4},
		{"odd", []float64{9, 1, 5}, 5},
		{"even", []float64{1, 2, 3, 10}, 2.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Median(tt.in); got != tt.want {
				t.Errorf("Median(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMedian_DoesNotMutate(t *testing.T) {
	in := []float64{3, 1, 2}
	Median(in)
	if in[0] != 3 || in[1] != 1 || in[2] != 2 {
		t.Errorf("Median mutated input: %v", in)
	}
}

func TestMinMax(t *testing.T) {
	got := MinMax(map[string]float64{"a": -10, "b": 0, "c": 10})
	want := map[string]float64{"a": 0, "b": 0.5, "c": 1}
	for k, w := range want {
		if math.Abs(got[k]-w) > 1e-12 {
			t.Errorf("MinMax()[%s] = %v, want %v", k, got[k], w)
		}
	}

	constant := MinMax(map[string]float64{"a": 7, "b": 7})
	for k, v := range constant {
		if v != 0.5 {
			t.Errorf("MinMax(constant)[%s] = %v, want 0.5", k, v)
		}
	}

	if len(MinMax(nil)) != 0 {
		t.Error("MinMax(nil) should be empty")
	}
}

func TestClampAndRound(t *testing.T) {
	if got := Clamp01(1.7); got != 1 {
		t.Errorf("Clamp01(1.7) = %v, want 1", got)
	}
	if got := Clamp01(-0.2); got != 0 {
		t.Errorf("Clamp01(-0.2) = %v, want 0", got)
	}
	if got := Round(0.123456, 4); got != 0.1235 {
		t.Errorf("Round(0.123456, 4) = %v, want 0.1235", got)
	}
}

func TestSortedKeys(t *testing.T) {
	got := SortedKeys(map[string]int{"b": 1, "a": 2, "c": 3})
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("SortedKeys() = %v, want [a b c]", got)
	}
}

func TestContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	if ContextCancelled(ctx) {
		t.Error("ContextCancelled() = true before cancel")
	}
	cancel()
	if !ContextCancelled(ctx) {
		t.Error("ContextCancelled() = false after cancel")
	}
}

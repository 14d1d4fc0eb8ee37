// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package recommend

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestStageError(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := NewStageError(StageBasket, ErrSchema, map[string]int{"rows_dropped": 3, "rows_total": 3}, cause)

	want := "basket stage: schema error (rows_dropped=3, rows_total=3): unexpected EOF"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrSchema) {
		t.Error("errors.Is(err, ErrSchema) = false")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("errors.Is(err, io.ErrUnexpectedEOF) = false")
	}

	wrapped := fmt.Errorf("run failed: %w", err)
	var se *StageError
	if !errors.As(wrapped, &se) {
		t.Fatal("errors.As(*StageError) = false")
	}
	if se.Counts["rows_dropped"] != 3 {
		t.Errorf("Counts[rows_dropped] = %d, want 3", se.Counts["rows_dropped"])
	}
}

func TestErrorKindName(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrSchema, "schema"},
		{NewStageError(StageCluster, ErrDataSparsity, nil, nil), "sparsity"},
		{ConfigError("bad %s", "value"), "configuration"},
		{fmt.Errorf("wrap: %w", ErrUpstreamUnavailable), "upstream"},
		{io.EOF, "internal"},
	}

	for _, tt := range tests {
		if got := ErrorKindName(tt.err); got != tt.want {
			t.Errorf("ErrorKindName(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

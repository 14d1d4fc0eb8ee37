// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package validation

import (
	"strings"
	"testing"
)

func TestValidator_Singleton(t *testing.T) {
	v1 := Validator()
	v2 := Validator()

	if v1 != v2 {
		t.Error("Validator() should return the same singleton instance")
	}
	if v1 == nil {
		t.Error("Validator() should not return nil")
	}
}

type thresholds struct {
	TopK       int     `koanf:"top_k" validate:"min=1,max=100"`
	Cutoff     float64 `koanf:"score_cutoff" validate:"unit"`
	Decay      float64 `koanf:"decay_rate" validate:"gte=0"`
	Mode       string  `koanf:"mode" validate:"oneof=auto fixed"`
	ProductID  string  `json:"product_id" validate:"required"`
	NoTagField int     `validate:"lt=10"`
}

type wrapper struct {
	Ranking thresholds `koanf:"ranking"`
}

func validThresholds() thresholds {
	return thresholds{TopK: 5, Cutoff: 0.08, Decay: 0.001, Mode: "auto", ProductID: "P1"}
}

func TestValidateStruct_Valid(t *testing.T) {
	in := validThresholds()
	if err := ValidateStruct(&in); err != nil {
		t.Errorf("ValidateStruct() returned unexpected error: %v", err)
	}
}

func TestValidateStruct_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*thresholds)
		wantField string
		wantTag   string
	}{
		{"top_k too small", func(s *thresholds) { s.TopK = 0 }, "top_k", "min"},
		{"top_k too large", func(s *thresholds) { s.TopK = 101 }, "top_k", "max"},
		{"cutoff above one", func(s *thresholds) { s.Cutoff = 1.5 }, "score_cutoff", "unit"},
		{"cutoff negative", func(s *thresholds) { s.Cutoff = -0.1 }, "score_cutoff", "unit"},
		{"negative decay", func(s *thresholds) { s.Decay = -1 }, "decay_rate", "gte"},
		{"unknown mode", func(s *thresholds) { s.Mode = "manual" }, "mode", "oneof"},
		{"json name fallback", func(s *thresholds) { s.ProductID = "" }, "product_id", "required"},
		{"go name fallback", func(s *thresholds) { s.NoTagField = 11 }, "NoTagField", "lt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validThresholds()
			tt.mutate(&in)

			err := ValidateStruct(&in)
			if err == nil {
				t.Fatal("ValidateStruct() expected error, got nil")
			}
			errs := err.Errors()
			if len(errs) != 1 {
				t.Fatalf("len(Errors()) = %d, want 1", len(errs))
			}
			if errs[0].Field() != tt.wantField {
				t.Errorf("Field() = %q, want %q", errs[0].Field(), tt.wantField)
			}
			if errs[0].Tag() != tt.wantTag {
				t.Errorf("Tag() = %q, want %q", errs[0].Tag(), tt.wantTag)
			}
		})
	}
}

func TestValidateStruct_NestedNamespace(t *testing.T) {
	in := wrapper{Ranking: validThresholds()}
	in.Ranking.TopK = 0

	err := ValidateStruct(&in)
	if err == nil {
		t.Fatal("ValidateStruct() expected error, got nil")
	}
	if got := err.Errors()[0].Field(); got != "ranking.top_k" {
		t.Errorf("Field() = %q, want %q", got, "ranking.top_k")
	}
	if !strings.Contains(err.Error(), "ranking.top_k must be at least 1") {
		t.Errorf("Error() = %q, want message naming ranking.top_k", err.Error())
	}
}

func TestStructError_JoinsMessages(t *testing.T) {
	in := validThresholds()
	in.TopK = 0
	in.Mode = "x"

	err := ValidateStruct(&in)
	if err == nil {
		t.Fatal("ValidateStruct() expected error, got nil")
	}
	if n := len(err.Errors()); n != 2 {
		t.Fatalf("len(Errors()) = %d, want 2", n)
	}
	if !strings.Contains(err.Error(), "; ") {
		t.Errorf("Error() = %q, want messages joined by '; '", err.Error())
	}
}

func TestStructError_EmptyMessage(t *testing.T) {
	se := &StructError{}
	if got := se.Error(); got != "validation failed" {
		t.Errorf("Error() = %q, want %q", got, "validation failed")
	}
}

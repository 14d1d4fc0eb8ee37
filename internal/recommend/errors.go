// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package recommend

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for the pipeline error taxonomy. Match with errors.Is.
var (
	// ErrSchema indicates a missing column or unresolvable foreign key.
	ErrSchema = errors.New("schema error")

	// ErrDataSparsity indicates too little data to compute a metric.
	ErrDataSparsity = errors.New("data sparsity")

	// ErrConfiguration indicates contradictory or out-of-range parameters.
	ErrConfiguration = errors.New("configuration error")

	// ErrUpstreamUnavailable indicates an optional upstream source is missing.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// Stage names used in errors, logs, metrics and checkpoints.
const (
	StageBasket      = "basket"
	StageCluster     = "cluster"
	StageMining      = "mining"
	StageRanking     = "ranking"
	StageCalibration = "calibration"
)

// Stages lists the pipeline stages in execution order.
var Stages = []string{StageBasket, StageCluster, StageMining, StageRanking, StageCalibration}

// StageError is a stage-scoped failure carrying the offending entity counts.
type StageError struct {
	Stage  string
	Kind   error
	Counts map[string]int
	Err    error
}

// NewStageError builds a StageError. kind should be one of the sentinel errors.
func NewStageError(stage string, kind error, counts map[string]int, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Counts: counts, Err: err}
}

// Error formats the stage, kind, counts and cause on one line.
func (e *StageError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s stage: %v", e.Stage, e.Kind)
	if len(e.Counts) > 0 {
		keys := make([]string, 0, len(e.Counts))
		for k := range e.Counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%d", k, e.Counts[k])
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *StageError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// ErrorKindName returns a short label for metrics, e.g. "schema".
func ErrorKindName(err error) string {
	switch {
	case errors.Is(err, ErrSchema):
		return "schema"
	case errors.Is(err, ErrDataSparsity):
		return "sparsity"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream"
	case err == nil:
		return ""
	default:
		return "internal"
	}
}

// ConfigError wraps a validation failure as a configuration error.
func ConfigError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

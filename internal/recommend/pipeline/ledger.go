// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/basketgraph/internal/checkpoint"
)

// memoryLedger tracks the stages of the current run only. It is used when
// no persistent ledger is configured.
type memoryLedger struct {
	mu     sync.Mutex
	runID  string
	stages map[string]bool
}

func (m *memoryLedger) BeginRun(_ context.Context, runID string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runID = runID
	m.stages = make(map[string]bool)
	return nil
}

//nolint:gocritic // hugeParam: matches the Ledger interface
func (m *memoryLedger) RecordStage(_ context.Context, entry checkpoint.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.RunID != m.runID {
		return checkpoint.ErrRunNotFound
	}
	m.stages[entry.Stage] = true
	return nil
}

func (m *memoryLedger) Published(_ context.Context, runID, stage string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return runID == m.runID && m.stages[stage], nil
}

func (m *memoryLedger) FinishRun(context.Context, string, time.Time, error) error {
	return nil
}

// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/basketgraph/internal/recommend"
)

// Run status values.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

const (
	prefixRun   = "run:"
	prefixStage = "stage:"
	keyLatest   = "latest"
)

var (
	// ErrClosed is returned by every method after Close.
	ErrClosed = errors.New("checkpoint ledger closed")

	// ErrRunNotFound is returned for unknown run IDs.
	ErrRunNotFound = errors.New("run not found")

	// ErrOutOfOrder is returned when a stage is recorded before its
	// predecessor.
	ErrOutOfOrder = errors.New("stage recorded out of order")

	// ErrUnknownStage is returned for stage names outside recommend.Stages.
	ErrUnknownStage = errors.New("unknown stage")
)

// Artifact is one published file of a stage.
type Artifact struct {
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
	Bytes    int64  `json:"bytes"`
}

// Entry is the checkpoint of one published stage.
type Entry struct {
	RunID       string         `json:"run_id"`
	Stage       string         `json:"stage"`
	Artifacts   []Artifact     `json:"artifacts"`
	Counts      map[string]int `json:"counts,omitempty"`
	DurationMS  int64          `json:"duration_ms"`
	PublishedAt time.Time      `json:"published_at"`
}

// Run is one pipeline execution.
type Run struct {
	ID         string    `json:"run_id"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Error      string    `json:"error,omitempty"`
	Stages     []Entry   `json:"stages,omitempty"`
}

// Config configures the ledger database.
type Config struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string `koanf:"path" validate:"required_without=InMemory"`

	// InMemory keeps the ledger in memory only.
	InMemory bool `koanf:"in_memory"`

	// SyncWrites fsyncs every write.
	SyncWrites bool `koanf:"sync_writes"`
}

// Ledger is the BadgerDB-backed run history.
type Ledger struct {
	db     *badger.DB
	logger zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// Open opens or creates the ledger.
//
//nolint:gocritic // hugeParam: zerolog.Logger is passed by value per zerolog convention
func Open(cfg Config, logger zerolog.Logger) (*Ledger, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	l := &Ledger{
		db:     db,
		logger: logger.With().Str("component", "checkpoint").Logger(),
	}
	l.logger.Debug().Str("path", cfg.Path).Bool("in_memory", cfg.InMemory).Msg("Checkpoint ledger opened")
	return l, nil
}

// Close releases the database.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.db.Close()
}

func (l *Ledger) check(ctx context.Context) error {
	if l.closed {
		return ErrClosed
	}
	return ctx.Err()
}

func runKey(id string) []byte {
	return []byte(prefixRun + id)
}

func stageKey(runID string, idx int, stage string) []byte {
	return []byte(fmt.Sprintf("%s%s:%02d:%s", prefixStage, runID, idx, stage))
}

func stageIndex(stage string) int {
	for i, s := range recommend.Stages {
		if s == stage {
			return i
		}
	}
	return -1
}

func getJSON(txn *badger.Txn, key []byte, v interface{}) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set(key, data)
}

// BeginRun records a new running run.
func (l *Ledger) BeginRun(ctx context.Context, runID string, startedAt time.Time) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.check(ctx); err != nil {
		return err
	}

	run := Run{ID: runID, Status: StatusRunning, StartedAt: startedAt.UTC()}
	return l.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, runKey(runID), &run); err != nil {
			return err
		}
		return txn.Set([]byte(keyLatest), []byte(runID))
	})
}

// RecordStage appends a published stage to its run. The previous stage of the
// same run must already be recorded.
//
//nolint:gocritic // hugeParam: entry passed by value is acceptable for this write operation
func (l *Ledger) RecordStage(ctx context.Context, entry Entry) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.check(ctx); err != nil {
		return err
	}

	idx := stageIndex(entry.Stage)
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownStage, entry.Stage)
	}
	if entry.PublishedAt.IsZero() {
		entry.PublishedAt = time.Now().UTC()
	}

	return l.db.Update(func(txn *badger.Txn) error {
		var run Run
		if err := getJSON(txn, runKey(entry.RunID), &run); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrRunNotFound, entry.RunID)
			}
			return err
		}
		if idx > 0 {
			prev := recommend.Stages[idx-1]
			if _, err := txn.Get(stageKey(entry.RunID, idx-1, prev)); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("%w: %s before %s", ErrOutOfOrder, entry.Stage, prev)
				}
				return err
			}
		}
		return setJSON(txn, stageKey(entry.RunID, idx, entry.Stage), &entry)
	})
}

// Published reports whether stage is recorded for runID.
func (l *Ledger) Published(ctx context.Context, runID, stage string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.check(ctx); err != nil {
		return false, err
	}

	idx := stageIndex(stage)
	if idx < 0 {
		return false, fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}

	found := false
	err := l.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(stageKey(runID, idx, stage))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// FinishRun marks a run succeeded, or failed when runErr is non-nil.
func (l *Ledger) FinishRun(ctx context.Context, runID string, finishedAt time.Time, runErr error) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.check(ctx); err != nil {
		return err
	}

	return l.db.Update(func(txn *badger.Txn) error {
		var run Run
		if err := getJSON(txn, runKey(runID), &run); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
			}
			return err
		}
		run.FinishedAt = finishedAt.UTC()
		run.Status = StatusSucceeded
		if runErr != nil {
			run.Status = StatusFailed
			run.Error = runErr.Error()
		}
		return setJSON(txn, runKey(runID), &run)
	})
}

// Get returns a run with its recorded stages in execution order.
func (l *Ledger) Get(ctx context.Context, runID string) (*Run, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.check(ctx); err != nil {
		return nil, err
	}

	var run Run
	err := l.db.View(func(txn *badger.Txn) error {
		if err := getJSON(txn, runKey(runID), &run); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
			}
			return err
		}
		stages, err := readStages(ctx, txn, runID)
		run.Stages = stages
		return err
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func readStages(ctx context.Context, txn *badger.Txn, runID string) ([]Entry, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []Entry
	prefix := []byte(prefixStage + runID + ":")
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var e Entry
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		}); err != nil {
			return nil, fmt.Errorf("decode stage entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Latest returns the most recently started run.
func (l *Ledger) Latest(ctx context.Context) (*Run, error) {
	var runID string
	l.mu.RLock()
	if err := l.check(ctx); err != nil {
		l.mu.RUnlock()
		return nil, err
	}
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyLatest))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			runID = string(val)
			return nil
		})
	})
	l.mu.RUnlock()
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return l.Get(ctx, runID)
}

// Runs lists runs newest first, at most limit (0 = all). Stages are not
// populated.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Run, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.check(ctx); err != nil {
		return nil, err
	}

	var runs []Run
	err := l.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixRun)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var r Run
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			})
			if err != nil {
				l.logger.Warn().Err(err).Str("key", string(it.Item().Key())).Msg("Skipping unreadable run record")
				continue
			}
			runs = append(runs, r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID > runs[j].ID
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package pipeline

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/tomtom215/basketgraph/internal/checkpoint"
	"github.com/tomtom215/basketgraph/internal/events"
	"github.com/tomtom215/basketgraph/internal/metrics"
	"github.com/tomtom215/basketgraph/internal/recommend"
	"github.com/tomtom215/basketgraph/internal/recommend/storage"
	"github.com/tomtom215/basketgraph/internal/testinfra"
)

var fixedNow = time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)

type staticSource struct {
	in  *recommend.Inputs
	err error
}

func (s staticSource) Load(context.Context) (*recommend.Inputs, error) {
	return s.in, s.err
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []*events.RunCompleted
	err    error
}

func (n *recordingNotifier) NotifyRunCompleted(_ context.Context, e *events.RunCompleted) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return n.err
}

func (n *recordingNotifier) Close() error { return nil }

func openLedger(t *testing.T) *checkpoint.Ledger {
	t.Helper()
	l, err := checkpoint.Open(checkpoint.Config{InMemory: true}, zerolog.Nop())
	if err != nil {
		t.Fatalf("checkpoint.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func newRunner(t *testing.T, in *recommend.Inputs, mutate func(*Options)) *Runner {
	t.Helper()
	cfg := recommend.DefaultConfig()
	cfg.Workers = 2
	opts := Options{
		Config:     cfg,
		Source:     staticSource{in: in},
		OutputDir:  filepath.Join(t.TempDir(), "out"),
		KeepModels: 3,
		Now:        func() time.Time { return fixedNow },
		Logger:     zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	r, err := NewRunner(opts)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	return r
}

func synthetic() *recommend.Inputs {
	return testinfra.Synthetic(testinfra.DefaultSyntheticOptions())
}

func TestNewRunner_Validation(t *testing.T) {
	bad := recommend.DefaultConfig()
	bad.Ranking.Weights.Confidence = 0.9

	tests := []struct {
		name string
		opts Options
	}{
		{"missing config", Options{Source: staticSource{}, OutputDir: t.TempDir()}},
		{"invalid config", Options{Config: bad, Source: staticSource{}, OutputDir: t.TempDir()}},
		{"missing source", Options{Config: recommend.DefaultConfig(), OutputDir: t.TempDir()}},
		{"missing output", Options{Config: recommend.DefaultConfig(), Source: staticSource{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRunner(tt.opts); !errors.Is(err, recommend.ErrConfiguration) {
				t.Errorf("NewRunner() error = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestRunner_Run(t *testing.T) {
	ledger := openLedger(t)
	notifier := &recordingNotifier{}
	r := newRunner(t, synthetic(), func(o *Options) {
		o.Ledger = ledger
		o.Notifier = notifier
	})

	successBefore := testutil.ToFloat64(metrics.PipelineRuns.WithLabelValues("success"))

	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(rep.Stages) != len(recommend.Stages) {
		t.Fatalf("len(Stages) = %d, want %d", len(rep.Stages), len(recommend.Stages))
	}
	for i, s := range rep.Stages {
		if s.Stage != recommend.Stages[i] {
			t.Errorf("Stages[%d] = %s, want %s", i, s.Stage, recommend.Stages[i])
		}
		for _, a := range s.Artifacts {
			if _, err := os.Stat(a.Path); err != nil {
				t.Errorf("artifact %s: %v", a.Path, err)
			}
		}
	}

	for _, name := range []string{
		storage.FileBasketRows, storage.FileAssignments, storage.FileRules,
		storage.FileRankedRecs, storage.FileRecommendations, storage.FileCalibrationSummary,
	} {
		if _, ok := rep.Checksums()[name]; !ok {
			t.Errorf("Checksums() missing %s", name)
		}
	}
	if rep.ModelVersion != 1 {
		t.Errorf("ModelVersion = %d, want 1", rep.ModelVersion)
	}
	if len(rep.Recommendations) == 0 {
		t.Error("no recommendations produced")
	}
	if rep.Summary.Validation == nil || !rep.Summary.Validation.OK() {
		t.Errorf("Summary.Validation = %+v, want no violations", rep.Summary.Validation)
	}
	if !rep.Summary.GeneratedAt.Equal(fixedNow) {
		t.Errorf("Summary.GeneratedAt = %v, want %v", rep.Summary.GeneratedAt, fixedNow)
	}
	if r.LastReport() != rep {
		t.Error("LastReport() does not return the completed run")
	}

	run, err := ledger.Get(context.Background(), rep.RunID)
	if err != nil {
		t.Fatalf("ledger.Get() error = %v", err)
	}
	if run.Status != checkpoint.StatusSucceeded || len(run.Stages) != len(recommend.Stages) {
		t.Errorf("ledger run = %s with %d stages, want succeeded with %d", run.Status, len(run.Stages), len(recommend.Stages))
	}
	if got := run.Stages[len(run.Stages)-1].Artifacts; len(got) != 2 {
		t.Errorf("calibration artifacts = %d, want 2", len(got))
	}

	if len(notifier.events) != 1 {
		t.Fatalf("events = %d, want 1", len(notifier.events))
	}
	e := notifier.events[0]
	if e.RunID != rep.RunID || e.Counts["ranking.recommendations"] == 0 || e.Checksums[storage.FileRecommendations] == "" {
		t.Errorf("event = %+v", e)
	}

	if got := testutil.ToFloat64(metrics.PipelineRuns.WithLabelValues("success")) - successBefore; got != 1 {
		t.Errorf("successful runs recorded = %v, want 1", got)
	}

	again, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if again.RunID == rep.RunID || again.ModelVersion != 2 {
		t.Errorf("second run = %s v%d, want new ID and model v2", again.RunID, again.ModelVersion)
	}
}

func TestRunner_Deterministic(t *testing.T) {
	a, err := newRunner(t, synthetic(), nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run(a) error = %v", err)
	}
	b, err := newRunner(t, synthetic(), func(o *Options) { o.Config.Workers = 5 }).Run(context.Background())
	if err != nil {
		t.Fatalf("Run(b) error = %v", err)
	}

	ca, cb := a.Checksums(), b.Checksums()
	for _, name := range []string{
		storage.FileBasketRows, storage.FileAssignments, storage.FileRules,
		storage.FileRankedRecs, storage.FileRecommendations,
	} {
		if ca[name] != cb[name] {
			t.Errorf("%s differs between runs", name)
		}
	}
}

func TestRunner_NorthPlumbing(t *testing.T) {
	in := testinfra.NewDataset().
		Customer("X", "North", "Plumbing").
		Customer("Y", "North", "Plumbing").
		Customer("Z", "North", "Plumbing").
		Product("P1", "Acme", "Plumbing", "Pipes", true, 10).
		Product("P2", "Acme", "Plumbing", "Fittings", true, 5).
		Product("P3", "Bolt", "Electrical", "Cables", true, 20).
		Product("P4", "Bolt", "Plumbing", "Pipes", false, 8).
		Basket("X", testinfra.Day(0), "P1", "P2", "P4").
		Basket("X", testinfra.Day(30), "P1", "P2").
		Basket("X", testinfra.Day(60), "P1", "P2").
		Basket("X", testinfra.Day(90), "P3").
		Buy("Y", "P1", 4, testinfra.Day(80)).
		Buy("Y", "P1", 6, testinfra.Day(90)).
		Basket("Z", testinfra.Day(90), "P1", "P2", "P3").
		Build()

	rep, err := newRunner(t, in, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var y []recommend.Recommendation
	for _, rec := range rep.Recommendations {
		switch {
		case rec.ProductID == "P4":
			t.Errorf("out-of-stock P4 recommended to %s", rec.CustomerID)
		case rec.CustomerID == "X" || rec.CustomerID == "Z":
			t.Errorf("recommendation for %s, who owns every in-stock product: %+v", rec.CustomerID, rec)
		case rec.CustomerID == "Y":
			y = append(y, rec)
		}
	}
	if len(y) == 0 {
		t.Fatal("no recommendations for Y")
	}
	if y[0].ProductID != "P2" || y[0].Rank != 1 || y[0].Segment != "North_Plumbing" {
		t.Errorf("Y top = %+v, want P2 rank 1 in North_Plumbing", y[0])
	}
	for _, rec := range y {
		if rec.ProductID == "P1" {
			t.Error("already-purchased P1 recommended to Y")
		}
	}
	if rep.Summary.FeedbackAvailable {
		t.Error("FeedbackAvailable = true without feedback records")
	}
}

func TestRunner_FeedbackCalibration(t *testing.T) {
	first, err := newRunner(t, synthetic(), nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	target := first.Recommendations[0]

	in := synthetic()
	in.Feedback = recommend.FeedbackAvailable([]recommend.FeedbackRecord{{
		CustomerID: target.CustomerID,
		ProductID:  target.ProductID,
		Signal:     recommend.Signal{Rating: recommend.RatingLow},
		Date:       testinfra.Day(10),
	}})
	second, err := newRunner(t, in, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !second.Summary.FeedbackAvailable || second.Summary.RowsMatched != 1 {
		t.Errorf("Summary = available %v matched %d, want true and 1",
			second.Summary.FeedbackAvailable, second.Summary.RowsMatched)
	}
	want := target.Score * recommend.DefaultConfig().Calibration.WeightLow
	for _, rec := range second.Recommendations {
		if rec.CustomerID == target.CustomerID && rec.ProductID == target.ProductID {
			if math.Abs(rec.Score-want) > 1e-12 {
				t.Errorf("calibrated score = %v, want %v", rec.Score, want)
			}
		}
	}
}

func TestRunner_FeedbackUnavailable(t *testing.T) {
	in := synthetic()
	in.Feedback = recommend.FeedbackUnavailable("feedback circuit breaker open")

	notifier := &recordingNotifier{}
	rep, err := newRunner(t, in, func(o *Options) { o.Notifier = notifier }).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v, want success without feedback", err)
	}
	if rep.Summary.FeedbackAvailable || rep.Summary.Notice == "" {
		t.Errorf("Summary = %+v, want unavailable notice", rep.Summary)
	}
	if len(notifier.events) != 1 || notifier.events[0].Feedback {
		t.Errorf("events = %+v, want one event without feedback", notifier.events)
	}
}

func TestRunner_StageFailure(t *testing.T) {
	ledger := openLedger(t)
	notifier := &recordingNotifier{}
	in := synthetic()
	in.Invoices = nil

	r := newRunner(t, in, func(o *Options) {
		o.Ledger = ledger
		o.Notifier = notifier
	})
	_, err := r.Run(context.Background())

	var se *recommend.StageError
	if !errors.As(err, &se) || se.Stage != recommend.StageBasket || !errors.Is(err, recommend.ErrSchema) {
		t.Fatalf("Run() error = %v, want basket schema StageError", err)
	}
	if len(notifier.events) != 0 {
		t.Error("failed run was announced")
	}
	if r.LastReport() != nil {
		t.Error("LastReport() set by a failed run")
	}

	latest, err := ledger.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.Status != checkpoint.StatusFailed || !strings.Contains(latest.Error, "basket") || len(latest.Stages) != 0 {
		t.Errorf("ledger run = %+v, want failed basket run with no stages", latest)
	}
}

func TestRunner_SourceError(t *testing.T) {
	boom := errors.New("duckdb unavailable")
	r := newRunner(t, nil, func(o *Options) { o.Source = staticSource{err: boom} })
	_, err := r.Run(context.Background())
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "basket stage") {
		t.Errorf("Run() error = %v, want wrapped source error", err)
	}
}

type forgetfulLedger struct {
	memoryLedger
}

func (f *forgetfulLedger) Published(context.Context, string, string) (bool, error) {
	return false, nil
}

func TestRunner_PredecessorMissing(t *testing.T) {
	r := newRunner(t, synthetic(), func(o *Options) { o.Ledger = &forgetfulLedger{} })
	_, err := r.Run(context.Background())
	if !errors.Is(err, ErrPredecessorMissing) {
		t.Errorf("Run() error = %v, want ErrPredecessorMissing", err)
	}
}

func TestRunner_NotifierFailureDoesNotFailRun(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("nats down")}
	if _, err := newRunner(t, synthetic(), func(o *Options) { o.Notifier = notifier }).Run(context.Background()); err != nil {
		t.Errorf("Run() error = %v, want nil", err)
	}
}

func TestRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newRunner(t, synthetic(), nil).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

type blockingSource struct {
	started chan struct{}
	release chan struct{}
	in      *recommend.Inputs
}

func (b *blockingSource) Load(context.Context) (*recommend.Inputs, error) {
	close(b.started)
	<-b.release
	return b.in, nil
}

func TestRunner_RejectsConcurrentRun(t *testing.T) {
	src := &blockingSource{started: make(chan struct{}), release: make(chan struct{}), in: synthetic()}
	r := newRunner(t, nil, func(o *Options) { o.Source = src })

	done := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background())
		done <- err
	}()
	<-src.started

	if _, err := r.Run(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("concurrent Run() error = %v, want ErrRunInProgress", err)
	}
	close(src.release)
	if err := <-done; err != nil {
		t.Errorf("first Run() error = %v", err)
	}
}

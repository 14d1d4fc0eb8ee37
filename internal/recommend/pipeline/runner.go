// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/basketgraph/internal/checkpoint"
	"github.com/tomtom215/basketgraph/internal/events"
	"github.com/tomtom215/basketgraph/internal/logging"
	"github.com/tomtom215/basketgraph/internal/metrics"
	"github.com/tomtom215/basketgraph/internal/recommend"
	"github.com/tomtom215/basketgraph/internal/recommend/basket"
	"github.com/tomtom215/basketgraph/internal/recommend/cluster"
	"github.com/tomtom215/basketgraph/internal/recommend/feedback"
	"github.com/tomtom215/basketgraph/internal/recommend/mining"
	"github.com/tomtom215/basketgraph/internal/recommend/ranking"
	"github.com/tomtom215/basketgraph/internal/recommend/storage"
)

// ErrPredecessorMissing is returned when a stage's predecessor is not
// recorded in the ledger for the current run.
var ErrPredecessorMissing = errors.New("predecessor stage not published")

// ErrRunInProgress is returned by Run while another run is executing.
var ErrRunInProgress = errors.New("a pipeline run is already in progress")

// Source provides the raw inputs of a run.
type Source interface {
	Load(ctx context.Context) (*recommend.Inputs, error)
}

// Ledger records run and stage checkpoints. *checkpoint.Ledger implements it.
type Ledger interface {
	BeginRun(ctx context.Context, runID string, startedAt time.Time) error
	RecordStage(ctx context.Context, entry checkpoint.Entry) error
	Published(ctx context.Context, runID, stage string) (bool, error)
	FinishRun(ctx context.Context, runID string, finishedAt time.Time, runErr error) error
}

// Options configures a Runner. Source, Config and OutputDir are required.
type Options struct {
	Config    *recommend.Config
	Source    Source
	OutputDir string

	// ModelsDir holds the segment model registry. Empty uses
	// OutputDir/models.
	ModelsDir  string
	KeepModels int

	// Ledger defaults to an in-process ledger that keeps nothing.
	Ledger Ledger

	// Notifier defaults to events.Noop.
	Notifier events.Notifier

	// Now defaults to time.Now. It stamps ledger entries and the summary.
	Now func() time.Time

	Logger zerolog.Logger
}

// StageReport describes one completed stage.
type StageReport struct {
	Stage      string             `json:"stage"`
	Counts     map[string]int     `json:"counts"`
	Artifacts  []storage.Artifact `json:"artifacts"`
	DurationMS int64              `json:"duration_ms"`
}

// Report describes a completed run.
type Report struct {
	RunID        string           `json:"run_id"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at"`
	ModelVersion int              `json:"model_version"`
	Stages       []StageReport    `json:"stages"`
	Summary      feedback.Summary `json:"summary"`

	// Recommendations is the final published set.
	Recommendations []recommend.Recommendation `json:"-"`
}

// Counts merges the stage counts, prefixed by stage name.
func (r *Report) Counts() map[string]int {
	out := make(map[string]int)
	for _, s := range r.Stages {
		for k, v := range s.Counts {
			out[s.Stage+"."+k] = v
		}
	}
	return out
}

// Checksums maps published file names to their SHA-256.
func (r *Report) Checksums() map[string]string {
	out := make(map[string]string)
	for _, s := range r.Stages {
		for _, a := range s.Artifacts {
			out[filepath.Base(a.Path)] = a.Checksum
		}
	}
	return out
}

// Runner executes pipeline runs. Runs are serialised.
type Runner struct {
	cfg       *recommend.Config
	source    Source
	publisher *storage.Publisher
	registry  *storage.Registry
	ledger    Ledger
	notifier  events.Notifier
	now       func() time.Time
	base      zerolog.Logger
	logger    zerolog.Logger

	runMu sync.Mutex

	mu   sync.RWMutex
	last *Report
}

// NewRunner validates opts and prepares the output directories.
//
//nolint:gocritic // hugeParam: Options carries a zerolog.Logger by value
func NewRunner(opts Options) (*Runner, error) {
	if opts.Config == nil {
		return nil, recommend.ConfigError("pipeline: config is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Source == nil {
		return nil, recommend.ConfigError("pipeline: input source is required")
	}
	if opts.OutputDir == "" {
		return nil, recommend.ConfigError("pipeline: output directory is required")
	}

	logger := opts.Logger.With().Str("component", "pipeline").Logger()

	pub, err := storage.NewPublisher(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	modelsDir := opts.ModelsDir
	if modelsDir == "" {
		modelsDir = filepath.Join(pub.Dir(), "models")
	}
	reg, err := storage.NewRegistry(modelsDir, opts.KeepModels, opts.Logger)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:       opts.Config.Clone(),
		source:    opts.Source,
		publisher: pub,
		registry:  reg,
		ledger:    opts.Ledger,
		notifier:  opts.Notifier,
		now:       opts.Now,
		base:      opts.Logger,
		logger:    logger,
	}
	if r.ledger == nil {
		r.ledger = &memoryLedger{}
	}
	if r.notifier == nil {
		r.notifier = events.Noop{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// Registry returns the segment model registry.
func (r *Runner) Registry() *storage.Registry {
	return r.registry
}

// LastReport returns the report of the most recent successful run, or nil.
func (r *Runner) LastReport() *Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// run carries the state shared by the stages of one run.
type run struct {
	id     string
	report *Report

	inputs    *recommend.Inputs
	baskets   *basket.Result
	clusters  *cluster.Result
	rules     *mining.Result
	ranked    *ranking.Result
	finalized *feedback.Result
}

// Run executes one pipeline run. It returns ErrRunInProgress if another
// run holds the runner.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if !r.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.runMu.Unlock()

	id := logging.GenerateRunID()
	ctx = logging.ContextWithRunID(ctx, id)
	ctx = logging.ContextWithLogger(ctx, r.logger)
	log := logging.Ctx(ctx)

	started := r.now().UTC()
	st := &run{id: id, report: &Report{RunID: id, StartedAt: started}}

	if err := r.ledger.BeginRun(ctx, id, started); err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}
	log.Info().Int("workers", r.cfg.Workers).Int64("seed", r.cfg.Seed).Msg("Pipeline run started")

	err := r.execute(ctx, st)

	finished := r.now().UTC()
	st.report.FinishedAt = finished
	if ferr := r.ledger.FinishRun(context.WithoutCancel(ctx), id, finished, err); ferr != nil {
		log.Warn().Err(ferr).Msg("Failed to record run outcome")
	}
	metrics.RecordRun(err)

	if err != nil {
		log.Error().Err(err).Str("kind", recommend.ErrorKindName(err)).Msg("Pipeline run failed")
		return nil, err
	}

	r.mu.Lock()
	r.last = st.report
	r.mu.Unlock()

	r.announce(ctx, st.report)

	log.Info().
		Dur("took", finished.Sub(started)).
		Int("recommendations", len(st.report.Recommendations)).
		Int("model_version", st.report.ModelVersion).
		Msg("Pipeline run complete")
	return st.report, nil
}

func (r *Runner) execute(ctx context.Context, st *run) error {
	steps := []struct {
		stage string
		fn    func(context.Context, *run) (map[string]int, []*storage.Artifact, error)
	}{
		{recommend.StageBasket, r.basketStage},
		{recommend.StageCluster, r.clusterStage},
		{recommend.StageMining, r.miningStage},
		{recommend.StageRanking, r.rankingStage},
		{recommend.StageCalibration, r.calibrationStage},
	}
	for i, s := range steps {
		if i > 0 {
			prev := steps[i-1].stage
			ok, err := r.ledger.Published(ctx, st.id, prev)
			if err != nil {
				return fmt.Errorf("check %s checkpoint: %w", prev, err)
			}
			if !ok {
				return fmt.Errorf("%w: %s requires %s", ErrPredecessorMissing, s.stage, prev)
			}
		}
		if err := r.runStage(ctx, st, s.stage, s.fn); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runStage(ctx context.Context, st *run, stage string, fn func(context.Context, *run) (map[string]int, []*storage.Artifact, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log := logging.Ctx(ctx).With().Str("stage", stage).Logger()

	start := time.Now()
	counts, arts, err := fn(ctx, st)
	took := time.Since(start)
	metrics.RecordStage(stage, took, err)
	if err != nil {
		return wrapStage(stage, err)
	}

	entry := checkpoint.Entry{
		RunID:       st.id,
		Stage:       stage,
		Counts:      counts,
		DurationMS:  took.Milliseconds(),
		PublishedAt: r.now().UTC(),
	}
	rep := StageReport{Stage: stage, Counts: counts, DurationMS: took.Milliseconds()}
	for _, a := range arts {
		entry.Artifacts = append(entry.Artifacts, checkpoint.Artifact{Path: a.Path, Checksum: a.Checksum, Bytes: a.Bytes})
		rep.Artifacts = append(rep.Artifacts, *a)
	}
	if err := r.ledger.RecordStage(ctx, entry); err != nil {
		return fmt.Errorf("record %s checkpoint: %w", stage, err)
	}
	st.report.Stages = append(st.report.Stages, rep)

	ev := log.Info().Dur("took", took).Int("artifacts", len(arts))
	for _, k := range recommend.SortedKeys(counts) {
		ev = ev.Int(k, counts[k])
	}
	ev.Msg("Stage published")
	return nil
}

// stageLogger is the base logger tagged with the run ID. Stages add their
// own component field.
func (r *Runner) stageLogger(ctx context.Context) zerolog.Logger {
	return r.base.With().Str("run_id", logging.RunIDFromContext(ctx)).Logger()
}

// wrapStage keeps stage-classified errors intact and prefixes the rest.
func wrapStage(stage string, err error) error {
	var se *recommend.StageError
	if errors.As(err, &se) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%s stage: %w", stage, err)
}

func (r *Runner) basketStage(ctx context.Context, st *run) (map[string]int, []*storage.Artifact, error) {
	in, err := r.source.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load inputs: %w", err)
	}
	st.inputs = in

	res, err := basket.NewBuilder(r.cfg.Basket, r.stageLogger(ctx)).Build(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	st.baskets = res

	art, err := r.publisher.PublishBasketRows(ctx, res.Rows)
	if err != nil {
		return nil, nil, err
	}
	return res.Report.Counts(), []*storage.Artifact{art}, nil
}

func (r *Runner) clusterStage(ctx context.Context, st *run) (map[string]int, []*storage.Artifact, error) {
	start := time.Now()
	res, err := cluster.NewEngine(r.cfg.Cluster, r.cfg.Seed, r.cfg.Workers, r.stageLogger(ctx)).Fit(ctx, st.baskets.Rows)
	if err != nil {
		return nil, nil, err
	}
	st.clusters = res

	art, err := r.publisher.PublishAssignments(ctx, res.Assignments)
	if err != nil {
		return nil, nil, err
	}
	manifest, err := r.registry.Publish(ctx, res.Models, st.id, r.now(), time.Since(start))
	if err != nil {
		return nil, nil, err
	}
	st.report.ModelVersion = manifest.Version

	counts := map[string]int{
		"customers":     len(res.Assignments),
		"segments":      len(res.Models),
		"model_version": manifest.Version,
	}
	for _, m := range res.Models {
		counts["clusters"] += m.K
	}
	return counts, []*storage.Artifact{art}, nil
}

func (r *Runner) miningStage(ctx context.Context, st *run) (map[string]int, []*storage.Artifact, error) {
	res, err := mining.NewMiner(r.cfg.Mining, r.cfg.Workers, r.stageLogger(ctx)).Mine(ctx, st.baskets.Lines, st.clusters.ByCustomer)
	if err != nil {
		return nil, nil, err
	}
	st.rules = res

	art, err := r.publisher.PublishRules(ctx, res.Rules)
	if err != nil {
		return nil, nil, err
	}
	return res.Counts(), []*storage.Artifact{art}, nil
}

func (r *Runner) rankingStage(ctx context.Context, st *run) (map[string]int, []*storage.Artifact, error) {
	res, err := ranking.NewRanker(r.cfg.Ranking, r.cfg.Workers, r.stageLogger(ctx)).Rank(ctx, &ranking.Input{
		Rows:     st.baskets.Rows,
		Catalog:  st.baskets.Catalog,
		Clusters: st.clusters.ByCustomer,
		Rules:    st.rules.Rules,
	})
	if err != nil {
		return nil, nil, err
	}
	st.ranked = res

	art, err := r.publisher.PublishRecommendations(ctx, storage.FileRankedRecs, res.Recommendations)
	if err != nil {
		return nil, nil, err
	}
	return res.Counts(), []*storage.Artifact{art}, nil
}

func (r *Runner) calibrationStage(ctx context.Context, st *run) (map[string]int, []*storage.Artifact, error) {
	cal := feedback.NewCalibrator(r.cfg.Calibration, r.cfg.Ranking.TopK, r.cfg.Ranking.MinConfidence, r.stageLogger(ctx))
	res, err := cal.Calibrate(ctx, st.ranked.Recommendations, st.inputs.Feedback, time.Time{})
	if err != nil {
		return nil, nil, err
	}
	st.finalized = res

	report := ranking.Validate(res.Recommendations, st.baskets.Rows, st.baskets.Catalog, r.cfg.Ranking.TopK)
	res.Summary.Validation = &report
	res.Summary.GeneratedAt = r.now().UTC()
	if !report.OK() {
		logging.Ctx(ctx).Warn().Interface("validation", report).Msg("Final recommendations failed validation checks")
	}

	recs, err := r.publisher.PublishRecommendations(ctx, storage.FileRecommendations, res.Recommendations)
	if err != nil {
		return nil, nil, err
	}
	summary, err := r.publisher.PublishJSON(ctx, storage.FileCalibrationSummary, res.Summary)
	if err != nil {
		return nil, nil, err
	}

	st.report.Summary = res.Summary
	st.report.Recommendations = res.Recommendations

	counts := res.Counts()
	if res.Applied {
		counts["applied"] = 1
	} else {
		counts["applied"] = 0
	}
	return counts, []*storage.Artifact{recs, summary}, nil
}

// announce publishes the run event. Failures are logged only; the run's
// artifacts are already published.
func (r *Runner) announce(ctx context.Context, rep *Report) {
	e := &events.RunCompleted{
		RunID:       rep.RunID,
		FinishedAt:  rep.FinishedAt,
		DurationMS:  rep.FinishedAt.Sub(rep.StartedAt).Milliseconds(),
		OutputDir:   r.publisher.Dir(),
		ModelVer:    rep.ModelVersion,
		Counts:      rep.Counts(),
		Checksums:   rep.Checksums(),
		Feedback:    rep.Summary.FeedbackAvailable,
		Unavailable: rep.Summary.Notice,
	}
	if err := r.notifier.NotifyRunCompleted(ctx, e); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to announce completed run")
	}
}

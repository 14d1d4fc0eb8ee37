// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/basketgraph/internal/recommend/pipeline"
)

// PipelineRunner executes one pipeline run. *pipeline.Runner implements it.
type PipelineRunner interface {
	Run(ctx context.Context) (*pipeline.Report, error)
}

// SchedulerConfig controls when the scheduler runs the pipeline.
type SchedulerConfig struct {
	// Interval between scheduled runs. 0 disables the schedule; runs then
	// happen only on start and on Trigger.
	Interval time.Duration

	// RunOnStart runs once as soon as the service starts.
	RunOnStart bool

	// Timeout bounds one run. 0 disables the bound.
	Timeout time.Duration
}

// SchedulerService runs the pipeline on a fixed interval and on demand.
// Run failures are logged and never stop the service.
type SchedulerService struct {
	runner  PipelineRunner
	config  SchedulerConfig
	logger  zerolog.Logger
	name    string
	trigger chan struct{}
}

// NewSchedulerService creates a scheduler for runner.
//
//nolint:gocritic // hugeParam: zerolog.Logger is passed by value per zerolog convention
func NewSchedulerService(runner PipelineRunner, cfg SchedulerConfig, logger zerolog.Logger) *SchedulerService {
	return &SchedulerService{
		runner:  runner,
		config:  cfg,
		logger:  logger.With().Str("service", "scheduler").Logger(),
		name:    "pipeline-scheduler",
		trigger: make(chan struct{}, 1),
	}
}

// Trigger requests a run as soon as the scheduler is idle. It returns false
// when a request is already pending.
func (s *SchedulerService) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Serve implements suture.Service.
func (s *SchedulerService) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("run_on_start", s.config.RunOnStart).
		Dur("interval", s.config.Interval).
		Msg("Pipeline scheduler starting")

	if s.config.RunOnStart {
		s.run(ctx, "startup")
	}

	var tick <-chan time.Time
	if s.config.Interval > 0 {
		ticker := time.NewTicker(s.config.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Pipeline scheduler stopping")
			return ctx.Err()
		case <-tick:
			s.run(ctx, "schedule")
		case <-s.trigger:
			s.run(ctx, "trigger")
		}
	}
}

func (s *SchedulerService) run(ctx context.Context, cause string) {
	if ctx.Err() != nil {
		return
	}
	runCtx := ctx
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	report, err := s.runner.Run(runCtx)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		s.logger.Debug().Str("cause", cause).Msg("Skipping run, another run is in progress")
	case err != nil:
		s.logger.Error().Err(err).Str("cause", cause).Dur("duration", time.Since(start)).Msg("Pipeline run failed")
	default:
		s.logger.Info().
			Str("cause", cause).
			Str("run_id", report.RunID).
			Int("model_version", report.ModelVersion).
			Dur("duration", time.Since(start)).
			Msg("Pipeline run complete")
	}
}

// String implements fmt.Stringer.
func (s *SchedulerService) String() string {
	return s.name
}

// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/tomtom215/basketgraph/internal/checkpoint"
	"github.com/tomtom215/basketgraph/internal/config"
	"github.com/tomtom215/basketgraph/internal/database"
	"github.com/tomtom215/basketgraph/internal/events"
	"github.com/tomtom215/basketgraph/internal/logging"
	"github.com/tomtom215/basketgraph/internal/metrics"
	"github.com/tomtom215/basketgraph/internal/recommend"
	"github.com/tomtom215/basketgraph/internal/recommend/pipeline"
	"github.com/tomtom215/basketgraph/internal/recommend/storage"
)

// Process exit codes.
const (
	exitFailure       = 1
	exitConfiguration = 2
	exitInput         = 3
)

func exitCode(err error) int {
	switch {
	case errors.Is(err, recommend.ErrConfiguration):
		return exitConfiguration
	case errors.Is(err, recommend.ErrSchema):
		return exitInput
	default:
		return exitFailure
	}
}

// loadConfig resolves configuration and initialises global logging.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFile(flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Logging.Format = flags.logFormat
	}
	logging.Init(cfg.Logging)
	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)
	return cfg, nil
}

// stack holds the long-lived components of one process. close releases
// them in reverse order of creation.
type stack struct {
	cfg      *config.Config
	loader   *database.Loader
	ledger   *checkpoint.Ledger
	notifier events.Notifier
	runner   *pipeline.Runner
	closers  []io.Closer
}

func (s *stack) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			logging.Warn().Err(err).Msg("Shutdown cleanup failed")
		}
	}
	s.closers = nil
}

// openStack opens the loader, ledger and event publisher and builds a
// runner over them. withEvents false skips the event publisher.
func openStack(ctx context.Context, cfg *config.Config, withEvents bool) (st *stack, err error) {
	logger := logging.Logger()
	st = &stack{cfg: cfg}
	defer func() {
		if err != nil {
			st.close()
		}
	}()

	st.loader, err = database.Open(cfg.Inputs, logger)
	if err != nil {
		return nil, fmt.Errorf("open inputs: %w", err)
	}
	st.closers = append(st.closers, st.loader)

	st.ledger, err = checkpoint.Open(cfg.Checkpoint, logger)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint ledger: %w", err)
	}
	st.closers = append(st.closers, st.ledger)

	st.notifier = events.Noop{}
	if withEvents {
		st.notifier, err = events.NewPublisher(ctx, cfg.Events, logger)
		if err != nil {
			return nil, fmt.Errorf("start event publisher: %w", err)
		}
		st.closers = append(st.closers, st.notifier)
	}

	st.runner, err = pipeline.NewRunner(pipeline.Options{
		Config:     &cfg.Recommend,
		Source:     st.loader,
		OutputDir:  cfg.Output.Dir,
		ModelsDir:  cfg.ModelsDir(),
		KeepModels: cfg.Models.Keep,
		Ledger:     st.ledger,
		Notifier:   st.notifier,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// openRegistry opens the model registry without touching inputs.
//
//nolint:gocritic // hugeParam: zerolog.Logger is passed by value per zerolog convention
func openRegistry(cfg *config.Config, logger zerolog.Logger) (*storage.Registry, error) {
	return storage.NewRegistry(cfg.ModelsDir(), cfg.Models.Keep, logger)
}

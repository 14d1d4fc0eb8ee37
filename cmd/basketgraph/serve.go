// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/basketgraph/internal/api"
	"github.com/tomtom215/basketgraph/internal/config"
	"github.com/tomtom215/basketgraph/internal/logging"
	"github.com/tomtom215/basketgraph/internal/recommend/pipeline"
	"github.com/tomtom215/basketgraph/internal/supervisor"
	"github.com/tomtom215/basketgraph/internal/supervisor/services"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline on a schedule and serve the ops API",
		Long: `Run the pipeline under supervision on the configured schedule and serve
health, metrics, run history and on-demand runs over HTTP.

Stops cleanly on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address override, e.g. :9464")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := logging.Logger()

	st, err := openStack(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer st.close()

	tree, err := supervisor.NewSupervisorTree(
		logging.NewSlogLogger(logger, "supervisor"),
		supervisor.TreeConfig{ShutdownTimeout: cfg.Server.ShutdownTimeout},
	)
	if err != nil {
		return err
	}

	scheduler := services.NewSchedulerService(st.runner, services.SchedulerConfig{
		Interval:   cfg.Schedule.Interval,
		RunOnStart: cfg.Schedule.RunOnStart,
		Timeout:    cfg.Schedule.Timeout,
	}, logger)

	registry := st.runner.Registry()
	handler := api.NewHandler(api.Deps{
		Runs:     st.ledger,
		Reports:  st.runner,
		Models:   registry,
		Trigger:  scheduler,
		Source:   st.loader,
		Assigner: pipeline.NewAssigner(registry, cfg.Recommend.Basket, logger),
	})
	mw := api.DefaultMiddlewareConfig()
	mw.CORSAllowedOrigins = cfg.Server.CORSOrigins
	mw.RateLimitRequests = cfg.Server.RateLimit
	mw.RateLimitWindow = cfg.Server.RateLimitWindow

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewRouter(handler, mw, logger),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	tree.AddPipelineService(scheduler)
	tree.AddAPIService(services.NewAPIServerService(server, cfg.Server.ShutdownTimeout, logger))

	logging.Info().
		Str("addr", cfg.Server.Addr).
		Dur("interval", cfg.Schedule.Interval).
		Bool("events", cfg.Events.Enabled).
		Msg("basketgraph serving")

	if err := tree.Run(ctx); err != nil {
		return err
	}
	logging.Info().Msg("basketgraph stopped")
	return nil
}

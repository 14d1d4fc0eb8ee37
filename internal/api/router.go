// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// NewRouter builds the ops HTTP handler.
//
//nolint:gocritic // hugeParam: zerolog.Logger is passed by value per zerolog convention
func NewRouter(h *Handler, cfg MiddlewareConfig, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging(logger.With().Str("component", "api").Logger()))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(AccessLog)

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cfg.CORS())

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.ListRuns)
			r.With(cfg.RateLimit()).Post("/", h.TriggerRun)
			r.Get("/latest", h.LatestRun)
			r.Get("/{runID}", h.GetRun)
		})
		r.Get("/report", h.LastReport)
		r.Get("/recommendations/{customerID}", h.CustomerRecommendations)
		r.Get("/models", h.ListModels)
		r.With(cfg.RateLimit()).Post("/assign", h.Assign)
	})

	return r
}

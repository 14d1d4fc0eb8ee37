// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

// Package logging configures the process-wide zerolog logger.
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logger := logging.WithComponent("pipeline")
//	logger.Info().Str("run_id", id).Msg("Run started")
//
// Pipeline stages never read the global logger. They receive a
// zerolog.Logger by value and derive a component logger from it, so tests can
// pass zerolog.Nop() or NewTestLogger(&buf).
//
// Run-scoped logging goes through the context:
//
//	ctx = logging.ContextWithRunID(ctx, runID)
//	logging.Ctx(ctx).Info().Msg("Stage published") // carries run_id
//
// NewSlogLogger bridges to log/slog for libraries such as sutureslog, and
// WatermillAdapter (nats build tag) bridges to watermill.LoggerAdapter.
//
// Environment variables read by internal/config:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: include caller file and line (default: false)
package logging

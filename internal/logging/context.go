// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// scope is the logging state carried by a context. It is copied on every
// change so parent contexts never observe child values.
type scope struct {
	runID         string
	correlationID string
	base          *zerolog.Logger
}

type scopeKey struct{}

func scopeFrom(ctx context.Context) scope {
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

func withScope(ctx context.Context, edit func(*scope)) context.Context {
	s := scopeFrom(ctx)
	edit(&s)
	return context.WithValue(ctx, scopeKey{}, s)
}

// GenerateRunID returns a new pipeline run ID (a UUIDv4).
func GenerateRunID() string { return uuid.NewString() }

// GenerateCorrelationID returns an 8-character ID for one request or trigger.
func GenerateCorrelationID() string { return uuid.NewString()[:8] }

// ContextWithRunID tags ctx with a pipeline run ID.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return withScope(ctx, func(s *scope) { s.runID = id })
}

// RunIDFromContext returns the run ID, or "".
func RunIDFromContext(ctx context.Context) string { return scopeFrom(ctx).runID }

// ContextWithCorrelationID tags ctx with a correlation ID.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return withScope(ctx, func(s *scope) { s.correlationID = id })
}

// ContextWithNewCorrelationID tags ctx with a fresh correlation ID.
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, GenerateCorrelationID())
}

// CorrelationIDFromContext returns the correlation ID, or "".
func CorrelationIDFromContext(ctx context.Context) string { return scopeFrom(ctx).correlationID }

// ContextWithLogger sets the logger Ctx derives from.
//
//nolint:gocritic // hugeParam: zerolog.Logger is passed by value per zerolog convention
func ContextWithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return withScope(ctx, func(s *scope) { s.base = &logger })
}

// LoggerFromContext returns the logger set by ContextWithLogger, falling
// back to the global logger.
func LoggerFromContext(ctx context.Context) zerolog.Logger {
	if s := scopeFrom(ctx); s.base != nil {
		return *s.base
	}
	return Logger()
}

// Ctx returns a logger carrying run_id and correlation_id from ctx.
//
//	logging.Ctx(ctx).Info().Msg("Stage published")
//	// {"level":"info","run_id":"...","correlation_id":"ab12cd34","message":"Stage published"}
func Ctx(ctx context.Context) *zerolog.Logger {
	l := CtxWith(ctx).Logger()
	return &l
}

// CtxWith is Ctx returning the builder, for adding more fields.
func CtxWith(ctx context.Context) zerolog.Context {
	s := scopeFrom(ctx)
	base := LoggerFromContext(ctx)
	c := base.With()
	if s.runID != "" {
		c = c.Str("run_id", s.runID)
	}
	if s.correlationID != "" {
		c = c.Str("correlation_id", s.correlationID)
	}
	return c
}

// WithComponent returns a child of the global logger with a component field.
func WithComponent(component string) zerolog.Logger {
	return global.Load().With().Str("component", component).Logger()
}

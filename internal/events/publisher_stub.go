// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

//go:build !nats

package events

import (
	"context"

	"github.com/rs/zerolog"
)

// NewPublisher returns Noop. Enabling events in a binary built without the
// nats tag is a configuration error.
//
//nolint:gocritic // hugeParam: zerolog.Logger is passed by value per zerolog convention
func NewPublisher(_ context.Context, cfg Config, logger zerolog.Logger) (Notifier, error) {
	if cfg.Enabled {
		return nil, ErrDisabled
	}
	logger.Debug().Str("component", "events").Msg("Run events disabled")
	return Noop{}, nil
}

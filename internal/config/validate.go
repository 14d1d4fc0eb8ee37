// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package config

import (
	"net/url"
	"strings"

	"github.com/tomtom215/basketgraph/internal/recommend"
	"github.com/tomtom215/basketgraph/internal/validation"
)

// Validate checks struct tags, then the pipeline's cross-field rules, then
// the outer sections. Every error wraps recommend.ErrConfiguration.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return recommend.ConfigError("%v", err)
	}
	if err := c.Recommend.Validate(); err != nil {
		return err
	}

	if c.Inputs.FromTables && c.Inputs.DuckDBPath == "" {
		return recommend.ConfigError("inputs.from_tables requires inputs.duckdb_path")
	}

	if c.Events.Enabled {
		if err := validateNATSURL(c.Events.URL); err != nil {
			return err
		}
		if strings.ContainsAny(c.Events.Stream, ". *>") {
			return recommend.ConfigError("events.stream %q must not contain '.', '*', '>' or spaces", c.Events.Stream)
		}
	}
	return nil
}

func validateNATSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return recommend.ConfigError("events.url: %v", err)
	}
	switch u.Scheme {
	case "nats", "tls", "ws", "wss":
	default:
		return recommend.ConfigError("events.url must use nats://, tls://, ws:// or wss://, got %q", raw)
	}
	if u.Host == "" {
		return recommend.ConfigError("events.url must include a host, got %q", raw)
	}
	return nil
}

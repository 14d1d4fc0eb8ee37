// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package config

import (
	"time"

	"github.com/tomtom215/basketgraph/internal/checkpoint"
	"github.com/tomtom215/basketgraph/internal/database"
	"github.com/tomtom215/basketgraph/internal/events"
	"github.com/tomtom215/basketgraph/internal/logging"
	"github.com/tomtom215/basketgraph/internal/recommend"
)

// Config is the complete process configuration.
type Config struct {
	Inputs     database.Config   `koanf:"inputs"`
	Output     OutputConfig      `koanf:"output"`
	Recommend  recommend.Config  `koanf:"recommend"`
	Models     ModelsConfig      `koanf:"models"`
	Checkpoint checkpoint.Config `koanf:"checkpoint"`
	Events     events.Config     `koanf:"events"`
	Server     ServerConfig      `koanf:"server"`
	Schedule   ScheduleConfig    `koanf:"schedule"`
	Logging    logging.Config    `koanf:"logging"`
}

// OutputConfig locates published artifacts.
type OutputConfig struct {
	Dir string `koanf:"dir" validate:"required"`
}

// ModelsConfig configures the segment model registry.
type ModelsConfig struct {
	// Dir defaults to <output.dir>/models when empty.
	Dir string `koanf:"dir"`

	// Keep is how many model versions survive pruning.
	Keep int `koanf:"keep" validate:"min=1"`
}

// ServerConfig configures the ops HTTP listener used by serve.
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// CORSOrigins empty disables CORS on /api/v1.
	CORSOrigins []string `koanf:"cors_origins" validate:"dive,url"`

	// RateLimit bounds POST requests per client IP per RateLimitWindow.
	// 0 disables the limit.
	RateLimit       int           `koanf:"rate_limit" validate:"gte=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// ScheduleConfig controls periodic runs under serve.
type ScheduleConfig struct {
	// Interval between runs. 0 runs only on start (if RunOnStart) and on
	// demand.
	Interval time.Duration `koanf:"interval" validate:"gte=0"`

	RunOnStart bool `koanf:"run_on_start"`

	// Timeout bounds one run. 0 disables the bound.
	Timeout time.Duration `koanf:"timeout" validate:"gte=0"`
}

// ModelsDir resolves the registry directory.
func (c *Config) ModelsDir() string {
	if c.Models.Dir != "" {
		return c.Models.Dir
	}
	return c.Output.Dir + "/models"
}

func defaultConfig() *Config {
	ev := events.DefaultConfig()
	ev.StoreDir = "output/nats"

	return &Config{
		Inputs: database.Config{
			Customers:    "data/customers.csv",
			Products:     "data/products.csv",
			Invoices:     "data/invoices.csv",
			Feedback:     "data/feedback.csv",
			MaxMemory:    "2GB",
			QueryTimeout: 5 * time.Minute,
			Breaker:      database.DefaultBreakerConfig(),
		},
		Output:    OutputConfig{Dir: "output"},
		Recommend: *recommend.DefaultConfig(),
		Models:    ModelsConfig{Keep: 5},
		Checkpoint: checkpoint.Config{
			Path:       "output/checkpoints",
			SyncWrites: true,
		},
		Events: ev,
		Server: ServerConfig{
			Addr:            ":9464",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			CORSOrigins:     []string{},
			RateLimit:       10,
			RateLimitWindow: time.Minute,
		},
		Schedule: ScheduleConfig{
			Interval:   24 * time.Hour,
			RunOnStart: true,
			Timeout:    2 * time.Hour,
		},
		Logging: logging.Config{
			Level:     "info",
			Format:    "json",
			Timestamp: true,
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

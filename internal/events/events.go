// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// SubjectRunCompleted is the default subject for run announcements.
const SubjectRunCompleted = "basketgraph.run.completed"

// ErrDisabled is returned by NewPublisher when the binary was built
// without NATS support.
var ErrDisabled = errors.New("events: built without nats support")

// RunCompleted announces a successfully published run.
type RunCompleted struct {
	RunID       string            `json:"run_id"`
	FinishedAt  time.Time         `json:"finished_at"`
	DurationMS  int64             `json:"duration_ms"`
	OutputDir   string            `json:"output_dir"`
	ModelVer    int               `json:"model_version,omitempty"`
	Counts      map[string]int    `json:"counts"`
	Checksums   map[string]string `json:"checksums"`
	Feedback    bool              `json:"feedback_applied"`
	Unavailable string            `json:"feedback_unavailable_reason,omitempty"`
}

// Encode marshals e as JSON.
func (e *RunCompleted) Encode() ([]byte, error) {
	if e.RunID == "" {
		return nil, errors.New("events: run ID is required")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal run event: %w", err)
	}
	return data, nil
}

// DecodeRunCompleted parses a payload produced by Encode.
func DecodeRunCompleted(data []byte) (*RunCompleted, error) {
	var e RunCompleted
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal run event: %w", err)
	}
	return &e, nil
}

// Notifier receives run announcements.
type Notifier interface {
	NotifyRunCompleted(ctx context.Context, e *RunCompleted) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

// NotifyRunCompleted implements Notifier.
func (Noop) NotifyRunCompleted(context.Context, *RunCompleted) error { return nil }

// Close implements Notifier.
func (Noop) Close() error { return nil }

// Config configures the run publisher.
type Config struct {
	Enabled       bool          `koanf:"enabled"`
	URL           string        `koanf:"url" validate:"required_if=Enabled true"`
	Subject       string        `koanf:"subject" validate:"required_if=Enabled true"`
	Stream        string        `koanf:"stream" validate:"required_if=Enabled true"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
	DuplicateWin  time.Duration `koanf:"duplicate_window"`

	// Embedded starts an in-process JetStream server on URL's port.
	Embedded bool   `koanf:"embedded"`
	StoreDir string `koanf:"store_dir"`

	BreakerThreshold uint32        `koanf:"breaker_threshold"`
	BreakerTimeout   time.Duration `koanf:"breaker_timeout"`
}

// DefaultConfig returns a disabled publisher configuration.
func DefaultConfig() Config {
	return Config{
		URL:              "nats://127.0.0.1:4222",
		Subject:          SubjectRunCompleted,
		Stream:           "BASKETGRAPH",
		MaxReconnects:    10,
		ReconnectWait:    2 * time.Second,
		DuplicateWin:     2 * time.Minute,
		StoreDir:         "/var/lib/basketgraph/nats",
		BreakerThreshold: 5,
		BreakerTimeout:   time.Minute,
	}
}

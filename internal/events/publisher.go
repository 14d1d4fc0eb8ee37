// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

//go:build nats

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/basketgraph/internal/logging"
	"github.com/tomtom215/basketgraph/internal/metrics"
)

// Publisher announces runs through Watermill on NATS JetStream.
type Publisher struct {
	cfg       Config
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker[struct{}]
	embedded  *EmbeddedServer
	logger    zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPublisher connects to NATS, ensures the stream exists and returns a
// ready Publisher. When cfg.Enabled is false it returns Noop.
//
//nolint:gocritic // hugeParam: zerolog.Logger is passed by value per zerolog convention
func NewPublisher(ctx context.Context, cfg Config, logger zerolog.Logger) (Notifier, error) {
	if !cfg.Enabled {
		return Noop{}, nil
	}
	logger = logger.With().Str("component", "events").Logger()

	var embedded *EmbeddedServer
	if cfg.Embedded {
		srv, err := NewEmbeddedServer(cfg.URL, cfg.StoreDir)
		if err != nil {
			return nil, err
		}
		embedded = srv
		cfg.URL = srv.ClientURL()
	}

	if err := ensureStream(ctx, cfg); err != nil {
		embedded.Shutdown()
		return nil, err
	}

	wmLogger := logging.NewWatermillAdapter(logger)
	natsOpts := []natsgo.Option{
		natsgo.Name("basketgraph"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, wmLogger)
	if err != nil {
		embedded.Shutdown()
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	p := &Publisher{
		cfg:       cfg,
		publisher: pub,
		embedded:  embedded,
		logger:    logger,
	}
	p.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "events",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.BreakerThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordBreakerTransition(name, from.String(), to.String())
			logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("Event publisher circuit breaker state changed")
		},
	})

	logger.Info().Str("url", cfg.URL).Str("subject", cfg.Subject).Msg("Run event publisher ready")
	return p, nil
}

func ensureStream(ctx context.Context, cfg Config) error {
	nc, err := natsgo.Connect(cfg.URL, natsgo.Timeout(5*time.Second))
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       cfg.Stream,
		Subjects:   []string{cfg.Subject},
		Retention:  jetstream.LimitsPolicy,
		Storage:    jetstream.FileStorage,
		Duplicates: cfg.DuplicateWin,
		Discard:    jetstream.DiscardOld,
		MaxAge:     30 * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", cfg.Stream, err)
	}
	return nil
}

// NotifyRunCompleted publishes e on the configured subject.
func (p *Publisher) NotifyRunCompleted(ctx context.Context, e *RunCompleted) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errors.New("events: publisher is closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := e.Encode()
	if err != nil {
		return err
	}
	msg := message.NewMessage(e.RunID, data)
	msg.Metadata.Set(natsgo.MsgIdHdr, e.RunID)
	msg.Metadata.Set("run_id", e.RunID)
	msg.SetContext(ctx)

	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.publisher.Publish(p.cfg.Subject, msg)
	})
	if err != nil {
		metrics.RecordEventPublish("failure")
		return fmt.Errorf("publish run event: %w", err)
	}
	metrics.RecordEventPublish("success")
	p.logger.Debug().Str("run_id", e.RunID).Msg("Run event published")
	return nil
}

// Close shuts the publisher and any embedded server down.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	err := p.publisher.Close()
	p.embedded.Shutdown()
	return err
}

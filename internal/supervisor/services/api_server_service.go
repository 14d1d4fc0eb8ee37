// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultShutdownTimeout = 10 * time.Second

// APIServerService serves the ops API under suture. It binds its own
// listener so the bound address is known even for port 0.
type APIServerService struct {
	server          *http.Server
	shutdownTimeout time.Duration
	logger          zerolog.Logger

	mu   sync.RWMutex
	addr string
}

// NewAPIServerService wraps server. shutdownTimeout <= 0 uses 10s.
//
//nolint:gocritic // hugeParam: zerolog.Logger is passed by value per zerolog convention
func NewAPIServerService(server *http.Server, shutdownTimeout time.Duration, logger zerolog.Logger) *APIServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	return &APIServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		logger:          logger.With().Str("service", "ops-api").Logger(),
	}
}

// Serve implements suture.Service. A listen failure is returned so the
// supervisor retries with backoff.
func (s *APIServerService) Serve(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}
	s.setAddr(ln.Addr().String())
	defer s.setAddr("")

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Ops API listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("ops API server: %w", err)

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("Ops API shutdown incomplete")
			return fmt.Errorf("ops API shutdown: %w", err)
		}
		<-errCh
		s.logger.Info().Msg("Ops API stopped")
		return ctx.Err()
	}
}

// Addr returns the bound listen address, or "" when not serving.
func (s *APIServerService) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

func (s *APIServerService) setAddr(addr string) {
	s.mu.Lock()
	s.addr = addr
	s.mu.Unlock()
}

// String implements fmt.Stringer for suture logs.
func (s *APIServerService) String() string {
	return "ops-api"
}

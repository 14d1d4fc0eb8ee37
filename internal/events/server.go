// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

//go:build nats

package events

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedServer is an in-process NATS server with JetStream.
type EmbeddedServer struct {
	server *server.Server
}

// NewEmbeddedServer starts a JetStream server listening on the host and
// port of listenURL. Port -1 picks a random port.
func NewEmbeddedServer(listenURL, storeDir string) (*EmbeddedServer, error) {
	host, port := "127.0.0.1", -1
	if listenURL != "" {
		u, err := url.Parse(listenURL)
		if err != nil {
			return nil, fmt.Errorf("parse NATS URL: %w", err)
		}
		if h := u.Hostname(); h != "" {
			host = h
		}
		if p := u.Port(); p != "" {
			if port, err = strconv.Atoi(p); err != nil {
				return nil, fmt.Errorf("parse NATS port: %w", err)
			}
		}
	}

	ns, err := server.NewServer(&server.Options{
		ServerName: "basketgraph-events",
		Host:       host,
		Port:       port,
		JetStream:  true,
		StoreDir:   storeDir,
		NoSigs:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}
	go ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, errors.New("NATS server not ready within timeout")
	}
	return &EmbeddedServer{server: ns}, nil
}

// ClientURL returns the URL clients connect to.
func (s *EmbeddedServer) ClientURL() string {
	return s.server.ClientURL()
}

// Shutdown stops the server. Safe on a nil receiver.
func (s *EmbeddedServer) Shutdown() {
	if s == nil {
		return
	}
	s.server.Shutdown()
	s.server.WaitForShutdown()
}

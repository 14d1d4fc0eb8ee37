// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

// Package events announces completed pipeline runs on NATS JetStream.
//
// After the final stage is published the runner hands a RunCompleted event to
// a Notifier. With the nats build tag the Notifier is a Watermill publisher
// on top of watermill-nats, guarded by a circuit breaker; without it the
// package compiles to a no-op so the pipeline never depends on a broker.
//
//	go build -tags nats ./cmd/basketgraph
//
// Messages carry the run ID as Nats-Msg-Id, so JetStream drops duplicates
// of a re-announced run inside the stream's duplicate window.
//
// The embedded server (EmbeddedServer) is used by tests and by single-node
// deployments that set events.embedded.
package events

// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

// Package services adapts basketgraph components to suture.Service.
//
// Every service blocks in Serve until its context is canceled and returns
// the context error on a clean stop. String names the service in supervisor
// log events.
package services

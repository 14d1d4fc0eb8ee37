// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

/*
Package api serves the basketgraph ops HTTP interface on a Chi router.

# Endpoints

	GET  /healthz                        liveness
	GET  /readyz                         checkpoint ledger reachable
	GET  /metrics                        Prometheus exposition
	GET  /api/v1/runs?limit=N            run history, newest first
	POST /api/v1/runs                    request a run (202, or 409 if one is queued)
	GET  /api/v1/runs/latest             latest run with stage checkpoints
	GET  /api/v1/runs/{runID}            one run with stage checkpoints
	GET  /api/v1/report                  report of the last run in this process
	GET  /api/v1/recommendations/{customerID}
	GET  /api/v1/models                  stored segment model versions
	POST /api/v1/assign                  place customers with a stored model

Every /api/v1 response uses the APIResponse envelope. Requests carry an
X-Request-ID and a correlation ID in their logging context, and are counted
in api_requests_total by route pattern.

POST endpoints are rate limited per client IP with go-chi/httprate. CORS is
off unless origins are configured.
*/
package api

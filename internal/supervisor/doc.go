// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

/*
Package supervisor runs the long-lived parts of basketgraph serve under
suture v4.

	basketgraph
	├── pipeline-layer
	│   └── SchedulerService      periodic and triggered pipeline runs
	└── api-layer
	    └── APIServerService      /healthz, /metrics, /api/v1

Crashed services restart with suture's backoff. Supervisor events are logged
through sutureslog into the zerolog pipeline via logging.NewSlogLogger.

# Usage

	tree, err := supervisor.NewSupervisorTree(
	    logging.NewSlogLogger(logging.Logger(), "supervisor"),
	    supervisor.DefaultTreeConfig(),
	)
	if err != nil {
	    return err
	}
	tree.AddPipelineService(services.NewSchedulerService(runner, schedCfg, logger))
	tree.AddAPIService(services.NewAPIServerService(server, 15*time.Second, logger))
	return tree.Serve(ctx)

Serve returns when ctx is canceled. Services that do not stop within
ShutdownTimeout are reported by UnstoppedServiceReport.
*/
package supervisor

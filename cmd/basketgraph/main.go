// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

// Command basketgraph runs the B2B recommendation pipeline.
//
//	basketgraph run                   one pipeline run, then exit
//	basketgraph serve                 scheduled runs plus the ops HTTP API
//	basketgraph assign C1 C2          place customers with a stored model
//	basketgraph runs list             run history from the checkpoint ledger
//	basketgraph runs show <run-id>    one run with its stage checkpoints
//	basketgraph version
//
// Configuration is layered: built-in defaults, then a YAML file (--config,
// CONFIG_PATH or the default search paths), then environment
// variables, then command-line flags.
//
// Build with -tags nats to enable JetStream run events.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "basketgraph",
		Short: "B2B product recommendation pipeline",
		Long: `basketgraph turns invoice history into per-customer product recommendations.

Each run builds customer-product baskets, clusters customers within their
region and trade segment, mines pairwise association rules per cluster,
ranks recommendations for every customer and calibrates them with sales
feedback.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default: search ./config.yaml, /etc/basketgraph/config.yaml)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level override (trace, debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "log format override (json, console)")

	root.AddCommand(newRunCmd(flags))
	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newAssignCmd(flags))
	root.AddCommand(newRunsCmd(flags))
	root.AddCommand(newVersionCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

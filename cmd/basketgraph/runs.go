// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/basketgraph/internal/checkpoint"
	"github.com/tomtom215/basketgraph/internal/config"
	"github.com/tomtom215/basketgraph/internal/logging"
)

func newRunsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the checkpoint ledger",
	}
	cmd.AddCommand(newRunsListCmd(flags))
	cmd.AddCommand(newRunsShowCmd(flags))
	return cmd
}

func openLedger(flags *globalFlags) (*checkpoint.Ledger, *config.Config, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, nil, err
	}
	ledger, err := checkpoint.Open(cfg.Checkpoint, logging.Logger())
	if err != nil {
		return nil, nil, fmt.Errorf("open checkpoint ledger: %w", err)
	}
	return ledger, cfg, nil
}

func newRunsListCmd(flags *globalFlags) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ledger, _, err := openLedger(flags)
			if err != nil {
				return err
			}
			defer ledger.Close()

			runs, err := ledger.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), runs)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tSTATUS\tSTARTED\tDURATION\tERROR")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Status,
					r.StartedAt.Format(time.RFC3339), runDuration(&r), r.Error)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print runs as JSON")
	return cmd
}

func newRunsShowCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show one run and its stage checkpoints (default: latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, _, err := openLedger(flags)
			if err != nil {
				return err
			}
			defer ledger.Close()

			var run *checkpoint.Run
			if len(args) == 1 {
				run, err = ledger.Get(cmd.Context(), args[0])
			} else {
				run, err = ledger.Latest(cmd.Context())
			}
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), run)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s  %s  started %s  %s\n", run.ID, run.Status,
				run.StartedAt.Format(time.RFC3339), runDuration(run))
			if run.Error != "" {
				fmt.Fprintf(out, "Error: %s\n", run.Error)
			}
			fmt.Fprintln(out)

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STAGE\tDURATION\tCOUNTS\tARTIFACT\tSHA256")
			for _, e := range run.Stages {
				d := (time.Duration(e.DurationMS) * time.Millisecond).String()
				if len(e.Artifacts) == 0 {
					fmt.Fprintf(w, "%s\t%s\t%s\t\t\n", e.Stage, d, formatCounts(e.Counts))
					continue
				}
				for i, a := range e.Artifacts {
					if i == 0 {
						fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Stage, d, formatCounts(e.Counts), a.Path, shortSum(a.Checksum))
					} else {
						fmt.Fprintf(w, "\t\t\t%s\t%s\n", a.Path, shortSum(a.Checksum))
					}
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run as JSON")
	return cmd
}

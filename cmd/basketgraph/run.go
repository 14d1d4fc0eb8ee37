// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/basketgraph/internal/recommend/pipeline"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	var (
		asJSON    bool
		outputDir string
		seed      int64
		noEvents  bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		Long: `Run all five stages once and publish their outputs to the output directory.

The run is recorded in the checkpoint ledger. When events are enabled a
run-completed event is published to NATS JetStream after the last stage.`,
		Example: `  # Run with the default configuration
  basketgraph run

  # Run against another input set and print the report as JSON
  INPUTS_INVOICES=/data/q3/invoices.csv basketgraph run --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if outputDir != "" {
				cfg.Output.Dir = outputDir
			}
			if cmd.Flags().Changed("seed") {
				cfg.Recommend.Seed = seed
			}

			st, err := openStack(cmd.Context(), cfg, !noEvents)
			if err != nil {
				return err
			}
			defer st.close()

			rep, err := st.runner.Run(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rep)
			}
			printReport(cmd.OutOrStdout(), rep)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run report as JSON")
	cmd.Flags().StringVar(&outputDir, "output", "", "output directory override")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed override")
	cmd.Flags().BoolVar(&noEvents, "no-events", false, "do not publish the run-completed event")
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printReport(out io.Writer, rep *pipeline.Report) {
	fmt.Fprintf(out, "Run %s  model v%d  %s\n\n", rep.RunID, rep.ModelVersion,
		rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tDURATION\tCOUNTS\tARTIFACTS")
	for _, s := range rep.Stages {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", s.Stage,
			(time.Duration(s.DurationMS) * time.Millisecond).String(), formatCounts(s.Counts), len(s.Artifacts))
	}
	_ = w.Flush()

	sum := rep.Summary
	fmt.Fprintln(out)
	if !sum.FeedbackAvailable {
		fmt.Fprintf(out, "Feedback: unavailable (%s)\n", sum.Notice)
		return
	}
	fmt.Fprintf(out, "Feedback: %d rows, %d matched, acceptance %.1f%%\n",
		sum.RowsOut, sum.RowsMatched, sum.Overall.AcceptanceRate*100)
}

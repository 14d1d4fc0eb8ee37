// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tomtom215/basketgraph/internal/database"
	"github.com/tomtom215/basketgraph/internal/logging"
	"github.com/tomtom215/basketgraph/internal/recommend/pipeline"
)

func newAssignCmd(flags *globalFlags) *cobra.Command {
	var (
		modelVersion int
		asJSON       bool
	)
	cmd := &cobra.Command{
		Use:   "assign [customer-id...]",
		Short: "Place customers with a stored segment model",
		Long: `Assign customers to clusters of a stored model version without retraining.

Inputs are loaded fresh so customers added since the last run can be placed.
With no customer IDs every customer with purchases is placed.`,
		Example: `  # Place two customers with the latest model
  basketgraph assign C1001 C1002

  # Place everyone with model version 3
  basketgraph assign --model-version 3 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			logger := logging.Logger()

			loader, err := database.Open(cfg.Inputs, logger)
			if err != nil {
				return fmt.Errorf("open inputs: %w", err)
			}
			defer loader.Close()

			registry, err := openRegistry(cfg, logger)
			if err != nil {
				return err
			}
			in, err := loader.Load(cmd.Context())
			if err != nil {
				return err
			}

			placements, err := pipeline.NewAssigner(registry, cfg.Recommend.Basket, logger).
				Assign(cmd.Context(), in, modelVersion, args)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), placements)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CUSTOMER\tSEGMENT\tCLUSTER\tMODEL\tERROR")
			for _, p := range placements {
				fmt.Fprintf(w, "%s\t%s\t%s\tv%d\t%s\n", p.CustomerID, p.Segment, p.ClusterID, p.ModelVersion, p.Error)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&modelVersion, "model-version", 0, "stored model version (0 = latest)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print placements as JSON")
	return cmd
}

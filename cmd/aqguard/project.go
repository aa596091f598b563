package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hed1ad/aqguard/pkg/cache"
	"github.com/hed1ad/aqguard/pkg/detectors"
	"github.com/hed1ad/aqguard/pkg/pipeline"
)

var projectRefresh bool

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Compute or reuse the PCA projection of the augmented dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		augmented, err := pipeline.LoadAugmented(cfg.Output.AugmentedPath)
		if err != nil {
			return fmt.Errorf("load augmented dataset (run detect first): %w", err)
		}

		store := cache.New(cfg.Output.ProjectionPath, logger)
		if projectRefresh {
			if err := store.Invalidate(); err != nil {
				return err
			}
		}

		projector := pipeline.NewProjector(store,
			pipeline.WithComponents(cfg.Reduction.Components),
			pipeline.WithProjectorLogger(logger),
		)
		proj, err := projector.Project(cmd.Context(), augmented)
		if err != nil {
			return err
		}

		rows, _ := proj.Coords.Dims()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d rows, %d anomalies -> %s\n",
			rows, detectors.CountAnomalies(proj.Labels), store.Path())
		for k, r := range proj.ExplainedVariance {
			fmt.Fprintf(out, "%s explains %.1f%% of variance\n", cache.ComponentName(k), 100*r)
		}
		return nil
	},
}

func init() {
	projectCmd.Flags().BoolVar(&projectRefresh, "refresh", false, "invalidate the cached projection first")
	rootCmd.AddCommand(projectCmd)
}

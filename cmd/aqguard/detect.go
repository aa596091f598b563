package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hed1ad/aqguard/pkg/cache"
	"github.com/hed1ad/aqguard/pkg/detectors"
	"github.com/hed1ad/aqguard/pkg/detectors/iforest"
	aqcsv "github.com/hed1ad/aqguard/pkg/io/csv"
	"github.com/hed1ad/aqguard/pkg/pipeline"
	"github.com/hed1ad/aqguard/pkg/preprocess"
)

var (
	detectInput   string
	detectOutput  string
	detectProject bool
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Clean the raw dataset, label anomalies and write the augmented dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		if detectInput != "" {
			cfg.Input.Path = detectInput
		}
		if detectOutput != "" {
			cfg.Output.AugmentedPath = detectOutput
		}
		if cfg.Input.Path == "" {
			return fmt.Errorf("no input file: set --input, input.path or AQGUARD_INPUT")
		}

		detCfg := detectors.Config{
			Contamination: cfg.Detector.Contamination,
			Trees:         cfg.Detector.Trees,
			SampleSize:    cfg.Detector.SampleSize,
			RandomSeed:    *cfg.Detector.Seed,
		}
		forest := iforest.New(iforest.WithConfig(detCfg))

		opts := []pipeline.Option{
			pipeline.WithLogger(logger),
			pipeline.WithCleaner(preprocess.NewCleaner(
				preprocess.WithMaxMissing(*cfg.Cleaning.MaxMissing),
				preprocess.WithSentinel(*cfg.Cleaning.Sentinel),
				preprocess.WithDropColumns(cfg.Cleaning.DropColumns...),
				preprocess.WithLogger(logger),
			)),
			pipeline.WithDetectorConfig(detCfg),
			pipeline.WithDetector(forest),
			pipeline.WithScore(cfg.Output.IncludeScore),
			pipeline.WithReaderOptions(
				aqcsv.WithComma(cfg.Delimiter()),
				aqcsv.WithDecimalComma(cfg.Input.DecimalComma),
			),
			pipeline.WithOutput(cfg.Output.AugmentedPath),
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		if store != nil {
			defer store.Close()
			opts = append(opts, pipeline.WithStore(store))
		}

		res, err := pipeline.New(opts...).RunFile(cmd.Context(), cfg.Input.Path)
		if err != nil {
			return err
		}

		if cfg.Output.ModelPath != "" {
			if err := saveModel(forest, cfg.Output.ModelPath); err != nil {
				return err
			}
			logger.Info().Str("path", cfg.Output.ModelPath).Msg("Saved detector model")
		}

		if detectProject {
			projector := pipeline.NewProjector(
				cache.New(cfg.Output.ProjectionPath, logger),
				pipeline.WithComponents(cfg.Reduction.Components),
				pipeline.WithProjectorLogger(logger),
			)
			if _, err := projector.ProjectResult(cmd.Context(), res); err != nil {
				return err
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d rows, %d dropped, %d anomalies -> %s\n",
			res.RunID, res.Table.NumRows(), res.Dropped, res.Anomalies, cfg.Output.AugmentedPath)
		return nil
	},
}

func saveModel(forest *iforest.IsolationForest, path string) error {
	data, err := forest.Save()
	if err != nil {
		return fmt.Errorf("serialize model: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func init() {
	detectCmd.Flags().StringVarP(&detectInput, "input", "i", "", "raw CSV input (overrides config)")
	detectCmd.Flags().StringVarP(&detectOutput, "output", "o", "", "augmented CSV output (overrides config)")
	detectCmd.Flags().BoolVar(&detectProject, "project", false, "also compute the 2D projection")
	rootCmd.AddCommand(detectCmd)
}

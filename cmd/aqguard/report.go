package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	aqio "github.com/hed1ad/aqguard/pkg/io"
	"github.com/hed1ad/aqguard/pkg/pipeline"
	"github.com/hed1ad/aqguard/pkg/report"
)

var (
	reportSensor    string
	reportHighlight bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print anomaly counts by hour and month, or one sensor's series",
	RunE: func(cmd *cobra.Command, args []string) error {
		augmented, err := pipeline.LoadAugmented(cfg.Output.AugmentedPath)
		if err != nil {
			return fmt.Errorf("load augmented dataset (run detect first): %w", err)
		}
		out := cmd.OutOrStdout()

		if reportSensor != "" {
			points, err := report.Series(augmented, reportSensor, reportHighlight)
			if err != nil {
				return fmt.Errorf("%w (available: %s)", err,
					strings.Join(report.AvailableSensors(augmented), ", "))
			}
			for _, p := range points {
				flag := ""
				if p.Anomaly {
					flag = "  anomaly"
				}
				stamp := ""
				if !p.Time.IsZero() {
					stamp = p.Time.Format(aqio.TimeLayout)
				}
				fmt.Fprintf(out, "%-19s %10.3f%s\n", stamp, p.Value, flag)
			}
			return nil
		}

		byHour, err := report.CountByHour(augmented)
		if err != nil {
			return err
		}
		byMonth, err := report.CountByMonth(augmented)
		if err != nil {
			return err
		}

		fmt.Fprintln(out, "Anomalies by hour")
		for _, b := range byHour {
			fmt.Fprintf(out, "  %02d  %d\n", b.Key, b.Count)
		}
		fmt.Fprintln(out, "Anomalies by month")
		for _, b := range byMonth {
			fmt.Fprintf(out, "  %02d  %d\n", b.Key, b.Count)
		}
		return nil
	},
}

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent detection runs from the SQLite store",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if store == nil {
			return fmt.Errorf("no SQLite store configured (output.sqlite_path)")
		}
		defer store.Close()

		runs, err := store.Runs(runsLimit)
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %-30s rows=%d anomalies=%d contamination=%.3f seed=%d\n",
				r.ID, r.CreatedAt.Format(aqio.TimeLayout), r.Input, r.Rows, r.Anomalies, r.Contamination, r.Seed)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	// Skip config loading.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "aqguard", version)
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportSensor, "sensor", "s", "",
		"print the series of one sensor ("+strings.Join(report.Sensors, ", ")+")")
	reportCmd.Flags().BoolVar(&reportHighlight, "highlight", true, "mark anomalous points")
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs to list")
	rootCmd.AddCommand(reportCmd, runsCmd, versionCmd)
}

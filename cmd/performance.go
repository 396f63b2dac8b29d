package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/notearc/nbq/pkg/metrics"
)

func newPerformanceCmd(app *app) *cobra.Command {
	performanceCmd := &cobra.Command{
		Use:     "performance",
		Aliases: []string{"perf"},
		Short:   "Report query performance from the history",
	}
	performanceCmd.AddCommand(
		newPerformanceReportCmd(app),
		newPerformanceSummaryCmd(app),
	)
	return performanceCmd
}

func newPerformanceReportCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Full breakdown: rates, percentiles and error kinds",
		RunE: func(cmd *cobra.Command, args []string) error {
			recorder, err := recorderFromHistory(app)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), recorder.Report().Format())
			return nil
		},
	}
}

func newPerformanceSummaryCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "One-line performance summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			recorder, err := recorderFromHistory(app)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), recorder.Summary())
			return nil
		},
	}
}

// recorderFromHistory rebuilds a recorder from the journaled history so
// reports span every past run, not just this process.
func recorderFromHistory(app *app) (*metrics.Recorder, error) {
	records, err := app.history.All()
	if err != nil {
		return nil, err
	}

	recorder := metrics.NewRecorder()
	for _, rec := range records {
		recorder.Record(metrics.Record{
			Question:  rec.Question,
			Target:    rec.Target,
			Duration:  time.Duration(rec.DurationMs) * time.Millisecond,
			CacheHit:  rec.CacheHit,
			Pooled:    rec.Pooled,
			Success:   rec.Success,
			ErrorKind: rec.ErrorKind,
			At:        rec.Timestamp,
		})
	}
	return recorder, nil
}

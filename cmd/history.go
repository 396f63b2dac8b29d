package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/notearc/nbq/pkg/history"
	"github.com/notearc/nbq/pkg/query"
)

func newHistoryCmd(app *app) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Browse and replay past queries",
	}
	historyCmd.AddCommand(
		newHistoryListCmd(app),
		newHistorySearchCmd(app),
		newHistoryShowCmd(app),
		newHistoryReplayCmd(app),
		newHistoryExportCmd(app),
		newHistoryClearCmd(app),
	)
	return historyCmd
}

func newHistoryListCmd(app *app) *cobra.Command {
	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List past queries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := app.history.List(limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No history yet.")
				return nil
			}
			printHistory(cmd, records)
			return nil
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "l", 20, "how many records to show (0 for all)")
	return listCmd
}

func newHistorySearchCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <pattern>",
		Short: "Search past questions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := app.history.Search(args[0])
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matches.")
				return nil
			}
			printHistory(cmd, records)
			return nil
		},
	}
}

func newHistoryShowCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one record in full, ID prefixes accepted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := app.history.Find(args[0])
			if err != nil {
				return err
			}

			bold := color.New(color.Bold)
			bold.Fprintln(cmd.OutOrStdout(), rec.Question)
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %dms\n\n", rec.ID, rec.Timestamp.Format(time.DateTime), rec.DurationMs)
			if !rec.Success {
				color.New(color.FgRed).Fprintf(cmd.OutOrStdout(), "Failed: %s\n", rec.ErrorKind)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), rec.Answer)
			return nil
		},
	}
}

func newHistoryReplayCmd(app *app) *cobra.Command {
	replayCmd := &cobra.Command{
		Use:   "replay <id>",
		Short: "Re-run a past question against its notebook",
		Long:  "Re-runs the recorded question against the same notebook, bypassing the cache so the answer reflects the notebook's current sources.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := app.history.Find(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Replaying: %s\n", rec.Question)
			result, err := app.orch.Ask(cmd.Context(), rec.Question, rec.Target, query.Options{
				UseCache: false,
				UsePool:  true,
			})
			if err != nil {
				printAskFailure(cmd, err)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Answer)
			return nil
		},
	}
	return replayCmd
}

func newHistoryExportCmd(app *app) *cobra.Command {
	var format string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export the history as json, yaml or markdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := app.history.List(0)
			if err != nil {
				return err
			}

			out, err := history.Export(records, format)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	exportCmd.Flags().StringVarP(&format, "format", "f", history.FormatJSON, "json, yaml or markdown")
	return exportCmd
}

func newHistoryClearCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the whole history file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.history.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
			return nil
		},
	}
}

func printHistory(cmd *cobra.Command, records []history.Record) {
	dim := color.New(color.Faint)
	for _, rec := range records {
		status := color.GreenString("ok")
		if !rec.Success {
			status = color.RedString(rec.ErrorKind)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", shortID(rec.ID), rec.Question)
		dim.Fprintf(cmd.OutOrStdout(), "          %s  %s  %dms\n", status, rec.Timestamp.Format(time.DateTime), rec.DurationMs)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Package cmd defines the nbq command tree.
package cmd

import "github.com/spf13/cobra"

// Execute wires the application and runs the command tree, cleaning up
// browser state on any exit path.
func Execute() error {
	app, err := wireApp()
	if err != nil {
		return err
	}
	stop := app.shutdown.OnSignal(1)
	defer stop()
	defer app.shutdown.Shutdown()

	return newRootCmd(app).Execute()
}

func newRootCmd(app *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "nbq",
		Short:         "Query notebooks from the terminal with citation-grounded answers",
		Long:          "nbq drives a notebook web UI through a headless browser: ask questions against your own sources, reuse warm sessions, and cache answers locally.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newAskCmd(app),
		newAuthCmd(app),
		newNotebookCmd(app),
		newCacheCmd(app),
		newHistoryCmd(app),
		newPerformanceCmd(app),
	)
	return rootCmd
}

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/notearc/nbq/pkg/notebook"
)

func newNotebookCmd(app *app) *cobra.Command {
	notebookCmd := &cobra.Command{
		Use:     "notebook",
		Aliases: []string{"nb"},
		Short:   "Manage the notebook library",
	}
	notebookCmd.AddCommand(
		newNotebookAddCmd(app),
		newNotebookListCmd(app),
		newNotebookSearchCmd(app),
		newNotebookUseCmd(app),
		newNotebookRemoveCmd(app),
		newNotebookStatsCmd(app),
	)
	return notebookCmd
}

func newNotebookAddCmd(app *app) *cobra.Command {
	var (
		description string
		tags        []string
	)
	addCmd := &cobra.Command{
		Use:   "add <name> <url>",
		Short: "Register a notebook under a memorable name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			nb, err := app.library.Add(args[0], args[1], description, tags)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", nb.Name, nb.ID)
			return nil
		},
	}
	addCmd.Flags().StringVarP(&description, "description", "d", "", "what this notebook covers")
	addCmd.Flags().StringSliceVar(&tags, "tags", nil, "comma-separated tags")
	return addCmd
}

func newNotebookListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered notebooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			notebooks := app.library.List()
			if len(notebooks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No notebooks registered. Add one with 'nbq notebook add'.")
				return nil
			}

			active, _ := app.library.Active()
			printNotebooks(cmd, notebooks, active)
			return nil
		},
	}
}

func newNotebookSearchCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <pattern>",
		Short: "Search notebooks by name, description or tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			matched, err := app.library.Search(args[0])
			if err != nil {
				return err
			}
			if len(matched) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No notebooks match.")
				return nil
			}

			active, _ := app.library.Active()
			printNotebooks(cmd, matched, active)
			return nil
		},
	}
}

func newNotebookUseCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "use <name-or-id>",
		Short: "Make a notebook the default target for ask",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nb, err := app.library.Activate(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Active notebook: %s\n", nb.Name)
			return nil
		},
	}
}

func newNotebookRemoveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name-or-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a notebook from the library",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.library.Remove(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Removed.")
			return nil
		},
	}
}

func newNotebookStatsCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show library-wide usage numbers",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats := app.library.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "Notebooks:     %d\n", stats.Total)
			fmt.Fprintf(cmd.OutOrStdout(), "Total queries: %d\n", stats.TotalQueries)
			if stats.MostQueried != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Most queried:  %s\n", stats.MostQueried)
			}
			return nil
		},
	}
}

func printNotebooks(cmd *cobra.Command, notebooks []notebook.Notebook, active *notebook.Notebook) {
	bold := color.New(color.Bold)
	dim := color.New(color.Faint)

	for _, nb := range notebooks {
		marker := "  "
		if active != nil && nb.ID == active.ID {
			marker = color.GreenString("* ")
		}
		bold.Fprintf(cmd.OutOrStdout(), "%s%s", marker, nb.Name)
		dim.Fprintf(cmd.OutOrStdout(), " (%s)\n", nb.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", nb.URL)
		if nb.Description != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", nb.Description)
		}
		if len(nb.Tags) > 0 {
			dim.Fprintf(cmd.OutOrStdout(), "    tags: %s\n", strings.Join(nb.Tags, ", "))
		}
		if nb.QueryCount > 0 {
			dim.Fprintf(cmd.OutOrStdout(), "    %d queries, last %s\n", nb.QueryCount, nb.LastUsed.Format(time.DateTime))
		}
	}
}

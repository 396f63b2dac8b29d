package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/notearc/nbq/pkg/browser"
	"github.com/notearc/nbq/pkg/detector"
	"github.com/notearc/nbq/pkg/notebook"
	"github.com/notearc/nbq/pkg/query"
)

// durations shown to users are rounded to this grain.
const displayGrain = 10 * time.Millisecond

func newAskCmd(app *app) *cobra.Command {
	var (
		notebookRef string
		targetURL   string
		noCache     bool
		direct      bool
	)

	askCmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question against a notebook",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")

			target, err := resolveTarget(app, notebookRef, targetURL)
			if err != nil {
				return err
			}

			// Opportunistic sweep; there is no background timer.
			app.pool.CleanupExpired()

			result, err := app.orch.Ask(cmd.Context(), question, target, query.Options{
				UseCache: !noCache,
				UsePool:  !direct,
			})
			if err != nil {
				printAskFailure(cmd, err)
				return err
			}

			deliverAnswer(cmd, app, target, result)
			return nil
		},
	}

	askCmd.Flags().StringVarP(&notebookRef, "notebook", "n", "", "notebook name or ID from the library")
	askCmd.Flags().StringVarP(&targetURL, "target", "t", "", "notebook URL, bypassing the library")
	askCmd.Flags().BoolVar(&noCache, "no-cache", false, "skip the response cache for this question")
	askCmd.Flags().BoolVar(&direct, "direct", false, "use a throwaway session instead of the pool")
	return askCmd
}

// deliverAnswer prints the answer, then updates notebook usage counters.
// The answer is already paid for, so a bookkeeping failure only warns.
func deliverAnswer(cmd *cobra.Command, app *app, target string, result *query.Result) {
	fmt.Fprintln(cmd.OutOrStdout(), result.Answer)

	if err := app.library.RecordQuery(target); err != nil {
		color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(), "could not update notebook stats: %v\n", err)
	}

	dim := color.New(color.Faint)
	switch {
	case result.CacheHit:
		dim.Fprintln(cmd.ErrOrStderr(), "(cached)")
	case result.Pooled:
		dim.Fprintf(cmd.ErrOrStderr(), "(pooled session, %s)\n", result.Duration.Round(displayGrain))
	default:
		dim.Fprintf(cmd.ErrOrStderr(), "(direct session, %s)\n", result.Duration.Round(displayGrain))
	}
}

// resolveTarget picks the notebook URL: explicit URL, then library lookup,
// then the active notebook.
func resolveTarget(app *app, notebookRef, targetURL string) (string, error) {
	if targetURL != "" {
		return targetURL, nil
	}
	if notebookRef != "" {
		nb, err := app.library.Get(notebookRef)
		if err != nil {
			return "", err
		}
		return nb.URL, nil
	}

	nb, err := app.library.Active()
	if err != nil {
		if errors.Is(err, notebook.ErrNoActive) {
			return "", errors.New("no notebook selected: pass --notebook or --target, or activate one with 'nbq notebook use'")
		}
		return "", err
	}
	return nb.URL, nil
}

// printAskFailure adds a remedial hint for the failure classes a user can
// actually act on.
func printAskFailure(cmd *cobra.Command, err error) {
	warn := color.New(color.FgYellow)

	var tErr *detector.TimeoutError
	switch {
	case errors.Is(err, browser.ErrAuthExpired):
		warn.Fprintln(cmd.ErrOrStderr(), "Credentials no longer work. Run 'nbq auth setup' to sign in again.")
	case errors.As(err, &tErr):
		warn.Fprintln(cmd.ErrOrStderr(), "No answer appeared in time. The notebook may be processing a large source set; try again or raise NBQ_DETECT_TIMEOUT.")
	case errors.Is(err, browser.ErrCrashed):
		warn.Fprintln(cmd.ErrOrStderr(), "The browser session crashed and the direct retry failed too. Re-run the question; if it persists, run 'nbq auth validate'.")
	}
}

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var errCacheDisabled = errors.New("the response cache is disabled (NBQ_CACHE_ENABLED=false)")

func newCacheCmd(app *app) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the response cache",
	}
	cacheCmd.AddCommand(
		newCacheStatsCmd(app),
		newCacheListCmd(app),
		newCacheClearCmd(app),
		newCacheCleanupCmd(app),
	)
	return cacheCmd
}

func newCacheStatsCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache hit and eviction counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.cache == nil {
				return errCacheDisabled
			}

			stats := app.cache.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "Entries:   %d / %d\n", app.cache.Len(), app.cfg.CacheSize)
			fmt.Fprintf(cmd.OutOrStdout(), "Hits:      %d\n", stats.Hits)
			fmt.Fprintf(cmd.OutOrStdout(), "Misses:    %d\n", stats.Misses)
			fmt.Fprintf(cmd.OutOrStdout(), "Evictions: %d\n", stats.Evictions)
			if total := stats.Hits + stats.Misses; total > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Hit rate:  %.0f%%\n", float64(stats.Hits)/float64(total)*100)
			}
			return nil
		},
	}
}

func newCacheListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached answers, most recently used first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.cache == nil {
				return errCacheDisabled
			}

			entries := app.cache.Entries()
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Cache is empty.")
				return nil
			}
			for _, entry := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  (%d hits, cached %s)\n",
					entry.Question, entry.HitCount, entry.CreatedAt.Format(time.DateTime))
			}
			return nil
		},
	}
}

func newCacheClearCmd(app *app) *cobra.Command {
	var (
		question string
		target   string
	)
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cached answers",
		Long:  "Without flags the whole cache is cleared. With --question or --target only matching entries go; with both, entries matching either one.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.cache == nil {
				return errCacheDisabled
			}

			removed, err := app.cache.Invalidate(question, target)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries.\n", removed)
			return nil
		},
	}
	clearCmd.Flags().StringVar(&question, "question", "", "remove entries for this exact question")
	clearCmd.Flags().StringVar(&target, "target", "", "remove entries for this notebook URL")
	return clearCmd
}

func newCacheCleanupCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Drop entries past their TTL",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.cache == nil {
				return errCacheDisabled
			}

			removed, err := app.cache.CleanupExpired()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired entries.\n", removed)
			return nil
		},
	}
}

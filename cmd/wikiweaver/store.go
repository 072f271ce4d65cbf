package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewSearchCmd creates the search command
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search crawled articles by title or summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cmd, false)
			if err != nil {
				return err
			}
			defer e.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			found, err := e.Search(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, a := range found {
				fmt.Fprintf(out, "%s\n  %s\n", a.Title, a.URL)
			}
			if len(found) == 0 {
				fmt.Fprintf(out, "no articles match %q\n", args[0])
			}
			return nil
		},
	}
	cmd.Flags().IntP("limit", "l", 20, "Maximum number of results")
	return cmd
}

// NewStatsCmd creates the stats command
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print store-wide counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEngine(cmd, false)
			if err != nil {
				return err
			}
			defer e.Close()

			stats, err := e.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "articles:          %d (%d pending)\n", stats.TotalArticles, stats.PendingArticles)
			fmt.Fprintf(out, "links:             %d\n", stats.TotalLinks)
			fmt.Fprintf(out, "sessions:          %d\n", stats.TotalSessions)
			fmt.Fprintf(out, "links per article: %.2f\n", stats.AvgLinksPerArticle)
			fmt.Fprintf(out, "avg relevance:     %.3f\n", stats.AvgRelevance)
			if !stats.LastParsedAt.IsZero() {
				fmt.Fprintf(out, "last crawl:        %s\n", stats.LastParsedAt.Local().Format("2006-01-02 15:04:05"))
			}

			last, err := e.LastRun()
			if err != nil {
				return err
			}
			if last != nil {
				fmt.Fprintf(out, "last run:          %s %s: %d fetched, %d failed, %d retries, %dms avg fetch\n",
					last.RunID, last.TerminationReason, last.PagesFetched, last.PagesFailed, last.Retries, last.AvgFetchTimeMs)
			}
			return nil
		},
	}
}

// NewSessionsCmd creates the sessions command
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recent crawl sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEngine(cmd, false)
			if err != nil {
				return err
			}
			defer e.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			sessions, err := e.Sessions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range sessions {
				fmt.Fprintf(out, "#%d %s %-9s %s  crawled=%d failed=%d\n",
					s.ID, s.StartTime.Local().Format("2006-01-02 15:04"), s.Status, s.StartURL, s.ArticlesCrawled, s.PagesFailed)
			}
			return nil
		},
	}
	cmd.Flags().IntP("limit", "l", 10, "Number of sessions to list")
	return cmd
}

// NewCleanupCmd creates the cleanup command
func NewCleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete articles parsed more than --keep-days ago",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEngine(cmd, false)
			if err != nil {
				return err
			}
			defer e.Close()

			keepDays, _ := cmd.Flags().GetInt("keep-days")
			if !cmd.Flags().Changed("keep-days") {
				keepDays = e.Config().KeepDays
			}
			if keepDays < 1 {
				return fmt.Errorf("--keep-days must be >= 1 (or set keep_days in the config)")
			}

			n, err := e.Cleanup(cmd.Context(), keepDays)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d articles\n", n)
			return nil
		},
	}
	cmd.Flags().Int("keep-days", 0, "Retention window in days (overrides keep_days)")
	return cmd
}

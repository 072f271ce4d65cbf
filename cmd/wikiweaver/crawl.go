package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/alvmarrod/wiki-weaver/internal/engine"
	"github.com/alvmarrod/wiki-weaver/internal/version"
)

const progressInterval = 10 * time.Second

// NewCrawlCmd creates the crawl command
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [article-url...]",
		Short: "Crawl Wikipedia from seed articles",
		Long: `Crawl walks Wikipedia breadth-first from each seed article, following the
links that match the interest profile until the depth or article budget is spent.

Seeds given as arguments replace seed_urls from the configuration file.

Examples:
  wikiweaver crawl
  wikiweaver crawl https://en.wikipedia.org/wiki/Graph_theory --depth 1 --max-articles 20`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	cmd.Flags().IntP("depth", "d", 0, "Maximum link depth from the seed (overrides max_depth)")
	cmd.Flags().IntP("max-articles", "n", 0, "Maximum articles crawled per seed (overrides max_articles)")
	cmd.Flags().IntP("workers", "w", 0, "Concurrent fetch workers (overrides concurrent_workers)")
	cmd.Flags().StringSlice("interest", nil, "Interest keyword, repeatable (overrides interests)")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, len(args) == 0)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.SeedURLs = args
	}
	if cmd.Flags().Changed("depth") {
		depth, _ := cmd.Flags().GetInt("depth")
		cfg.MaxDepth = &depth
	}
	if cmd.Flags().Changed("max-articles") {
		cfg.MaxArticles, _ = cmd.Flags().GetInt("max-articles")
	}
	if cmd.Flags().Changed("workers") {
		cfg.ConcurrentWorkers, _ = cmd.Flags().GetInt("workers")
		if cfg.ConcurrentWorkers < 1 || cfg.ConcurrentWorkers > 8 {
			return fmt.Errorf("--workers must be between 1 and 8, got %d", cfg.ConcurrentWorkers)
		}
	}
	if cmd.Flags().Changed("interest") {
		cfg.Interests, _ = cmd.Flags().GetStringSlice("interest")
	}

	logrus.Infof("Wiki Weaver v%s starting...", version.Version)
	logrus.Infof("Configuration loaded: seeds=%d, depth=%d, articles=%d, workers=%d",
		len(cfg.SeedURLs), cfg.Depth(), cfg.MaxArticles, cfg.ConcurrentWorkers)

	e, err := engine.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer e.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	stopSignals := handleSignals(func() {
		e.Cancel()
		cancel()
	})
	defer stopSignals()

	stopProgress := logProgress(e)
	defer stopProgress()

	sessions, crawlErr := e.CrawlAll(ctx)

	out := cmd.OutOrStdout()
	for _, s := range sessions {
		fmt.Fprintf(out, "session %d (%s) %s: %d crawled, %d processed, %d links analyzed, %d failed\n",
			s.ID, s.StartURL, s.Status, s.ArticlesCrawled, s.ArticlesProcessed, s.LinksAnalyzed, s.PagesFailed)
	}
	return crawlErr
}

// handleSignals calls shutdown on the first SIGINT/SIGTERM and exits the
// process on the second
func handleSignals(shutdown func()) (stop func()) {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigChan:
			logrus.Infof("Received signal: %v", sig)
			logrus.Info("Initiating graceful shutdown, finishing current pages...")
			shutdown()
		case <-done:
			return
		}

		select {
		case sig := <-sigChan:
			logrus.Warnf("Received second signal (%v) - forcing immediate exit!", sig)
			os.Exit(1)
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigChan)
		close(done)
	}
}

// logProgress periodically logs the counters of the crawl in progress
func logProgress(e *engine.Engine) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if snap, ok := e.Progress(); ok {
					logrus.Infof("Progress: crawled=%d processed=%d links=%d fetched=%d failed=%d",
						snap.ArticlesCrawled, snap.ArticlesProcessed, snap.LinksAnalyzed, snap.PagesFetched, snap.PagesFailed)
				}
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

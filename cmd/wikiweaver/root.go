package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/alvmarrod/wiki-weaver/internal/config"
	"github.com/alvmarrod/wiki-weaver/internal/engine"
	"github.com/alvmarrod/wiki-weaver/internal/version"
)

// NewRootCmd creates the wikiweaver command tree
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wikiweaver",
		Short: "Interest-driven Wikipedia crawler and knowledge graph",
		Long: `Wiki Weaver crawls Wikipedia from seed articles, following only the links
that match your interest profile, and stores what it finds as a knowledge graph
you can query for hubs, paths, discoveries and growth over time.`,
		Version:           version.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupLogging,
	}

	cmd.PersistentFlags().StringP("config", "c", "config.json", "Path to the JSON or YAML configuration file")
	cmd.PersistentFlags().String("db", "", "SQLite database path (overrides db_path)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewGraphCmd())
	cmd.AddCommand(NewMetricsCmd())
	cmd.AddCommand(NewPathCmd())
	cmd.AddCommand(NewHubsCmd())
	cmd.AddCommand(NewDiscoveriesCmd())
	cmd.AddCommand(NewGrowthCmd())
	cmd.AddCommand(NewSearchCmd())
	cmd.AddCommand(NewStatsCmd())
	cmd.AddCommand(NewSessionsCmd())
	cmd.AddCommand(NewCleanupCmd())
	cmd.AddCommand(NewScheduleCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

func setupLogging(cmd *cobra.Command, _ []string) error {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logrus.SetOutput(cmd.ErrOrStderr())

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
	return nil
}

// loadConfig reads the configuration named by --config. Commands that only
// query the store fall back to defaults when the file is absent.
func loadConfig(cmd *cobra.Command, needSeeds bool) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if needSeeds {
		cfg, err = config.LoadConfig(path)
	} else {
		cfg, err = config.Load(path)
		if errors.Is(err, os.ErrNotExist) {
			logrus.Debugf("No config file at %s, using defaults", path)
			cfg, err = config.Default(), nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.DBPath = db
	}

	// --verbose wins over the configured level
	if verbose, _ := cmd.Flags().GetBool("verbose"); !verbose {
		level, _ := logrus.ParseLevel(cfg.LogLevel)
		logrus.SetLevel(level)
	}
	return cfg, nil
}

// openEngine loads the configuration and opens the SQLite-backed engine
func openEngine(cmd *cobra.Command, needSeeds bool) (*engine.Engine, error) {
	cfg, err := loadConfig(cmd, needSeeds)
	if err != nil {
		return nil, err
	}
	return engine.Open(cfg)
}

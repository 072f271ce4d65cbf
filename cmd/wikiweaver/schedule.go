package main

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/alvmarrod/wiki-weaver/internal/engine"
	"github.com/alvmarrod/wiki-weaver/internal/scheduler"
)

// NewScheduleCmd creates the schedule command
func NewScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Re-crawl every seed on a cron schedule",
		Long: `Schedule keeps running and re-crawls every configured seed on the cron spec
from the schedule setting (or --cron). When keep_days is set, articles older
than the retention window are removed after each run.

Examples:
  wikiweaver schedule --cron "@daily"
  wikiweaver schedule --cron "0 3 * * 1" --now`,
		Args: cobra.NoArgs,
		RunE: runScheduleCmd,
	}

	cmd.Flags().String("cron", "", "Cron spec or descriptor (overrides schedule)")
	cmd.Flags().Bool("now", false, "Run once immediately before waiting for the first tick")

	return cmd
}

func runScheduleCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	if spec, _ := cmd.Flags().GetString("cron"); spec != "" {
		cfg.Schedule = spec
	}
	if cfg.Schedule == "" {
		return errors.New("no schedule: set schedule in the config or pass --cron")
	}

	e, err := engine.Open(cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	s, err := scheduler.New(cfg.Schedule, time.Local, e.ScheduledRun)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	stopSignals := handleSignals(func() {
		e.Cancel()
		cancel()
	})
	defer stopSignals()

	if now, _ := cmd.Flags().GetBool("now"); now {
		if err := e.ScheduledRun(ctx); err != nil {
			logrus.Errorf("Initial run failed: %v", err)
		}
	}

	s.Start()
	<-ctx.Done()
	s.Stop()
	return nil
}

// Package scheduler runs recurring crawl and cleanup jobs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is one scheduled run. It receives a context cancelled by Stop.
type Job func(ctx context.Context) error

// Scheduler triggers a job on a cron spec. A run that is still in progress
// when the next tick fires causes that tick to be skipped.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
	job     Job
	ctx     context.Context
	cancel  context.CancelFunc
	runs    int
}

// New creates a scheduler for spec, a standard five-field cron expression or
// a descriptor such as "@daily" or "@every 6h"
func New(spec string, loc *time.Location, job Job) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("job must not be nil")
	}
	if loc == nil {
		loc = time.Local
	}

	logger := cron.PrintfLogger(logrus.StandardLogger())
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{cron: c, job: job, ctx: ctx, cancel: cancel}

	id, err := c.AddFunc(spec, s.run)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	s.entryID = id
	return s, nil
}

// Start begins cron execution
func (s *Scheduler) Start() {
	logrus.Infof("Scheduler started, next run at %s", s.Next().Format(time.RFC3339))
	s.cron.Start()
}

// Stop cancels a running job and waits for it to return
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	logrus.Info("Scheduler stopped")
}

// Next returns the time of the next scheduled run
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Schedule.Next(time.Now())
}

// Runs returns how many runs have completed
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

func (s *Scheduler) run() {
	start := time.Now()
	logrus.Info("Scheduled run starting")

	if err := s.job(s.ctx); err != nil {
		logrus.Errorf("Scheduled run failed after %s: %v", time.Since(start).Round(time.Millisecond), err)
	} else {
		logrus.Infof("Scheduled run finished in %s", time.Since(start).Round(time.Millisecond))
	}

	s.mu.Lock()
	s.runs++
	s.mu.Unlock()
}

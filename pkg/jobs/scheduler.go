package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is one run of a scheduled task
type Job func(ctx context.Context) error

// Scheduler runs named jobs on cron schedules
type Scheduler struct {
	cron    *cron.Cron
	logger  *logrus.Logger
	runs    *prometheus.CounterVec
	timeout time.Duration
}

// NewScheduler creates a scheduler. runs counts job outcomes by "job" and
// "status" labels and may be nil.
func NewScheduler(logger *logrus.Logger, runs *prometheus.CounterVec) *Scheduler {
	if logger == nil {
		logger = logrus.New()
	}
	cronLogger := cron.PrintfLogger(logger)
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
		logger:  logger,
		runs:    runs,
		timeout: 5 * time.Minute,
	}
}

// Add schedules job under spec, which accepts standard five-field cron
// expressions and descriptors such as "@every 1h"
func (s *Scheduler) Add(name, spec string, job Job) error {
	if _, err := s.cron.AddFunc(spec, s.wrap(name, job)); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	s.logger.Infof("Scheduled job %s: %s", name, spec)
	return nil
}

func (s *Scheduler) wrap(name string, job Job) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		start := time.Now()
		err := job(ctx)
		entry := s.logger.WithFields(logrus.Fields{
			"job":      name,
			"duration": time.Since(start).String(),
		})
		if err != nil {
			entry.WithError(err).Error("Job failed")
			s.count(name, "failure")
			return
		}
		entry.Debug("Job completed")
		s.count(name, "success")
	}
}

func (s *Scheduler) count(name, status string) {
	if s.runs != nil {
		s.runs.WithLabelValues(name, status).Inc()
	}
}

// Start begins running jobs in the background
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs or ctx, whichever comes first
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

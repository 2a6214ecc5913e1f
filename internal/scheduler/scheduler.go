// Package scheduler runs the periodic lockdown lifecycle sweep
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper applies due lockdown transitions
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Scheduler wraps a cron runner with the sweep job
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	lastRun  time.Time
	runCount int64
	errCount int64
}

// New creates a scheduler that sweeps on spec, a cron expression with
// seconds (e.g. "*/30 * * * * *")
func New(spec string, sweeper Sweeper, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		sweeper: sweeper,
		logger:  logger,
		now:     time.Now,
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("failed to schedule lockdown sweep %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the cron loop in the background
func (s *Scheduler) Start() {
	s.logger.Info("Starting lockdown scheduler")
	s.cron.Start()
}

// Stop waits for a running sweep to finish
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping lockdown scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.RunOnce(ctx)
}

// RunOnce performs a single sweep and returns the number of transitions
func (s *Scheduler) RunOnce(ctx context.Context) int {
	now := s.now()
	n, err := s.sweeper.Sweep(ctx, now)

	s.mu.Lock()
	s.lastRun = now
	s.runCount++
	if err != nil {
		s.errCount++
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Lockdown sweep failed", zap.Int("applied", n), zap.Error(err))
		return n
	}
	if n > 0 {
		s.logger.Info("Lockdown sweep applied transitions", zap.Int("applied", n))
	}
	return n
}

// Stats reports the last run time and counters
func (s *Scheduler) Stats() (lastRun time.Time, runs, failures int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.runCount, s.errCount
}

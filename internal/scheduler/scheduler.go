// Package scheduler runs periodic maintenance jobs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron"

	"waste-tracking-api-server/internal/logger"
)

// Sweeper resolves shipments whose approval deadline has passed.
type Sweeper interface {
	SweepAutoApprovals(ctx context.Context) (int, error)
}

type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	timeout time.Duration

	// running guards against overlapping sweeps when one runs long.
	mu      sync.Mutex
	running bool
}

// New registers the auto-approval sweep under schedule, e.g. "@every 1m".
func New(schedule string, sweeper Sweeper) (*Scheduler, error) {
	s := &Scheduler{cron: cron.New(), sweeper: sweeper, timeout: 30 * time.Second}
	if err := s.cron.AddFunc(schedule, s.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info("auto-approval sweep scheduled")
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// RunOnce performs a single sweep unless one is already in progress.
func (s *Scheduler) RunOnce() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	n, err := s.sweeper.SweepAutoApprovals(ctx)
	if err != nil {
		logger.Error("auto-approval sweep failed", "err", err)
		return
	}
	if n > 0 {
		logger.Info("auto-approval sweep", "resolved", n)
	}
}

// Package scheduler triggers collection runs at a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-news-collector/internal/collector"
)

// Runner is the part of the collector the scheduler drives.
type Runner interface {
	CollectBatch(ctx context.Context, req collector.BatchRequest) (collector.BatchResult, error)
}

// Config controls the schedule.
type Config struct {
	Interval      time.Duration
	Queries       []string
	PageSize      int
	IncludeImages bool
	RunOnStart    bool
}

// Scheduler runs every configured query once per tick.
type Scheduler struct {
	cfg    Config
	runner Runner
	logger *zap.Logger

	ticks   atomic.Int64
	skipped atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Scheduler.
func New(cfg Config, runner Runner, logger *zap.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("scheduler runner is required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("scheduler interval must be positive")
	}
	if len(cfg.Queries) == 0 {
		return nil, errors.New("scheduler needs at least one query")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{cfg: cfg, runner: runner, logger: logger}, nil
}

// Start launches the ticker loop. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

// Stop halts the loop and waits for an in-progress tick to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Ticks reports how many ticks ran a batch.
func (s *Scheduler) Ticks() int64 { return s.ticks.Load() }

// Skipped reports how many ticks found a run already active.
func (s *Scheduler) Skipped() int64 { return s.skipped.Load() }

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Strings("queries", s.cfg.Queries),
	)
	if s.cfg.RunOnStart {
		s.tick(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	res, err := s.runner.CollectBatch(ctx, collector.BatchRequest{
		Queries:       s.cfg.Queries,
		PageSize:      s.cfg.PageSize,
		IncludeImages: s.cfg.IncludeImages,
	})
	switch {
	case errors.Is(err, collector.ErrAlreadyRunning):
		s.skipped.Add(1)
		s.logger.Info("scheduled collection skipped; a run is active")
		return
	case err != nil && ctx.Err() != nil:
		return
	case err != nil:
		s.logger.Error("scheduled collection failed", zap.Error(err))
	}
	s.ticks.Add(1)
	s.logger.Info("scheduled collection complete",
		zap.Int("saved", res.TotalSaved),
		zap.Int("failed_queries", res.Failed),
	)
}

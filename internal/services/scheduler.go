package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

// Scheduler invokes the batch review on a fixed cadence. Each tick is fully
// bounded: it drains the current backlog and returns. A panic in one tick is
// caught and logged; the loop continues after the same delay.
type Scheduler struct {
	service    *ReviewService
	interval   time.Duration
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
	lastRun    time.Time
	lastResult *BatchResult
}

func NewScheduler(service *ReviewService, interval time.Duration) *Scheduler {
	return &Scheduler{
		service:  service,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the polling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("review scheduler already running")
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx)

	slog.Info("review scheduler started", "interval", s.interval)
	return nil
}

// Stop stops the polling loop and waits for the current tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	slog.Info("review scheduler stopped")
}

// LastResult returns the outcome of the most recent tick.
func (s *Scheduler) LastResult() (time.Time, *BatchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastResult
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("review batch panicked", "panic", r)
			sentry.CurrentHub().Recover(r)
		}
	}()

	result := s.service.ProcessBatch(ctx)

	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastResult = result
	s.mu.Unlock()

	if result.Processed > 0 || result.Failed > 0 || result.Skipped > 0 {
		slog.Info("review batch completed",
			"processed", result.Processed,
			"failed", result.Failed,
			"skipped", result.Skipped,
			"suspended", result.Suspended,
			"flagged", result.Flagged)
	}
}

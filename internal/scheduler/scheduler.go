// Package scheduler runs independent periodic tasks.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/psiobot/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// Task is a named job run every Interval. The wait starts after a run
// finishes, so runs of one task never overlap.
type Task struct {
	Name     string
	Interval time.Duration
	// Delay postpones the first run. Zero runs the task as soon as it starts.
	Delay time.Duration
	Run   func(ctx context.Context) error
}

// Scheduler owns a set of task loops. Each loop has its own cancellation so
// one task can be stopped without touching the others.
type Scheduler struct {
	ctx    context.Context
	group  errgroup.Group
	logger *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New creates a scheduler whose loops all stop when ctx is done.
func New(ctx context.Context, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		ctx:     ctx,
		logger:  logger,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Start launches t in its own goroutine.
func (s *Scheduler) Start(t Task) error {
	if t.Name == "" || t.Run == nil {
		return errors.New("scheduler: task needs a name and a run function")
	}
	if t.Interval <= 0 {
		return fmt.Errorf("scheduler: task %s: interval must be positive", t.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cancels[t.Name]; ok {
		return fmt.Errorf("scheduler: task %s already started", t.Name)
	}

	ctx, cancel := context.WithCancel(s.ctx)
	s.cancels[t.Name] = cancel
	s.group.Go(func() error {
		defer cancel()
		s.loop(ctx, t)
		return nil
	})
	return nil
}

// Stop cancels one task. A run in progress completes; no further run starts.
// It reports whether the task was known.
func (s *Scheduler) Stop(name string) bool {
	s.mu.Lock()
	cancel, ok := s.cancels[name]
	delete(s.cancels, name)
	s.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// StopAll cancels every task.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	cancels := s.cancels
	s.cancels = make(map[string]context.CancelFunc)
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Wait blocks until every loop has exited.
func (s *Scheduler) Wait() error {
	return s.group.Wait()
}

func (s *Scheduler) loop(ctx context.Context, t Task) {
	s.logger.Info("Task started", "task", t.Name, "interval", t.Interval)

	timer := time.NewTimer(t.Delay)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			s.runOnce(ctx, t)
			timer.Reset(t.Interval)
		case <-ctx.Done():
			s.logger.Info("Task shutting down", "task", t.Name, "reason", ctx.Err())
			return
		}
	}
}

// runOnce executes one run. The run gets a context that is not cancelled by
// shutdown, so external calls already in flight are allowed to finish.
func (s *Scheduler) runOnce(ctx context.Context, t Task) {
	if ctx.Err() != nil {
		return
	}
	metrics.TrackTicks.WithLabelValues(t.Name).Inc()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Task panicked", "task", t.Name, "panic", r)
		}
	}()

	start := time.Now()
	if err := t.Run(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("Task run failed", "task", t.Name, "duration", time.Since(start), "error", err)
		return
	}
	s.logger.Debug("Task run completed", "task", t.Name, "duration", time.Since(start))
}

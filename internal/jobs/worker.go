// Package jobs runs periodic maintenance next to the chat server.
package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one unit of periodic work.
type Task interface {
	Run(ctx context.Context) error
}

// Worker runs a Task once on start and then every interval until stopped.
// A failed run is logged and the next tick runs again.
type Worker struct {
	task     Task
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
	done    chan struct{}
}

func NewWorker(name string, task Task, interval time.Duration, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		task:     task,
		interval: interval,
		logger:   logger.With(zap.String("worker", name)),
		done:     make(chan struct{}),
	}
}

// Start blocks until ctx is cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	if w.stopped {
		cancel()
	}
	w.mu.Unlock()
	defer close(w.done)
	defer cancel()

	w.logger.Info("worker started", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.runOnce(ctx)
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := w.task.Run(ctx); err != nil && ctx.Err() == nil {
		w.logger.Warn("run failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
	}
}

// Stop cancels the worker and waits for Start to return. It is safe to call
// more than once; Start must have been called.
func (w *Worker) Stop() {
	w.mu.Lock()
	w.stopped = true
	cancel := w.cancel
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	<-w.done
}

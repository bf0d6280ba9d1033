package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"govreport/internal/metrics"
)

// Handler processes one task. Returning an error schedules a retry.
type Handler func(ctx context.Context, t *Task) error

// WorkerConfig tunes polling.
type WorkerConfig struct {
	PollInterval    time.Duration
	BatchSize       int
	Concurrency     int
	RecoverInterval time.Duration
}

// Worker polls the queue and dispatches tasks to registered handlers.
type Worker struct {
	queue    *Queue
	cfg      WorkerConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics
	handlers map[string]Handler

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// NewWorker creates a Worker. Zero config values fall back to defaults.
func NewWorker(q *Queue, cfg WorkerConfig, m *metrics.Metrics, logger *slog.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = cfg.Concurrency
	}
	if cfg.RecoverInterval <= 0 {
		cfg.RecoverInterval = 5 * time.Minute
	}
	return &Worker{
		queue:    q,
		cfg:      cfg,
		logger:   logger.With("component", "queue-worker"),
		metrics:  m,
		handlers: make(map[string]Handler),
	}
}

// Register binds a handler to a task name. It must be called before Start.
func (w *Worker) Register(name string, h Handler) {
	w.handlers[name] = h
}

// Start launches the polling loop. Stale tasks are recovered first.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.stoppedCh = make(chan struct{})

	w.recover(ctx)
	w.logger.Info("worker starting",
		"poll_interval", w.cfg.PollInterval,
		"concurrency", w.cfg.Concurrency)
	go w.run(ctx)
}

// Stop signals the loop to exit and waits for in-flight tasks or ctx expiry.
func (w *Worker) Stop(ctx context.Context) {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	select {
	case <-w.stoppedCh:
		w.logger.Info("worker stopped")
	case <-ctx.Done():
		w.logger.Warn("worker stop timed out")
	}
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.stoppedCh)

	poll := time.NewTicker(w.cfg.PollInterval)
	defer poll.Stop()
	recoverTick := time.NewTicker(w.cfg.RecoverInterval)
	defer recoverTick.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-recoverTick.C:
			w.recover(ctx)
		case <-poll.C:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Warn("poll failed", "error", err)
			}
		}
	}
}

func (w *Worker) recover(ctx context.Context) {
	if _, err := w.queue.RecoverStale(ctx); err != nil {
		w.logger.Warn("recover stale tasks failed", "error", err)
	}
}

// RunOnce claims one batch and processes it to completion.
func (w *Worker) RunOnce(ctx context.Context) error {
	tasks, err := w.queue.Claim(ctx, w.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return nil
	}

	sem := make(chan struct{}, w.cfg.Concurrency)
	var wg sync.WaitGroup
	for _, t := range tasks {
		sem <- struct{}{}
		wg.Add(1)
		go func(t *Task) {
			defer wg.Done()
			defer func() { <-sem }()
			w.process(ctx, t)
		}(t)
	}
	wg.Wait()
	return nil
}

func (w *Worker) process(ctx context.Context, t *Task) {
	logger := w.logger.With("task_id", t.ID, "task", t.Name, "attempt", t.AttemptCount)

	err := w.dispatch(ctx, t)
	w.metrics.Task(t.Name, err)
	if err != nil {
		logger.Warn("task failed", "error", err)
		if ferr := w.queue.Fail(ctx, t.ID, err); ferr != nil {
			logger.Error("record task failure", "error", ferr)
		}
		return
	}
	if cerr := w.queue.Complete(ctx, t.ID); cerr != nil {
		logger.Error("complete task", "error", cerr)
	}
}

func (w *Worker) dispatch(ctx context.Context, t *Task) (err error) {
	h, ok := w.handlers[t.Name]
	if !ok {
		return fmt.Errorf("no handler registered for task %q", t.Name)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", t.Name, r)
		}
	}()
	return h(ctx, t)
}

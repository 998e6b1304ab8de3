package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// JobProcessor defines the interface for processing jobs
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker runs a JobProcessor on a fixed interval.
type Worker struct {
	processor JobProcessor
	interval  time.Duration
	immediate bool
	logger    *zap.Logger
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithImmediateRun processes once at start instead of waiting a full interval.
func WithImmediateRun() WorkerOption {
	return func(w *Worker) { w.immediate = true }
}

// WithLogger sets the worker logger.
func WithLogger(logger *zap.Logger) WorkerOption {
	return func(w *Worker) { w.logger = logger }
}

// NewWorker creates a new Worker instance
func NewWorker(processor JobProcessor, interval time.Duration, opts ...WorkerOption) *Worker {
	w := &Worker{
		processor: processor,
		interval:  interval,
		logger:    zap.NewNop(),
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs the processing loop until ctx is done or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.doneChan)

	w.logger.Info("worker started", zap.Duration("interval", w.interval))

	if w.immediate {
		w.process(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped: context cancelled")
			return
		case <-w.stopChan:
			w.logger.Info("worker stopped: stop signal received")
			return
		case <-ticker.C:
			w.process(ctx)
		}
	}
}

func (w *Worker) process(ctx context.Context) {
	if err := w.processor.ProcessJobs(ctx); err != nil {
		w.logger.Error("job run failed", zap.Error(err))
	}
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	w.logger.Info("worker shutdown complete")
}

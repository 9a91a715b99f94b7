// Package worker defines worker contracts for asynchronously persisting
// guess events.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/eraguess/eraguess/internal/domain/model"
	"github.com/eraguess/eraguess/pkg/logger"
	"github.com/eraguess/eraguess/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Event abstracts what workers read off the queue.
type Event = model.RawGuessEvent

// Appender stages a raw guess event for its challenge.
type Appender interface {
	AppendGuess(ctx context.Context, ev model.RawGuessEvent) error
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker drains guess events off the queue into the hot store.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	// It will process any remaining events before stopping.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing guess events.
type InMemoryWorker struct {
	queue    Queue
	appender Appender
	name     string

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, appender Appender, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		appender: appender,
		name:     "worker", // default name
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer func() {
		close(w.done)
	}()

	eventChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case event, ok := <-eventChan:
			if !ok {
				// Channel closed, worker should stop
				return
			}

			if err := w.processEvent(ctx, event); err != nil {
				w.logger.Error(ctx, "error processing guess event", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processEvent persists a single guess event.
func (w *InMemoryWorker) processEvent(ctx context.Context, event Event) error {
	start := time.Now()
	defer func() {
		latency := time.Since(start).Milliseconds()
		metrics.RecordWorkerProcessingLatency(float64(latency))
	}()

	if err := w.appender.AppendGuess(ctx, event); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "append_error")
		w.logger.Error(ctx, "failed to stage guess event",
			logger.String("eventID", event.ID),
			logger.String("date", event.ChallengeDate),
			logger.Error(err),
		)
		return fmt.Errorf("failed to stage guess event %s: %w", event.ID, err)
	}

	metrics.RecordGuessRecorded()
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers  []*InMemoryWorker
	queue    Queue
	appender Appender

	// Shutdown control
	shutdown chan struct{}

	// Logging
	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, q Queue, appender Appender) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		appender: appender,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(
			q,
			appender,
			WithName("worker-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerActiveCount(workerCount)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	close(p.shutdown)

	for _, worker := range p.workers {
		select {
		case <-worker.done:
			// Worker finished
		case <-time.After(workerShutdownTimeout):
			// Worker timeout
		}
	}
}

// Shutdown gracefully shuts down the entire worker pool.
func (p *Pool) Shutdown(ctx context.Context) error {
	// First close the queue to stop new events
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	close(p.shutdown)

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, worker := range p.workers {
		select {
		case <-worker.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	return nil
}

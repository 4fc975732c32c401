// Package deferred provides the fire-and-forget execution sink the registry
// uses for compensating cleanup (abandoning a collided record, releasing a
// stale name reservation). Tasks are expected to be idempotent; the sink
// promises at-least-once best effort, nothing more, and never sits on a
// caller's critical path.
package deferred

import (
	"context"
	"log/slog"
)

// Task is a unit of background cleanup work.
type Task func(ctx context.Context)

// Sink accepts tasks for background execution.
type Sink interface {
	Schedule(task Task)
}

// Worker consumes scheduled tasks from a channel inbox. It keeps background
// processing testable without wiring a queue implementation.
type Worker struct {
	inbox  chan Task
	logger *slog.Logger
}

var _ Sink = (*Worker)(nil)

// NewWorker builds a worker with the given inbox capacity.
func NewWorker(buffer int, logger *slog.Logger) *Worker {
	return &Worker{inbox: make(chan Task, buffer), logger: logger}
}

// Schedule enqueues a task. A full inbox falls back to a dedicated
// goroutine so the caller never blocks.
func (w *Worker) Schedule(task Task) {
	select {
	case w.inbox <- task:
	default:
		if w.logger != nil {
			w.logger.Warn("deferred inbox full, running task out of band")
		}
		go task(context.Background())
	}
}

// Run executes tasks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case task := <-w.inbox:
			task(ctx)
		}
	}
}

// Immediate runs every task inline. Tests use it so compensation effects are
// observable without goroutine coordination.
type Immediate struct{}

var _ Sink = Immediate{}

func (Immediate) Schedule(task Task) {
	task(context.Background())
}

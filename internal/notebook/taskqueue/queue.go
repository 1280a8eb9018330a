// Package taskqueue is the single sequential path on which every cache
// mutation runs. Request handlers use Do for their synchronous phase and
// Defer for work that must run after that phase completes. Tasks never run
// in parallel and are never cancelled once enqueued.
package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Task is a unit of work on the sequential path.
type Task func(ctx context.Context) error

var ErrStopped = errors.New("task queue stopped")

type job struct {
	name string
	fn   Task
	done chan error
}

type Queue struct {
	mu      sync.Mutex
	pending []job
	wake    chan struct{}
	stopped bool

	logger *slog.Logger
}

func New(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{wake: make(chan struct{}, 1), logger: logger}
}

// Run executes tasks in FIFO order until ctx is cancelled. Tasks still
// pending at that point are completed with ErrStopped.
func (q *Queue) Run(ctx context.Context) error {
	for {
		j, ok := q.pop()
		if !ok {
			select {
			case <-ctx.Done():
				q.stop()
				return ctx.Err()
			case <-q.wake:
				continue
			}
		}
		err := q.exec(ctx, j)
		if j.done != nil {
			j.done <- err
		} else if err != nil {
			q.logger.Error("deferred task failed", "task", j.name, "error", err)
		}
	}
}

// Defer enqueues fn to run after everything already queued, including the
// task currently executing. It never blocks.
func (q *Queue) Defer(name string, fn Task) {
	q.push(job{name: name, fn: fn})
}

// Do runs fn on the sequential path and waits for its result. It must not be
// called from inside a task.
func (q *Queue) Do(ctx context.Context, name string, fn Task) error {
	done := make(chan error, 1)
	if !q.push(job{name: name, fn: fn, done: done}) {
		return ErrStopped
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// The task still runs; only the caller stops waiting.
		return ctx.Err()
	}
}

// Drain waits until every task enqueued before the call has finished.
func (q *Queue) Drain(ctx context.Context) error {
	return q.Do(ctx, "drain", func(context.Context) error { return nil })
}

func (q *Queue) push(j job) bool {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		if j.done != nil {
			j.done <- ErrStopped
		}
		return false
	}
	q.pending = append(q.pending, j)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

func (q *Queue) pop() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return job{}, false
	}
	j := q.pending[0]
	q.pending[0] = job{}
	q.pending = q.pending[1:]
	return j, true
}

func (q *Queue) stop() {
	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	q.stopped = true
	q.mu.Unlock()
	for _, j := range pending {
		if j.done != nil {
			j.done <- ErrStopped
		}
	}
}

func (q *Queue) exec(ctx context.Context, j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", j.name, r)
		}
	}()
	return j.fn(ctx)
}

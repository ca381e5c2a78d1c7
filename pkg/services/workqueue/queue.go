// Package workqueue runs detached units of work with bounded concurrency.
// Tasks run at most once: a failed task is recorded, never retried.
package workqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaflow/pkg/apperrors"
)

// ErrQueueClosed is the error of tasks submitted after Shutdown.
var ErrQueueClosed = fmt.Errorf("work queue closed: %w", apperrors.ErrShuttingDown)

// Queue is a long-lived task runner. Submitted tasks wait in FIFO order
// until the concurrency strategy lets them start.
type Queue struct {
	mu       sync.Mutex
	pending  []*queued
	running  int
	closed   bool
	idle     chan struct{} // closed once shut down with nothing left to run
	strategy ConcurrencyStrategy

	completed int
	failed    int
	submitted int

	// ctx is handed to every task. It is never cancelled: started tasks run
	// to completion even during shutdown.
	ctx context.Context

	logger *zap.Logger
}

type queued struct {
	state  *TaskState
	handle *Handle
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithStrategy sets the concurrency strategy.
func WithStrategy(strategy ConcurrencyStrategy) QueueOption {
	return func(q *Queue) {
		if strategy != nil {
			q.strategy = strategy
		}
	}
}

// WithBaseContext sets the context tasks execute under. Its values are
// visible to tasks; cancelling it is the caller's business.
func WithBaseContext(ctx context.Context) QueueOption {
	return func(q *Queue) {
		if ctx != nil {
			q.ctx = ctx
		}
	}
}

// New creates a new work queue. The default strategy runs one task at a time.
func New(logger *zap.Logger, opts ...QueueOption) *Queue {
	q := &Queue{
		strategy: NewSerializedStrategy(),
		idle:     make(chan struct{}),
		ctx:      context.Background(),
		logger:   logger.Named("workqueue"),
	}

	for _, opt := range opts {
		opt(q)
	}

	return q
}

// Submit queues a task and returns a handle to it. After Shutdown the task is
// not run and its handle is already done with ErrQueueClosed.
func (q *Queue) Submit(task Task) *Handle {
	state := newTaskState(task)
	h := newHandle(state)

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.logger.Warn("queue closed, rejecting task",
			zap.String("task_id", task.ID()),
			zap.String("task_name", task.Name()))
		state.finish(TaskStatusRejected, ErrQueueClosed)
		close(h.done)
		return h
	}

	q.submitted++
	q.pending = append(q.pending, &queued{state: state, handle: h})

	q.logger.Debug("task enqueued",
		zap.String("task_id", task.ID()),
		zap.String("task_name", task.Name()),
		zap.String("key", task.Key()))

	q.tryStartTasksLocked()
	return h
}

// tryStartTasksLocked starts every pending task the strategy admits, in
// submission order. Must be called with lock held.
func (q *Queue) tryStartTasksLocked() {
	remaining := q.pending[:0]
	for _, item := range q.pending {
		key := item.state.Task.Key()
		if !q.strategy.CanStart(key) {
			remaining = append(remaining, item)
			continue
		}

		q.strategy.OnStart(key)
		q.running++
		item.state.setRunning()

		q.logger.Info("starting task",
			zap.String("task_id", item.state.Task.ID()),
			zap.String("task_name", item.state.Task.Name()),
			zap.Duration("queued_for", time.Since(item.state.SubmittedAt)))

		go q.runTask(item)
	}
	for i := len(remaining); i < len(q.pending); i++ {
		q.pending[i] = nil
	}
	q.pending = remaining
}

func (q *Queue) runTask(item *queued) {
	start := time.Now()
	err := q.execute(item.state.Task)

	q.mu.Lock()
	defer q.mu.Unlock()

	q.strategy.OnComplete(item.state.Task.Key())
	q.running--

	if err != nil {
		q.failed++
		item.state.finish(TaskStatusFailed, err)
		q.logger.Error("task failed",
			zap.String("task_id", item.state.Task.ID()),
			zap.String("task_name", item.state.Task.Name()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
	} else {
		q.completed++
		item.state.finish(TaskStatusCompleted, nil)
		q.logger.Info("task completed",
			zap.String("task_id", item.state.Task.ID()),
			zap.String("task_name", item.state.Task.Name()),
			zap.Duration("elapsed", time.Since(start)))
	}
	close(item.handle.done)

	q.tryStartTasksLocked()
	q.signalIdleLocked()
}

// execute runs the task, turning a panic into an error so one bad task
// cannot take the process down.
func (q *Queue) execute(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", task.Name(), r)
		}
	}()
	return task.Execute(q.ctx)
}

func (q *Queue) signalIdleLocked() {
	if !q.closed || q.running > 0 || len(q.pending) > 0 {
		return
	}
	select {
	case <-q.idle:
	default:
		close(q.idle)
	}
}

// Shutdown stops accepting tasks and waits until every accepted task has
// finished, or until ctx ends. Tasks still running when ctx ends keep running.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		q.logger.Info("queue shutting down",
			zap.Int("running", q.running),
			zap.Int("pending", len(q.pending)))
	}
	q.signalIdleLocked()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		p := q.Progress()
		return fmt.Errorf("shutdown with %d running and %d pending tasks: %w", p.Running, p.Pending, ctx.Err())
	}
}

// Progress returns a progress summary.
func (q *Queue) Progress() Progress {
	q.mu.Lock()
	defer q.mu.Unlock()

	return Progress{
		Submitted: q.submitted,
		Pending:   len(q.pending),
		Running:   q.running,
		Completed: q.completed,
		Failed:    q.failed,
	}
}

// Progress holds queue progress statistics.
type Progress struct {
	Submitted int `json:"submitted"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

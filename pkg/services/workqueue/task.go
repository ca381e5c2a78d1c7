package workqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusRejected  TaskStatus = "rejected" // Submitted after shutdown began
)

// Task is the interface that all work queue tasks must implement.
type Task interface {
	// ID returns a unique identifier for this task.
	ID() string

	// Name returns a human-readable name for logs.
	Name() string

	// Key groups tasks that must not overlap. Tasks sharing a non-empty key
	// run one at a time in submission order when the strategy is keyed.
	Key() string

	// Execute runs the task to completion. It is never retried.
	Execute(ctx context.Context) error
}

// TaskState holds the runtime state of a task.
type TaskState struct {
	Task        Task
	Status      TaskStatus
	SubmittedAt time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Error       error

	mu sync.RWMutex
}

func newTaskState(task Task) *TaskState {
	return &TaskState{
		Task:        task,
		Status:      TaskStatusPending,
		SubmittedAt: time.Now(),
	}
}

// GetStatus returns the current status (thread-safe).
func (ts *TaskState) GetStatus() TaskStatus {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.Status
}

func (ts *TaskState) setRunning() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	now := time.Now()
	ts.Status = TaskStatusRunning
	ts.StartedAt = &now
}

func (ts *TaskState) finish(status TaskStatus, err error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	now := time.Now()
	ts.Status = status
	ts.CompletedAt = &now
	ts.Error = err
}

// GetError returns the error (thread-safe).
func (ts *TaskState) GetError() error {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.Error
}

// BaseTask provides common task functionality.
// Embed this in concrete task implementations.
type BaseTask struct {
	id   string
	name string
	key  string
}

// NewBaseTask creates a new base task with a fresh ID.
func NewBaseTask(name, key string) BaseTask {
	return BaseTask{
		id:   uuid.New().String(),
		name: name,
		key:  key,
	}
}

func (t BaseTask) ID() string   { return t.id }
func (t BaseTask) Name() string { return t.name }
func (t BaseTask) Key() string  { return t.key }

type funcTask struct {
	BaseTask
	fn func(ctx context.Context) error
}

func (t *funcTask) Execute(ctx context.Context) error {
	return t.fn(ctx)
}

// NewFuncTask wraps fn as a Task.
func NewFuncTask(name, key string, fn func(ctx context.Context) error) Task {
	return &funcTask{BaseTask: NewBaseTask(name, key), fn: fn}
}

// Handle lets a submitter observe one task. Callers may drop it.
type Handle struct {
	state *TaskState
	done  chan struct{}
}

func newHandle(state *TaskState) *Handle {
	return &Handle{state: state, done: make(chan struct{})}
}

// ID returns the task ID.
func (h *Handle) ID() string {
	return h.state.Task.ID()
}

// Done is closed once the task has finished or was rejected.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Status returns the task's current status.
func (h *Handle) Status() TaskStatus {
	return h.state.GetStatus()
}

// Err returns the task's error once it has finished, and nil before that.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.state.GetError()
	default:
		return nil
	}
}

// Wait blocks until the task finishes and returns its error, or returns
// ctx.Err() if ctx ends first. Waiting never cancels the task.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.state.GetError()
	case <-ctx.Done():
		return fmt.Errorf("waiting for task %s: %w", h.ID(), ctx.Err())
	}
}

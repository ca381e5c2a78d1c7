package workqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaflow/pkg/apperrors"
)

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestQueue_SubmitAndComplete(t *testing.T) {
	q := New(zap.NewNop())

	var executed atomic.Bool
	h := q.Submit(NewFuncTask("test-task", "", func(ctx context.Context) error {
		executed.Store(true)
		return nil
	}))

	require.NoError(t, h.Wait(waitCtx(t)))
	assert.True(t, executed.Load())
	assert.Equal(t, TaskStatusCompleted, h.Status())
	assert.NotEmpty(t, h.ID())

	p := q.Progress()
	assert.Equal(t, 1, p.Submitted)
	assert.Equal(t, 1, p.Completed)
	assert.Equal(t, 0, p.Failed)
}

func TestQueue_TaskFailureIsNotRetried(t *testing.T) {
	q := New(zap.NewNop())

	expectedErr := errors.New("task failed")
	var attempts atomic.Int32
	h := q.Submit(NewFuncTask("failing-task", "", func(ctx context.Context) error {
		attempts.Add(1)
		return expectedErr
	}))

	err := h.Wait(waitCtx(t))
	require.ErrorIs(t, err, expectedErr)
	assert.ErrorIs(t, h.Err(), expectedErr)
	assert.Equal(t, TaskStatusFailed, h.Status())
	assert.Equal(t, int32(1), attempts.Load())
	assert.Equal(t, 1, q.Progress().Failed)
}

func TestQueue_PanicBecomesError(t *testing.T) {
	q := New(zap.NewNop())

	h := q.Submit(NewFuncTask("panicky", "", func(ctx context.Context) error {
		panic("boom")
	}))

	err := h.Wait(waitCtx(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked: boom")

	// The queue keeps working afterwards.
	h2 := q.Submit(NewFuncTask("after", "", func(ctx context.Context) error { return nil }))
	require.NoError(t, h2.Wait(waitCtx(t)))
}

func TestHandle_ErrBeforeDone(t *testing.T) {
	q := New(zap.NewNop())

	release := make(chan struct{})
	h := q.Submit(NewFuncTask("blocked", "", func(ctx context.Context) error {
		<-release
		return errors.New("late")
	}))

	assert.NoError(t, h.Err())
	select {
	case <-h.Done():
		t.Fatal("handle done before task finished")
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.Wait(ctx), context.DeadlineExceeded)

	close(release)
	assert.EqualError(t, h.Wait(waitCtx(t)), "late")
}

func TestQueue_ThrottledConcurrency(t *testing.T) {
	q := New(zap.NewNop(), WithStrategy(NewThrottledStrategy(2)))

	var running, maxSeen int32
	var mu sync.Mutex
	handles := make([]*Handle, 0, 6)
	for i := 0; i < 6; i++ {
		handles = append(handles, q.Submit(NewFuncTask("llm-task", "", func(ctx context.Context) error {
			current := atomic.AddInt32(&running, 1)
			mu.Lock()
			if current > maxSeen {
				maxSeen = current
			}
			mu.Unlock()
			time.Sleep(30 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil
		})))
	}

	for _, h := range handles {
		require.NoError(t, h.Wait(waitCtx(t)))
	}
	assert.Equal(t, int32(2), maxSeen)
}

func TestQueue_KeyedTasksRunInOrder(t *testing.T) {
	q := New(zap.NewNop(), WithStrategy(NewKeyedStrategy(NewThrottledStrategy(4))))

	var mu sync.Mutex
	var order []string
	var concurrentSameKey atomic.Int32
	var sameKeyRunning atomic.Int32

	record := func(name string) func(context.Context) error {
		return func(ctx context.Context) error {
			if sameKeyRunning.Add(1) > 1 {
				concurrentSameKey.Add(1)
			}
			time.Sleep(20 * time.Millisecond)
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			sameKeyRunning.Add(-1)
			return nil
		}
	}

	h1 := q.Submit(NewFuncTask("enrich", "idea-1", record("enrich")))
	h2 := q.Submit(NewFuncTask("evaluate", "idea-1", record("evaluate")))
	h3 := q.Submit(NewFuncTask("pipeline", "idea-1", record("pipeline")))

	for _, h := range []*Handle{h1, h2, h3} {
		require.NoError(t, h.Wait(waitCtx(t)))
	}

	assert.Equal(t, []string{"enrich", "evaluate", "pipeline"}, order)
	assert.Equal(t, int32(0), concurrentSameKey.Load())
}

func TestQueue_DifferentKeysRunConcurrently(t *testing.T) {
	q := New(zap.NewNop(), WithStrategy(NewKeyedStrategy(NewThrottledStrategy(4))))

	started := make(chan struct{}, 2)
	release := make(chan struct{})
	task := func(ctx context.Context) error {
		started <- struct{}{}
		<-release
		return nil
	}

	h1 := q.Submit(NewFuncTask("a", "idea-a", task))
	h2 := q.Submit(NewFuncTask("b", "idea-b", task))

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("tasks for different keys did not run concurrently")
		}
	}
	close(release)
	require.NoError(t, h1.Wait(waitCtx(t)))
	require.NoError(t, h2.Wait(waitCtx(t)))
}

func TestQueue_ShutdownWaitsAndRejects(t *testing.T) {
	q := New(zap.NewNop())

	release := make(chan struct{})
	var finished atomic.Bool
	h := q.Submit(NewFuncTask("in-flight", "", func(ctx context.Context) error {
		<-release
		finished.Store(true)
		return nil
	}))
	queuedBehind := q.Submit(NewFuncTask("queued", "", func(ctx context.Context) error { return nil }))

	shutdownCtx := waitCtx(t)
	shutdownErr := make(chan error, 1)
	go func() { shutdownErr <- q.Shutdown(shutdownCtx) }()

	// Wait until the queue reports closed by observing a rejected submit.
	require.Eventually(t, func() bool {
		rejected := q.Submit(NewFuncTask("late", "", func(ctx context.Context) error { return nil }))
		return rejected.Status() == TaskStatusRejected
	}, time.Second, 5*time.Millisecond)

	close(release)
	require.NoError(t, <-shutdownErr)
	assert.True(t, finished.Load())
	require.NoError(t, h.Err())
	assert.Equal(t, TaskStatusCompleted, queuedBehind.Status())

	late := q.Submit(NewFuncTask("after", "", func(ctx context.Context) error { return nil }))
	assert.ErrorIs(t, late.Err(), ErrQueueClosed)
	assert.ErrorIs(t, late.Err(), apperrors.ErrShuttingDown)
}

func TestQueue_ShutdownTimeout(t *testing.T) {
	q := New(zap.NewNop())

	release := make(chan struct{})
	defer close(release)
	q.Submit(NewFuncTask("stuck", "", func(ctx context.Context) error {
		<-release
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Shutdown(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "1 running")
}

func TestQueue_ShutdownIdle(t *testing.T) {
	q := New(zap.NewNop())
	require.NoError(t, q.Shutdown(waitCtx(t)))
	require.NoError(t, q.Shutdown(waitCtx(t)))
}

func TestQueue_BaseContextValues(t *testing.T) {
	type ctxKey struct{}
	base := context.WithValue(context.Background(), ctxKey{}, "value")
	q := New(zap.NewNop(), WithBaseContext(base))

	var got any
	h := q.Submit(NewFuncTask("ctx", "", func(ctx context.Context) error {
		got = ctx.Value(ctxKey{})
		return nil
	}))
	require.NoError(t, h.Wait(waitCtx(t)))
	assert.Equal(t, "value", got)
}

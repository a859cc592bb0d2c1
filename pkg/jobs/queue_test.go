package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var handled int32
	done := make(chan struct{}, 3)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&handled, 1)
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 2})

	q.Start(context.Background())
	defer q.Stop()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "job", Type: "notify"}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for job")
		}
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&handled))
}

func TestQueueWithoutRetriesRunsOnce(t *testing.T) {
	var attempts int32
	done := make(chan struct{}, 4)
	q := NewQueue("no-retry", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&attempts, 1)
		done <- struct{}{}
		return errors.New("smtp unavailable")
	}, QueueConfig{Workers: 1, MaxRetries: 0, RetryDelay: 10 * time.Millisecond})

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job")
	}
	time.Sleep(50 * time.Millisecond)
	q.Stop()
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestQueueRecoversFromPanics(t *testing.T) {
	done := make(chan struct{}, 2)
	q := NewQueue("panics", func(ctx context.Context, job Job) error {
		defer func() { done <- struct{}{} }()
		if job.ID == "bad" {
			panic("boom")
		}
		return nil
	}, QueueConfig{Workers: 1})

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "bad"}))
	require.NoError(t, q.Enqueue(Job{ID: "good"}))
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("worker did not survive panic")
		}
	}
}

func TestEnqueueBeforeStartFails(t *testing.T) {
	q := NewQueue("idle", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	require.ErrorIs(t, q.Enqueue(Job{ID: "x"}), ErrQueueClosed)
}

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var attempts int32
	done := make(chan struct{})
	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: 5 * time.Millisecond})

	q.Start(context.Background())
	defer q.Stop()
	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestStopDrainsBufferedJobs(t *testing.T) {
	release := make(chan struct{})
	var handled int32
	q := NewQueue("drain", func(ctx context.Context, job Job) error {
		<-release
		atomic.AddInt32(&handled, 1)
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 4})

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "job"}))
	}
	cancel()
	close(release)
	q.Stop()

	assert.Equal(t, int32(3), atomic.LoadInt32(&handled))
	assert.Zero(t, q.Pending())
	require.ErrorIs(t, q.Enqueue(Job{ID: "late"}), ErrQueueClosed)
}

func TestStopCancelsHandlersAfterDrainTimeout(t *testing.T) {
	started := make(chan struct{})
	q := NewQueue("stuck", func(ctx context.Context, job Job) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, QueueConfig{Workers: 1, DrainTimeout: 20 * time.Millisecond})

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "job"}))
	<-started

	stopped := make(chan struct{})
	go func() {
		q.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not cancel the running handler")
	}
}

func TestEnqueueFailsFastWhenFull(t *testing.T) {
	block := make(chan struct{})
	picked := make(chan struct{}, 1)
	q := NewQueue("full", func(ctx context.Context, job Job) error {
		picked <- struct{}{}
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})

	q.Start(context.Background())
	defer q.Stop()
	defer close(block)

	require.NoError(t, q.Enqueue(Job{ID: "running"}))
	<-picked
	require.NoError(t, q.Enqueue(Job{ID: "buffered"}))
	require.ErrorIs(t, q.Enqueue(Job{ID: "overflow"}), ErrQueueFull)
}

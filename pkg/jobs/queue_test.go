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

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Key: "k", Type: "init"}))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job never succeeded")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestQueueRejectsPendingKey(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var runs int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&runs, 1) == 1 {
			close(started)
			<-release
		}
		return nil
	}, QueueConfig{})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Key: "2024-03-01"}))
	<-started
	assert.ErrorIs(t, q.Enqueue(Job{Key: "2024-03-01"}), ErrDuplicate)
	close(release)

	require.Eventually(t, func() bool {
		return !errors.Is(q.Enqueue(Job{Key: "2024-03-01", Type: "again"}), ErrDuplicate)
	}, time.Second, 5*time.Millisecond)
}

func TestQueueRequiresStart(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{Key: "x"}))
}

package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xavierau/event-platform-sub006/internal/cache"
	"github.com/xavierau/event-platform-sub006/internal/model"
	"github.com/xavierau/event-platform-sub006/internal/queue"
)

// 記錄 Invalidate 呼叫的簡單 cache
type recordingCache struct {
	cache.AvailabilityCache

	mu       sync.Mutex
	failures int
	calls    [][]int
	done     chan struct{}
}

func newRecordingCache(failures int) *recordingCache {
	return &recordingCache{failures: failures, done: make(chan struct{}, 10)}
}

func (c *recordingCache) Invalidate(_ context.Context, ids ...int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failures > 0 {
		c.failures--
		return errors.New("redis unavailable")
	}
	c.calls = append(c.calls, ids)
	c.done <- struct{}{}
	return nil
}

func (c *recordingCache) Calls() [][]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestAvailabilityWorker_InvalidatesAffectedTickets(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	q := queue.NewMemoryEventQueue(10)
	c := newRecordingCache(0)

	w := NewAvailabilityWorker(c, q)
	require.NoError(t, w.Start(ctx))

	event := model.NewDomainEvent(model.EventPurchaseCompleted, time.Now(), 7, []int{3, 5})
	require.NoError(t, q.Publish(ctx, event))

	select {
	case <-c.done:
	case <-time.After(time.Second):
		t.Fatal("worker did not invalidate cache in time")
	}

	assert.Equal(t, [][]int{{3, 5}}, c.Calls())
}

func TestAvailabilityWorker_RetriesAfterFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	q := queue.NewMemoryEventQueue(10)
	c := newRecordingCache(1)

	w := NewAvailabilityWorker(c, q)
	require.NoError(t, w.Start(ctx))

	event := model.NewDomainEvent(model.EventHoldReleased, time.Now(), 7, []int{9})
	require.NoError(t, q.Publish(ctx, event))

	select {
	case <-c.done:
	case <-time.After(time.Second):
		t.Fatal("worker did not retry the failed invalidation")
	}

	assert.Equal(t, [][]int{{9}}, c.Calls())
}

func TestAvailabilityWorker_SkipsEventsWithoutTickets(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	q := queue.NewMemoryEventQueue(10)
	c := newRecordingCache(0)

	w := NewAvailabilityWorker(c, q)
	require.NoError(t, w.Start(ctx))

	require.NoError(t, q.Publish(ctx, model.NewDomainEvent(model.EventLinkRevoked, time.Now(), 7, nil)))

	select {
	case <-c.done:
		t.Fatal("event without tickets should not invalidate anything")
	case <-time.After(200 * time.Millisecond):
	}

	assert.Empty(t, c.Calls())
}

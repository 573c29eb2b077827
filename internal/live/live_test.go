package live

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive[T any](t *testing.T, sub *Subscription[T]) T {
	t.Helper()
	select {
	case v, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func counterQuery(h *Hub, key string) (*Query[int64], *atomic.Int64, *atomic.Int64) {
	var value, fetches atomic.Int64
	q := Register(h, key, func(context.Context) (int64, error) {
		fetches.Add(1)
		return value.Load(), nil
	})
	return q, &value, &fetches
}

func TestQueryRedeliversOnChange(t *testing.T) {
	h := NewHub(NewNotifier(), time.Minute)
	defer h.Stop()
	q, value, _ := counterQuery(h, "counter")

	sub := q.Subscribe()
	defer sub.Close()
	assert.Equal(t, int64(0), receive(t, sub))

	value.Store(42)
	h.Notifier().Notify()
	assert.Equal(t, int64(42), receive(t, sub))
}

func TestRegisterSharesQueriesByKey(t *testing.T) {
	h := NewHub(NewNotifier(), time.Minute)
	defer h.Stop()

	a, _, _ := counterQuery(h, "same")
	b, _, _ := counterQuery(h, "same")
	assert.Same(t, a, b)
	assert.Equal(t, 1, h.Len())
}

func TestIdleQueryTornDownAfterGrace(t *testing.T) {
	h := NewHub(NewNotifier(), 5*time.Second)
	clock := time.Unix(1_700_000_000, 0)
	h.now = func() time.Time { return clock }
	defer h.Stop()

	q, value, fetches := counterQuery(h, "idle")
	sub := q.Subscribe()
	receive(t, sub)
	sub.Close()

	clock = clock.Add(4 * time.Second)
	assert.Equal(t, 0, h.CleanExpired(), "still inside the grace period")
	assert.True(t, q.Running())

	// A consumer returning within the grace period gets the cached value.
	again := q.Subscribe()
	assert.Equal(t, int64(0), receive(t, again))
	again.Close()

	clock = clock.Add(6 * time.Second)
	assert.Equal(t, 1, h.CleanExpired())
	assert.False(t, q.Running())
	assert.Equal(t, 0, h.Notifier().Listeners())
	assert.Equal(t, 0, h.Len(), "torn down query must leave the hub")

	value.Store(7)
	before := fetches.Load()
	fresh := q.Subscribe()
	defer fresh.Close()
	assert.Equal(t, int64(7), receive(t, fresh))
	assert.Greater(t, fetches.Load(), before, "resubscription must fetch from scratch")

	// The revived feed is shared again under its key.
	assert.Equal(t, 1, h.Len())
	revived, _, _ := counterQuery(h, "idle")
	assert.Same(t, q, revived)
}

func TestHubDropsUnusedQueries(t *testing.T) {
	h := NewHub(NewNotifier(), 5*time.Second)
	clock := time.Unix(1_700_000_000, 0)
	h.now = func() time.Time { return clock }
	defer h.Stop()

	for day := 0; day < 30; day++ {
		q, _, _ := counterQuery(h, fmt.Sprintf("day:%d", day))
		_, err := q.Snapshot(context.Background())
		require.NoError(t, err)
	}
	watched, _, _ := counterQuery(h, "watched")
	sub := watched.Subscribe()
	defer sub.Close()
	receive(t, sub)
	assert.Equal(t, 31, h.Len())

	clock = clock.Add(time.Minute)
	assert.Equal(t, 30, h.CleanExpired())
	assert.Equal(t, 1, h.Len())
	assert.True(t, watched.Running())
}

func TestSnapshotWithoutSubscribers(t *testing.T) {
	h := NewHub(NewNotifier(), time.Minute)
	defer h.Stop()
	q, value, fetches := counterQuery(h, "snap")
	value.Store(3)

	v, err := q.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
	assert.Equal(t, int64(1), fetches.Load())
	assert.False(t, q.Running())
}

func TestSlowConsumerSeesLatestValue(t *testing.T) {
	s := NewState(1)
	sub := s.Subscribe()
	defer sub.Close()

	s.Set(2)
	s.Set(3)
	assert.Equal(t, 3, receive(t, sub))
	assert.Equal(t, 3, s.Get())
}

func TestClosedSubscriptionChannelIsClosed(t *testing.T) {
	s := NewState("a")
	sub := s.Subscribe()
	sub.Close()
	sub.Close()

	for range sub.C() {
	}
	s.Set("b")
}

package live

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// FetchFunc evaluates a query once.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Query is a shared live read. It stays cold until the first subscriber
// arrives, then evaluates once and again after every change signal from its
// Notifier. Once the last subscriber leaves the feed keeps running until the
// owning Hub's cleanup finds it idle for longer than the grace period; it is
// then torn down, dropped from the Hub, and the next subscriber starts from a
// fresh fetch.
type Query[T any] struct {
	key    string
	fetch  FetchFunc[T]
	source *Notifier
	owner  registry
	group  singleflight.Group

	mu        sync.Mutex
	subs      map[*Subscription[T]]struct{}
	cancel    context.CancelFunc
	done      chan struct{}
	last      T
	hasLast   bool
	idleSince time.Time
	now       func() time.Time
}

func newQuery[T any](key string, owner registry, source *Notifier, fetch FetchFunc[T], now func() time.Time) *Query[T] {
	return &Query[T]{
		key:       key,
		fetch:     fetch,
		source:    source,
		owner:     owner,
		subs:      make(map[*Subscription[T]]struct{}),
		idleSince: now(),
		now:       now,
	}
}

// Key identifies the query inside its Hub.
func (q *Query[T]) Key() string {
	return q.key
}

// Subscribe attaches a consumer. If the feed already holds a value it is
// delivered right away.
func (q *Query[T]) Subscribe() *Subscription[T] {
	q.mu.Lock()
	defer q.mu.Unlock()

	sub := newSubscription(q.release)
	q.subs[sub] = struct{}{}
	if q.hasLast {
		sub.offer(q.last)
	}
	if q.cancel == nil {
		q.start()
	}
	return sub
}

// Snapshot returns the current value: the feed's latest value when it is
// running, otherwise a one-shot fetch. Concurrent one-shot fetches of the
// same query share a single evaluation.
func (q *Query[T]) Snapshot(ctx context.Context) (T, error) {
	q.mu.Lock()
	if q.cancel != nil && q.hasLast {
		v := q.last
		q.mu.Unlock()
		return v, nil
	}
	if len(q.subs) == 0 {
		q.idleSince = q.now()
	}
	q.mu.Unlock()

	v, err, _ := q.group.Do(q.key, func() (any, error) {
		return q.fetch(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Running reports whether the feed goroutine is active.
func (q *Query[T]) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cancel != nil
}

// start must be called with q.mu held.
func (q *Query[T]) start() {
	ctx, cancel := context.WithCancel(context.Background())
	changes, detach := q.source.Subscribe()
	q.cancel = cancel
	q.done = make(chan struct{})
	if q.owner != nil {
		q.owner.attach(q.key, q)
	}
	go q.run(ctx, changes, detach, q.done)
}

func (q *Query[T]) run(ctx context.Context, changes <-chan struct{}, detach func(), done chan struct{}) {
	defer close(done)
	defer detach()

	q.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			q.refresh(ctx)
		}
	}
}

func (q *Query[T]) refresh(ctx context.Context) {
	v, err := q.fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.ErrorContext(ctx, "Live query evaluation failed", "query", q.key, "error", err)
		}
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	q.last = v
	q.hasLast = true
	for sub := range q.subs {
		sub.offer(v)
	}
}

func (q *Query[T]) release(sub *Subscription[T]) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.subs, sub)
	close(sub.ch)
	if len(q.subs) == 0 {
		q.idleSince = q.now()
	}
}

// CleanExpired releases the query when it has had no subscribers for at
// least grace, tearing its feed down if one is running. It reports whether
// the query was released.
func (q *Query[T]) CleanExpired(grace time.Duration) bool {
	q.mu.Lock()
	if len(q.subs) > 0 || q.now().Sub(q.idleSince) < grace {
		q.mu.Unlock()
		return false
	}
	if q.cancel == nil {
		q.detachLocked()
		q.mu.Unlock()
		return true
	}
	return q.stopLocked()
}

// Stop tears the feed down regardless of subscribers; their channels stay open
// until they close them.
func (q *Query[T]) Stop() {
	q.mu.Lock()
	if q.cancel == nil {
		q.mu.Unlock()
		return
	}
	q.stopLocked()
}

// stopLocked is entered with q.mu held and returns with it released.
func (q *Query[T]) stopLocked() bool {
	q.detachLocked()
	cancel, done := q.cancel, q.done
	q.cancel, q.done = nil, nil
	var zero T
	q.last, q.hasLast = zero, false
	cancel()
	q.mu.Unlock()

	<-done
	return true
}

func (q *Query[T]) detachLocked() {
	if q.owner != nil {
		q.owner.detach(q.key, q)
	}
}

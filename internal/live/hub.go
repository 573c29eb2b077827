package live

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultGracePeriod is how long an unobserved feed is kept alive.
const DefaultGracePeriod = 5 * time.Second

// Cleaner is implemented by feeds that can be torn down once idle.
type Cleaner interface {
	CleanExpired(grace time.Duration) bool
	Stop()
}

// registry is how a query reports its lifecycle back to the hub that owns it.
type registry interface {
	attach(key string, q Cleaner)
	detach(key string, q Cleaner)
}

// Hub shares queries by key, so that every consumer of "expenses for
// 2024-05-01" attaches to the same feed, and runs the periodic idle cleanup.
// A key stays registered only while its query is in use: expired queries are
// dropped, and a dropped query that is subscribed again registers itself back.
type Hub struct {
	notifier *Notifier
	grace    time.Duration
	now      func() time.Time

	mu      sync.Mutex
	queries map[string]Cleaner
	running map[Cleaner]struct{}

	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

// NewHub creates a hub whose queries re-run on notifier signals.
func NewHub(notifier *Notifier, grace time.Duration) *Hub {
	if grace < 0 {
		grace = DefaultGracePeriod
	}
	return &Hub{
		notifier: notifier,
		grace:    grace,
		now:      time.Now,
		queries:  make(map[string]Cleaner),
		running:  make(map[Cleaner]struct{}),
	}
}

// Notifier returns the change source used by the hub's queries.
func (h *Hub) Notifier() *Notifier {
	return h.notifier
}

// Register returns the query registered under key, creating it with fetch
// when absent. Keys must be unique per result type.
func Register[T any](h *Hub, key string, fetch FetchFunc[T]) *Query[T] {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.queries[key]; ok {
		if q, ok := existing.(*Query[T]); ok {
			return q
		}
		slog.Warn("Live query key reused with a different type", "query", key)
	}
	q := newQuery(key, h, h.notifier, fetch, h.now)
	h.queries[key] = q
	return q
}

// Len returns the number of registered keys.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.queries)
}

func (h *Hub) attach(key string, q Cleaner) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.running[q] = struct{}{}
	if _, ok := h.queries[key]; !ok {
		h.queries[key] = q
	}
}

func (h *Hub) detach(key string, q Cleaner) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.running, q)
	if h.queries[key] == q {
		delete(h.queries, key)
	}
}

// tracked returns every registered or running query. Callers must hold h.mu.
func (h *Hub) tracked() []Cleaner {
	seen := make(map[Cleaner]struct{}, len(h.queries)+len(h.running))
	all := make([]Cleaner, 0, len(h.queries)+len(h.running))
	for _, q := range h.queries {
		if _, ok := seen[q]; !ok {
			seen[q] = struct{}{}
			all = append(all, q)
		}
	}
	for q := range h.running {
		if _, ok := seen[q]; !ok {
			seen[q] = struct{}{}
			all = append(all, q)
		}
	}
	return all
}

// CleanExpired releases every query unused for longer than the grace period,
// stopping its feed if one is running, and returns how many were released.
func (h *Hub) CleanExpired() int {
	h.mu.Lock()
	queries := h.tracked()
	h.mu.Unlock()

	cleaned := 0
	for _, q := range queries {
		if q.CleanExpired(h.grace) {
			cleaned++
		}
	}
	return cleaned
}

// StartCleanup begins periodic idle cleanup.
func (h *Hub) StartCleanup(interval time.Duration) {
	h.mu.Lock()
	if h.stopCleanup != nil {
		h.mu.Unlock()
		return
	}
	h.stopCleanup = make(chan struct{})
	h.cleanupDone = make(chan struct{})
	stop, done := h.stopCleanup, h.cleanupDone
	h.mu.Unlock()

	go h.cleanup(interval, stop, done)
}

func (h *Hub) cleanup(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := h.CleanExpired(); n > 0 {
				slog.Debug("Released idle live queries", "count", n)
			}
		case <-stop:
			return
		}
	}
}

// Stop ends the cleanup routine and tears down every feed.
func (h *Hub) Stop() {
	h.mu.Lock()
	stop, done := h.stopCleanup, h.cleanupDone
	h.stopCleanup, h.cleanupDone = nil, nil
	queries := h.tracked()
	h.queries = make(map[string]Cleaner)
	h.running = make(map[Cleaner]struct{})
	h.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	for _, q := range queries {
		q.Stop()
	}
}

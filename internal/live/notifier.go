// Package live provides push-based observable values: a change notifier for
// the expense table, shared queries that re-run on every change, and state
// holders for derived views.
package live

import "sync"

// Notifier fans out "something changed" signals. Signals are coalesced: a
// listener that has not consumed the previous signal does not queue another.
type Notifier struct {
	mu        sync.Mutex
	listeners map[int]chan struct{}
	next      int
}

func NewNotifier() *Notifier {
	return &Notifier{listeners: make(map[int]chan struct{})}
}

// Subscribe returns a channel receiving change signals and a function that
// detaches it.
func (n *Notifier) Subscribe() (<-chan struct{}, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++
	ch := make(chan struct{}, 1)
	n.listeners[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.listeners, id)
			n.mu.Unlock()
		})
	}
}

// Notify wakes every listener without blocking.
func (n *Notifier) Notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Listeners returns the number of attached listeners.
func (n *Notifier) Listeners() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners)
}

package live

import "sync"

// Subscription is a consumer attachment to a Query or a State. C delivers the
// latest value; values the consumer did not pick up in time are replaced, never
// queued, so a slow consumer always sees the newest value next.
type Subscription[T any] struct {
	ch      chan T
	once    sync.Once
	release func(*Subscription[T])
}

func newSubscription[T any](release func(*Subscription[T])) *Subscription[T] {
	return &Subscription[T]{ch: make(chan T, 1), release: release}
}

// C is closed once the subscription is closed.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Close detaches the consumer. It is safe to call more than once.
func (s *Subscription[T]) Close() {
	s.once.Do(func() { s.release(s) })
}

// offer must be called with the owner's lock held; the owner is the only sender.
func (s *Subscription[T]) offer(v T) {
	select {
	case s.ch <- v:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- v
}

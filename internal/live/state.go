package live

import "sync"

// State holds the latest value of a derived view. It has a single writer (the
// view that owns it) and any number of subscribers; a new subscriber receives
// the current value immediately.
type State[T any] struct {
	mu    sync.Mutex
	value T
	subs  map[*Subscription[T]]struct{}
}

func NewState[T any](initial T) *State[T] {
	return &State[T]{value: initial, subs: make(map[*Subscription[T]]struct{})}
}

func (s *State[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set stores v and pushes it to every subscriber.
func (s *State[T]) Set(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
	for sub := range s.subs {
		sub.offer(v)
	}
}

func (s *State[T]) Subscribe() *Subscription[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := newSubscription(s.release)
	s.subs[sub] = struct{}{}
	sub.offer(s.value)
	return sub
}

func (s *State[T]) release(sub *Subscription[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, sub)
	close(sub.ch)
}

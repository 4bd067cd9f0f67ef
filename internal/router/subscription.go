package router

import (
	"sync"

	"github.com/google/uuid"
)

// Subscription is the handle returned when a handler is registered.
type Subscription struct {
	ID uuid.UUID

	once   sync.Once
	remove func(uuid.UUID)
}

// Unsubscribe removes the handler. Safe to call more than once and from inside a handler.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.remove(s.ID)
	})
}

type entry[F any] struct {
	id uuid.UUID
	fn F
}

// registry keeps handlers of one category in registration order.
type registry[F any] struct {
	mu      sync.RWMutex
	entries []entry[F]
}

func (r *registry[F]) add(fn F) *Subscription {
	id := uuid.New()

	r.mu.Lock()
	r.entries = append(r.entries, entry[F]{id: id, fn: fn})
	r.mu.Unlock()

	return &Subscription{ID: id, remove: r.remove}
}

func (r *registry[F]) remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return
		}
	}
}

// snapshot returns the handlers so dispatch runs without holding the lock.
func (r *registry[F]) snapshot() []F {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fns := make([]F, len(r.entries))
	for i, e := range r.entries {
		fns[i] = e.fn
	}
	return fns
}

func (r *registry[F]) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

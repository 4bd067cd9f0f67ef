package netpath

import (
	"context"
	"sync"
)

// Manual is a Monitor fed by Set. Platform bridges and tests use it.
type Manual struct {
	mu      sync.Mutex
	updates chan bool
	closed  bool
}

// NewManual creates a Manual monitor.
func NewManual() *Manual {
	return &Manual{updates: make(chan bool, 16)}
}

// Start is a no-op.
func (m *Manual) Start(ctx context.Context) error { return nil }

// Stop closes Updates. Later Set calls are ignored.
func (m *Manual) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.updates)
	}
	return nil
}

// Updates returns the pushed values.
func (m *Manual) Updates() <-chan bool {
	return m.updates
}

// Set pushes a reachability value. When the buffer is full the oldest
// value is dropped.
func (m *Manual) Set(reachable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	select {
	case m.updates <- reachable:
	default:
		select {
		case <-m.updates:
		default:
		}
		select {
		case m.updates <- reachable:
		default:
		}
	}
}

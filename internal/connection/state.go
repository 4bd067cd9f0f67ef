package connection

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of the chat session.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// allowedTransitions is the full state graph. Anything else is rejected.
var allowedTransitions = map[State][]State{
	Disconnected: {Connecting},
	Connecting:   {Connected, Failed, Disconnected},
	Connected:    {Failed, Reconnecting, Disconnected},
	Reconnecting: {Connected, Failed, Disconnected},
	Failed:       {Reconnecting, Connecting, Disconnected},
}

// CanTransition reports whether from -> to is an edge of the state graph.
func CanTransition(from, to State) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Status is one published snapshot of the session.
type Status struct {
	State     State
	Reason    error     // Set for Failed
	UserID    string    // Empty when no identity is bound
	SessionID uuid.UUID // New for every successful connect; zero otherwise
	Attempt   int       // reconnectAttemptCount at the time of the transition
	At        time.Time
}

// StateCell is the single-writer, multi-reader holder of the current Status.
type StateCell struct {
	cur atomic.Pointer[Status]

	mu       sync.Mutex
	watchers map[uint64]chan Status
	nextID   uint64
	closed   bool
}

// NewStateCell returns a cell holding Disconnected.
func NewStateCell() *StateCell {
	c := &StateCell{watchers: make(map[uint64]chan Status)}
	c.cur.Store(&Status{State: Disconnected, At: time.Now()})
	return c
}

// Load returns the current status without blocking.
func (c *StateCell) Load() Status {
	return *c.cur.Load()
}

// Watch returns a channel receiving every subsequent status and a cancel func.
// A slow watcher loses its oldest pending statuses, never the newest.
func (c *StateCell) Watch(buffer int) (<-chan Status, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Status, buffer)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextID
	c.nextID++
	c.watchers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if w, ok := c.watchers[id]; ok {
				delete(c.watchers, id)
				close(w)
			}
		})
	}
}

// publish stores s and fans it out. Only the manager's worker calls it.
func (c *StateCell) publish(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cur.Store(&s)
	for _, ch := range c.watchers {
		select {
		case ch <- s:
		default:
			// Drop oldest, keep newest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

// close ends every watch.
func (c *StateCell) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	for id, ch := range c.watchers {
		delete(c.watchers, id)
		close(ch)
	}
}

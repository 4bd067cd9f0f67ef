package router

import "sync"

// growAt is the fill ratio, in percent, at which the ring doubles.
const growAt = 70

// GrowableBuffer is an unbounded, thread-safe FIFO queue backed by a ring.
// The ring doubles once it is growAt percent full, so Send never blocks
// and never drops.
type GrowableBuffer[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ring   []T
	head   int // next item to pop
	count  int
	closed bool

	enqueued  int64
	dequeued  int64
	grows     int
	highWater int
}

// BufferStats contains buffer statistics.
type BufferStats struct {
	Count     int   // items queued now
	Capacity  int   // ring size
	Enqueued  int64 // items accepted by Send
	Dequeued  int64 // items handed out by Receive or DrainTo
	Grows     int   // times the ring doubled
	HighWater int   // largest Count observed
}

// NewGrowableBuffer creates a new buffer with the given initial capacity.
func NewGrowableBuffer[T any](initialCapacity int) *GrowableBuffer[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	b := &GrowableBuffer[T]{ring: make([]T, initialCapacity)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Send appends an item. Returns false if the buffer is closed.
func (b *GrowableBuffer[T]) Send(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	if (b.count+1)*100 >= len(b.ring)*growAt {
		b.grow()
	}

	b.ring[(b.head+b.count)%len(b.ring)] = item
	b.count++
	b.enqueued++
	if b.count > b.highWater {
		b.highWater = b.count
	}

	b.cond.Signal()
	return true
}

// Receive removes and returns the oldest item, blocking until one is available.
// After Close it keeps returning queued items, then zero and false.
func (b *GrowableBuffer[T]) Receive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 && !b.closed {
		b.cond.Wait()
	}

	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.pop(), true
}

// DrainTo removes up to max items (all if max <= 0) without blocking.
func (b *GrowableBuffer[T]) DrainTo(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.count
	if max > 0 && max < n {
		n = max
	}
	if n == 0 {
		return nil
	}

	out := make([]T, 0, n)
	for range n {
		out = append(out, b.pop())
	}
	return out
}

// Close stops accepting items and wakes blocked receivers.
func (b *GrowableBuffer[T]) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.cond.Broadcast()
}

// Len returns the current number of items in the buffer.
func (b *GrowableBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Stats returns buffer statistics.
func (b *GrowableBuffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Count:     b.count,
		Capacity:  len(b.ring),
		Enqueued:  b.enqueued,
		Dequeued:  b.dequeued,
		Grows:     b.grows,
		HighWater: b.highWater,
	}
}

// pop removes the head item. Caller holds mu and has checked count > 0.
func (b *GrowableBuffer[T]) pop() T {
	var zero T
	item := b.ring[b.head]
	b.ring[b.head] = zero
	b.head = (b.head + 1) % len(b.ring)
	b.count--
	b.dequeued++
	return item
}

// grow doubles the ring, unwrapping queued items to the front. Caller holds mu.
func (b *GrowableBuffer[T]) grow() {
	next := make([]T, len(b.ring)*2)
	n := copy(next, b.ring[b.head:])
	if n < b.count {
		copy(next[n:], b.ring[:b.count-n])
	}
	b.ring = next
	b.head = 0
	b.grows++
}

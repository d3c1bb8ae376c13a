package events

import (
	"sync"
	"sync/atomic"
)

// Bus is a bounded event channel. Publishing never blocks; when the buffer is
// full the event is dropped and counted.
type Bus struct {
	ch      chan Event
	dropped atomic.Uint64
	mu      sync.RWMutex
	closed  bool
}

// NewBus creates a bus with the given buffer size.
func NewBus(size int) *Bus {
	if size < 1 {
		size = 1
	}
	return &Bus{ch: make(chan Event, size)}
}

// Emit publishes e without blocking.
func (b *Bus) Emit(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.ch <- e:
	default:
		b.dropped.Add(1)
	}
}

// C returns the receive side of the bus.
func (b *Bus) C() <-chan Event { return b.ch }

// Dropped returns how many events were discarded on a full buffer.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Close closes the channel. Later Emits are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.ch)
	}
}

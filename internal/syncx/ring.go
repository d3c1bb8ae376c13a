package syncx

// Ring is a fixed-capacity FIFO. Pushing onto a full ring evicts the oldest
// element. Not safe for concurrent use; owners guard it themselves.
type Ring[T any] struct {
	buf   []T
	head  int // index of the oldest element
	count int
}

// NewRing creates a ring holding at most capacity elements (minimum 1).
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v, returning the evicted element when the ring was full.
func (r *Ring[T]) Push(v T) (evicted T, ok bool) {
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = v
		r.count++
		return evicted, false
	}
	evicted = r.buf[r.head]
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	return evicted, true
}

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int { return r.count }

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Items returns the elements oldest first.
func (r *Ring[T]) Items() []T {
	out := make([]T, r.count)
	for i := range r.count {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// Each calls fn for every element oldest first until fn returns false.
func (r *Ring[T]) Each(fn func(T) bool) {
	for i := range r.count {
		if !fn(r.buf[(r.head+i)%len(r.buf)]) {
			return
		}
	}
}

// Reset empties the ring.
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.head, r.count = 0, 0
}

// Contains reports whether v is stored in r.
func Contains[T comparable](r *Ring[T], v T) bool {
	found := false
	r.Each(func(item T) bool {
		if item == v {
			found = true
			return false
		}
		return true
	})
	return found
}

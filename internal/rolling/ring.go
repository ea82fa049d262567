package rolling

// Ring is a fixed-capacity ring buffer. Push overwrites the oldest element once
// the buffer is full, so memory stays bounded regardless of sample rate.
type Ring[T any] struct {
	buf   []T
	head  int
	count int
}

// NewRing creates a ring buffer with the given capacity. Capacity must be >0.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends a value, evicting the oldest when full.
func (r *Ring[T]) Push(v T) {
	r.buf[(r.head+r.count)%len(r.buf)] = v
	if r.count < len(r.buf) {
		r.count++
	} else {
		r.head = (r.head + 1) % len(r.buf)
	}
}

// Len returns the number of stored values.
func (r *Ring[T]) Len() int { return r.count }

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// At returns the i-th value in insertion order (0 = oldest).
func (r *Ring[T]) At(i int) T {
	return r.buf[(r.head+i)%len(r.buf)]
}

// Last returns the most recent value and whether one exists.
func (r *Ring[T]) Last() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	return r.At(r.count - 1), true
}

// Values returns a copy of the stored values in insertion order.
func (r *Ring[T]) Values() []T {
	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.At(i)
	}
	return out
}

// Tail returns a copy of the most recent n values in insertion order.
// If fewer than n values exist, all values are returned.
func (r *Ring[T]) Tail(n int) []T {
	if n > r.count {
		n = r.count
	}
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = r.At(r.count - n + i)
	}
	return out
}

// Reset discards all stored values without releasing the backing array.
func (r *Ring[T]) Reset() {
	r.head = 0
	r.count = 0
}

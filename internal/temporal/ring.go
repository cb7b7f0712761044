package temporal

import (
	"slices"
)

// Ring is a fixed capacity FIFO. Pushing into a full ring evicts the oldest element.
type Ring[T any] struct {
	buf   []T
	start int
	size  int
}

// NewRing returns an empty ring holding at most capacity elements (at least one).
func NewRing[T any](capacity int) *Ring[T] {
	return &Ring[T]{buf: make([]T, max(capacity, 1))}
}

// Push appends v. When the ring was full, the evicted element is returned with true.
func (r *Ring[T]) Push(v T) (T, bool) {
	var evicted T

	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++

		return evicted, false
	}

	evicted = r.buf[r.start]
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)

	return evicted, true
}

// At returns the i-th oldest element.
func (r *Ring[T]) At(i int) T {
	if i < 0 || i >= r.size {
		panic("temporal: ring index out of range")
	}

	return r.buf[(r.start+i)%len(r.buf)]
}

func (r *Ring[T]) Len() int {
	return r.size
}

func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

func (r *Ring[T]) Full() bool {
	return r.size == len(r.buf)
}

// Reset empties the ring without releasing storage.
func (r *Ring[T]) Reset() {
	clear(r.buf)
	r.start, r.size = 0, 0
}

// Median returns the median of the projected values, averaging the two middle values for even counts.
// scratch is reused when large enough.
func Median[T any](r *Ring[T], project func(T) float64, scratch []float64) float64 {
	if r.size == 0 {
		return 0
	}

	scratch = scratch[:0]
	for i := range r.size {
		scratch = append(scratch, project(r.At(i)))
	}

	slices.Sort(scratch)

	mid := len(scratch) / 2
	if len(scratch)%2 == 1 {
		return scratch[mid]
	}

	return (scratch[mid-1] + scratch[mid]) / 2
}

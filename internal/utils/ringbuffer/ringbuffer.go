// Package ringbuffer provides a generic FIFO backed by a growable ring.
package ringbuffer

// A RingBuffer is a FIFO queue. The zero value is an empty queue.
type RingBuffer[T any] struct {
	ring             []T
	headPos, tailPos int
	full             bool
}

// Init preallocates a buffer with a capacity of size.
func (r *RingBuffer[T]) Init(size int) {
	r.ring = make([]T, size)
}

// Len returns the number of elements in the queue.
func (r *RingBuffer[T]) Len() int {
	if r.full {
		return len(r.ring)
	}
	if r.tailPos >= r.headPos {
		return r.tailPos - r.headPos
	}
	return r.tailPos - r.headPos + len(r.ring)
}

// Empty says if the queue is empty.
func (r *RingBuffer[T]) Empty() bool {
	return !r.full && r.headPos == r.tailPos
}

// PushBack adds a new element. If the queue is full, the ring is grown.
func (r *RingBuffer[T]) PushBack(t T) {
	if r.full || len(r.ring) == 0 {
		r.grow()
	}
	r.ring[r.tailPos] = t
	r.tailPos++
	if r.tailPos == len(r.ring) {
		r.tailPos = 0
	}
	if r.tailPos == r.headPos {
		r.full = true
	}
}

// PeekFront returns the next element without removing it.
// It must not be called on an empty queue.
func (r *RingBuffer[T]) PeekFront() T {
	if r.Empty() {
		panic("github.com/mithro/litepcie-go/internal/utils/ringbuffer: peek into an empty queue")
	}
	return r.ring[r.headPos]
}

// PopFront removes the next element.
// It must not be called on an empty queue.
func (r *RingBuffer[T]) PopFront() T {
	if r.Empty() {
		panic("github.com/mithro/litepcie-go/internal/utils/ringbuffer: pop from an empty queue")
	}
	r.full = false
	t := r.ring[r.headPos]
	r.ring[r.headPos] = *new(T)
	r.headPos++
	if r.headPos == len(r.ring) {
		r.headPos = 0
	}
	return t
}

// Iterate calls f for every element, front to back, stopping early if f
// returns false.
func (r *RingBuffer[T]) Iterate(f func(T) bool) {
	n := r.Len()
	pos := r.headPos
	for i := 0; i < n; i++ {
		if !f(r.ring[pos]) {
			return
		}
		pos++
		if pos == len(r.ring) {
			pos = 0
		}
	}
}

// Grow the maximum size of the queue.
// This method assumes the queue is full.
func (r *RingBuffer[T]) grow() {
	oldRing := r.ring
	newSize := len(oldRing) * 2
	if newSize == 0 {
		newSize = 1
	}
	r.ring = make([]T, newSize)
	headLen := copy(r.ring, oldRing[r.headPos:])
	copy(r.ring[headLen:], oldRing[:r.headPos])
	r.headPos, r.tailPos, r.full = 0, len(oldRing), false
}

// Clear removes all elements.
func (r *RingBuffer[T]) Clear() {
	var zeroValue T
	for i := range r.ring {
		r.ring[i] = zeroValue
	}
	r.headPos, r.tailPos, r.full = 0, 0, false
}

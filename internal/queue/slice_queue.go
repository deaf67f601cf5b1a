package queue

// sliceQueue implements the Queue interface using a slice.
type sliceQueue[T any] struct {
	items []T
}

var _ Queue[byte] = (*sliceQueue[byte])(nil)

// NewSliceQueue creates a new slice backed Queue.
func NewSliceQueue[T any](prealloc int) Queue[T] {
	return &sliceQueue[T]{items: make([]T, 0, prealloc)}
}

// Enqueue adds items to the tail of the queue.
func (q *sliceQueue[T]) Enqueue(items ...T) {
	q.items = append(q.items, items...)
}

// DequeueInto moves up to len(dst) items from the head into dst.
func (q *sliceQueue[T]) DequeueInto(dst []T) int {
	n := copy(dst, q.items)
	clear(q.items[:n])
	q.items = q.items[n:]
	q.compact()

	return n
}

// IsEmpty returns true if the queue is empty, false otherwise.
func (q *sliceQueue[T]) IsEmpty() bool {
	return len(q.items) == 0
}

// compact moves the remaining items to the front once the consumed head
// dominates the backing array, so a long-lived queue does not grow forever.
func (q *sliceQueue[T]) compact() {
	if cap(q.items) > 64 && len(q.items) < cap(q.items)/4 {
		q.items = append(make([]T, 0, len(q.items)*2), q.items...)
	}
}

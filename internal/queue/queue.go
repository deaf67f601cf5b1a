// Package queue provides the FIFO used to buffer bytes in flight between
// in-memory channel endpoints.
package queue

// Queue defines the interface of a FIFO queue of T.
//
// Implementations are not goroutine-safe; callers guard them with a lock.
type Queue[T any] interface {
	// Enqueue adds items to the tail of the queue.
	Enqueue(items ...T)
	// DequeueInto moves up to len(dst) items from the head into dst and
	// returns how many were moved.
	DequeueInto(dst []T) int
	// IsEmpty returns true if the queue is empty, false otherwise.
	IsEmpty() bool
}

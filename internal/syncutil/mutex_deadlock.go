//go:build deadlock

// Package syncutil provides the mutex types used by link handles.
// Building with -tags=deadlock swaps in lock-order and timeout checking.
package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex is a deadlock-detecting mutex.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex is a deadlock-detecting reader/writer mutex.
type RWMutex struct {
	deadlock.RWMutex
}

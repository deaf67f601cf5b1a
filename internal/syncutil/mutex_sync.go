//go:build !deadlock

// Package syncutil provides the mutex types used by link handles.
// Building with -tags=deadlock swaps in lock-order and timeout checking.
package syncutil

import "sync"

// Mutex is a plain sync.Mutex.
type Mutex struct {
	sync.Mutex
}

// RWMutex is a plain sync.RWMutex.
type RWMutex struct {
	sync.RWMutex
}

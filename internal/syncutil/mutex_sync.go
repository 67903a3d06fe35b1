//go:build !deadlock

// Package syncutil holds the mutex shared by the device, the simulator and
// the poller. Release builds get a plain sync.Mutex; building with
// -tags=deadlock swaps in github.com/sasha-s/go-deadlock so lock order
// problems between the poll loop and callers of Actor.Do surface in tests.
package syncutil

import "sync"

// Mutex is a sync.Mutex.
//
//nolint:gocritic // embedded to expose Lock and Unlock
type Mutex struct {
	sync.Mutex
}

var _ sync.Locker = (*Mutex)(nil)

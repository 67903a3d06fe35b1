//go:build deadlock

package syncutil

import (
	"sync"

	deadlock "github.com/sasha-s/go-deadlock"
)

// Mutex is a deadlock.Mutex that reports locks held longer than
// deadlock.Opts.DeadlockTimeout.
type Mutex struct {
	deadlock.Mutex
}

var _ sync.Locker = (*Mutex)(nil)

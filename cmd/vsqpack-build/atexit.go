package main

import (
	"sync"
	"sync/atomic"
)

// cleanupHooks collects deferred cleanup actions (removing a
// partially-written dump directory on failure) so main can run them
// exactly once regardless of which exit path is taken.
var cleanupHooks struct {
	sync.Mutex
	fns    []func() error
	closed uint32
}

// registerCleanup queues fn to run during runCleanups. Panics if called
// after runCleanups has already started, the same misuse guard the
// teacher's build scheduler uses for its own exit hooks.
func registerCleanup(fn func() error) {
	if atomic.LoadUint32(&cleanupHooks.closed) != 0 {
		panic("BUG: registerCleanup must not be called from a cleanup func")
	}
	cleanupHooks.Lock()
	defer cleanupHooks.Unlock()
	cleanupHooks.fns = append(cleanupHooks.fns, fn)
}

// runCleanups runs every registered hook in registration order, stopping at
// (and returning) the first error.
func runCleanups() error {
	atomic.StoreUint32(&cleanupHooks.closed, 1)
	for _, fn := range cleanupHooks.fns {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

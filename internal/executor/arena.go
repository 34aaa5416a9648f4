package executor

import "sync"

// Arena tracks which order ids currently have an active coordinator. The
// check-and-insert is atomic, so two poll cycles dispatching the same order
// concurrently can never both start a coordinator. It is safe for concurrent
// use.
type Arena struct {
	inflight map[uint64]struct{}
	mu       sync.Mutex
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{inflight: make(map[uint64]struct{})}
}

// TryAcquire claims the order id. It returns false if a coordinator is
// already active for it, in which case the new readiness signal must be
// dropped, not queued.
func (a *Arena) TryAcquire(orderID uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.inflight[orderID]; ok {
		return false
	}
	a.inflight[orderID] = struct{}{}
	return true
}

// Release frees the order id once its coordinator reaches a terminal state
// (or its wait is cancelled). Releasing an unclaimed id is a no-op.
func (a *Arena) Release(orderID uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inflight, orderID)
}

// InFlight returns the number of active coordinators.
func (a *Arena) InFlight() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.inflight)
}

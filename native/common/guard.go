package common

import (
	"errors"
	"sync/atomic"
)

var ErrReentrant = errors.New("reentrant call")

// ReentrancyGuard is a non-blocking mutual-exclusion flag for module entry
// points. A nested Enter while the guard is held fails instead of waiting.
// Locked may be read concurrently.
type ReentrancyGuard struct {
	locked atomic.Bool
}

// Enter acquires the guard. The returned release function must be called on
// every exit path, typically via defer; calling it more than once is a no-op.
func (g *ReentrancyGuard) Enter() (func(), error) {
	if g == nil {
		return func() {}, nil
	}
	if !g.locked.CompareAndSwap(false, true) {
		return nil, ErrReentrant
	}
	var released atomic.Bool
	return func() {
		if released.CompareAndSwap(false, true) {
			g.locked.Store(false)
		}
	}, nil
}

// Locked reports whether an entry point currently holds the guard.
func (g *ReentrancyGuard) Locked() bool {
	if g == nil {
		return false
	}
	return g.locked.Load()
}

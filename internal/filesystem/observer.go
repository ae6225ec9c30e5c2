package filesystem

import (
	"sync/atomic"
	"time"
)

// Access describes one StatWithRetry or OpenWithRetry call after it
// returns.
type Access struct {
	Op     string // "stat" or "open"
	Volume string // label from the volume resolver, "unknown" if unmatched
	Took   time.Duration
	Stale  int // ESTALE results seen, including the final one
	Tries  int // calls made, at least one
	Err    error
}

// Retried reports whether the call hit a stale handle and tried again.
func (a Access) Retried() bool { return a.Tries > 1 }

// Observer receives an Access for every retried filesystem call. The
// metrics package provides the Prometheus implementation.
type Observer interface {
	ObserveAccess(Access)
}

var observer atomic.Pointer[Observer]

// SetObserver installs o for all later calls. nil removes it.
func SetObserver(o Observer) {
	if o == nil {
		observer.Store(nil)
		return
	}
	observer.Store(&o)
}

func report(a Access) {
	if o := observer.Load(); o != nil {
		(*o).ObserveAccess(a)
	}
}

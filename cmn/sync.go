// Package cmn holds small concurrency primitives used by adb. Adapted from
// the donor's cmn package (see cmn/sync_test.go for
// the behavior this reimplements; the donor's own cmn/sync.go was not part
// of the retrieval pack, so this is rebuilt from its test-observed
// contract).
package cmn

import (
	"sync"
	"sync/atomic"
	"time"
)

// TimeoutGroup is a sync.WaitGroup that also supports a bounded wait, used
// by the shutdown path (spec.md §4.6) to wait for in-flight fetch
// cancellations without blocking forever if a resolver callback never
// returns.
type TimeoutGroup struct {
	wg  sync.WaitGroup
	n   int64
	ch  chan struct{}
	mu  sync.Mutex
}

func NewTimeoutGroup() *TimeoutGroup {
	return &TimeoutGroup{ch: make(chan struct{})}
}

func (g *TimeoutGroup) Add(delta int) {
	g.wg.Add(delta)
	if atomic.AddInt64(&g.n, int64(delta)) == 0 {
		g.signal()
	}
}

func (g *TimeoutGroup) Done() {
	g.wg.Done()
	if atomic.AddInt64(&g.n, -1) == 0 {
		g.signal()
	}
}

func (g *TimeoutGroup) signal() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.ch:
		// already closed by a previous signal; nothing to do.
	default:
		close(g.ch)
	}
}

func (g *TimeoutGroup) Wait() { g.wg.Wait() }

// WaitTimeout reports true if the wait timed out before the group drained.
func (g *TimeoutGroup) WaitTimeout(d time.Duration) bool {
	timed, _ := g.WaitTimeoutWithStop(d, nil)
	return timed
}

// WaitTimeoutWithStop waits for the group to drain, for d to elapse, or for
// stopCh to receive/close, whichever happens first.
func (g *TimeoutGroup) WaitTimeoutWithStop(d time.Duration, stopCh <-chan struct{}) (timed, stopped bool) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-g.ch:
		return false, false
	case <-t.C:
		return true, false
	case <-stopCh:
		return false, true
	}
}

// DynSemaphore is a counting semaphore with a limit fixed at creation;
// used to bound fan-out (the A6 chain walker's concurrent "missing"
// fetches) without a fixed-size buffered channel baked into call sites.
type DynSemaphore struct {
	ch chan struct{}
}

func NewDynSemaphore(limit int) *DynSemaphore {
	return &DynSemaphore{ch: make(chan struct{}, limit)}
}

func (s *DynSemaphore) Acquire() { s.ch <- struct{}{} }

func (s *DynSemaphore) TryAcquire() bool {
	select {
	case s.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *DynSemaphore) Release() { <-s.ch }

func MaxI32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

// Package memsys provides the bounded, reusable object pools the ADB core
// allocates its entities from (spec.md §2 item 2: "bounded free-lists for
// Names, Endpoints, NameHooks, ZoneInfo, Finds, AddrInfo,
// FetchA/FetchAAAA/FetchA6"). Modeled on the donor's memsys package: one
// pool mutex, held only across allocation/free (spec.md §5, "Shared-
// resource policy"), never across any other lock acquisition.
//
// The donor's memsys is a byte-slab allocator for I/O buffers; this
// package adapts the same "bounded free-list behind one mutex, counters
// for live/pooled population" shape to typed entities instead of byte
// slices, since the ADB's allocation unit is always a fixed Go struct, not
// a variable-length buffer.
package memsys

import (
	"sync"

	"github.com/aisdns/adb/3rdparty/atomic"
)

// Pool is a bounded free-list of *T. Get returns a recycled or freshly
// allocated *T; Put returns it to the free-list unless the list is already
// at HighWater, in which case it is dropped for the garbage collector to
// reclaim (spec.md §2 item 2, "bounded").
type Pool[T any] struct {
	mu        sync.Mutex
	free      []*T
	lowWater  int
	highWater int
	reset     func(*T)
	live      atomic.Int64 // entities currently checked out (spec.md §8 property 3)
}

// NewPool creates a pool pre-warmed to lowWater entries. reset, if
// non-nil, is called on every entity returned by Put before it is made
// available again (clearing stale fields so Get never hands back dirty
// state).
func NewPool[T any](lowWater, highWater int, reset func(*T)) *Pool[T] {
	if highWater < lowWater {
		highWater = lowWater
	}
	p := &Pool[T]{lowWater: lowWater, highWater: highWater, reset: reset}
	p.free = make([]*T, 0, lowWater)
	for i := 0; i < lowWater; i++ {
		p.free = append(p.free, new(T))
	}
	return p
}

// Get removes an entity from the free-list, allocating a new one if the
// list is empty.
func (p *Pool[T]) Get() *T {
	p.mu.Lock()
	var v *T
	if n := len(p.free); n > 0 {
		v = p.free[n-1]
		p.free = p.free[:n-1]
	}
	p.mu.Unlock()
	if v == nil {
		v = new(T)
	}
	p.live.Inc()
	return v
}

// Put returns v to the free-list, or drops it if the list is already at
// capacity.
func (p *Pool[T]) Put(v *T) {
	if v == nil {
		return
	}
	if p.reset != nil {
		p.reset(v)
	}
	p.live.Dec()
	p.mu.Lock()
	if len(p.free) < p.highWater {
		p.free = append(p.free, v)
	}
	p.mu.Unlock()
}

// Live returns the number of entities currently checked out (not on the
// free-list). Used by tests to assert spec.md §8 property 3: after
// shutdown, every pool's allocated count is 0.
func (p *Pool[T]) Live() int64 { return p.live.Load() }

// Cap reports the number of entries currently idle on the free-list.
func (p *Pool[T]) Cap() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

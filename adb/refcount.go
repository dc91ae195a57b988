package adb

import (
	"time"

	"github.com/aisdns/adb/3rdparty/glog"
	"github.com/aisdns/adb/internal/debug"
)

// incInternalRef / decInternalRef maintain the ADB-wide internal refcount
// (spec.md §4.6: "one per live bucket plus one per outstanding cleanup
// operation") behind its own mutex, disjoint from the top lock (spec.md
// §5) to avoid priority inversion with checkExit.
func (a *ADB) incInternalRef() {
	a.internalMu.Lock()
	a.internal++
	a.internalMu.Unlock()
}

func (a *ADB) decInternalRef() {
	a.internalMu.Lock()
	a.internal--
	debug.Assert(a.internal >= 0, "internal refcount underflow")
	a.internalMu.Unlock()
	a.checkExit()
}

// checkExit is the global exit check requested after every Find teardown,
// Detach, and bucket-emptying event (spec.md §4.6 step 5): once shutting
// down and both the internal refcount and outstanding-Find count reach
// zero, queued whenShutdown events fire exactly once.
func (a *ADB) checkExit() {
	a.topMu.Lock()
	shutting := a.shuttingDown
	a.topMu.Unlock()
	if !shutting || !a.quiesced() {
		return
	}
	a.closeOnce.Do(func() {
		a.topMu.Lock()
		pending := a.whenShutdown
		a.whenShutdown = nil
		a.topMu.Unlock()
		for _, entry := range pending {
			entry.task.Send(Event{Type: entry.event})
		}
		a.hkReg.Shutdown()
		close(a.closed)
		glog.Infof("adb: shutdown complete, all buckets drained")
	})
}

// Shutdown runs the coordinated teardown sequence (spec.md §4.6).
func (a *ADB) Shutdown() {
	a.topMu.Lock()
	if a.shuttingDown {
		a.topMu.Unlock()
		return
	}
	a.shuttingDown = true
	a.topMu.Unlock()

	// Step 1: mark every bucket shutting-down before touching any entity,
	// so the per-name hook release below (which may drop an Endpoint's
	// refcount to zero) already sees the Endpoint bucket's shutting-down
	// flag and can free it immediately rather than waiting on AddrInfo
	// release.
	for _, b := range a.store.names {
		b.mu.Lock()
		b.shuttingDown = true
		b.mu.Unlock()
	}
	for _, eb := range a.store.endpoints {
		eb.mu.Lock()
		eb.shuttingDown = true
		eb.mu.Unlock()
	}

	now := time.Now()
	// Step 2.
	for _, b := range a.store.names {
		b.mu.Lock()
		a.killBucketNamesLocked(b, now)
		b.mu.Unlock()
	}
	// Step 3 & 4.
	for _, eb := range a.store.endpoints {
		eb.mu.Lock()
		a.sweepEndpointBucketLocked(eb)
		eb.mu.Unlock()
	}

	a.checkExit()
}

// ShutdownAndWait runs Shutdown and then blocks for up to timeout waiting
// for every in-flight resolver fetch to report completion, returning false
// if the deadline passed first (spec.md §4.6: shutdown must not hang
// forever on a resolver that never calls back). WhenShutdown remains the
// non-blocking way to learn when teardown finishes; this is for a caller
// that wants a bounded synchronous call instead.
func (a *ADB) ShutdownAndWait(timeout time.Duration) bool {
	a.Shutdown()
	return !a.fetchGroup.WaitTimeout(timeout)
}

// killBucketNamesLocked kills every live Name in b (spec.md §4.6 step 2).
func (a *ADB) killBucketNamesLocked(b *nameBucket, now time.Time) {
	for e := b.names.Front(); e != nil; {
		next := e.Next()
		n := e.Value.(*Name)
		a.killNameLocked(b, n, EventShutdown, now)
		e = next
	}
	if b.names.Len() == 0 {
		a.decInternalRef()
	}
}

// killNameLocked delivers a terminal event to every Find attached to n,
// releases its hooks, and either frees n outright or marks it dead and
// cancels its outstanding fetches (spec.md §4.6 step 2).
func (a *ADB) killNameLocked(b *nameBucket, n *Name, evType EventType, now time.Time) {
	for e := n.Finds.Front(); e != nil; {
		next := e.Next()
		find := e.Value.(*Find)
		n.Finds.Remove(e)
		find.nameElem = nil
		find.sendOnce(evType, 0)
		e = next
	}
	a.dropHooksLocked(n, FamilyV4, now)
	a.dropHooksLocked(n, FamilyV6, now)

	if n.fetchOutstanding(FamilyV4) || n.fetchOutstanding(FamilyV6) {
		n.Flags |= NameDead
		a.cancelNameFetchesLocked(n)
		return
	}
	b.unlinkNameLocked(a.pools, n)
}

// cancelNameFetchesLocked requests cancellation of every fetch n has
// outstanding. Each cancel callback still returns through the normal
// completion path (handleFetchResult / handleA6Result), which frees n
// once the last one arrives (spec.md §4.4.D, §4.6 step 2).
func (a *ADB) cancelNameFetchesLocked(n *Name) {
	if n.FetchV4 != nil {
		n.FetchV4.handle.Cancel()
	}
	if n.FetchV6 != nil {
		n.FetchV6.handle.Cancel()
	}
	for _, f := range n.FetchA6 {
		f.handle.Cancel()
	}
}

// sweepEndpointBucketLocked frees every zero-refcount Endpoint in eb
// immediately; others persist until their last AddrInfo is released
// (spec.md §4.6 step 3).
func (a *ADB) sweepEndpointBucketLocked(eb *endpointBucket) {
	for e := eb.endpoints.Front(); e != nil; {
		next := e.Next()
		ep := e.Value.(*Endpoint)
		if ep.Refcount() == 0 {
			eb.unlinkEndpointLocked(a.pools, ep)
		}
		e = next
	}
	if eb.endpoints.Len() == 0 {
		a.decInternalRef()
	}
}

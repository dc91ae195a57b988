package adb

import (
	"time"

	"github.com/aisdns/adb/internal/debug"
)

// Resolver.CreateFetch must invoke its callback asynchronously (from a
// goroutine or equivalent), never synchronously from within the call to
// CreateFetch itself — startFetch below is always called with the
// target Name's bucket locked, and a synchronous callback would try to
// retake that same lock and deadlock.

func familyLabel(f Family) string {
	if f == FamilyV6 {
		return "v6"
	}
	return "v4"
}

// startOptions recomputes the fetch's start-at-root decision per call
// rather than copying it verbatim from the Find's option bitmap
// (SPEC_FULL §C item 4): once a family has any expiry recorded (from an
// earlier import, a negative answer, or a generic-failure backoff), the
// next fetch starts at the root regardless of what the original caller
// asked for, since the earlier delegation path is assumed stale.
func (a *ADB) startOptions(n *Name, f Family, options FindOptions) FetchOptions {
	startAtRoot := options&StartAtRoot != 0 || !n.expiryFor(f).IsZero()
	return FetchOptions{StartAtRoot: startAtRoot, Hint: n.Target}
}

// startFetch arms a resolver fetch for family f on n, which must already
// be locked via its bucket (spec.md §4.4). IPv6 fetches are routed
// through the A6 chain walker when enabled (SPEC_FULL §D Open Question
// decision); otherwise this starts a plain AAAA fetch.
func (a *ADB) startFetch(n *Name, name, zone string, f Family, options FindOptions, now time.Time) {
	fo := a.startOptions(n, f, options)

	if f == FamilyV6 && a.config().A6Enabled {
		a.startA6Fetch(n, name, name, zone, fo, now, true)
		return
	}
	a.startPlainFetch(n, name, zone, f, fo, now)
}

// startPlainFetch arms a direct A or AAAA fetch, bypassing the A6 chain
// walker. Used both by startFetch's non-A6 path and by the A6 walker's
// first-step-failure fallback to a plain AAAA fetch (spec.md §4.4.D).
func (a *ADB) startPlainFetch(n *Name, name, zone string, f Family, fo FetchOptions, now time.Time) {
	key := name + "|" + familyLabel(f)
	v, _, _ := a.fetchSF.Do(key, func() (interface{}, error) {
		return a.resolver.CreateFetch(name, f, fo, func(res FetchResult) {
			a.handleFetchResult(name, zone, f, res)
		}), nil
	})
	handle := v.(FetchHandle)

	id := newDiagID()
	if f == FamilyV4 {
		fh := a.pools.fetchesA.Get()
		fh.id, fh.name, fh.handle, fh.started = id, name, handle, now
		n.FetchV4 = fh
	} else {
		fh := a.pools.fetchesV6.Get()
		fh.id, fh.name, fh.handle, fh.started = id, name, handle, now
		n.FetchV6 = fh
	}
	debug.Infof("adb: fetch %s started name=%s family=%s", id, name, familyLabel(f))
	a.recordFetchStarted(f)
}

func (a *ADB) recordFetchStarted(f Family) {
	a.stats.FetchesStarted.WithLabelValues(familyLabel(f)).Inc()
	a.stats.FetchesOutstanding.WithLabelValues(familyLabel(f)).Inc()
	a.fetchGroup.Add(1)
}

// handleFetchResult processes a plain A or AAAA fetch's completion
// (spec.md §4.4.D). A6 completions are handled separately by
// handleA6Result (a6.go).
func (a *ADB) handleFetchResult(name, zone string, f Family, res FetchResult) {
	now := time.Now()
	b := a.store.nameBucketFor(name)
	b.mu.Lock()
	defer b.mu.Unlock()

	n, _ := b.findNameLocked(a.pools, name, false)
	if n == nil {
		return
	}
	if f == FamilyV4 {
		if n.FetchV4 != nil {
			a.pools.fetchesA.Put(n.FetchV4)
			n.FetchV4 = nil
		}
	} else if n.FetchV6 != nil {
		a.pools.fetchesV6.Put(n.FetchV6)
		n.FetchV6 = nil
	}
	a.stats.FetchesOutstanding.WithLabelValues(familyLabel(f)).Dec()
	a.fetchGroup.Done()

	if n.Flags&NameDead != 0 {
		a.finalizeDeadNameLocked(b, n)
		return
	}

	switch res.Status {
	case LookupSuccess, LookupGlue, LookupHint:
		if err := a.importAddrs(n, f, res.Addrs, res.TTL, now); err == nil {
			a.wakeFindsLocked(n, f, EventMoreAddresses)
		} else {
			a.stats.FetchFailures.WithLabelValues("negative").Inc()
			a.wakeFindsLocked(n, f, EventNoMoreAddresses)
		}
	case LookupCNAME:
		a.importAlias(n, res.Target, res.TTL, now)
		a.wakeFindsLocked(n, f, EventMoreAddresses)
	case LookupDNAME:
		target := computeDNAMETarget(name, res.DNAMEOwner, res.Target)
		a.importAlias(n, target, res.TTL, now)
		a.wakeFindsLocked(n, f, EventMoreAddresses)
	case LookupNcacheNXDomain, LookupNcacheNXRRset, LookupAuthNXDomain, LookupAuthNXRRset:
		a.importNegative(n, f, res.Status, res.TTL, now)
		a.stats.FetchFailures.WithLabelValues("negative").Inc()
		if !n.fetchOutstanding(f) {
			a.wakeFindsLocked(n, f, EventNoMoreAddresses)
		}
	default:
		n.setExpiryFor(f, now.Add(a.config().GenericFailureBackoff))
		a.stats.FetchFailures.WithLabelValues("generic").Inc()
		a.wakeFindsLocked(n, f, EventNoMoreAddresses)
	}

	a.maybeReclaimNameLocked(b, n, now)
}

// wakeFindsLocked delivers evType to every Find attached to n that wants
// family f, detaching each before delivery so spec.md §8 property 4
// holds ("not on any Name's pending list at the moment of delivery").
func (a *ADB) wakeFindsLocked(n *Name, f Family, evType EventType) {
	for e := n.Finds.Front(); e != nil; {
		next := e.Next()
		find := e.Value.(*Find)
		if find.Options.wants(f) {
			n.Finds.Remove(e)
			find.nameElem = nil
			find.sendOnce(evType, f)
		}
		e = next
	}
}

// finalizeDeadNameLocked discards a fetch result that arrived for a Name
// already marked dead, finalizing its teardown once no fetch remains
// outstanding (spec.md §4.4.D).
func (a *ADB) finalizeDeadNameLocked(b *nameBucket, n *Name) {
	if n.fetchOutstanding(FamilyV4) || n.fetchOutstanding(FamilyV6) {
		return
	}
	b.unlinkNameLocked(a.pools, n)
	if b.shuttingDown && b.names.Len() == 0 {
		a.decInternalRef()
	}
	a.checkExit()
}

// maybeReclaimNameLocked unlinks n once it has no hooks, no fetches, no
// finds, and every expiry has passed (spec.md §3 Lifecycles).
func (a *ADB) maybeReclaimNameLocked(b *nameBucket, n *Name, now time.Time) {
	if n.isEmpty() && n.allExpired(now) {
		b.unlinkNameLocked(a.pools, n)
	}
}

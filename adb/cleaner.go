package adb

import (
	"time"

	"github.com/aisdns/adb/config"
)

// startCleaner registers the ADB's own periodic bucket sweep with the
// shared housekeeping registry (spec.md §4.7 / §2 item 7): a timer-driven
// task visiting one bucket per tick, expiring stale entries, and
// invalidating any cached diagnostic dump on wrap-around.
func (a *ADB) startCleaner(cfg *config.ADBConfig) {
	a.hkReg.Reg("adb.bucket-cleaner", a.cleanerTick, cfg.CleanInterval)
}

// cleanerTick visits the next bucket index (shared between the Name and
// Endpoint arrays, spec.md §4.1's "two parallel arrays"), expiring stale
// entries, then returns the configured tick interval to self-reschedule.
func (a *ADB) cleanerTick() time.Duration {
	cfg := a.config()
	idx, wrapped := a.nextCleanerBucket(cfg.NumBuckets)
	now := time.Now()

	a.sweepNameBucket(idx, now)
	a.sweepEndpointBucketPeriodic(idx, now)
	a.reportOccupancy(idx)

	if wrapped {
		a.invalidateDump()
	}
	return cfg.CleanInterval
}

// nextCleanerBucket advances the shared cursor and reports whether this
// tick wrapped back to bucket 0 (a full sweep cycle completed).
func (a *ADB) nextCleanerBucket(numBuckets int) (idx int, wrapped bool) {
	a.cleanerMu.Lock()
	defer a.cleanerMu.Unlock()
	idx = a.cleanerNext
	a.cleanerNext++
	if a.cleanerNext >= numBuckets {
		a.cleanerNext = 0
		a.cleanerWraps++
		wrapped = true
	}
	return idx, wrapped
}

// sweepNameBucket drops expired hooks and reclaims fully-expired, empty
// Names in bucket idx.
func (a *ADB) sweepNameBucket(idx int, now time.Time) {
	b := a.store.names[idx]
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.shuttingDown {
		return
	}
	for e := b.names.Front(); e != nil; {
		next := e.Next()
		n := e.Value.(*Name)
		a.checkExpireNameHooksLocked(n, now)
		a.maybeReclaimNameLocked(b, n, now)
		e = next
	}
}

// sweepEndpointBucketPeriodic frees zero-refcount Endpoints whose expiry
// (set by FreeAddrInfo) has passed.
func (a *ADB) sweepEndpointBucketPeriodic(idx int, now time.Time) {
	eb := a.store.endpoints[idx]
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.shuttingDown {
		return
	}
	for e := eb.endpoints.Front(); e != nil; {
		next := e.Next()
		ep := e.Value.(*Endpoint)
		if ep.Refcount() == 0 && !ep.Expiry.IsZero() && !ep.Expiry.After(now) {
			eb.unlinkEndpointLocked(a.pools, ep)
		}
		e = next
	}
}

func (a *ADB) reportOccupancy(idx int) {
	nb := a.store.names[idx]
	eb := a.store.endpoints[idx]
	nb.mu.Lock()
	nlen := nb.names.Len()
	nb.mu.Unlock()
	eb.mu.Lock()
	elen := eb.endpoints.Len()
	eb.mu.Unlock()
	a.stats.BucketOccupancy.WithLabelValues("name").Set(float64(nlen))
	a.stats.BucketOccupancy.WithLabelValues("endpoint").Set(float64(elen))
	a.stats.NamesLive.Set(float64(a.pools.namesLive()))
	a.stats.EndpointsLive.Set(float64(a.pools.endpointsLive()))
}

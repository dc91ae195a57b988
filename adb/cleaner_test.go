package adb

import (
	"net"
	"testing"
	"time"
)

func TestNextCleanerBucketWraps(t *testing.T) {
	a := newTestADB(emptyLookup{}, asyncResolver{})
	numBuckets := 7

	var sawWrap bool
	for i := 0; i < numBuckets; i++ {
		idx, wrapped := a.nextCleanerBucket(numBuckets)
		if idx != i {
			t.Fatalf("expected bucket index %d, got %d", i, idx)
		}
		if wrapped != (i == numBuckets-1) {
			t.Fatalf("unexpected wrapped=%v at index %d", wrapped, i)
		}
		if wrapped {
			sawWrap = true
		}
	}
	if !sawWrap {
		t.Fatalf("expected a wraparound after a full sweep")
	}

	idx, _ := a.nextCleanerBucket(numBuckets)
	if idx != 0 {
		t.Fatalf("expected the cursor to restart at 0 after wrapping, got %d", idx)
	}
}

func TestSweepNameBucketReclaimsFullyExpiredEmptyName(t *testing.T) {
	a := newTestADB(emptyLookup{}, asyncResolver{})
	now := time.Now()
	name := "reclaim.example."

	b := a.store.nameBucketFor(name)
	b.mu.Lock()
	n, _ := b.findNameLocked(a.pools, name, true)
	n.ExpireV4 = now.Add(-time.Second) // already expired, no hooks ever attached
	idx := b.bucket
	b.mu.Unlock()

	a.sweepNameBucket(idx, now)

	b.mu.Lock()
	_, found := b.findNameLocked(a.pools, name, false)
	b.mu.Unlock()
	if found {
		t.Fatalf("expected the expired, empty Name to be reclaimed")
	}
}

func TestSweepNameBucketKeepsUnexpiredName(t *testing.T) {
	a := newTestADB(emptyLookup{}, asyncResolver{})
	now := time.Now()
	name := "keep.example."

	b := a.store.nameBucketFor(name)
	b.mu.Lock()
	n, _ := b.findNameLocked(a.pools, name, true)
	n.ExpireV4 = now.Add(time.Hour)
	idx := b.bucket
	b.mu.Unlock()

	a.sweepNameBucket(idx, now)

	b.mu.Lock()
	_, found := b.findNameLocked(a.pools, name, false)
	b.mu.Unlock()
	if !found {
		t.Fatalf("expected the still-live Name to survive the sweep")
	}
}

func TestSweepEndpointBucketPeriodicFreesExpiredZeroRef(t *testing.T) {
	a := newTestADB(emptyLookup{}, asyncResolver{})
	now := time.Now()
	addr := net.ParseIP("198.51.100.50").To4()

	eb := a.store.endpointBucketFor(addr)
	eb.mu.Lock()
	ep, _ := eb.findEndpointLocked(a.pools, addr, true)
	ep.Expiry = now.Add(-time.Second) // past grace window, refcount already 0
	idx := eb.bucket
	eb.mu.Unlock()

	a.sweepEndpointBucketPeriodic(idx, now)

	eb.mu.Lock()
	_, found := eb.findEndpointLocked(a.pools, addr, false)
	eb.mu.Unlock()
	if found {
		t.Fatalf("expected the expired zero-refcount Endpoint to be freed")
	}
}

func TestSweepEndpointBucketPeriodicKeepsReferencedEndpoint(t *testing.T) {
	a := newTestADB(emptyLookup{}, asyncResolver{})
	now := time.Now()
	addr := net.ParseIP("198.51.100.51").To4()

	eb := a.store.endpointBucketFor(addr)
	eb.mu.Lock()
	ep, _ := eb.findEndpointLocked(a.pools, addr, true)
	ep.incRef()
	ep.Expiry = now.Add(-time.Second)
	idx := eb.bucket
	eb.mu.Unlock()

	a.sweepEndpointBucketPeriodic(idx, now)

	eb.mu.Lock()
	_, found := eb.findEndpointLocked(a.pools, addr, false)
	eb.mu.Unlock()
	if !found {
		t.Fatalf("expected the still-referenced Endpoint to survive the sweep")
	}
}

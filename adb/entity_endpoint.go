package adb

import (
	"container/list"
	"math/rand"
	"net"
	"sync"
	"time"
)

// EndpointFlags are the per-Endpoint flag bits (spec.md §3 Data Model).
type EndpointFlags uint32

const (
	// EndpointEDNSOK marks an endpoint known to support EDNS.
	EndpointEDNSOK EndpointFlags = 1 << iota
	// EndpointEDNSTried marks an endpoint that has been probed for EDNS
	// support at least once, whether or not it turned out to support it.
	EndpointEDNSTried
)

// ZoneInfo is a per-(endpoint, zone) lameness annotation (spec.md §3,
// §4.3). New entries are prepended; entries whose LameUntil has passed
// are purged in place the next time the list is scanned.
type ZoneInfo struct {
	Zone      string
	LameUntil time.Time
}

// Endpoint is an IP socket address plus liveness metrics — the object a
// caller ultimately wants (GLOSSARY). It is reference-counted: every
// NameHook that points at it, and every AddrInfo a caller holds, counts
// once (spec.md §8 property 1).
type Endpoint struct {
	mu sync.Mutex // guards everything below except the bucket-linkage elem, owned by the bucket lock

	Addr net.IP // 4-byte (v4) or 16-byte (v6) form

	refcount int32
	Flags    EndpointFlags
	EDNSLevel int

	// Goodness is a signed, saturating score the caller adjusts via
	// AdjustGoodness; it carries no ADB-internal policy meaning (spec.md
	// §1 Non-goals: "the ADB reports metrics, the caller chooses").
	Goodness int32

	// SRTT is the smoothed round-trip time in microseconds, initialized
	// to a small random value (spec.md §3: "1..32", to prevent
	// deterministic tiebreaking between otherwise-identical endpoints).
	SRTT uint32

	// Expiry is this endpoint's own TTL, set only by FreeAddrInfo when
	// the last caller reference drops (spec.md §6) or left zero while
	// any NameHook references it.
	Expiry time.Time

	Zones []*ZoneInfo

	bucket int
	elem   *list.Element // this endpoint's position in its bucket's list
}

func newEndpoint(addr net.IP) *Endpoint {
	e := &Endpoint{}
	e.init(addr)
	return e
}

// init (re)establishes an Endpoint's identity after it comes off the
// pool's free-list. SRTT is reseeded here, not just at construction, so a
// recycled Endpoint still starts with the spec's tiebreak-avoidance jitter
// (spec.md §3: "initialized to a small random value").
func (e *Endpoint) init(addr net.IP) {
	e.Addr = addr
	e.SRTT = uint32(1 + rand.Intn(32))
}

// reset clears an Endpoint for return to its memsys pool.
func (e *Endpoint) reset() {
	*e = Endpoint{}
}

// Refcount returns the current reference count (tests only need this
// under the bucket lock; exported for spec.md §8 property 1 assertions).
func (e *Endpoint) Refcount() int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.refcount
}

// incRef bumps the reference count under the Endpoint's own mutex, so the
// caller need not hold the Endpoint bucket lock; called once per NameHook
// created and once per AddrInfo issued (spec.md §3 invariants).
func (e *Endpoint) incRef() {
	e.mu.Lock()
	e.refcount++
	e.mu.Unlock()
}

// decRef drops the reference count and reports the new value. Callers
// holding the Endpoint bucket lock use a refcount of 0 as the trigger to
// unlink and free the entity (spec.md §3: "Refcount = 0 AND (bucket
// shutting down OR expiry set & passed)").
func (e *Endpoint) decRef() int32 {
	e.mu.Lock()
	e.refcount--
	n := e.refcount
	e.mu.Unlock()
	return n
}

// bad-for-zone predicate (spec.md §4.3): purges expired ZoneInfo entries
// in place while scanning, then reports whether the endpoint is lame for
// zone at now.
func (e *Endpoint) badForZone(zone string, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	lame := false
	kept := e.Zones[:0]
	for _, zi := range e.Zones {
		if !zi.LameUntil.After(now) {
			continue // stale, purge
		}
		kept = append(kept, zi)
		if zi.Zone == zone {
			lame = true
		}
	}
	e.Zones = kept
	return lame
}

func (e *Endpoint) markLame(zone string, until time.Time) {
	e.mu.Lock()
	e.Zones = append([]*ZoneInfo{{Zone: zone, LameUntil: until}}, e.Zones...)
	e.mu.Unlock()
}

func (e *Endpoint) adjustGoodness(delta int32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := int64(e.Goodness) + int64(delta)
	switch {
	case next > int64(int32(1)<<31-1):
		e.Goodness = 1<<31 - 1
	case next < int64(-(1 << 31)):
		e.Goodness = -(1 << 31)
	default:
		e.Goodness = int32(next)
	}
}

// adjustSRTT applies the EWMA update from spec.md §6:
// new = srtt*factor/10 + rtt*(10-factor)/10, factor in [0,10].
func (e *Endpoint) adjustSRTT(rtt uint32, factor int) {
	if factor < 0 {
		factor = 0
	}
	if factor > 10 {
		factor = 10
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	old := uint64(e.SRTT)
	next := old*uint64(factor)/10 + uint64(rtt)*uint64(10-factor)/10
	e.SRTT = uint32(next)
}

func (e *Endpoint) changeFlags(bits, mask EndpointFlags) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Flags = (e.Flags &^ mask) | (bits & mask)
}

// Package adb implements the Address Database: an in-memory, concurrent
// cache mapping fully-qualified domain names to IP endpoints enriched with
// liveness metrics, sitting between a recursive resolver's "I need host X"
// question and the network queries that would answer it.
package adb

import (
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/aisdns/adb/3rdparty/atomic"
	"github.com/aisdns/adb/3rdparty/glog"
	"github.com/aisdns/adb/cmn"
	"github.com/aisdns/adb/config"
	"github.com/aisdns/adb/hk"
	"github.com/aisdns/adb/internal/debug"
	"github.com/aisdns/adb/stats"
)

// whenShutdownEntry is one queued request to be notified once the ADB is
// fully quiesced (spec.md §6: "whenShutdown(task, event)").
type whenShutdownEntry struct {
	task  Task
	event EventType
}

// ADB is the top-level handle (spec.md §6 external interfaces). Its own
// "top lock" (spec.md §4.1) guards shutdown state and the whenShutdown
// queue; bucket state lives one level below it in the lock order.
type ADB struct {
	cfgOwner *config.Owner
	lookup   LocalLookup
	resolver Resolver
	timers   TimerMgr
	stats    *stats.ADBStats
	hkReg    *hk.Registry

	store *store
	pools *pools

	fetchSF    singleflight.Group // dedupes concurrent CreateFetch calls for the same (name, family)
	fetchGroup *cmn.TimeoutGroup  // tracks in-flight resolver fetches for ShutdownAndWait
	a6Sema     *cmn.DynSemaphore  // bounds total concurrent in-flight A6 hop fetches

	topMu        sync.Mutex
	shuttingDown bool
	whenShutdown []whenShutdownEntry

	external atomic.Int32
	// internalMu is disjoint from topMu (spec.md §5: "The internal refcount
	// has its own mutex ... to avoid priority inversion with the top lock
	// during checkExit").
	internalMu sync.Mutex
	internal   int32
	findCount  atomic.Int32

	cleanerMu   sync.Mutex
	cleanerNext int
	cleanerWraps int64

	dumpMu        sync.Mutex
	dumpValid     bool
	cachedSummary string

	closeOnce sync.Once
	closed    chan struct{}
}

// Create wires an ADB over the given capabilities (spec.md §6:
// "create(mctx, view, timerMgr, taskMgr) → ADB"). reg may be nil, in which
// case metrics are discarded (stats.Noop).
func Create(cfg *config.ADBConfig, lookup LocalLookup, resolver Resolver, timers TimerMgr, reg prometheus.Registerer) *ADB {
	if cfg == nil {
		cfg = config.Default()
	}
	cfg.Validate()
	owner := config.NewOwner(cfg)

	var st *stats.ADBStats
	if reg != nil {
		st = stats.New(reg)
	} else {
		st = stats.Noop()
	}

	a := &ADB{
		cfgOwner:   owner,
		lookup:     lookup,
		resolver:   resolver,
		timers:     timers,
		stats:      st,
		hkReg:      hk.NewRegistry(timerMgrAdapter{timers}),
		fetchGroup: cmn.NewTimeoutGroup(),
		a6Sema:     cmn.NewDynSemaphore(cfg.A6MaxConcurrent),
		closed:     make(chan struct{}),
	}
	a.pools = newPools(cfg)
	a.store = newStore(cfg.NumBuckets, a.pools)
	// internal refcount starts at one per live bucket plus one per
	// outstanding cleanup operation (spec.md §4.6); no cleanup operation is
	// outstanding yet, so it starts at NumBuckets*2 (one per Name bucket,
	// one per Endpoint bucket).
	a.internal = int32(cfg.NumBuckets * 2)
	a.startCleaner(owner.Get())
	glog.Infof("adb: created with %d buckets", cfg.NumBuckets)
	return a
}

func (a *ADB) config() *config.ADBConfig { return a.cfgOwner.Get() }

// timerMgrAdapter lets the caller-supplied TimerMgr capability (spec.md
// §6: "create(mctx, view, timerMgr, taskMgr) → ADB") drive hk.Registry's
// scheduling, rather than the registry always owning its own real-time
// timers. A nil TimerMgr (tests, or a caller with no timer capability to
// offer) falls back to time.AfterFunc, the same real-clock timers hk
// uses by default.
type timerMgrAdapter struct{ mgr TimerMgr }

func (t timerMgrAdapter) AfterFunc(d time.Duration, f func()) hk.Timer {
	if t.mgr == nil {
		return time.AfterFunc(d, f)
	}
	return t.mgr.AfterFunc(d, f)
}

// Attach bumps the external refcount (spec.md §6).
func (a *ADB) Attach() { a.external.Inc() }

// Detach drops the external refcount and requests the global exit check.
func (a *ADB) Detach() {
	a.external.Dec()
	a.checkExit()
}

// WhenShutdown queues an event to fire once the ADB is fully quiesced
// (spec.md §6). If the ADB is already quiesced, the event fires inline.
func (a *ADB) WhenShutdown(task Task, event EventType) {
	a.topMu.Lock()
	if !a.shuttingDown {
		a.whenShutdown = append(a.whenShutdown, whenShutdownEntry{task, event})
		a.topMu.Unlock()
		return
	}
	a.topMu.Unlock()
	if a.quiesced() {
		task.Send(Event{Type: event})
		return
	}
	a.topMu.Lock()
	a.whenShutdown = append(a.whenShutdown, whenShutdownEntry{task, event})
	a.topMu.Unlock()
}

// Insert is the test-insertion operation (spec.md §6): install a single
// v4 (or v6) entry with no fetch involved, for seeding caches in tests.
func (a *ADB) Insert(name string, addr net.IP, ttl time.Duration, now time.Time) error {
	family := FamilyV4
	if len(addr) == net.IPv6len && addr.To4() == nil {
		family = FamilyV6
	}
	b := a.store.nameBucketFor(name)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.shuttingDown {
		return ErrShuttingDown
	}
	n, _ := b.findNameLocked(a.pools, name, true)
	return a.importAddrs(n, family, []RecordAddr{{Family: family, IP: addr}}, ttl, now)
}

// FindAddrInfo returns (creating if necessary) an AddrInfo pinning the
// Endpoint at addr (spec.md §6).
func (a *ADB) FindAddrInfo(addr net.IP) *AddrInfo {
	eb := a.store.endpointBucketFor(addr)
	eb.mu.Lock()
	defer eb.mu.Unlock()
	ep, _ := eb.findEndpointLocked(a.pools, addr, true)
	ep.incRef()
	ai := a.pools.addrInfos.Get()
	fillAddrInfo(ai, ep, false)
	return ai
}

// FreeAddrInfo releases ai's reference on its Endpoint; if this was the
// last reference, the endpoint's expiry is set to now+1800s rather than
// freeing it immediately (spec.md §6), giving it a grace window to be
// reused by a near-future lookup.
func (a *ADB) FreeAddrInfo(ai *AddrInfo, now time.Time) {
	ep := ai.Entry
	a.pools.addrInfos.Put(ai)
	eb := a.store.endpointBucketFor(ep.Addr)
	eb.mu.Lock()
	n := ep.decRef()
	if n == 0 {
		if eb.shuttingDown {
			eb.unlinkEndpointLocked(a.pools, ep)
			empty := eb.endpoints.Len() == 0
			eb.mu.Unlock()
			if empty {
				a.decInternalRef()
			}
			return
		}
		ep.mu.Lock()
		ep.Expiry = now.Add(1800 * time.Second)
		ep.mu.Unlock()
	}
	eb.mu.Unlock()
}

// MarkLame marks ai's Endpoint lame for zone until (spec.md §4.3, §6).
func (a *ADB) MarkLame(ai *AddrInfo, zone string, until time.Time) {
	ai.Entry.markLame(zone, until)
}

// AdjustGoodness applies a saturating signed adjustment (spec.md §6).
func (a *ADB) AdjustGoodness(ai *AddrInfo, delta int32) {
	ai.Entry.adjustGoodness(delta)
}

// AdjustSrtt applies the EWMA smoothing update (spec.md §6).
func (a *ADB) AdjustSrtt(ai *AddrInfo, rtt uint32, factor int) {
	ai.Entry.adjustSRTT(rtt, factor)
}

// ChangeFlags applies (flags &^ mask) | (bits & mask) to ai's Endpoint
// (spec.md §6).
func (a *ADB) ChangeFlags(ai *AddrInfo, bits, mask EndpointFlags) {
	ai.Entry.changeFlags(bits, mask)
}

// DeleteName kills name and its dependents outright (spec.md §6).
func (a *ADB) DeleteName(name string, now time.Time) {
	b := a.store.nameBucketFor(name)
	b.mu.Lock()
	n, found := b.findNameLocked(a.pools, name, false)
	if !found {
		b.mu.Unlock()
		return
	}
	a.killNameLocked(b, n, EventShutdown, now)
	b.mu.Unlock()
	debug.Infof("adb: deleted name %s", name)
}

func (a *ADB) quiesced() bool {
	a.internalMu.Lock()
	internalZero := a.internal == 0
	a.internalMu.Unlock()
	return internalZero && a.findCount.Load() == 0
}

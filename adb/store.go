package adb

import (
	"container/list"
	"net"
	"strings"
	"sync"

	"github.com/aisdns/adb/internal/debug"
)

// Lock order (spec.md §4.1, no cycles): ADB top lock -> any Name bucket ->
// any Endpoint bucket -> an individual Find's lock -> the pool mutex /
// internal-refcount mutex. Taking locks out of order is forbidden except
// via violateLockingHierarchy, which performs try-lock-else-release-and-
// reacquire; any state observed under the dropped lock before the drop is
// invalidated and must be re-checked after reacquiring it.

// nameBucket holds one hash slot's worth of live Names behind its own
// mutex (spec.md §4.1). internalRef counts live Names in this bucket plus
// one for "bucket active"; it reaches zero only once the bucket is
// shutting down and empty, at which point the bucket releases one ADB-
// internal refcount (spec.md §4.6).
type nameBucket struct {
	mu           sync.Mutex
	bucket       int
	names        *list.List // *Name
	shuttingDown bool
	internalRef  int32
}

// endpointBucket is the Endpoint-side analog of nameBucket.
type endpointBucket struct {
	mu           sync.Mutex
	bucket       int
	endpoints    *list.List // *Endpoint
	shuttingDown bool
	internalRef  int32
}

func newNameBucket() *nameBucket {
	return &nameBucket{names: list.New(), internalRef: 1}
}

func newEndpointBucket() *endpointBucket {
	return &endpointBucket{endpoints: list.New(), internalRef: 1}
}

// store is the two parallel bucket arrays (spec.md §4.1 / §2 item 1).
type store struct {
	numBuckets int
	names      []*nameBucket
	endpoints  []*endpointBucket
	pools      *pools
}

func newStore(numBuckets int, p *pools) *store {
	s := &store{
		numBuckets: numBuckets,
		names:      make([]*nameBucket, numBuckets),
		endpoints:  make([]*endpointBucket, numBuckets),
		pools:      p,
	}
	for i := range s.names {
		s.names[i] = newNameBucket()
		s.names[i].bucket = i
		s.endpoints[i] = newEndpointBucket()
		s.endpoints[i].bucket = i
	}
	return s
}

func (s *store) nameBucketFor(fqdn string) *nameBucket {
	return s.names[hashName(fqdn, s.numBuckets)]
}

func (s *store) endpointBucketFor(addr net.IP) *endpointBucket {
	return s.endpoints[hashAddr(addr, s.numBuckets)]
}

// findNameLocked looks up fqdn (case-folded, matching hashName) in b
// (already locked), optionally creating and linking it (SPEC_FULL §C item
// 1: create-if-absent is an explicit boolean rather than a second code
// path). Returns (name, created).
func (b *nameBucket) findNameLocked(p *pools, fqdn string, create bool) (*Name, bool) {
	folded := strings.ToLower(fqdn)
	for e := b.names.Front(); e != nil; e = e.Next() {
		n := e.Value.(*Name)
		if n.Fqdn == folded {
			return n, false
		}
	}
	if !create {
		return nil, false
	}
	n := p.names.Get()
	n.init(folded)
	n.elem = b.names.PushBack(n)
	b.internalRef++
	return n, true
}

// unlinkNameLocked removes n from b and returns it to the pool. Caller
// must ensure n.isEmpty() (debug build asserts this — spec.md §7:
// "Freeing an entity that is still linked" is a fatal invariant
// violation).
func (b *nameBucket) unlinkNameLocked(p *pools, n *Name) {
	debug.Assert(n.isEmpty(), "freeing a Name that is still linked")
	if n.elem != nil {
		b.names.Remove(n.elem)
		n.elem = nil
		b.internalRef--
	}
	p.names.Put(n)
}

// findEndpointLocked looks up addr in b (already locked), optionally
// creating and linking it.
func (b *endpointBucket) findEndpointLocked(p *pools, addr net.IP, create bool) (*Endpoint, bool) {
	for e := b.endpoints.Front(); e != nil; e = e.Next() {
		ep := e.Value.(*Endpoint)
		if ep.Addr.Equal(addr) {
			return ep, false
		}
	}
	if !create {
		return nil, false
	}
	ep := p.endpoints.Get()
	ep.init(addr)
	ep.elem = b.endpoints.PushBack(ep)
	b.internalRef++
	return ep, true
}

func (b *endpointBucket) unlinkEndpointLocked(p *pools, ep *Endpoint) {
	debug.Assert(ep.Refcount() == 0, "freeing an Endpoint with nonzero refcount")
	if ep.elem != nil {
		b.endpoints.Remove(ep.elem)
		ep.elem = nil
		b.internalRef--
	}
	p.endpoints.Put(ep)
}

// violateLockingHierarchy implements spec.md §4.1's documented escape
// hatch: try-lock next while already holding held; on failure, drop held,
// lock next, then re-lock held. Any fact the caller established about the
// state guarded by held before calling this is invalidated and must be
// re-verified once both locks are held again.
func violateLockingHierarchy(held, next *sync.Mutex) {
	debug.AssertMutexLocked(held)
	if next.TryLock() {
		return
	}
	held.Unlock()
	next.Lock()
	held.Lock()
}

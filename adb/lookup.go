package adb

import (
	"time"

	"github.com/aisdns/adb/internal/debug"
)

// familiesRequested returns the address families opts asks for, in a
// stable order.
func familiesRequested(opts FindOptions) []Family {
	var out []Family
	if opts.wants(FamilyV4) {
		out = append(out, FamilyV4)
	}
	if opts.wants(FamilyV6) {
		out = append(out, FamilyV6)
	}
	return out
}

// CreateFind is the lookup engine's entry point (spec.md §4.2).
// optionalTarget, if non-nil, receives the alias target on an ALIAS
// result.
func (a *ADB) CreateFind(task Task, arg interface{}, name, zone string, options FindOptions, now time.Time, optionalTarget *string) (*Find, CreateFindResult, error) {
	if !options.wants(FamilyV4) && !options.wants(FamilyV6) {
		return nil, ResultShuttingDown, ErrInvalidOption
	}

	b := a.store.nameBucketFor(name)
	b.mu.Lock()
	if b.shuttingDown {
		b.mu.Unlock()
		return nil, ResultShuttingDown, ErrShuttingDown
	}

	n, _ := b.findNameLocked(a.pools, name, true)
	a.checkExpireNameHooksLocked(n, now)

	if n.isAlias(now) {
		a.stats.AliasHits.Inc()
		if optionalTarget != nil {
			*optionalTarget = n.Target
		}
		b.mu.Unlock()
		return nil, ResultAlias, nil
	}

	requested := familiesRequested(options)
	needsFetch := make(map[Family]bool, 2)
	for _, f := range requested {
		if n.hooksFor(f).Len() != 0 || n.fetchOutstanding(f) {
			a.stats.CacheHits.Inc()
			continue
		}
		if !n.expiryFor(f).IsZero() && n.expiryFor(f).After(now) {
			a.stats.NegativeCacheHits.Inc()
			continue // negative-cache / pending expiry still in effect
		}
		result, err := a.lookup.Lookup(name, f, now, options&HintOK != 0)
		if err != nil {
			a.stats.CacheMisses.Inc()
			needsFetch[f] = true
			continue
		}
		switch result.Status {
		case LookupSuccess, LookupGlue, LookupHint:
			a.importAddrs(n, f, result.Addrs, result.TTL, now)
		case LookupCNAME:
			a.importAlias(n, result.Target, result.TTL, now)
		case LookupDNAME:
			target := computeDNAMETarget(name, result.DNAMEOwner, result.Target)
			a.importAlias(n, target, result.TTL, now)
		case LookupNcacheNXDomain, LookupNcacheNXRRset, LookupAuthNXDomain, LookupAuthNXRRset:
			a.importNegative(n, f, result.Status, result.TTL, now)
		default:
			a.stats.CacheMisses.Inc()
			needsFetch[f] = true
		}
		if n.isAlias(now) {
			break
		}
	}

	if n.isAlias(now) {
		a.stats.AliasHits.Inc()
		if optionalTarget != nil {
			*optionalTarget = n.Target
		}
		b.mu.Unlock()
		return nil, ResultAlias, nil
	}

	if len(needsFetch) > 0 && !a.fetchesSuppressed(n, requested, options) {
		for f := range needsFetch {
			if !n.fetchOutstanding(f) {
				a.startFetch(n, name, zone, f, options, now)
			}
		}
	}

	find := a.pools.finds.Get()
	find.ID = newDiagID()
	find.task = task
	find.arg = arg
	find.Name = name
	find.Zone = zone
	find.Options = options
	a.copyNamehookListsLocked(n, find, zone, options, now)

	missing := false
	for _, f := range requested {
		if n.fetchOutstanding(f) {
			missing = true
		}
	}
	arm := options&WantEvent != 0 && missing &&
		(options&EmptyEvent != 0 || len(find.Results) == 0) &&
		!n.isAlias(now)
	if arm {
		find.armEvent()
		find.nameElem = n.Finds.PushBack(find)
	}
	a.findCount.Inc()

	b.mu.Unlock()
	return find, ResultSuccess, nil
}

// fetchesSuppressed reports whether AVOID_FETCHES applies: set AND at
// least one requested family already has usable data (spec.md §4.2 step
// 7).
func (a *ADB) fetchesSuppressed(n *Name, requested []Family, options FindOptions) bool {
	if options&AvoidFetches == 0 {
		return false
	}
	for _, f := range requested {
		if n.hasUsable(f) {
			return true
		}
	}
	return false
}

// checkExpireNameHooksLocked drops hooks for any family whose expiry has
// passed and resets that family's partial-result flag (spec.md §4.2 step
// 4). n's bucket must already be locked.
func (a *ADB) checkExpireNameHooksLocked(n *Name, now time.Time) {
	for _, f := range []Family{FamilyV4, FamilyV6} {
		exp := n.expiryFor(f)
		if exp.IsZero() || exp.After(now) {
			continue
		}
		a.dropHooksLocked(n, f, now)
		n.PartialResult &^= addressMaskFor(f)
	}
}

// dropHooksLocked releases every hook for family f on n, decrementing
// each Endpoint's refcount and freeing endpoints that reach zero with no
// remaining reason to persist.
func (a *ADB) dropHooksLocked(n *Name, f Family, now time.Time) {
	hooks := n.hooksFor(f)
	for e := hooks.Front(); e != nil; {
		next := e.Next()
		hook := e.Value.(*NameHook)
		hooks.Remove(e)
		a.releaseEndpointRef(hook.Entry, now)
		hook.reset()
		a.pools.hooks.Put(hook)
		e = next
	}
}

// releaseEndpointRef drops one reference on ep and frees it if the
// refcount reaches zero and it is no longer needed (spec.md §3: "Refcount
// = 0 AND (bucket shutting down OR expiry set & passed)").
func (a *ADB) releaseEndpointRef(ep *Endpoint, now time.Time) {
	eb := a.store.endpointBucketFor(ep.Addr)
	eb.mu.Lock()
	n := ep.decRef()
	if n == 0 {
		expired := !ep.Expiry.IsZero() && !ep.Expiry.After(now)
		if eb.shuttingDown || expired {
			eb.unlinkEndpointLocked(a.pools, ep)
		}
	}
	eb.mu.Unlock()
}

// copyNamehookListsLocked walks n's v4 and v6 hook lists, filters out
// bad-for-zone endpoints (unless WANT_LAME), and attaches an AddrInfo for
// each survivor to find (spec.md §4.2 step 8).
func (a *ADB) copyNamehookListsLocked(n *Name, find *Find, zone string, options FindOptions, now time.Time) {
	for _, f := range familiesRequested(options) {
		for e := n.hooksFor(f).Front(); e != nil; e = e.Next() {
			hook := e.Value.(*NameHook)
			ep := hook.Entry
			lame := ep.badForZone(zone, now)
			if lame && options&WantLame == 0 {
				continue
			}
			ep.incRef()
			ai := a.pools.addrInfos.Get()
			fillAddrInfo(ai, ep, lame)
			find.Results = append(find.Results, ai)
		}
	}
}

// DestroyFind releases find's Endpoint references and returns it to the
// pool (spec.md §4.2). Precondition: find's event, if any was promised,
// has already been delivered.
func (a *ADB) DestroyFind(find *Find, now time.Time) {
	debug.Assert(find.EventDelivered(), "destroyFind: event not yet delivered")
	for _, ai := range find.Results {
		a.releaseEndpointRef(ai.Entry, now)
		a.pools.addrInfos.Put(ai)
	}
	find.Results = nil
	a.pools.finds.Put(find)
	a.findCount.Dec()
	a.checkExit()
}

// CancelFind unlinks find from its Name and, if no completion event has
// been sent yet, delivers CANCELED so the caller still reaches
// DestroyFind (spec.md §4.2).
func (a *ADB) CancelFind(find *Find) {
	find.mu.Lock()
	name := find.Name
	if name == "" || find.nameElem == nil {
		alreadySent := find.eventSent || !find.eventWanted
		find.mu.Unlock()
		if !alreadySent {
			find.sendOnce(EventCanceled, 0)
		}
		return
	}

	b := a.store.nameBucketFor(name)
	// find.mu is held; taking the Name bucket now would go against the
	// lock order (Name bucket ranks above a Find's own lock), so this
	// escapes via the documented hierarchy violation helper.
	violateLockingHierarchy(&find.mu, &b.mu)
	if find.nameElem != nil {
		if n, _ := b.findNameLocked(a.pools, name, false); n != nil {
			n.Finds.Remove(find.nameElem)
			find.nameElem = nil
		}
	}
	alreadySent := find.eventSent || !find.eventWanted
	b.mu.Unlock()
	find.mu.Unlock()

	if !alreadySent {
		find.sendOnce(EventCanceled, 0)
	}
}

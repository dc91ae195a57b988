package adb

import (
	"net"
	"time"
)

// A6 support re-expresses the donor source's mutually recursive chain
// callbacks as an explicit state machine (spec.md §9 Design Notes): the
// per-name a6ChainContext is the state, its Chains counter is the fuel,
// and each hop is driven either by synchronously inspecting a fetch's
// rdataset (chainStepLocked) or by the asynchronous arrival of a missing
// hop's fetch result (handleA6Result). The chain context and its
// bookkeeping (FetchA6 list) live on the originally queried Name
// throughout the walk; only the resolver query name changes hop to hop,
// so every hop's lock-holding stays within that one Name's bucket lock —
// no cross-bucket transition is needed mid-chain.

// startA6Fetch arms one hop of an A6 chain walk. n and its bucket lock
// are already held by the caller; originalName identifies n for the
// eventual completion callback's relock, while queryName is the name
// actually sent to the resolver for this hop (the initial hop's name,
// or a later hop's "next name").
func (a *ADB) startA6Fetch(n *Name, originalName, queryName, zone string, fo FetchOptions, now time.Time, isFirstStep bool) {
	if n.chainCtx == nil {
		n.chainCtx = newA6ChainContext(a.config().A6MaxChain)
	}
	if !n.chainCtx.takeFuel() {
		// Fan-out bound exhausted (spec.md §4.4.C: "MUST terminate"); treat
		// as a generic failure for the family.
		n.setExpiryFor(FamilyV6, now.Add(a.config().GenericFailureBackoff))
		a.wakeFindsLocked(n, FamilyV6, EventNoMoreAddresses)
		return
	}
	if !a.a6Sema.TryAcquire() {
		// Too many A6 hops in flight across the ADB right now; back off
		// this hop rather than block while holding n's bucket lock.
		n.setExpiryFor(FamilyV6, now.Add(a.config().GenericFailureBackoff))
		a.wakeFindsLocked(n, FamilyV6, EventNoMoreAddresses)
		return
	}

	fh := a.pools.fetchesA6.Get()
	fh.id = newDiagID()
	fh.name = queryName
	fh.isFirstStep = isFirstStep
	fh.useHints = fo.Hint != ""

	key := queryName + "|a6"
	v, _, _ := a.fetchSF.Do(key, func() (interface{}, error) {
		return a.resolver.CreateFetch(queryName, FamilyV6, fo, func(res FetchResult) {
			a.handleA6Result(originalName, zone, fh, res)
		}), nil
	})
	fh.handle = v.(FetchHandle)

	n.FetchA6 = append(n.FetchA6, fh)
	a.recordFetchStarted(FamilyV6)
}

// handleA6Result processes one A6 hop's completion (spec.md §4.4.D).
func (a *ADB) handleA6Result(originalName, zone string, fh *fetchA6, res FetchResult) {
	now := time.Now()
	b := a.store.nameBucketFor(originalName)
	b.mu.Lock()
	defer b.mu.Unlock()

	n, _ := b.findNameLocked(a.pools, originalName, false)
	if n == nil {
		a.pools.fetchesA6.Put(fh)
		return
	}
	for i, f := range n.FetchA6 {
		if f == fh {
			n.FetchA6 = append(n.FetchA6[:i], n.FetchA6[i+1:]...)
			break
		}
	}
	wasFirstStep := fh.isFirstStep
	a.pools.fetchesA6.Put(fh)
	a.stats.FetchesOutstanding.WithLabelValues("v6").Dec()
	a.fetchGroup.Done()
	a.a6Sema.Release()

	if n.Flags&NameDead != 0 {
		a.finalizeDeadNameLocked(b, n)
		return
	}

	switch res.Status {
	case LookupSuccess, LookupGlue, LookupHint:
		a.chainStepLocked(n, originalName, zone, res, now)
	case LookupCNAME:
		a.importAlias(n, res.Target, res.TTL, now)
		n.Flags |= NameNeedsPoke
		a.wakeFindsLocked(n, FamilyV6, EventMoreAddresses)
	case LookupDNAME:
		target := computeDNAMETarget(originalName, res.DNAMEOwner, res.Target)
		a.importAlias(n, target, res.TTL, now)
		n.Flags |= NameNeedsPoke
		a.wakeFindsLocked(n, FamilyV6, EventMoreAddresses)
	case LookupNcacheNXDomain, LookupNcacheNXRRset, LookupAuthNXDomain, LookupAuthNXRRset:
		a.importNegative(n, FamilyV6, res.Status, res.TTL, now)
		if !n.fetchOutstanding(FamilyV6) {
			a.wakeFindsLocked(n, FamilyV6, EventNoMoreAddresses)
		}
	default:
		if wasFirstStep && !n.hasUsable(FamilyV6) {
			// A6 first-step failure with no v6 yet known: fall back to a
			// plain AAAA fetch on the same name (spec.md §4.4.D).
			fo := a.startOptions(n, FamilyV6, 0)
			a.startPlainFetch(n, originalName, zone, FamilyV6, fo, now)
		} else {
			n.setExpiryFor(FamilyV6, now.Add(a.config().GenericFailureBackoff))
			a.wakeFindsLocked(n, FamilyV6, EventNoMoreAddresses)
		}
	}

	a.maybeReclaimNameLocked(b, n, now)
}

// chainStepLocked iterates the A6 records in res, applying each record's
// contributed bits to n's chain context; a completed chain is imported as
// a plain AAAA address, an incomplete one issues the next hop's fetch
// (spec.md §4.4.C).
func (a *ADB) chainStepLocked(n *Name, originalName, zone string, res FetchResult, now time.Time) {
	for _, rec := range res.Addrs {
		if !rec.IsA6 {
			continue
		}
		ctx := n.chainCtx
		if ctx == nil {
			ctx = newA6ChainContext(a.config().A6MaxChain)
			n.chainCtx = ctx
		}
		var partial [16]byte
		copy(partial[:], rec.IP.To16())
		ctx.applyBits(partial, rec.PrefixLen)
		ctx.Expiry = minExpiry(ctx.Expiry, now.Add(a.floorTTL(res.TTL)))

		if ctx.complete() {
			addr := net.IP(append([]byte(nil), ctx.Addr[:]...))
			ttl := ctx.Expiry.Sub(now)
			a.importAddrs(n, FamilyV6, []RecordAddr{{Family: FamilyV6, IP: addr}}, ttl, now)
			n.chainCtx = nil
			a.wakeFindsLocked(n, FamilyV6, EventMoreAddresses)
			continue
		}
		if rec.NextName != "" {
			fo := a.startOptions(n, FamilyV6, 0)
			fo.Hint = zone
			a.startA6Fetch(n, originalName, rec.NextName, zone, fo, now, false)
		}
	}
}

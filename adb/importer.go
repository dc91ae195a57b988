package adb

import (
	"net"
	"time"
)

// minExpiry implements spec.md §3's "Expiry timestamps are monotone-only-
// decreasing": the new value is the minimum of the existing and incoming
// expiry, except that an unset (zero) existing expiry is not a candidate
// minimum — it means "nothing imported for this family yet".
func minExpiry(current, candidate time.Time) time.Time {
	if current.IsZero() || candidate.Before(current) {
		return candidate
	}
	return current
}

// floorTTL applies the configured minimum TTL floor (spec.md §3: "clamped
// to a floor of 10s").
func (a *ADB) floorTTL(ttl time.Duration) time.Duration {
	floor := a.config().MinTTL
	if ttl < floor {
		return floor
	}
	return ttl
}

// importAddrs installs addrs (all of the same family) under n, which must
// already be locked via its bucket (spec.md §4.4.B). Skips IPv4-mapped and
// IPv4-compatible IPv6 forms per spec. Every address of the right family
// installs (memsys pools never fail to allocate in this implementation);
// PartialResult is set for the family, and ErrNotFound returned, only when
// no address installed at all, and is cleared otherwise.
func (a *ADB) importAddrs(n *Name, family Family, addrs []RecordAddr, ttl time.Duration, now time.Time) error {
	installed := 0
	for _, rec := range addrs {
		ip := rec.IP
		if family == FamilyV6 {
			if ip.To4() != nil {
				continue // IPv4-mapped form, reject per spec.md §4.4.B
			}
			if len(ip) == net.IPv6len {
				compat := true
				for _, b := range ip[:12] {
					if b != 0 {
						compat = false
						break
					}
				}
				// ::a.b.c.d is IPv4-compatible; :: and ::1 are not.
				if compat && (ip[12]|ip[13]|ip[14] != 0 || ip[15] > 1) {
					continue // IPv4-compatible form, reject per spec.md §4.4.B
				}
			}
		} else if ip.To4() == nil {
			continue
		}
		hook := a.pools.hooks.Get()
		eb := a.store.endpointBucketFor(ip)
		eb.mu.Lock()
		ep, _ := eb.findEndpointLocked(a.pools, ip, true)
		ep.incRef()
		eb.mu.Unlock()

		hook.Entry = ep
		hook.elem = n.hooksFor(family).PushBack(hook)
		installed++
	}
	if installed == 0 {
		n.PartialResult |= addressMaskFor(family)
		return ErrNotFound
	}
	n.PartialResult &^= addressMaskFor(family)
	floored := a.floorTTL(ttl)
	n.setExpiryFor(family, minExpiry(n.expiryFor(family), now.Add(floored)))
	return nil
}

func addressMaskFor(f Family) FindOptions {
	if f == FamilyV6 {
		return INET6
	}
	return INET
}

// importAlias records an alias target (CNAME or DNAME, spec.md §4.3) on n.
func (a *ADB) importAlias(n *Name, target string, ttl time.Duration, now time.Time) {
	n.Target = target
	n.ExpireTarget = now.Add(a.floorTTL(ttl))
}

// computeDNAMETarget splits queried below owner and concatenates with
// target (spec.md §4.3: "the queried name is known to be a subdomain of
// the record's owner; split the name into the portion below the owner and
// concatenate with the DNAME's target").
func computeDNAMETarget(queried, owner, target string) string {
	if len(queried) <= len(owner) {
		return target
	}
	prefix := queried[:len(queried)-len(owner)]
	return prefix + target
}

// importNegative records a negative-cache expiry for family on n (spec.md
// §4.2 step 6, §4.4.D): from the record's TTL (floor 10s), or the
// configured authoritative-NX TTL when the result carries no usable TTL.
func (a *ADB) importNegative(n *Name, family Family, status LookupStatus, ttl time.Duration, now time.Time) {
	var floored time.Duration
	if status == LookupAuthNXDomain || status == LookupAuthNXRRset {
		if ttl <= 0 {
			floored = a.config().AuthNXTTL
		} else {
			floored = a.floorTTL(ttl)
		}
	} else {
		floored = a.floorTTL(ttl)
	}
	n.setExpiryFor(family, now.Add(floored))
}

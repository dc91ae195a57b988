package adb

import (
	"container/list"
	"time"
)

// NameFlags are the per-Name flag bits (spec.md §3 Data Model: "flags
// (needs-poke, is-dead)").
type NameFlags uint32

const (
	// NameNeedsPoke marks a Name whose Finds should be woken even though
	// no family's expiry changed — set when an A6 alias/poke event fires
	// (spec.md §4.4.D).
	NameNeedsPoke NameFlags = 1 << iota
	// NameDead marks a Name with no hooks and no finds that persists only
	// until its outstanding fetches complete or are cancelled (spec.md §3
	// invariants).
	NameDead
)

// Name is a fully-qualified domain with its accumulated address-cache
// state (GLOSSARY). All mutation of a Name's fields happens under its
// owning bucket's lock (spec.md §5: "linearizable under that Name's
// bucket lock").
type Name struct {
	Fqdn string

	ExpireV4     time.Time
	ExpireV6     time.Time
	ExpireTarget time.Time // alias target expiry

	PartialResult FindOptions // which families had a partial import failure
	Flags         NameFlags

	Target string // alias target name, set on CNAME/DNAME import

	V4Hooks *list.List // *NameHook
	V6Hooks *list.List // *NameHook

	FetchV4   *fetchA
	FetchV6   *fetchAAAA
	FetchA6   []*fetchA6
	chainCtx  *a6ChainContext

	Finds *list.List // *Find, attached while awaiting completion

	bucket int
	elem   *list.Element // this name's position in its bucket's list
}

func newName(fqdn string) *Name {
	n := &Name{}
	n.init(fqdn)
	return n
}

// init (re)establishes a Name's list heads after it comes off the pool's
// free-list, where reset zeroed them to nil.
func (n *Name) init(fqdn string) {
	n.Fqdn = fqdn
	n.V4Hooks = list.New()
	n.V6Hooks = list.New()
	n.Finds = list.New()
}

func (n *Name) reset() {
	*n = Name{}
}

// hooksFor returns the v4 or v6 hook list for family f.
func (n *Name) hooksFor(f Family) *list.List {
	if f == FamilyV6 {
		return n.V6Hooks
	}
	return n.V4Hooks
}

// expiryFor returns the current family expiry.
func (n *Name) expiryFor(f Family) time.Time {
	if f == FamilyV6 {
		return n.ExpireV6
	}
	return n.ExpireV4
}

func (n *Name) setExpiryFor(f Family, t time.Time) {
	if f == FamilyV6 {
		n.ExpireV6 = t
	} else {
		n.ExpireV4 = t
	}
}

// fetchOutstanding reports whether family f already has a fetch in
// flight (spec.md §5 property 5: "at most one fetch of that family is in
// flight at any time").
func (n *Name) fetchOutstanding(f Family) bool {
	if f == FamilyV6 {
		return n.FetchV6 != nil || len(n.FetchA6) > 0
	}
	return n.FetchV4 != nil
}

// hasUsable reports whether family f currently has at least one live
// hook.
func (n *Name) hasUsable(f Family) bool {
	return n.hooksFor(f).Len() > 0
}

// isAlias reports whether this Name currently holds an unexpired alias
// target (spec.md §4.2 step 5, step 9).
func (n *Name) isAlias(now time.Time) bool {
	return n.Target != "" && n.ExpireTarget.After(now)
}

// isEmpty reports whether the Name has no hooks, no finds, and no
// outstanding fetches — the precondition for reclaiming it once all its
// family expiries have also passed (spec.md §3 invariants).
func (n *Name) isEmpty() bool {
	return n.V4Hooks.Len() == 0 && n.V6Hooks.Len() == 0 &&
		n.Finds.Len() == 0 &&
		n.FetchV4 == nil && n.FetchV6 == nil && len(n.FetchA6) == 0
}

// allExpired reports whether every family expiry (and the alias target
// expiry, if one was ever set) has passed at now — the other half of the
// reclaim precondition (spec.md §3: "No hooks, no fetches, no finds, all
// expiries passed").
func (n *Name) allExpired(now time.Time) bool {
	if n.ExpireV4.After(now) || n.ExpireV6.After(now) {
		return false
	}
	if !n.ExpireTarget.IsZero() && n.ExpireTarget.After(now) {
		return false
	}
	return true
}

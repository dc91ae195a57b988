package adb

import (
	"net"
	"time"
)

// EventType identifies the kind of completion event a Find receives
// (spec.md §4.2, §4.4.D, §4.6).
type EventType int

const (
	EventMoreAddresses EventType = iota
	EventNoMoreAddresses
	EventCanceled
	EventShutdown
)

// Event is what a Find's completion is delivered as.
type Event struct {
	Type   EventType
	Find   *Find
	Family Family
}

// Task is the single-consumer mailbox completion events and shutdown
// notifications are delivered to (spec.md §9 Design Notes: "a message to
// a single-consumer mailbox (task), where the mailbox owns the delivery
// thread"). Implementations may back this with a channel plus a worker
// goroutine or any other single-delivery primitive; the ADB never
// interprets Task beyond calling Send.
type Task interface {
	// Send delivers ev to the task exactly once. Send must not block the
	// caller for long — task/timer implementations typically enqueue and
	// return immediately, matching the donor's sendAndDetach-style
	// one-shot delivery.
	Send(ev Event)
}

// TimerMgr provides the single-shot timers that drive hk.Registry, which
// re-arms one after each run of the periodic cleaner (spec.md §4.5,
// §4.7), decoupled from any particular runtime's timer implementation.
type TimerMgr interface {
	// AfterFunc schedules f to run once after d elapses, returning a
	// handle that can cancel it.
	AfterFunc(d time.Duration, f func()) TimerHandle
}

// TimerHandle cancels a scheduled timer.
type TimerHandle interface {
	Stop() bool
}

// LookupResult is what the local-lookup capability returns on a
// success-ish status (spec.md §4.4.A): a record set with a TTL.
type LookupResult struct {
	Status LookupStatus
	// Addrs holds parsed addresses for A/AAAA/A6-shaped results; empty
	// for CNAME/DNAME/negative/not-found statuses.
	Addrs []RecordAddr
	// Target holds the rdata name for CNAME/DNAME results.
	Target string
	// DNAMEOwner is the owner name of a DNAME record, needed to compute
	// the alias target by splitting the queried name at that owner
	// (spec.md §4.3).
	DNAMEOwner string
	TTL        time.Duration
}

// RecordAddr is one address record as already parsed by the wire-format
// layer (out of scope per spec.md §1) before it reaches the ADB.
type RecordAddr struct {
	Family Family
	IP     net.IP // 4 or 16 bytes, already rejected of mapped/compatible forms upstream of Import where required

	// A6-specific fields; zero-valued for plain A/AAAA records.
	IsA6       bool
	PrefixLen  int
	NextName   string // the "next name" whose A6 must be fetched to complete the chain
}

// LocalLookup is the "what do you already know about name N, type T"
// capability consumed from the view/database layer (spec.md §1, §4.4.A).
type LocalLookup interface {
	Lookup(name string, family Family, now time.Time, hintOK bool) (LookupResult, error)
}

// FetchOptions parameterize a resolver fetch (SPEC_FULL §C item 4: the
// "start at root" decision is recomputed per-fetch, not copied verbatim
// from the Find's option bitmap).
type FetchOptions struct {
	StartAtRoot bool
	Hint        string // zone used for the fetch's iteration hint
}

// FetchResult is what a resolver fetch callback reports on completion
// (spec.md §6: "a completion event type carrying {result, rdataset, db,
// node, foundname}", trimmed to what the ADB actually consumes).
type FetchResult struct {
	Status LookupStatus
	Addrs  []RecordAddr
	Target string
	DNAMEOwner string
	TTL    time.Duration
	Err    error
}

// FetchHandle is an in-flight resolver call. Implementations must invoke
// the callback passed to Resolver.CreateFetch exactly once, asynchronously
// (never from within CreateFetch itself; see fetchengine.go), and Cancel
// must still lead to exactly one callback
// invocation (spec.md §4.4.D: "each cancel callback must still return
// through the normal path").
type FetchHandle interface {
	Cancel()
}

// Resolver is the recursive-resolver capability consumed to fill cache
// misses (spec.md §1, §6).
type Resolver interface {
	CreateFetch(name string, family Family, opts FetchOptions, cb func(FetchResult)) FetchHandle
}

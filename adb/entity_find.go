package adb

import (
	"container/list"
	"net"
	"sync"
)

// Find is a caller-facing handle representing one outstanding question
// and its growing answer set (GLOSSARY). Its attachment to a Name is a
// weak link protected by the Name's bucket lock (spec.md §9 Design
// Notes); its own fields are protected by its own mutex, per the lock
// order in spec.md §4.1 ("... an individual Find's lock ...").
type Find struct {
	mu sync.Mutex

	// ID is a short, human-readable diagnostic handle (SPEC_FULL §B),
	// never consulted by any control-flow decision.
	ID string

	task   Task
	arg    interface{}
	Name   string
	Zone   string
	Options FindOptions

	partialResult FindOptions // families missing data when the event (if any) fires
	queryPending  FindOptions // families this Find is waiting on a fetch for

	eventSent bool
	eventWanted bool

	Results []*AddrInfo

	nameElem *list.Element // this Find's position in its Name's find list; nil once detached
}

func newFind() *Find { return &Find{} }

func (f *Find) reset() { *f = Find{} }

// armEvent records that this Find has promised exactly one completion
// event and has not yet delivered it.
func (f *Find) armEvent() {
	f.mu.Lock()
	f.eventWanted = true
	f.mu.Unlock()
}

// sendOnce delivers ev to the Find's task at most once, satisfying
// spec.md §5: "Completion events for a given Find are delivered at most
// once."
func (f *Find) sendOnce(evType EventType, family Family) {
	f.mu.Lock()
	if f.eventSent || !f.eventWanted {
		f.mu.Unlock()
		return
	}
	f.eventSent = true
	task := f.task
	f.mu.Unlock()
	if task != nil {
		task.Send(Event{Type: evType, Find: f, Family: family})
	}
}

// EventDelivered reports whether this Find has no completion event
// outstanding: either none was promised, or its (at most one) event has
// already been sent — the precondition destroyFind requires (spec.md §4.2).
func (f *Find) EventDelivered() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.eventSent || !f.eventWanted
}

// AddrInfo is one row of a Find's answer set: a borrowable view of an
// Endpoint with a snapshot of its current metrics (GLOSSARY). Every
// AddrInfo pins its Endpoint via the refcount, independent of whether the
// producing Name still exists (spec.md §3 invariants).
type AddrInfo struct {
	Entry *Endpoint

	// Snapshot fields, copied at the moment this AddrInfo was built so a
	// caller's view is stable even as the Endpoint's live metrics keep
	// changing underneath it.
	IP        net.IP
	Goodness  int32
	SRTT      uint32
	Flags     EndpointFlags
	EDNSLevel int

	// Lame is set when WantLame bypassed the normal bad-for-zone filter
	// so the caller can still see it was lame.
	Lame bool
}

func newAddrInfo(e *Endpoint, lame bool) *AddrInfo {
	ai := &AddrInfo{}
	fillAddrInfo(ai, e, lame)
	return ai
}

// fillAddrInfo snapshots e's current metrics into ai, which may be a
// freshly pooled (zero) AddrInfo.
func fillAddrInfo(ai *AddrInfo, e *Endpoint, lame bool) {
	e.mu.Lock()
	ai.Entry = e
	ai.IP = e.Addr
	ai.Goodness = e.Goodness
	ai.SRTT = e.SRTT
	ai.Flags = e.Flags
	ai.EDNSLevel = e.EDNSLevel
	ai.Lame = lame
	e.mu.Unlock()
}

func (a *AddrInfo) reset() { *a = AddrInfo{} }

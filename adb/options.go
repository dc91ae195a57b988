package adb

// FindOptions is the options bitmap createFind accepts (spec.md §4.2).
type FindOptions uint32

const (
	// INET requests IPv4 endpoints.
	INET FindOptions = 1 << iota
	// INET6 requests IPv6 endpoints.
	INET6
	// WantEvent requests a completion event when more info arrives;
	// requires a task to deliver it to.
	WantEvent
	// EmptyEvent waits for a completion event even if some endpoints are
	// already present.
	EmptyEvent
	// AvoidFetches suppresses starting a fetch if any acceptable family
	// is already populated.
	AvoidFetches
	// StartAtRoot directs any fetch this call arms to begin iteration at
	// the root.
	StartAtRoot
	// HintOK allows the local-lookup capability to return hint data.
	HintOK
	// WantLame opts out of lameness filtering: bad-for-zone endpoints are
	// still returned, flagged Lame, instead of being dropped (from the
	// original's RETURNLAME-shaped option).
	WantLame
)

// addressMask is the subset of FindOptions that name address families.
const addressMask = INET | INET6

// Family identifies one address family a Name tracks state for.
type Family uint8

const (
	FamilyV4 Family = iota
	FamilyV6
)

func (f Family) String() string {
	if f == FamilyV6 {
		return "v6"
	}
	return "v4"
}

// wants reports whether opts requests family f.
func (opts FindOptions) wants(f Family) bool {
	if f == FamilyV4 {
		return opts&INET != 0
	}
	return opts&INET6 != 0
}

// LookupStatus is the result a local-lookup capability call reports
// (spec.md §4.4.A).
type LookupStatus int

const (
	LookupSuccess LookupStatus = iota
	LookupGlue
	LookupHint
	LookupCNAME
	LookupDNAME
	LookupNcacheNXDomain
	LookupNcacheNXRRset
	LookupAuthNXDomain
	LookupAuthNXRRset
	LookupNotFound
	LookupOther
)

// CreateFindResult is the outcome createFind reports (spec.md §4.2).
type CreateFindResult int

const (
	ResultSuccess CreateFindResult = iota
	ResultAlias
	ResultShuttingDown
	ResultNoMemory
)

package adb

import (
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// dumpName / dumpEndpoint are the serializable shapes Dump emits in
// verbose mode, adapted from the donor source's print_namehook_list /
// print_find_list / print_fetch_list structure (SPEC_FULL §C item 2),
// expressed here as one JSON document per entity kind rather than a
// sequence of printf calls.
type dumpName struct {
	Fqdn     string    `json:"fqdn"`
	ExpireV4 time.Time `json:"expireV4,omitempty"`
	ExpireV6 time.Time `json:"expireV6,omitempty"`
	Target   string    `json:"target,omitempty"`
	V4Hooks  int       `json:"v4Hooks"`
	V6Hooks  int       `json:"v6Hooks"`
	FindIDs  []string  `json:"findIDs,omitempty"`
	FetchV4  string    `json:"fetchV4,omitempty"` // diagnostic fetch ID, empty if none outstanding
	FetchV6  string    `json:"fetchV6,omitempty"`
	FetchA6  []string  `json:"fetchA6,omitempty"`
	Dead     bool      `json:"dead"`
}

type dumpEndpoint struct {
	Addr     string        `json:"addr"`
	Refcount int32         `json:"refcount"`
	Goodness int32         `json:"goodness"`
	SRTT     uint32        `json:"srtt"`
	Flags    EndpointFlags `json:"flags"`
	Zones    []string      `json:"zones,omitempty"`
	Expiry   time.Time     `json:"expiry,omitempty"`
}

// DumpSnapshot is the full diagnostic snapshot Dump builds under all
// bucket locks (spec.md §6: "dump(file) — diagnostic snapshot; acquires
// all bucket locks in order before iterating").
type DumpSnapshot struct {
	Names     []dumpName     `json:"names"`
	Endpoints []dumpEndpoint `json:"endpoints"`
}

// Dump writes a diagnostic snapshot to w. In terse mode it writes a
// one-line summary (cached until the periodic cleaner's next full sweep
// wrap-around, per spec.md §2 item 7: "drops the cache dump on wrap-
// around"); in verbose mode it always rebuilds and writes full JSON.
func (a *ADB) Dump(w io.Writer, verbose bool) error {
	if !verbose {
		return a.dumpTerse(w)
	}
	snap := a.snapshot()
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

func (a *ADB) dumpTerse(w io.Writer) error {
	a.dumpMu.Lock()
	if a.dumpValid {
		summary := a.cachedSummary
		a.dumpMu.Unlock()
		_, err := io.WriteString(w, summary)
		return err
	}
	a.dumpMu.Unlock()

	snap := a.snapshot()
	summary := fmt.Sprintf("adb dump: %d names, %d endpoints\n", len(snap.Names), len(snap.Endpoints))

	a.dumpMu.Lock()
	a.cachedSummary = summary
	a.dumpValid = true
	a.dumpMu.Unlock()

	_, err := io.WriteString(w, summary)
	return err
}

// invalidateDump drops the cached terse summary; called once per full
// bucket-cleaner sweep cycle.
func (a *ADB) invalidateDump() {
	a.dumpMu.Lock()
	a.dumpValid = false
	a.dumpMu.Unlock()
}

// snapshot acquires every bucket lock in index order (Name buckets, then
// Endpoint buckets — never an individual Find's lock, so this never
// interacts with violateLockingHierarchy) and copies out a point-in-time
// view.
func (a *ADB) snapshot() DumpSnapshot {
	var snap DumpSnapshot

	for _, b := range a.store.names {
		b.mu.Lock()
	}
	for _, eb := range a.store.endpoints {
		eb.mu.Lock()
	}

	for _, b := range a.store.names {
		for e := b.names.Front(); e != nil; e = e.Next() {
			snap.Names = append(snap.Names, toDumpName(e.Value.(*Name)))
		}
	}
	for _, eb := range a.store.endpoints {
		for e := eb.endpoints.Front(); e != nil; e = e.Next() {
			snap.Endpoints = append(snap.Endpoints, toDumpEndpoint(e.Value.(*Endpoint)))
		}
	}

	for i := len(a.store.endpoints) - 1; i >= 0; i-- {
		a.store.endpoints[i].mu.Unlock()
	}
	for i := len(a.store.names) - 1; i >= 0; i-- {
		a.store.names[i].mu.Unlock()
	}
	return snap
}

func toDumpName(n *Name) dumpName {
	d := dumpName{
		Fqdn:     n.Fqdn,
		ExpireV4: n.ExpireV4,
		ExpireV6: n.ExpireV6,
		Target:   n.Target,
		V4Hooks:  n.V4Hooks.Len(),
		V6Hooks:  n.V6Hooks.Len(),
		Dead:     n.Flags&NameDead != 0,
	}
	for e := n.Finds.Front(); e != nil; e = e.Next() {
		d.FindIDs = append(d.FindIDs, e.Value.(*Find).ID)
	}
	if n.FetchV4 != nil {
		d.FetchV4 = n.FetchV4.id
	}
	if n.FetchV6 != nil {
		d.FetchV6 = n.FetchV6.id
	}
	for _, fh := range n.FetchA6 {
		d.FetchA6 = append(d.FetchA6, fh.id)
	}
	return d
}

func toDumpEndpoint(ep *Endpoint) dumpEndpoint {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	zones := make([]string, 0, len(ep.Zones))
	for _, z := range ep.Zones {
		zones = append(zones, z.Zone)
	}
	return dumpEndpoint{
		Addr:     ep.Addr.String(),
		Refcount: ep.refcount,
		Goodness: ep.Goodness,
		SRTT:     ep.SRTT,
		Flags:    ep.Flags,
		Zones:    zones,
		Expiry:   ep.Expiry,
	}
}

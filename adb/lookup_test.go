package adb

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/aisdns/adb/config"
)

// fakeTask collects delivered events for assertions; Send must never
// block the caller (spec.md §9 Design Notes), matching a real mailbox's
// contract.
type fakeTask struct {
	mu     sync.Mutex
	events []Event
	ch     chan Event
}

func newFakeTask() *fakeTask {
	return &fakeTask{ch: make(chan Event, 8)}
}

func (t *fakeTask) Send(ev Event) {
	t.mu.Lock()
	t.events = append(t.events, ev)
	t.mu.Unlock()
	t.ch <- ev
}

func (t *fakeTask) waitOne(timeout time.Duration) (Event, bool) {
	select {
	case ev := <-t.ch:
		return ev, true
	case <-time.After(timeout):
		return Event{}, false
	}
}

// emptyLookup never has local data, forcing every family to go through a
// resolver fetch.
type emptyLookup struct{}

func (emptyLookup) Lookup(string, Family, time.Time, bool) (LookupResult, error) {
	return LookupResult{}, ErrNotFound
}

// fakeHandle is a no-op FetchHandle; Cancel is ignored, so a test that
// shuts down with a fetch outstanding completes that fetch itself.
type fakeHandle struct{}

func (fakeHandle) Cancel() {}

// asyncResolver answers every fetch asynchronously (spec.md §4.4's
// contract, enforced by fetchengine.go's own doc comment) with a fixed
// address after a short delay.
type asyncResolver struct {
	addr net.IP
	ttl  time.Duration
}

func (r asyncResolver) CreateFetch(name string, f Family, opts FetchOptions, cb func(FetchResult)) FetchHandle {
	go func() {
		time.Sleep(time.Millisecond)
		cb(FetchResult{
			Status: LookupSuccess,
			Addrs:  []RecordAddr{{Family: f, IP: r.addr}},
			TTL:    r.ttl,
		})
	}()
	return fakeHandle{}
}

func newTestADB(lookup LocalLookup, resolver Resolver) *ADB {
	cfg := config.Default()
	cfg.NumBuckets = 7
	return Create(cfg, lookup, resolver, nil, nil)
}

func TestCreateFindRejectsNoFamily(t *testing.T) {
	a := newTestADB(emptyLookup{}, asyncResolver{addr: net.ParseIP("192.0.2.1")})
	_, result, err := a.CreateFind(nil, nil, "x.example.", "example.", 0, time.Now(), nil)
	if err != ErrInvalidOption || result != ResultShuttingDown {
		t.Fatalf("expected ErrInvalidOption/ResultShuttingDown, got %v/%v", result, err)
	}
}

func TestInsertThenCreateFindReturnsCachedAddr(t *testing.T) {
	a := newTestADB(emptyLookup{}, asyncResolver{addr: net.ParseIP("192.0.2.1")})
	now := time.Now()
	addr := net.ParseIP("192.0.2.1").To4()

	if err := a.Insert("host.example.", addr, 60*time.Second, now); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	task := newFakeTask()
	find, result, err := a.CreateFind(task, nil, "host.example.", "example.", INET, now, nil)
	if err != nil || result != ResultSuccess {
		t.Fatalf("CreateFind failed: result=%v err=%v", result, err)
	}
	if len(find.Results) != 1 {
		t.Fatalf("expected one cached result, got %d", len(find.Results))
	}
	if !find.Results[0].IP.Equal(addr) {
		t.Fatalf("expected %v, got %v", addr, find.Results[0].IP)
	}

	a.DestroyFind(find, now)
}

func TestCreateFindStartsFetchAndDeliversEvent(t *testing.T) {
	addr := net.ParseIP("198.51.100.7").To4()
	a := newTestADB(emptyLookup{}, asyncResolver{addr: addr, ttl: 30 * time.Second})
	now := time.Now()

	task := newFakeTask()
	find, result, err := a.CreateFind(task, nil, "fresh.example.", "example.", INET|WantEvent, now, nil)
	if err != nil || result != ResultSuccess {
		t.Fatalf("CreateFind failed: result=%v err=%v", result, err)
	}
	if len(find.Results) != 0 {
		t.Fatalf("expected no results yet, got %d", len(find.Results))
	}

	ev, ok := task.waitOne(2 * time.Second)
	if !ok {
		t.Fatalf("timed out waiting for completion event")
	}
	if ev.Type != EventMoreAddresses {
		t.Fatalf("expected EventMoreAddresses, got %v", ev.Type)
	}

	a.DestroyFind(find, time.Now())
}

func TestFreeAddrInfoSetsGraceExpiry(t *testing.T) {
	a := newTestADB(emptyLookup{}, asyncResolver{})
	addr := net.ParseIP("203.0.113.9")
	now := time.Now()

	ai := a.FindAddrInfo(addr)
	if ai.Entry.Refcount() != 1 {
		t.Fatalf("expected refcount 1 after FindAddrInfo, got %d", ai.Entry.Refcount())
	}

	ep := ai.Entry
	a.FreeAddrInfo(ai, now)
	if ep.Refcount() != 0 {
		t.Fatalf("expected refcount 0 after release, got %d", ep.Refcount())
	}
	if ep.Expiry.IsZero() || !ep.Expiry.After(now) {
		t.Fatalf("expected a grace-window expiry to be set, got %v", ep.Expiry)
	}
}

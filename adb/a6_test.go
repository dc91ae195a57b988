package adb

import (
	"net"
	"testing"
	"time"

	"github.com/aisdns/adb/config"
)

func TestA6ChainContextFuel(t *testing.T) {
	ctx := newA6ChainContext(2)
	if !ctx.takeFuel() {
		t.Fatalf("expected fuel available on first hop")
	}
	if !ctx.takeFuel() {
		t.Fatalf("expected fuel available on second hop")
	}
	if ctx.takeFuel() {
		t.Fatalf("expected fuel exhausted on third hop")
	}
}

func TestA6ChainContextApplyBitsAccumulatesAndCompletes(t *testing.T) {
	ctx := newA6ChainContext(16)

	var half [16]byte
	half[0] = 0xff
	ctx.applyBits(half, 8)
	if ctx.complete() {
		t.Fatalf("expected an incomplete chain after one 8-bit hop")
	}

	var rest [16]byte
	for i := 1; i < 16; i++ {
		rest[i] = 0xff
	}
	ctx.applyBits(rest, 128)
	if !ctx.complete() {
		t.Fatalf("expected the chain to be complete once PrefixLen reaches 128")
	}
	for i, b := range ctx.Addr {
		if b != 0xff {
			t.Fatalf("expected every byte OR'd to 0xff, byte %d was %#x", i, b)
		}
	}
}

// a6Resolver answers every CreateFetch call with a single-hop A6 record
// that completes the chain immediately, so startFetch's A6 path can be
// exercised without a multi-hop fixture.
type a6Resolver struct{ addr net.IP }

func (r a6Resolver) CreateFetch(name string, f Family, opts FetchOptions, cb func(FetchResult)) FetchHandle {
	go func() {
		time.Sleep(time.Millisecond)
		cb(FetchResult{
			Status: LookupSuccess,
			Addrs: []RecordAddr{{
				Family:    FamilyV6,
				IsA6:      true,
				IP:        r.addr,
				PrefixLen: 128,
			}},
			TTL: 60 * time.Second,
		})
	}()
	return fakeHandle{}
}

// a6PartialResolver answers every CreateFetch call with a partial A6
// record that never completes the chain and always points to another
// hop, exercising the second-hop fuel-exhaustion path inside
// handleA6Result (where a real Find is already attached to the Name,
// unlike the very first hop evaluated synchronously inside CreateFind).
type a6PartialResolver struct{ addr net.IP }

func (r a6PartialResolver) CreateFetch(name string, f Family, opts FetchOptions, cb func(FetchResult)) FetchHandle {
	go func() {
		time.Sleep(time.Millisecond)
		cb(FetchResult{
			Status: LookupSuccess,
			Addrs: []RecordAddr{{
				Family:    FamilyV6,
				IsA6:      true,
				IP:        r.addr,
				PrefixLen: 64,
				NextName:  "hop2." + name,
			}},
			TTL: 60 * time.Second,
		})
	}()
	return fakeHandle{}
}

func TestA6EnabledCompletesChainAndDeliversEvent(t *testing.T) {
	cfg := config.Default()
	cfg.NumBuckets = 5
	cfg.A6Enabled = true
	cfg.A6MaxChain = 4
	addr := net.ParseIP("2001:db8::1")
	a := Create(cfg, emptyLookup{}, a6Resolver{addr: addr}, nil, nil)

	task := newFakeTask()
	now := time.Now()
	find, result, err := a.CreateFind(task, nil, "v6.example.", "example.", INET6|WantEvent, now, nil)
	if err != nil || result != ResultSuccess {
		t.Fatalf("CreateFind failed: result=%v err=%v", result, err)
	}

	ev, ok := task.waitOne(2 * time.Second)
	if !ok {
		t.Fatalf("timed out waiting for the A6 chain to complete")
	}
	if ev.Type != EventMoreAddresses {
		t.Fatalf("expected EventMoreAddresses, got %v", ev.Type)
	}

	a.DestroyFind(find, time.Now())
}

func TestA6FuelExhaustionFallsBackToGenericFailure(t *testing.T) {
	cfg := config.Default()
	cfg.NumBuckets = 5
	cfg.A6Enabled = true
	cfg.A6MaxChain = 1 // enough fuel for the first hop, none for the second
	a := Create(cfg, emptyLookup{}, a6PartialResolver{addr: net.ParseIP("2001:db8::1")}, nil, nil)

	task := newFakeTask()
	now := time.Now()
	find, result, err := a.CreateFind(task, nil, "v6fuel.example.", "example.", INET6|WantEvent, now, nil)
	if err != nil || result != ResultSuccess {
		t.Fatalf("CreateFind failed: result=%v err=%v", result, err)
	}

	ev, ok := task.waitOne(2 * time.Second)
	if !ok {
		t.Fatalf("timed out waiting for the fuel-exhaustion completion event")
	}
	if ev.Type != EventNoMoreAddresses {
		t.Fatalf("expected EventNoMoreAddresses once the chain's fuel runs out, got %v", ev.Type)
	}

	a.DestroyFind(find, time.Now())
}

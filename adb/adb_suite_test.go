package adb

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/aisdns/adb/config"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestADB(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "ADB Suite")
}

// scriptedLookup answers a fixed set of (name, family) -> LookupResult
// pairs, defaulting to NOT_FOUND for anything not scripted — enough
// control to drive spec.md §8's end-to-end scenarios deterministically.
type scriptedLookup struct {
	mu      sync.Mutex
	answers map[string]LookupResult
}

func newScriptedLookup() *scriptedLookup {
	return &scriptedLookup{answers: make(map[string]LookupResult)}
}

func lookupKey(name string, f Family) string { return name + "|" + f.String() }

func (s *scriptedLookup) set(name string, f Family, res LookupResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[lookupKey(name, f)] = res
}

func (s *scriptedLookup) Lookup(name string, f Family, now time.Time, hintOK bool) (LookupResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.answers[lookupKey(name, f)]
	if !ok {
		return LookupResult{Status: LookupNotFound}, ErrNotFound
	}
	return res, nil
}

// manualResolver hands control of each fetch's completion back to the
// test: CreateFetch records the callback instead of invoking it, and the
// test decides when (and with what) to complete it, on its own goroutine
// (spec.md §4.4's asynchronous-callback contract).
type manualResolver struct {
	mu      sync.Mutex
	pending map[string]func(FetchResult)
}

func newManualResolver() *manualResolver {
	return &manualResolver{pending: make(map[string]func(FetchResult))}
}

func (r *manualResolver) CreateFetch(name string, f Family, opts FetchOptions, cb func(FetchResult)) FetchHandle {
	key := lookupKey(name, f)
	r.mu.Lock()
	r.pending[key] = cb
	r.mu.Unlock()
	return fakeHandle{}
}

func (r *manualResolver) complete(name string, f Family, res FetchResult) {
	r.mu.Lock()
	cb := r.pending[lookupKey(name, f)]
	delete(r.pending, lookupKey(name, f))
	r.mu.Unlock()
	if cb == nil {
		return
	}
	go cb(res)
}

func newScenarioADB(lookup LocalLookup, resolver Resolver) *ADB {
	cfg := config.Default()
	cfg.NumBuckets = 11
	cfg.MinTTL = 10 * time.Second
	return Create(cfg, lookup, resolver, nil, nil)
}

var _ = Describe("ADB end-to-end scenarios", func() {
	var (
		lookup   *scriptedLookup
		resolver *manualResolver
		a        *ADB
		now      time.Time
	)

	BeforeEach(func() {
		lookup = newScriptedLookup()
		resolver = newManualResolver()
		a = newScenarioADB(lookup, resolver)
		now = time.Unix(1000, 0)
	})

	It("S1: cold v4 lookup, local hit", func() {
		lookup.set("host.example.", FamilyV4, LookupResult{
			Status: LookupSuccess,
			Addrs: []RecordAddr{
				{Family: FamilyV4, IP: net.ParseIP("1.2.3.4").To4()},
				{Family: FamilyV4, IP: net.ParseIP("1.2.3.5").To4()},
			},
			TTL: 60 * time.Second,
		})

		find, result, err := a.CreateFind(nil, nil, "host.example.", "example.", INET, now, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal(ResultSuccess))
		Expect(find.Results).To(HaveLen(2))

		b := a.store.nameBucketFor("host.example.")
		b.mu.Lock()
		n, _ := b.findNameLocked(a.pools, "host.example.", false)
		Expect(n.ExpireV4.Unix()).To(Equal(now.Add(60 * time.Second).Unix()))
		Expect(n.FetchV4).To(BeNil())
		b.mu.Unlock()

		a.DestroyFind(find, now)
	})

	It("S2: cold v4 lookup, miss triggers fetch and delivers one event", func() {
		task := newFakeTask()
		find, result, err := a.CreateFind(task, nil, "miss.example.", "example.", INET|WantEvent, now, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal(ResultSuccess))
		Expect(find.Results).To(BeEmpty())

		resolver.complete("miss.example.", FamilyV4, FetchResult{
			Status: LookupSuccess,
			Addrs:  []RecordAddr{{Family: FamilyV4, IP: net.ParseIP("1.2.3.4").To4()}},
			TTL:    30 * time.Second,
		})

		ev, ok := task.waitOne(2 * time.Second)
		Expect(ok).To(BeTrue())
		Expect(ev.Type).To(Equal(EventMoreAddresses))

		a.DestroyFind(find, time.Now())
	})

	It("S3: negative cache short-circuits a second fetch", func() {
		lookup.set("neg.example.", FamilyV4, LookupResult{
			Status: LookupNcacheNXRRset,
			TTL:    5 * time.Second,
		})

		find1, result, err := a.CreateFind(nil, nil, "neg.example.", "example.", INET, now, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal(ResultSuccess))
		a.DestroyFind(find1, now)

		b := a.store.nameBucketFor("neg.example.")
		b.mu.Lock()
		n, _ := b.findNameLocked(a.pools, "neg.example.", false)
		Expect(n.ExpireV4.Unix()).To(Equal(now.Add(10 * time.Second).Unix())) // floored to MinTTL
		b.mu.Unlock()

		later := now.Add(5 * time.Second)
		find2, result, err := a.CreateFind(nil, nil, "neg.example.", "example.", INET, later, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal(ResultSuccess))
		Expect(find2.Results).To(BeEmpty())
		Expect(find2.nameElem).To(BeNil()) // no event armed, never attached

		a.DestroyFind(find2, later)
	})

	It("S4: alias", func() {
		lookup.set("www.example.", FamilyV4, LookupResult{
			Status: LookupCNAME,
			Target: "host.example.",
			TTL:    100 * time.Second,
		})

		var target string
		find, result, err := a.CreateFind(nil, nil, "www.example.", "example.", INET, now, &target)
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal(ResultAlias))
		Expect(target).To(Equal("host.example."))
		Expect(find).To(BeNil())
	})

	It("S5: lameness filters the copied result set", func() {
		lookup.set("n.", FamilyV4, LookupResult{
			Status: LookupSuccess,
			Addrs: []RecordAddr{
				{Family: FamilyV4, IP: net.ParseIP("1.2.3.4").To4()},
				{Family: FamilyV4, IP: net.ParseIP("1.2.3.5").To4()},
			},
			TTL: 60 * time.Second,
		})
		find0, _, err := a.CreateFind(nil, nil, "n.", "z.", INET, now, nil)
		Expect(err).NotTo(HaveOccurred())
		for _, ai := range find0.Results {
			if ai.IP.Equal(net.ParseIP("1.2.3.4").To4()) {
				a.MarkLame(ai, "z.", now.Add(3600*time.Second))
			}
		}
		a.DestroyFind(find0, now)

		findZ, _, err := a.CreateFind(nil, nil, "n.", "z.", INET, now, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(findZ.Results).To(HaveLen(1))
		Expect(findZ.Results[0].IP.Equal(net.ParseIP("1.2.3.5").To4())).To(BeTrue())
		a.DestroyFind(findZ, now)

		findOther, _, err := a.CreateFind(nil, nil, "n.", "other.", INET, now, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(findOther.Results).To(HaveLen(2))
		a.DestroyFind(findOther, now)
	})

	It("S6: shutdown drains outstanding finds and fetches", func() {
		task := newFakeTask()
		find, _, err := a.CreateFind(task, nil, "dying.example.", "example.", INET|WantEvent, now, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(find.nameElem).NotTo(BeNil())

		a.Shutdown()

		ev, ok := task.waitOne(2 * time.Second)
		Expect(ok).To(BeTrue())
		Expect(ev.Type).To(Equal(EventShutdown))
		a.DestroyFind(find, time.Now())

		resolver.complete("dying.example.", FamilyV4, FetchResult{Status: LookupOther})

		Eventually(func() bool { return a.quiesced() }, 2*time.Second, 10*time.Millisecond).Should(BeTrue())

		Expect(a.pools.namesLive()).To(BeZero())
		Expect(a.pools.endpointsLive()).To(BeZero())
	})
})

// Package config centralizes the runtime-tunable values the ADB core and
// its generic cache cleaner depend on, held behind an atomic pointer the
// way the donor's cmn.GCO ("global config owner") holds cmn.Config (see
// cmn/config.go). Readers call Owner.Get() and never hold a lock across
// it; updates happen via Owner.Set, which swaps the pointer atomically.
package config

import (
	"time"
	"unsafe"

	"github.com/aisdns/adb/3rdparty/atomic"
)

// ADBConfig carries the parameters spec.md §9's Open Questions flag as
// "should preserve but parameterize", plus the pool and cleaner sizing the
// donor's memsys/hk analogs expose as tunables.
type ADBConfig struct {
	// NumBuckets is the bucket-array size for both the Name and Endpoint
	// stores (spec.md §4.1). Should remain a small prime for distribution
	// quality; default 1009, matching the donor source's NBUCKETS.
	NumBuckets int

	// CleanInterval is the tick period of the periodic per-bucket sweep
	// (spec.md §4.7 / Open Questions). Defaults to 300s/NumBuckets so
	// that CleanInterval*NumBuckets == 300s (one full sweep every five
	// minutes), unless explicitly overridden.
	CleanInterval time.Duration

	// MinTTL floors every imported or negatively-cached expiry (spec.md
	// §3 invariants, §4.2 step 6).
	MinTTL time.Duration

	// AuthNXTTL is the expiry used for an authoritative-no-such answer
	// that carries no usable TTL (spec.md §4.2 step 6, "30 seconds" in
	// the original, called out as provisional in Open Questions).
	AuthNXTTL time.Duration

	// GenericFailureBackoff is the throttle pushed onto a family's expiry
	// after a generic fetch failure (spec.md §4.4.D).
	GenericFailureBackoff time.Duration

	// A6Enabled gates the A6 chain walker (spec.md §4.4.C, Open
	// Questions: "A6 ... may reasonably gate it behind a feature flag").
	A6Enabled bool

	// A6MaxChain bounds A6 chain fan-out (spec.md §4.4.C: "implementations
	// should cap at 16").
	A6MaxChain int

	// A6MaxConcurrent bounds the number of A6 hop fetches allowed in
	// flight across the whole ADB at once (spec.md §4.4.C: the per-chain
	// fan-out bound caps one walk's depth, but says nothing about how many
	// walks may run concurrently). Acquired via a counting semaphore
	// rather than serialized through a lock, since hops legitimately run
	// in parallel across different Names.
	A6MaxConcurrent int

	// PoolLowWater is the number of pre-warmed entries memsys keeps ready
	// per entity kind before it starts allocating new ones under load.
	PoolLowWater int

	// PoolHighWater is the number of free entries memsys will retain per
	// entity kind before it starts releasing them to the garbage
	// collector instead of recycling them (bounded free-list, spec.md §2
	// item 2).
	PoolHighWater int

	// CleanIncrement is the number of nodes the generic cache cleaner
	// (spec.md §4.5) processes per wake-up.
	CleanIncrement int
}

// Default returns the baseline configuration, matching the constants the
// original adb.c and cache.c hard-code, reparameterized per SPEC_FULL §D.
func Default() *ADBConfig {
	c := &ADBConfig{
		NumBuckets:            1009,
		MinTTL:                10 * time.Second,
		AuthNXTTL:             30 * time.Second,
		GenericFailureBackoff: 300 * time.Second,
		A6Enabled:             false,
		A6MaxChain:            16,
		A6MaxConcurrent:       256,
		PoolLowWater:          64,
		PoolHighWater:         4096,
		CleanIncrement:        64,
	}
	c.CleanInterval = deriveCleanInterval(c.NumBuckets)
	return c
}

func deriveCleanInterval(numBuckets int) time.Duration {
	if numBuckets <= 0 {
		numBuckets = 1009
	}
	interval := (300 * time.Second) / time.Duration(numBuckets)
	if interval <= 0 {
		interval = time.Second
	}
	return interval
}

// Validate fills in zero-valued fields with defaults and derives
// CleanInterval from NumBuckets unless the caller set it explicitly
// (SPEC_FULL §D). An explicit CleanInterval is kept as is; nothing is
// logged about it.
func (c *ADBConfig) Validate() {
	d := Default()
	if c.NumBuckets <= 0 {
		c.NumBuckets = d.NumBuckets
	}
	if c.MinTTL <= 0 {
		c.MinTTL = d.MinTTL
	}
	if c.AuthNXTTL <= 0 {
		c.AuthNXTTL = d.AuthNXTTL
	}
	if c.GenericFailureBackoff <= 0 {
		c.GenericFailureBackoff = d.GenericFailureBackoff
	}
	if c.A6MaxChain <= 0 {
		c.A6MaxChain = d.A6MaxChain
	}
	if c.A6MaxConcurrent <= 0 {
		c.A6MaxConcurrent = d.A6MaxConcurrent
	}
	if c.PoolLowWater <= 0 {
		c.PoolLowWater = d.PoolLowWater
	}
	if c.PoolHighWater <= 0 {
		c.PoolHighWater = d.PoolHighWater
	}
	if c.PoolHighWater < c.PoolLowWater {
		c.PoolHighWater = c.PoolLowWater
	}
	if c.CleanIncrement <= 0 {
		c.CleanIncrement = d.CleanIncrement
	}
	if c.CleanInterval <= 0 {
		c.CleanInterval = deriveCleanInterval(c.NumBuckets)
	}
}

// Owner holds the current ADBConfig behind an atomic pointer, mirroring
// cmn.GCO's role for cmn.Config: readers never block on a lock to observe
// the latest value.
type Owner struct {
	cur atomic.Pointer
}

func NewOwner(c *ADBConfig) *Owner {
	o := &Owner{}
	o.Set(c)
	return o
}

func (o *Owner) Get() *ADBConfig {
	return (*ADBConfig)(o.cur.Load())
}

func (o *Owner) Set(c *ADBConfig) {
	c.Validate()
	o.cur.Store(unsafe.Pointer(c))
}

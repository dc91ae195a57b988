package adb

import (
	"github.com/aisdns/adb/config"
	"github.com/aisdns/adb/memsys"
)

// pools is the full set of bounded free-lists spec.md §2 item 2 calls for:
// "Names, Endpoints, NameHooks, ZoneInfo, Finds, AddrInfo,
// FetchA/FetchAAAA/FetchA6". ZoneInfo is small and always owned one-to-one
// by its Endpoint's slice, so it is allocated inline rather than pooled;
// every other entity kind gets its own memsys.Pool.
type pools struct {
	names     *memsys.Pool[Name]
	endpoints *memsys.Pool[Endpoint]
	hooks     *memsys.Pool[NameHook]
	finds     *memsys.Pool[Find]
	addrInfos *memsys.Pool[AddrInfo]
	fetchesA  *memsys.Pool[fetchA]
	fetchesV6 *memsys.Pool[fetchAAAA]
	fetchesA6 *memsys.Pool[fetchA6]
}

func newPools(c *config.ADBConfig) *pools {
	lo, hi := c.PoolLowWater, c.PoolHighWater
	return &pools{
		names:     memsys.NewPool[Name](lo, hi, func(n *Name) { n.reset() }),
		endpoints: memsys.NewPool[Endpoint](lo, hi, func(e *Endpoint) { e.reset() }),
		hooks:     memsys.NewPool[NameHook](lo, hi, func(h *NameHook) { h.reset() }),
		finds:     memsys.NewPool[Find](lo, hi, func(f *Find) { f.reset() }),
		addrInfos: memsys.NewPool[AddrInfo](lo, hi, func(a *AddrInfo) { a.reset() }),
		fetchesA:  memsys.NewPool[fetchA](lo, hi, func(*fetchA) {}),
		fetchesV6: memsys.NewPool[fetchAAAA](lo, hi, func(*fetchAAAA) {}),
		fetchesA6: memsys.NewPool[fetchA6](lo, hi, func(*fetchA6) {}),
	}
}

// namesLive / endpointsLive report the pools' checked-out counts, used both
// by stats export and by the shutdown-complete assertion (spec.md §8
// property 3).
func (p *pools) namesLive() int64     { return p.names.Live() }
func (p *pools) endpointsLive() int64 { return p.endpoints.Live() }

package cache

import (
	"sync"
	"time"

	"github.com/aisdns/adb/3rdparty/atomic"
	"github.com/aisdns/adb/3rdparty/glog"
	"github.com/aisdns/adb/hk"
	"github.com/aisdns/adb/stats"
)

// State is the cleaner's two-valued state machine (spec.md §4.5).
type State int

const (
	Idle State = iota
	Busy
)

func (s State) String() string {
	if s == Busy {
		return "busy"
	}
	return "idle"
}

// Pressure mirrors the donor's memory-pressure tiers (cluster/lom_cache_hk.go:
// OOM / extreme / high / normal), wired in here as an additive knob on top
// of the increment the ticker would otherwise use.
type Pressure int

const (
	PressureNormal Pressure = iota
	PressureHigh
	PressureExtreme
	PressureOOM
)

// Cleaner runs the incremental sweep over a Database (spec.md §4.5). One
// Cleaner owns exactly one database iterator at a time, one ticker
// registered in a shared hk.Registry, and a Busy/Idle state guarded by an
// atomic so a slow sweep never overlaps a second one started by a missed
// tick.
type Cleaner struct {
	mu   sync.Mutex
	db   Database
	iter Iterator

	hkReg *hk.Registry
	name  string

	interval  time.Duration
	increment int
	running   atomic.Bool // true while a sweep is in progress (Busy)
	state     State

	// PressureFunc, if set, is consulted at the start of every tick to
	// scale the per-wake-up increment down under memory pressure. A nil
	// PressureFunc means "always normal".
	PressureFunc func() Pressure

	stats *stats.ADBStats
}

// NewCleaner creates a Cleaner for db, registered under name in reg. The
// cleaner starts with no ticker armed; call SetInterval to activate it
// (spec.md §4.5: "Setting cleaning-interval to 0 deactivates the ticker").
func NewCleaner(name string, db Database, reg *hk.Registry, increment int, st *stats.ADBStats) *Cleaner {
	return &Cleaner{
		db:        db,
		hkReg:     reg,
		name:      name,
		increment: increment,
		state:     Idle,
		stats:     st,
	}
}

// SetInterval starts, updates, or deactivates the cleaner's ticker.
// interval == 0 deactivates it; interval > 0 (re)starts a ticker of that
// period.
func (c *Cleaner) SetInterval(interval time.Duration) {
	c.mu.Lock()
	c.interval = interval
	c.mu.Unlock()

	if interval <= 0 {
		c.hkReg.Unreg(c.name)
		return
	}
	c.hkReg.Reg(c.name, c.tick, interval)
}

// tick is the hk.Func driving the sweep: called once per ticker period
// while Idle, and also used as the self-reschedule vehicle while Busy
// (spec.md §4.5: "schedule a self-reschedule event").
func (c *Cleaner) tick() time.Duration {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch state {
	case Idle:
		if !c.running.CAS(false, true) {
			// lost a race with a concurrent start; treat as "busy, skip".
			glog.Warningf("cache cleaner %q: tick while already running, skipping", c.name)
			return c.currentInterval()
		}
		return c.start()
	case Busy:
		// hk keeps one timer per job name, so a tick while Busy is the
		// pass's own self-reschedule: continue with the next increment
		// rather than starting a second pass.
		return c.processIncrement()
	}
	return c.currentInterval()
}

func (c *Cleaner) currentInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// start creates the iterator and positions it at the first node, then
// processes the first increment's worth of work.
func (c *Cleaner) start() time.Duration {
	iter, err := c.db.NewIterator()
	if err != nil {
		glog.Errorf("cache cleaner %q: failed to create iterator: %v", c.name, err)
		c.finish()
		return c.currentInterval()
	}
	c.mu.Lock()
	c.iter = iter
	c.state = Busy
	c.mu.Unlock()

	if !iter.First() {
		// empty database: nothing to do this pass.
		iter.Release()
		c.mu.Lock()
		c.iter = nil
		c.mu.Unlock()
		c.finish()
		return c.currentInterval()
	}
	return c.processIncrement()
}

// processIncrement processes at most `increment` nodes (scaled down under
// memory pressure), then pauses the iterator and self-reschedules almost
// immediately so the caller's goroutine yields between batches (spec.md
// §5: "the cleaner task does not hold locks across iterator pauses").
func (c *Cleaner) processIncrement() time.Duration {
	start := time.Now()
	n := c.effectiveIncrement()
	now := time.Now()

	c.mu.Lock()
	iter := c.iter
	c.mu.Unlock()

	if iter == nil {
		c.finish()
		return c.currentInterval()
	}

	processed := 0
	evicted := 0
	for processed < n {
		node := iter.Node()
		if err := c.db.ExpireNode(node, now); err != nil {
			glog.Errorf("cache cleaner %q: expire error: %v", c.name, err)
			c.db.ReleaseNode(node)
			iter.Release()
			c.mu.Lock()
			c.iter = nil
			c.mu.Unlock()
			c.finish()
			if c.stats != nil {
				c.stats.ObserveSweep(time.Since(start))
			}
			return c.currentInterval()
		}
		c.db.ReleaseNode(node)
		evicted++
		processed++
		if !iter.Next() {
			iter.Release()
			c.mu.Lock()
			c.iter = nil
			c.mu.Unlock()
			c.finish()
			if c.stats != nil {
				c.stats.ObserveSweep(time.Since(start))
				c.stats.CleanerEvicted.Add(float64(evicted))
			}
			return c.currentInterval()
		}
	}

	iter.Pause()
	if c.stats != nil {
		c.stats.ObserveSweep(time.Since(start))
		c.stats.CleanerEvicted.Add(float64(evicted))
	}
	// Self-reschedule almost immediately to process the next increment;
	// the ticker's own period only governs the Idle->Busy transition.
	return time.Millisecond
}

func (c *Cleaner) effectiveIncrement() int {
	n := c.increment
	if c.PressureFunc == nil {
		return n
	}
	switch c.PressureFunc() {
	case PressureOOM:
		return max(1, n/8)
	case PressureExtreme:
		return max(1, n/4)
	case PressureHigh:
		return max(1, n/2)
	default:
		return n
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (c *Cleaner) finish() {
	c.mu.Lock()
	c.state = Idle
	c.mu.Unlock()
	c.running.Store(false)
}

// State reports the cleaner's current Idle/Busy state.
func (c *Cleaner) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Shutdown detaches the timer, purges pending reschedule events, and
// releases the database reference (spec.md §4.5 shutdown contract).
func (c *Cleaner) Shutdown() {
	c.hkReg.Unreg(c.name)
	c.mu.Lock()
	if c.iter != nil {
		c.iter.Release()
		c.iter = nil
	}
	c.mu.Unlock()
	if c.db.DecLiveTasks() {
		c.db.Free()
	}
}

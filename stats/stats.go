// Package stats registers the ADB's runtime counters and gauges against a
// Prometheus registry. The donor's own stats package (stats/target_stats.go,
// stats/proxy_stats.go) tracks the same *shape* of metric — counters
// suffixed ".n", sizes ".size", latencies ".ns" — through an internal
// StatsD-style runner; github.com/prometheus/client_golang is a direct
// donor dependency that the retrieved subset of stats/*.go never calls
// directly (it rides in over a transitive metrics-export path not part of
// the pack). This package gives that dependency its first real call site:
// the same named metrics, exported as native Prometheus collectors instead
// of through a StatsD runner, since the ADB has no external StatsD sink to
// write to.
package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Naming convention carried over from the donor's stats package comment:
//  -> "*_total"   - counter
//  -> "*_seconds" - latency/duration
//  -> "*_current" - gauge
type ADBStats struct {
	BucketOccupancy   *prometheus.GaugeVec // labeled by "kind" (name|endpoint)
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
	NegativeCacheHits prometheus.Counter
	AliasHits         prometheus.Counter
	FetchesStarted    *prometheus.CounterVec // labeled by "family" (v4|v6; A6 hops count as v6)
	FetchesOutstanding *prometheus.GaugeVec  // labeled by "family"
	FetchFailures     *prometheus.CounterVec // labeled by "kind" (negative|generic)
	EndpointsLive     prometheus.Gauge
	NamesLive         prometheus.Gauge
	CleanerSweepTime  prometheus.Histogram
	CleanerEvicted    prometheus.Counter
}

// New registers the ADB's metric family against reg and returns the
// handle. reg may be prometheus.NewRegistry() in tests, or
// prometheus.DefaultRegisterer in production, matching the donor's
// practice of taking an explicit registry rather than relying solely on
// package-level globals.
func New(reg prometheus.Registerer) *ADBStats {
	s := &ADBStats{
		BucketOccupancy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "adb_bucket_occupancy_current",
			Help: "number of live entities per bucket kind",
		}, []string{"kind"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adb_lookup_cache_hits_total",
			Help: "lookups satisfied entirely from already-cached data",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adb_lookup_cache_misses_total",
			Help: "lookups that required a local-lookup or a fetch",
		}),
		NegativeCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adb_lookup_negative_cache_hits_total",
			Help: "lookups short-circuited by an unexpired negative cache entry",
		}),
		AliasHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adb_lookup_alias_hits_total",
			Help: "lookups resolved as an unexpired CNAME/DNAME alias",
		}),
		FetchesStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adb_fetches_started_total",
			Help: "resolver fetches started, by address family",
		}, []string{"family"}),
		FetchesOutstanding: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "adb_fetches_outstanding_current",
			Help: "resolver fetches currently in flight, by address family",
		}, []string{"family"}),
		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adb_fetch_failures_total",
			Help: "fetch completions that produced no usable data, by kind",
		}, []string{"kind"}),
		EndpointsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "adb_endpoints_live_current",
			Help: "live Endpoint entities across all buckets",
		}),
		NamesLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "adb_names_live_current",
			Help: "live Name entities across all buckets",
		}),
		CleanerSweepTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "adb_cleaner_sweep_seconds",
			Help:    "wall time spent processing one increment of cache cleaner work",
			Buckets: prometheus.DefBuckets,
		}),
		CleanerEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adb_cleaner_evicted_total",
			Help: "nodes visited and expiry-checked by the cache cleaner",
		}),
	}
	reg.MustRegister(
		s.BucketOccupancy, s.CacheHits, s.CacheMisses, s.NegativeCacheHits, s.AliasHits,
		s.FetchesStarted, s.FetchesOutstanding, s.FetchFailures,
		s.EndpointsLive, s.NamesLive, s.CleanerSweepTime, s.CleanerEvicted,
	)
	return s
}

// ObserveSweep records the duration of one increment of the cache
// cleaner's sweep.
func (s *ADBStats) ObserveSweep(d time.Duration) {
	if s == nil {
		return
	}
	s.CleanerSweepTime.Observe(d.Seconds())
}

// Noop is a stats sink that discards everything; used where the caller
// doesn't want metrics wired (e.g. unit tests for logic unrelated to
// stats).
func Noop() *ADBStats { return New(prometheus.NewRegistry()) }

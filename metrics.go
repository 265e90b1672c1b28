package farmgate

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one in-process counter or histogram.
type MetricID uint16

const (
	// MetricLoginSuccess counts accepted logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts logins the identity service rejected.
	MetricLoginFailure
	// MetricLoginUnavailable counts logins lost to identity outages.
	MetricLoginUnavailable
	// MetricLogout counts logouts.
	MetricLogout
	// MetricBootstrapCacheHit counts bootstraps restored from the durable
	// medium without waiting on the identity service.
	MetricBootstrapCacheHit
	// MetricBootstrapCacheMiss counts bootstraps that found no usable
	// cached session.
	MetricBootstrapCacheMiss
	// MetricRevalidateSuccess counts background revalidations that
	// confirmed the cached profile.
	MetricRevalidateSuccess
	// MetricRevalidateFailure counts background revalidations that failed;
	// these never end the session.
	MetricRevalidateFailure
	// MetricRevalidateStaleDrop counts revalidation results discarded
	// because the session generation moved on.
	MetricRevalidateStaleDrop
	// MetricProfileRefreshed counts revalidations whose fresh profile
	// differed from the cache and replaced it.
	MetricProfileRefreshed
	// MetricStoreRepaired counts repair-on-read copies of the cookie token
	// into the durable medium.
	MetricStoreRepaired
	// MetricStoreReset counts corrupt durable entries cleared on read.
	MetricStoreReset
	// MetricEdgePublic counts edge passes on public and realtime paths.
	MetricEdgePublic
	// MetricEdgeAllowed counts protected-path passes with a credential.
	MetricEdgeAllowed
	// MetricEdgeDenied counts protected-path redirects to the login route.
	MetricEdgeDenied
	// MetricEdgeRedirectIfAuth counts login-page passes.
	MetricEdgeRedirectIfAuth
	// MetricEdgeDefault counts passes that matched no route table.
	MetricEdgeDefault
	// MetricRelayCookieSet counts token-to-cookie mirror requests served.
	MetricRelayCookieSet
	// MetricRelayCookieRejected counts mirror requests without a token.
	MetricRelayCookieRejected
	// MetricRelayTokenServed counts cookie-to-token reads served.
	MetricRelayTokenServed
	// MetricRelayTokenMissing counts cookie-to-token reads with no cookie.
	MetricRelayTokenMissing
	// MetricRelayValidateSuccess counts validation forwards accepted
	// upstream.
	MetricRelayValidateSuccess
	// MetricRelayValidateFailure counts validation forwards rejected or
	// lost upstream.
	MetricRelayValidateFailure
	// MetricRevalidateLatency is the background revalidation latency
	// histogram.
	MetricRevalidateLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

// paddedCounter keeps each counter on its own cache line so hot counters
// do not false-share under concurrent increments.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is the lock-free in-process metrics table. A nil or disabled
// Metrics accepts all calls as no-ops.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and histogram
// buckets, safe to read after the engine keeps mutating.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a metrics table per cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are being recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is being recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records one revalidation latency sample.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricRevalidateLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when enabled, the latency histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricRevalidateLatency].buckets[i])
		}
		s.Histograms[MetricRevalidateLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}

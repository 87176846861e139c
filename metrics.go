package draftauth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a specific counter or histogram bucket in the
// in-process metrics system.
type MetricID uint16

const (
	// MetricResolveSuccess counts session resolutions that produced a SessionView.
	MetricResolveSuccess MetricID = iota
	// MetricResolveUnauthenticated counts resolutions rejected for a missing,
	// invalid, or expired credential.
	MetricResolveUnauthenticated
	// MetricResolveAccountMissing counts credentials referencing deleted accounts.
	MetricResolveAccountMissing
	// MetricResolveStoreUnavailable counts fail-closed account store outages.
	MetricResolveStoreUnavailable
	// MetricCredentialRefreshed counts superseding credentials issued on
	// explicit refresh requests.
	MetricCredentialRefreshed
	// MetricRefreshRateLimited counts explicit refreshes rejected by the throttle.
	MetricRefreshRateLimited
	// MetricVerdictAllow counts Authorize outcomes that let the handler run.
	MetricVerdictAllow
	// MetricVerdictRedirectSignIn counts redirects to the sign-in route.
	MetricVerdictRedirectSignIn
	// MetricVerdictRedirectDeactivated counts redirects to the deactivated notice.
	MetricVerdictRedirectDeactivated
	// MetricRoleDenied counts RequireRole rejections.
	MetricRoleDenied
	// MetricSignInSuccess counts successful sign-ins.
	MetricSignInSuccess
	// MetricSignInFailure counts sign-ins rejected for bad credentials.
	MetricSignInFailure
	// MetricSignInRateLimited counts sign-ins rejected by the throttle.
	MetricSignInRateLimited
	// MetricAccountStatusChanged counts deactivation and role changes
	// applied through the authority.
	MetricAccountStatusChanged
	// MetricResolveLatency is the ResolveSession latency histogram.
	MetricResolveLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

// paddedCounter keeps hot counters on distinct cache lines.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds atomic counters and an optional latency histogram for the
// resolve hot path. When disabled, all operations are no-ops.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a [Metrics] instance configured by the given
// [MetricsConfig].
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

// Inc increments the counter identified by id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a resolve latency sample. Only MetricResolveLatency is
// histogram-backed; other IDs are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id != MetricResolveLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of a single counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot returns a deep copy of all counters and histograms.
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
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricResolveLatency].buckets[i])
		}
		s.Histograms[MetricResolveLatency] = buckets
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

package sessionkit

import "sync/atomic"

// MetricID identifies one lifecycle counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts logins that reached the authenticated phase.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts logins rejected by the identity service.
	MetricLoginFailure
	// MetricCheckSessionHit counts startup checks that restored a session.
	MetricCheckSessionHit
	// MetricCheckSessionMiss counts startup checks that found nothing usable.
	MetricCheckSessionMiss
	// MetricRenewSuccess counts successful refresh-token exchanges.
	MetricRenewSuccess
	// MetricRenewFailure counts rejected or failed exchanges.
	MetricRenewFailure
	// MetricWarningFired counts pre-expiry warnings raised.
	MetricWarningFired
	// MetricSessionExpired counts sessions terminated by expiry.
	MetricSessionExpired
	// MetricLogout counts sign-outs, manual and forced.
	MetricLogout
	// MetricStorageCorrupt counts envelopes discarded by integrity checks.
	MetricStorageCorrupt
	// MetricStoragePutFailure counts best-effort persists that failed.
	MetricStoragePutFailure
	// MetricOperationRejected counts calls refused by the in-flight guard.
	MetricOperationRejected
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of atomic lifecycle counters. A nil or disabled
// Metrics accepts increments and reports zeros.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics builds a Metrics set honoring cfg.Enabled.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Enabled reports whether increments are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to the counter. No-op when disabled or out of range.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value reads a single counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. The result is detached; mutating it does
// not affect the live set.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}

	s := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, int(metricIDCount)),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CatalogMetrics records upstream fetch behavior for browsing sessions.
type CatalogMetrics struct {
	duration  *prometheus.HistogramVec
	failures  *prometheus.CounterVec
	retries   prometheus.Counter
	cacheHits *prometheus.CounterVec
	sessions  prometheus.Gauge
}

// NewCatalogMetrics registers the catalog metrics on the provided registerer.
func NewCatalogMetrics(reg prometheus.Registerer) *CatalogMetrics {
	if reg == nil {
		return &CatalogMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upstream_request_duration_seconds",
		Help:    "Duration of upstream products requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_request_failures_total",
		Help: "Failed upstream products requests by error code.",
	}, []string{"kind", "code"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "page_load_retries_total",
		Help: "Page loads rescheduled after a retryable failure.",
	})
	cacheHits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "full_collection_cache_hits_total",
		Help: "Full collection requests served without calling upstream.",
	}, []string{"layer"})
	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "browse_sessions_active",
		Help: "Browsing sessions currently held in memory.",
	})
	reg.MustRegister(duration, failures, retries, cacheHits, sessions)
	return &CatalogMetrics{
		duration:  duration,
		failures:  failures,
		retries:   retries,
		cacheHits: cacheHits,
		sessions:  sessions,
	}
}

// ObserveRequest records the duration of one upstream request.
func (m *CatalogMetrics) ObserveRequest(kind string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(kind)).Observe(duration.Seconds())
}

// IncFailure counts a failed upstream request.
func (m *CatalogMetrics) IncFailure(kind, code string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(kind), normalizeLabel(code)).Inc()
}

// IncRetry counts a scheduled page retry.
func (m *CatalogMetrics) IncRetry() {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.Inc()
}

// IncCacheHit counts a full collection served from the named layer.
func (m *CatalogMetrics) IncCacheHit(layer string) {
	if m == nil || m.cacheHits == nil {
		return
	}
	m.cacheHits.WithLabelValues(normalizeLabel(layer)).Inc()
}

// SetActiveSessions reports the number of live sessions.
func (m *CatalogMetrics) SetActiveSessions(n int) {
	if m == nil || m.sessions == nil {
		return
	}
	m.sessions.Set(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

package observability

import (
	"time"

	"github.com/boddenberg/bazchat-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Auto-reply outcomes.
const (
	AutoReplyOK      = "ok"
	AutoReplyError   = "error"
	AutoReplyDropped = "dropped"
	AutoReplySkipped = "skipped"
)

// Metrics holds all Prometheus metrics for the storefront.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	messagesTotal   *prometheus.CounterVec
	autoReplies     *prometheus.CounterVec
	signups         *prometheus.CounterVec
	markedRead      prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. A private registry lets tests call NewMetrics
// repeatedly without "duplicate collector" panics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bazchat_operation_duration_seconds",
				Help:    "Duration of store and provider operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bazchat_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bazchat_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bazchat_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		messagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bazchat_messages_total",
				Help: "Chat messages stored, by sender.",
			},
			[]string{"sender"},
		),
		autoReplies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bazchat_auto_replies_total",
				Help: "Auto-responder outcomes.",
			},
			[]string{"status"},
		),
		signups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bazchat_signups_total",
				Help: "Signup outcomes.",
			},
			[]string{"outcome"},
		),
		markedRead: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bazchat_messages_marked_read_total",
				Help: "Customer messages transitioned to read.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrMessage counts a stored message for the given sender.
func (m *Metrics) IncrMessage(sender string) {
	m.messagesTotal.WithLabelValues(sender).Inc()
}

// IncrAutoReply counts an auto-responder outcome.
func (m *Metrics) IncrAutoReply(status string) {
	m.autoReplies.WithLabelValues(status).Inc()
}

// IncrSignup counts a signup outcome ("created", "slug_retry", "duplicate_phone", ...).
func (m *Metrics) IncrSignup(outcome string) {
	m.signups.WithLabelValues(outcome).Inc()
}

// AddMarkedRead adds n messages to the marked-read counter.
func (m *Metrics) AddMarkedRead(n int64) {
	if n > 0 {
		m.markedRead.Add(float64(n))
	}
}

// ChatSnapshot returns cumulative chat metrics suitable for the
// GET /v1/metrics/chat endpoint.
func (m *Metrics) ChatSnapshot() *domain.ChatMetrics {
	cacheHits := getCounterValue(m.cacheHits, "profile")
	cacheMisses := getCounterValue(m.cacheMisses, "profile")

	hitRate := float64(0)
	if cacheHits+cacheMisses > 0 {
		hitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.ChatMetrics{
		CustomerMessages:   int64(getCounterValue(m.messagesTotal, domain.SenderCustomer)),
		OwnerMessages:      int64(getCounterValue(m.messagesTotal, domain.SenderOwner)),
		AIReplies:          int64(getCounterValue(m.autoReplies, AutoReplyOK)),
		AIReplyErrors:      int64(getCounterValue(m.autoReplies, AutoReplyError)),
		AIRepliesDropped:   int64(getCounterValue(m.autoReplies, AutoReplyDropped)),
		MessagesMarkedRead: int64(metricValue(m.markedRead)),
		Signups:            int64(getCounterValue(m.signups, "created")),
		SlugRetries:        int64(getCounterValue(m.signups, "slug_retry")),
		ProfileCacheHit:    hitRate,
		Period:             "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	return metricValue(cv.WithLabelValues(label))
}

func metricValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

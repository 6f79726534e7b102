package tentacles

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors shared by clients and webhook engines.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	cacheEvents   *prometheus.CounterVec
	rateLimitWait *prometheus.HistogramVec
	webhookEvents *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tentacles_requests_total",
				Help: "Total number of provider API requests",
			},
			[]string{"provider", "method", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tentacles_request_duration_seconds",
				Help:    "Provider API request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "method"},
		),
		cacheEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tentacles_cache_events_total",
				Help: "Response cache hits and misses",
			},
			[]string{"provider", "event"},
		),
		rateLimitWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tentacles_ratelimit_wait_seconds",
				Help:    "Time spent waiting on the client-side rate limiter",
				Buckets: []float64{0, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 60},
			},
			[]string{"provider"},
		),
		webhookEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tentacles_webhook_events_total",
				Help: "Webhook deliveries by event type and outcome",
			},
			[]string{"provider", "event_type", "outcome"},
		),
	}

	for _, c := range []prometheus.Collector{m.requests, m.duration, m.cacheEvents, m.rateLimitWait, m.webhookEvents} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ObserveRequest(provider, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(provider, method, label).Inc()
	m.duration.WithLabelValues(provider, method).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveCache(provider string, hit bool) {
	if m == nil {
		return
	}
	event := "miss"
	if hit {
		event = "hit"
	}
	m.cacheEvents.WithLabelValues(provider, event).Inc()
}

func (m *Metrics) ObserveRateLimitWait(provider string, waited time.Duration) {
	if m == nil {
		return
	}
	m.rateLimitWait.WithLabelValues(provider).Observe(waited.Seconds())
}

func (m *Metrics) ObserveWebhook(provider, eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(provider, eventType, outcome).Inc()
}

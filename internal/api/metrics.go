package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tejusbharadwaj/wattwatch/internal/ratelimit"
)

// Metrics instruments the fetcher. A nil *Metrics records nothing.
type Metrics struct {
	Requests        *prometheus.CounterVec
	Latency         *prometheus.HistogramVec
	Throttles       prometheus.Counter
	TimeoutRetries  prometheus.Counter
	RemainingPerDay prometheus.Gauge
}

// NewMetrics creates the fetcher collectors and registers them with reg when
// reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wattwatch",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Telemetry API attempts by HTTP method and outcome.",
		}, []string{"method", "status"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wattwatch",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Latency of single telemetry API attempts.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		Throttles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wattwatch",
			Subsystem: "api",
			Name:      "throttle_waits_total",
			Help:      "Per-second throttles waited out while the daily budget remained.",
		}),
		TimeoutRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wattwatch",
			Subsystem: "api",
			Name:      "timeout_retries_total",
			Help:      "Attempts retried after a timeout.",
		}),
		RemainingPerDay: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wattwatch",
			Subsystem: "api",
			Name:      "remaining_per_day",
			Help:      "Daily request budget left according to the latest response.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Requests, m.Latency, m.Throttles, m.TimeoutRetries, m.RemainingPerDay)
	}
	return m
}

func (m *Metrics) observeAttempt(method, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, status).Inc()
	m.Latency.WithLabelValues(method).Observe(took.Seconds())
}

func (m *Metrics) observeLimits(limits ratelimit.RateLimits) {
	if m == nil || limits.RemainingPerDay == nil {
		return
	}
	m.RemainingPerDay.Set(float64(*limits.RemainingPerDay))
}

func (m *Metrics) throttled() {
	if m != nil {
		m.Throttles.Inc()
	}
}

func (m *Metrics) timedOut() {
	if m != nil {
		m.TimeoutRetries.Inc()
	}
}

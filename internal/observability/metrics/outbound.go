package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboundMetrics exports resilience events for calls to portals, regulation
// hosts, LLM providers and the job queue. It satisfies resilience.Observer.
type OutboundMetrics struct {
	service      string
	retries      *prometheus.CounterVec
	retryWait    *prometheus.HistogramVec
	breakerState *prometheus.GaugeVec
}

func newOutboundMetrics(registry prometheus.Registerer, service string) *OutboundMetrics {
	m := &OutboundMetrics{
		service: service,
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "outbound",
				Name:      "retries_total",
				Help:      "Total retried outbound calls by operation.",
			},
			[]string{"service", "operation"},
		),
		retryWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "outbound",
				Name:      "retry_wait_seconds",
				Help:      "Wait before each retry in seconds.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"service", "operation"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "outbound",
				Name:      "circuit_breaker_open",
				Help:      "1 while the operation's circuit breaker is open, 0.5 half-open, 0 closed.",
			},
			[]string{"service", "operation"},
		),
	}
	registry.MustRegister(m.retries, m.retryWait, m.breakerState)
	return m
}

func (m *OutboundMetrics) ObserveRetry(operation string, _ int, wait time.Duration) {
	m.retries.WithLabelValues(m.service, operation).Inc()
	m.retryWait.WithLabelValues(m.service, operation).Observe(wait.Seconds())
}

func (m *OutboundMetrics) ObserveBreakerState(operation, state string) {
	value := 0.0
	switch state {
	case "open":
		value = 1
	case "half-open":
		value = 0.5
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}

package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
	"github.com/kirillkom/urbanism-zoning/internal/core/ports"
)

type WorkerMetrics struct {
	registry *prometheus.Registry
	outbound *OutboundMetrics

	indexTotal    *prometheus.CounterVec
	indexDuration *prometheus.HistogramVec
	indexInFlight prometheus.Gauge
	chunksTotal   *prometheus.CounterVec
	queueLag      *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	indexTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "regulation_index_total",
			Help:      "Total indexed regulation documents by status.",
		},
		[]string{"service", "status"},
	)
	indexDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "regulation_index_duration_seconds",
			Help:      "Regulation indexing duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	indexInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "regulation_index_in_flight",
			Help:      "Number of in-flight regulation indexing jobs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	chunksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "chunks_indexed_total",
			Help:      "Total regulation chunks embedded and stored.",
		},
		[]string{"service"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between job publication and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(indexTotal, indexDuration, indexInFlight, chunksTotal, queueLag)

	return &WorkerMetrics{
		registry:      registry,
		outbound:      newOutboundMetrics(registry, service),
		indexTotal:    indexTotal,
		indexDuration: indexDuration,
		indexInFlight: indexInFlight,
		chunksTotal:   chunksTotal,
		queueLag:      queueLag,
	}
}

func (m *WorkerMetrics) Outbound() *OutboundMetrics {
	return m.outbound
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartJob() {
	m.indexInFlight.Inc()
}

func (m *WorkerMetrics) FinishJob(service string, duration time.Duration, err error) {
	m.indexInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.indexTotal.WithLabelValues(service, status).Inc()
	m.indexDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

type countingIndexer struct {
	next    ports.DocumentIndexer
	chunks  *prometheus.CounterVec
	service string
}

// InstrumentIndexer counts the chunks written by every successful IndexDocument call.
func (m *WorkerMetrics) InstrumentIndexer(service string, next ports.DocumentIndexer) ports.DocumentIndexer {
	return &countingIndexer{next: next, chunks: m.chunksTotal, service: service}
}

func (c *countingIndexer) IndexDocument(ctx context.Context, in domain.IndexDocumentInput) (int, error) {
	n, err := c.next.IndexDocument(ctx, in)
	if err == nil && n > 0 {
		c.chunks.WithLabelValues(c.service).Add(float64(n))
	}
	return n, err
}

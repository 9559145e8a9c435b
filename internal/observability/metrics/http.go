package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
	"github.com/kirillkom/urbanism-zoning/internal/core/ports"
)

const namespace = "uzl"

// Lookup outcomes, from least to most complete.
const (
	OutcomeNoAddress = "no_address"
	OutcomeNoPoint   = "no_point"
	OutcomeNoMatch   = "no_match"
	OutcomeMatched   = "matched"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry
	outbound *OutboundMetrics

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	lookupTotal          *prometheus.CounterVec
	lookupZones          *prometheus.HistogramVec
	ragRequestsTotal     *prometheus.CounterVec
	ragRetrievalHitTotal *prometheus.CounterVec
	ragNoContextTotal    *prometheus.CounterVec
	ragRetrievedChunks   *prometheus.HistogramVec
	ragDuration          *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	lookupTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lookup",
			Name:      "requests_total",
			Help:      "Total zoning lookups by city and outcome.",
		},
		[]string{"service", "city", "outcome"},
	)
	lookupZones := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "lookup",
			Name:      "zones_matched",
			Help:      "Distribution of zones containing the resolved point.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		},
		[]string{"service", "city"},
	)
	ragRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "requests_total",
			Help:      "Total successful regulation retrievals.",
		},
		[]string{"service"},
	)
	ragRetrievalHitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "retrieval_hit_total",
			Help:      "Total retrievals with at least one chunk.",
		},
		[]string{"service"},
	)
	ragNoContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "no_context_total",
			Help:      "Total retrievals without chunks.",
		},
		[]string{"service"},
	)
	ragRetrievedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "retrieved_chunks",
			Help:      "Distribution of retrieved chunks per retrieval.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 30},
		},
		[]string{"service"},
	)
	ragDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "duration_seconds",
			Help:      "Retrieval duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		lookupTotal,
		lookupZones,
		ragRequestsTotal,
		ragRetrievalHitTotal,
		ragNoContextTotal,
		ragRetrievedChunks,
		ragDuration,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		outbound:             newOutboundMetrics(registry, service),
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		lookupTotal:          lookupTotal,
		lookupZones:          lookupZones,
		ragRequestsTotal:     ragRequestsTotal,
		ragRetrievalHitTotal: ragRetrievalHitTotal,
		ragNoContextTotal:    ragNoContextTotal,
		ragRetrievedChunks:   ragRetrievedChunks,
		ragDuration:          ragDuration,
	}
}

// Outbound exposes the resilience observer registered on this process registry.
func (m *HTTPServerMetrics) Outbound() *OutboundMetrics {
	return m.outbound
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/counties/") && strings.HasSuffix(path, "/cities"):
		return "/v1/counties/{county}/cities"
	case strings.HasPrefix(path, "/v1/cities/"):
		return "/v1/cities/{city_id}"
	default:
		return path
	}
}

// LookupOutcome classifies a lookup result by how far the pipeline got.
func LookupOutcome(result *domain.LookupResult) string {
	switch {
	case result == nil || len(result.SearchResults) == 0:
		return OutcomeNoAddress
	case result.Point == nil:
		return OutcomeNoPoint
	case len(result.Zones) == 0:
		return OutcomeNoMatch
	default:
		return OutcomeMatched
	}
}

func (m *HTTPServerMetrics) RecordLookup(service string, result *domain.LookupResult) {
	city := "unknown"
	if result != nil && result.CityID != "" {
		city = result.CityID
	}
	outcome := LookupOutcome(result)
	m.lookupTotal.WithLabelValues(service, city, outcome).Inc()
	if outcome == OutcomeNoMatch || outcome == OutcomeMatched {
		m.lookupZones.WithLabelValues(service, city).Observe(float64(len(result.Zones)))
	}
}

func (m *HTTPServerMetrics) RecordRAGObservation(service string, chunkCount int, duration time.Duration) {
	m.ragRequestsTotal.WithLabelValues(service).Inc()
	m.ragRetrievedChunks.WithLabelValues(service).Observe(float64(chunkCount))
	m.ragDuration.WithLabelValues(service).Observe(duration.Seconds())

	if chunkCount > 0 {
		m.ragRetrievalHitTotal.WithLabelValues(service).Inc()
		return
	}
	m.ragNoContextTotal.WithLabelValues(service).Inc()
}

type instrumentedRetriever struct {
	next    ports.RegulationRetriever
	metrics *HTTPServerMetrics
	service string
}

// InstrumentRetriever records an observation for every successful retrieval.
// A nil retriever stays nil so callers keep treating retrieval as disabled.
func (m *HTTPServerMetrics) InstrumentRetriever(service string, next ports.RegulationRetriever) ports.RegulationRetriever {
	if next == nil {
		return nil
	}
	return &instrumentedRetriever{next: next, metrics: m, service: service}
}

func (r *instrumentedRetriever) RetrieveContext(ctx context.Context, in domain.RetrieveContextInput) ([]domain.RetrievedChunk, error) {
	start := time.Now()
	chunks, err := r.next.RetrieveContext(ctx, in)
	if err != nil {
		return nil, err
	}
	r.metrics.RecordRAGObservation(r.service, len(chunks), time.Since(start))
	return chunks, nil
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Package metrics provides the Prometheus metrics of the simulation service.
// Every recording method is safe to call on a nil *Manager
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upstream endpoint labels
const (
	EndpointDiscovery  = "credito"
	EndpointSimulation = "oferta"
)

// Consultation outcome labels
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeNoOffers = "no_offers"
	OutcomeFailed   = "failed"
)

// Manager holds the service metrics
type Manager struct {
	registry  *prometheus.Registry
	namespace string
	subsystem string
	buckets   []float64

	consultations   *prometheus.CounterVec
	upstreamCalls   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	offersCollected prometheus.Counter
	offersDropped   prometheus.Counter
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// NewManager creates a new metrics manager
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		registry:  prometheus.NewRegistry(),
		namespace: "credsim",
		subsystem: "simulation",
		buckets:   prometheus.DefBuckets,
	}

	// Apply the options
	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates and registers the metrics
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.consultations = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "consultations_total",
			Help:      "Total number of credit consultations by outcome",
		},
		[]string{"outcome"},
	)

	m.upstreamCalls = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "upstream_calls_total",
			Help:      "Total number of upstream API calls by endpoint and result",
		},
		[]string{"endpoint", "result"},
	)

	m.upstreamLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "upstream_latency_seconds",
			Help:      "Upstream API call latency in seconds",
			Buckets:   m.buckets,
		},
		[]string{"endpoint"},
	)

	m.offersCollected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "offers_collected_total",
		Help:      "Total number of quotes collected from the fan-out",
	})

	m.offersDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "offers_dropped_total",
		Help:      "Total number of malformed quotes dropped during normalization",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route, method and status code",
		},
		[]string{"route", "method", "status_code"},
	)

	m.httpDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   m.buckets,
		},
		[]string{"route", "method"},
	)
}

// RecordConsultation increments the consultation counter for the outcome
func (m *Manager) RecordConsultation(outcome string) {
	if m == nil {
		return
	}

	m.consultations.WithLabelValues(outcome).Inc()
}

// RecordUpstreamCall records a single upstream call and its latency
func (m *Manager) RecordUpstreamCall(endpoint string, err error, took time.Duration) {
	if m == nil {
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
	}

	m.upstreamCalls.WithLabelValues(endpoint, result).Inc()
	m.upstreamLatency.WithLabelValues(endpoint).Observe(took.Seconds())
}

// RecordOffers records the collected and dropped quote counts of a consultation
func (m *Manager) RecordOffers(collected, dropped int) {
	if m == nil {
		return
	}

	m.offersCollected.Add(float64(collected))
	m.offersDropped.Add(float64(dropped))
}

// RecordHTTPRequest records a served HTTP request
func (m *Manager) RecordHTTPRequest(route, method string, status int, took time.Duration) {
	if m == nil {
		return
	}

	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(took.Seconds())
}

// Registry returns the Prometheus registry backing the manager
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler exposing the registered metrics
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Package metrics provides Prometheus metrics for portal client operations.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// List load results.
const (
	LoadOK    = "ok"
	LoadError = "error"
	LoadStale = "stale"
)

// Metrics holds all Prometheus metrics for portal operations.
// A nil *Metrics is a valid no-op instance.
type Metrics struct {
	enabled bool

	// HTTP metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// Session metrics
	sessionEventsTotal *prometheus.CounterVec

	// List controller metrics
	listLoadsTotal *prometheus.CounterVec
}

// New creates metrics registered on reg.
// If reg is nil, returns a no-op Metrics instance.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{enabled: reg != nil}
	if !m.enabled {
		return m
	}
	f := promauto.With(reg)

	m.requestsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_api_requests_total",
		Help: "Total API requests by method and status code",
	}, []string{"method", "status"})

	m.requestDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portal_api_request_duration_seconds",
		Help:    "API request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	m.sessionEventsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_session_events_total",
		Help: "Session state transitions by event",
	}, []string{"event"})

	m.listLoadsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_list_loads_total",
		Help: "Paged list loads by list and result",
	}, []string{"list", "result"})

	return m
}

// RecordRequest records one API request.
func (m *Metrics) RecordRequest(method string, status int, d time.Duration) {
	if m == nil || !m.enabled {
		return
	}
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// RecordSessionEvent records a session transition (login, logout, expired...).
func (m *Metrics) RecordSessionEvent(event string) {
	if m == nil || !m.enabled {
		return
	}
	m.sessionEventsTotal.WithLabelValues(event).Inc()
}

// RecordListLoad records a list load outcome (LoadOK, LoadError, LoadStale).
func (m *Metrics) RecordListLoad(list, result string) {
	if m == nil || !m.enabled {
		return
	}
	m.listLoadsTotal.WithLabelValues(list, result).Inc()
}

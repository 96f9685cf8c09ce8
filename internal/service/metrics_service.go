package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheOps        *prometheus.CounterVec
	dbQueryDuration *prometheus.HistogramVec
	archivedTotal   prometheus.Counter
	votesTotal      prometheus.Counter
	quorumDeletes   prometheus.Counter
	remindersFired  prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_operations_total",
		Help: "Cache lookups by cache name and outcome",
	}, []string{"cache", "outcome"})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	archivedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assignments_archived_total",
		Help: "Assignments moved to the archive by the lazy sweep",
	})

	votesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deletion_votes_total",
		Help: "Deletion votes cast",
	})

	quorumDeletes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assignments_quorum_deleted_total",
		Help: "Assignments deleted after reaching the vote quorum",
	})

	remindersFired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminders_fired_total",
		Help: "Due-date reminders delivered",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheOps, dbQueryDuration, archivedTotal, votesTotal, quorumDeletes, remindersFired, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheOps:        cacheOps,
		dbQueryDuration: dbQueryDuration,
		archivedTotal:   archivedTotal,
		votesTotal:      votesTotal,
		quorumDeletes:   quorumDeletes,
		remindersFired:  remindersFired,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup outcome ("hit" or "miss").
func (m *MetricsService) RecordCacheOperation(cache, outcome string) {
	if m == nil {
		return
	}
	m.cacheOps.WithLabelValues(cache, outcome).Inc()
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordArchived counts assignments archived by the lazy sweep.
func (m *MetricsService) RecordArchived(count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.archivedTotal.Add(float64(count))
}

// RecordDeletionVote counts a cast vote, and the resulting deletion when
// the quorum was reached.
func (m *MetricsService) RecordDeletionVote(deleted bool) {
	if m == nil {
		return
	}
	m.votesTotal.Inc()
	if deleted {
		m.quorumDeletes.Inc()
	}
}

// RecordReminderFired counts a delivered reminder.
func (m *MetricsService) RecordReminderFired() {
	if m == nil {
		return
	}
	m.remindersFired.Inc()
}

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
	dbQueryDuration *prometheus.HistogramVec
	emailsSent      *prometheus.CounterVec
	batchCommits    *prometheus.CounterVec
	syncPasses      *prometheus.CounterVec
	matchDuration   prometheus.Observer
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

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	emailsSent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assignment_emails_total",
		Help: "Assignment notification emails by outcome",
	}, []string{"outcome"})

	batchCommits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "batch_commits_total",
		Help: "Batch workflow commits by outcome",
	}, []string{"outcome"})

	syncPasses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sheet_sync_passes_total",
		Help: "Spreadsheet sync passes by direction and result",
	}, []string{"direction", "result"})

	matchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "match_suggestion_duration_seconds",
		Help:    "Time spent computing match suggestions",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, dbQueryDuration, emailsSent, batchCommits, syncPasses, matchDuration, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		dbQueryDuration: dbQueryDuration,
		emailsSent:      emailsSent,
		batchCommits:    batchCommits,
		syncPasses:      syncPasses,
		matchDuration:   matchDuration,
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

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordEmail counts one delivery attempt.
func (m *MetricsService) RecordEmail(success bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if success {
		outcome = "sent"
	}
	m.emailsSent.WithLabelValues(outcome).Inc()
}

// RecordBatchCommit counts a committed batch by outcome token.
func (m *MetricsService) RecordBatchCommit(outcome string) {
	if m == nil {
		return
	}
	m.batchCommits.WithLabelValues(outcome).Inc()
}

// RecordSyncPass counts a spreadsheet sync pass.
func (m *MetricsService) RecordSyncPass(direction string, success bool) {
	if m == nil {
		return
	}
	result := "error"
	if success {
		result = "ok"
	}
	m.syncPasses.WithLabelValues(direction, result).Inc()
}

// ObserveMatch records suggestion computation timing.
func (m *MetricsService) ObserveMatch(duration time.Duration) {
	if m == nil {
		return
	}
	m.matchDuration.Observe(duration.Seconds())
}

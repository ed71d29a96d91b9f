package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campusgate/admissions-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the admissions
// lifecycle and the HTTP surface.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	applicationsCreated prometheus.Counter
	decisionsTotal      *prometheus.CounterVec
	selectionsTotal     prometheus.Counter
	promotionsTotal     prometheus.Counter
	withdrawalsTotal    prometheus.Counter

	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
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

	applicationsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "applications_created_total",
		Help: "Total applications created",
	})

	decisionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "application_decisions_total",
		Help: "Total staff decisions by resulting status",
	}, []string{"status"})

	selectionsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offer_selections_total",
		Help: "Total committed offer selections",
	})

	promotionsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "waitlist_promotions_total",
		Help: "Total waitlist promotions triggered by selections",
	})

	withdrawalsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "application_withdrawals_total",
		Help: "Total student withdrawals",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_hits_total",
		Help: "Total catalog cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_misses_total",
		Help: "Total catalog cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, applicationsCreated, decisionsTotal,
		selectionsTotal, promotionsTotal, withdrawalsTotal, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		applicationsCreated: applicationsCreated,
		decisionsTotal:      decisionsTotal,
		selectionsTotal:     selectionsTotal,
		promotionsTotal:     promotionsTotal,
		withdrawalsTotal:    withdrawalsTotal,
		cacheHits:           cacheHits,
		cacheMisses:         cacheMisses,
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

// RecordApplicationCreated counts a successful application creation.
func (m *MetricsService) RecordApplicationCreated() {
	if m == nil {
		return
	}
	m.applicationsCreated.Inc()
}

// RecordDecision counts a committed staff decision.
func (m *MetricsService) RecordDecision(status models.ApplicationStatus) {
	if m == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(string(status)).Inc()
}

// RecordSelection counts a committed selection and its promotions.
func (m *MetricsService) RecordSelection(promotions int) {
	if m == nil {
		return
	}
	m.selectionsTotal.Inc()
	m.promotionsTotal.Add(float64(promotions))
}

// RecordWithdrawal counts a committed withdrawal.
func (m *MetricsService) RecordWithdrawal() {
	if m == nil {
		return
	}
	m.withdrawalsTotal.Inc()
}

// RecordCacheOperation counts a catalog cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rollcall/attendance-api/internal/models"
	"github.com/rollcall/attendance-api/pkg/notify"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	confirmations   *prometheus.CounterVec
	taps            *prometheus.CounterVec
	initialized     prometheus.Counter
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

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "absence_notifications_total",
		Help: "Absence notification attempts by outcome",
	}, []string{"outcome"})

	confirmations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_confirmations_total",
		Help: "Confirmed attendance status changes",
	}, []string{"status"})

	taps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_taps_total",
		Help: "Status button taps by resulting transition",
	}, []string{"transition"})

	initialized := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_day_records_created_total",
		Help: "NOT_MARKED records created by day initialization",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, notifications, confirmations, taps, initialized, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		notifications:   notifications,
		confirmations:   confirmations,
		taps:            taps,
		initialized:     initialized,
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

// RecordNotification counts one gateway attempt.
func (m *MetricsService) RecordNotification(outcome notify.Outcome) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(string(outcome)).Inc()
}

// RecordConfirmation counts a persisted status change.
func (m *MetricsService) RecordConfirmation(status models.AttendanceStatus) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(string(status)).Inc()
}

// RecordTap counts a tap transition.
func (m *MetricsService) RecordTap(kind TapKind) {
	if m == nil {
		return
	}
	m.taps.WithLabelValues(string(kind)).Inc()
}

// RecordDayInitialized adds the number of records a day initialization created.
func (m *MetricsService) RecordDayInitialized(created int) {
	if m == nil || created <= 0 {
		return
	}
	m.initialized.Add(float64(created))
}

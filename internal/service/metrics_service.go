package service

import (
	"net/http"
	"runtime"
	"strconv"
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
	transitions     *prometheus.CounterVec
	paymentsTotal   *prometheus.CounterVec
	emailsQueued    prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService(queueDepth func() int) *MetricsService {
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

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "publication_transitions_total",
		Help: "Lifecycle transitions applied to publications",
	}, []string{"to"})

	paymentsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_total",
		Help: "Payments by terminal status",
	}, []string{"status"})

	emailsQueued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "emails_queued_total",
		Help: "Emails handed to the outbound mail queue",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	collectors := []prometheus.Collector{requestDuration, requestTotal, transitions, paymentsTotal, emailsQueued, goroutines}

	if queueDepth != nil {
		mailQueueDepth := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "mail_queue_depth",
			Help: "Jobs waiting in the outbound mail queue",
		}, func() float64 {
			return float64(queueDepth())
		})
		collectors = append(collectors, mailQueueDepth)
	}

	registry.MustRegister(collectors...)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		transitions:     transitions,
		paymentsTotal:   paymentsTotal,
		emailsQueued:    emailsQueued,
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

// ObserveHTTPRequest records request count and duration.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := []string{method, path, strconv.Itoa(status)}
	m.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

// ObserveTransition counts a lifecycle transition by target status.
func (m *MetricsService) ObserveTransition(to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(to).Inc()
}

// ObservePayment counts a payment reaching a terminal status.
func (m *MetricsService) ObservePayment(status string) {
	if m == nil {
		return
	}
	m.paymentsTotal.WithLabelValues(status).Inc()
}

// ObserveEmailQueued counts an email handed to the mail queue.
func (m *MetricsService) ObserveEmailQueued() {
	if m == nil {
		return
	}
	m.emailsQueued.Inc()
}

package observability

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricsNamespace = "notify_dispatcher"
	metricsPath      = "/metrics"
	unmatchedRoute   = "unmatched"
	unknownLabel     = "unknown"
)

// Metrics owns a private registry with the API, delivery and sweep collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests       *prometheus.CounterVec
	httpLatency        *prometheus.HistogramVec
	statusEntries      *prometheus.CounterVec
	sendLatency        *prometheus.HistogramVec
	dormantDevices     *prometheus.CounterVec
	sweptRecords       *prometheus.CounterVec
	deliveriesInflight prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{Namespace: metricsNamespace, Name: name, Help: help}, labels)
	}
	histogram := func(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
		return factory.NewHistogramVec(prometheus.HistogramOpts{Namespace: metricsNamespace, Name: name, Help: help, Buckets: buckets}, labels)
	}

	return &Metrics{
		registry:       registry,
		httpRequests:   counter("http_requests_total", "HTTP requests served, by method, route and status.", "method", "path", "status"),
		httpLatency:    histogram("http_request_duration_seconds", "HTTP request latency by method and route.", prometheus.DefBuckets, "method", "path"),
		statusEntries:  counter("status_entries_total", "Status log entries appended, by platform and status.", "platform", "status"),
		sendLatency:    histogram("transport_send_duration_seconds", "Transport send latency by platform.", prometheus.ExponentialBuckets(0.01, 2, 12), "platform"),
		dormantDevices: counter("dormant_devices_unregistered_total", "Dormant devices unregistered during delivery.", "platform"),
		sweptRecords:   counter("sweep_deleted_total", "Notification records removed by the retention sweeper.", "scope"),
		deliveriesInflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "deliveries_inflight",
			Help:      "Notifications currently being delivered.",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// HTTPMiddleware records every request except scrapes of the metrics endpoint.
func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := unmatchedRoute
		if r := c.Route(); r != nil && strings.TrimSpace(r.Path) != "" {
			route = r.Path
		}
		if route == metricsPath || m == nil {
			return err
		}

		method := strings.ToUpper(c.Method())
		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(responseStatus(c, err))).Inc()
		m.httpLatency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		return err
	}
}

func (m *Metrics) IncStatusEntry(platform string, status string) {
	if m != nil {
		m.statusEntries.WithLabelValues(label(platform), label(status)).Inc()
	}
}

func (m *Metrics) ObserveTransportSendDuration(platform string, d time.Duration) {
	if m != nil {
		m.sendLatency.WithLabelValues(label(platform)).Observe(max(d, 0).Seconds())
	}
}

func (m *Metrics) IncDormantUnregistered(platform string) {
	if m != nil {
		m.dormantDevices.WithLabelValues(label(platform)).Inc()
	}
}

func (m *Metrics) AddSweepDeleted(scope string, count int64) {
	if m != nil && count > 0 {
		m.sweptRecords.WithLabelValues(label(scope)).Add(float64(count))
	}
}

// TrackDelivery raises the in-flight gauge and returns the func that lowers it.
func (m *Metrics) TrackDelivery() (done func()) {
	if m == nil {
		return func() {}
	}
	m.deliveriesInflight.Inc()
	return m.deliveriesInflight.Dec
}

// responseStatus prefers the status carried by a returned *fiber.Error since the error
// handler has not written the response yet.
func responseStatus(c *fiber.Ctx, err error) int {
	if err != nil {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}
	if status := c.Response().StatusCode(); status != 0 {
		return status
	}
	return fiber.StatusOK
}

func label(value string) string {
	if v := strings.ToLower(strings.TrimSpace(value)); v != "" {
		return v
	}
	return unknownLabel
}

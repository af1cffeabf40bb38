package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "goride_payments"

type Metrics struct {
	registry *prometheus.Registry

	ChargesTotal        *prometheus.CounterVec
	CallbacksTotal      *prometheus.CounterVec
	STKPushDuration     prometheus.Histogram
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New builds a registry with the payment collectors plus the Go and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		ChargesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charges_total",
			Help:      "STK push charge attempts by outcome.",
		}, []string{"outcome"}),
		CallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callbacks_total",
			Help:      "STK callbacks received by reconciliation outcome and payment status.",
		}, []string{"outcome", "status"}),
		STKPushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stk_push_duration_seconds",
			Help:      "Latency of the provider STK push call, token fetch included.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ChargesTotal,
		m.CallbacksTotal,
		m.STKPushDuration,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// A nil *Metrics is valid and records nothing.
func (m *Metrics) ObserveCharge(outcome string) {
	if m == nil {
		return
	}
	m.ChargesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSTKPush(duration time.Duration) {
	if m == nil {
		return
	}
	m.STKPushDuration.Observe(duration.Seconds())
}

func (m *Metrics) ObserveCallback(outcome, status string) {
	if m == nil {
		return
	}
	m.CallbacksTotal.WithLabelValues(outcome, status).Inc()
}

func (m *Metrics) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

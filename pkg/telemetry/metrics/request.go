package metrics

import (
	"strconv"
	"time"

	"mercator-hq/loupe/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks recorded HTTP traffic.
//
// Metrics:
//   - loupe_recorder_requests_total: completed requests by method, route, status class
//   - loupe_recorder_request_duration_seconds: request duration histogram
//   - loupe_recorder_body_bytes: request and response body sizes
//   - loupe_recorder_transport_errors_total: terminal error records by kind
//   - loupe_recorder_capture_fallbacks_total: rendering fallbacks by field
type RequestMetrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	bodyBytes        *prometheus.HistogramVec
	transportErrors  *prometheus.CounterVec
	captureFallbacks *prometheus.CounterVec
}

// NewRequestMetrics creates and registers request metrics with the provided registry.
func NewRequestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total number of recorded requests that completed",
			},
			[]string{"method", "route", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "Duration of recorded requests in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"method", "route"},
		),

		bodyBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "body_bytes",
				Help:      "Size of request and response bodies in bytes",
				Buckets:   prometheus.ExponentialBuckets(64, 4, 10), // 64B to 16MB
			},
			[]string{"direction"},
		),

		transportErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "transport_errors_total",
				Help:      "Requests that ended in a write error, client abort or panic",
			},
			[]string{"kind"},
		),

		captureFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "capture_fallbacks_total",
				Help:      "Record fields rendered with a fallback representation",
			},
			[]string{"field"},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.bodyBytes,
		rm.transportErrors,
		rm.captureFallbacks,
	)

	return rm
}

// RecordRequest records a completed request.
func (rm *RequestMetrics) RecordRequest(method, route string, status int, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
	rm.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordSize records the size of a request or response body.
// direction is "request" or "response". Empty bodies are not observed.
func (rm *RequestMetrics) RecordSize(direction string, size int64) {
	if size > 0 {
		rm.bodyBytes.WithLabelValues(direction).Observe(float64(size))
	}
}

// RecordTransportError counts a terminal error record.
func (rm *RequestMetrics) RecordTransportError(kind string) {
	rm.transportErrors.WithLabelValues(kind).Inc()
}

// RecordFallback counts a rendering fallback.
func (rm *RequestMetrics) RecordFallback(field string) {
	rm.captureFallbacks.WithLabelValues(field).Inc()
}

// statusClass maps a status code to "2xx", "4xx" and so on.
func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "other"
	}
	return strconv.Itoa(status/100) + "xx"
}

// Package metrics exposes Prometheus collectors for the tag page server.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDurationSecs *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSecs = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSecs.WithLabelValues(method, route).Observe(duration.Seconds())
}

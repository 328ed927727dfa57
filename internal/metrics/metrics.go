// Package metrics defines the Prometheus collectors shared by both services.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequests counts handled requests by service, method, route pattern and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moodtracker_http_requests_total",
		Help: "Total HTTP requests handled",
	}, []string{"service", "method", "route", "status"})

	// HTTPDuration records request latency by service, method and route pattern.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "moodtracker_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"service", "method", "route"})

	// StoreOperationDuration records document store round trips.
	StoreOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "moodtracker_store_operation_duration_seconds",
		Help:    "Document store operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "collection"})

	// ReportsGenerated counts rendered reports by output format.
	ReportsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moodtracker_reports_generated_total",
		Help: "Total mood reports rendered",
	}, []string{"format"})

	// StatsCache counts statistics cache lookups by result (hit, miss, error).
	StatsCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moodtracker_stats_cache_total",
		Help: "Statistics cache lookups by result",
	}, []string{"result"})
)

// TrackStore returns a function that records the operation latency when called.
//
//	defer metrics.TrackStore("find_one", "users")()
func TrackStore(operation, collection string) func() {
	start := time.Now()
	return func() {
		StoreOperationDuration.WithLabelValues(operation, collection).Observe(time.Since(start).Seconds())
	}
}

// Middleware records request count and latency labelled with the chi route pattern.
func Middleware(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			HTTPRequests.WithLabelValues(service, r.Method, route, strconv.Itoa(status)).Inc()
			HTTPDuration.WithLabelValues(service, r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

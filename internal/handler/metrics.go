package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// httpRequestDuration tracks request latency by method, path, and status.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "path", "status"},
	)

	// ordersSubmitted counts accepted order submissions by side and product.
	ordersSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nailmarket_orders_submitted_total",
			Help: "Total number of accepted order submissions",
		},
		[]string{"side", "product"},
	)

	// ordersCancelled counts successful cancellations by product.
	ordersCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nailmarket_orders_cancelled_total",
			Help: "Total number of cancelled orders",
		},
		[]string{"product"},
	)

	// tradesExecuted counts trades produced by matching, by product.
	tradesExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nailmarket_trades_executed_total",
			Help: "Total number of executed trades",
		},
		[]string{"product"},
	)
)

// metricsMiddleware records per-request latency. The route pattern rather
// than the raw path is used as the label to keep cardinality bounded.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		httpRequestDuration.WithLabelValues(
			r.Method,
			routePattern(r),
			strconv.Itoa(ww.status),
		).Observe(time.Since(start).Seconds())
	})
}

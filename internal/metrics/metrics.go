package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orbit_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orbit_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})

	rateLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orbit_rate_limit_rejections_total",
		Help: "Count of requests rejected by the rate limiter",
	})

	gatewayOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orbit_gateway_operations_total",
		Help: "Count of gateway dispatches by resource, verb and credential family",
	}, []string{"resource", "verb", "family"})
)

// ObserveHTTPRequest records one HTTP request.
func ObserveHTTPRequest(method string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, code).Inc()
	httpRequestDuration.WithLabelValues(method, code).Observe(duration.Seconds())
}

// ObserveRateLimitRejection records one 429.
func ObserveRateLimitRejection() {
	rateLimitRejections.Inc()
}

// ObserveGatewayOperation records one gateway dispatch.
func ObserveGatewayOperation(resource, verb, family string) {
	gatewayOperations.WithLabelValues(resource, verb, family).Inc()
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware instruments requests with the HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		ObserveHTTPRequest(r.Method, ww.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

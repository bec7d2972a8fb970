package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records request counts and latencies labelled by route template
func Metrics(requests *prometheus.CounterVec, duration *prometheus.HistogramVec) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := newStatusCodeWriter(w)

			next.ServeHTTP(sw, r)

			path := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					path = tpl
				}
			}

			status := strconv.Itoa(sw.statusCode)
			requests.WithLabelValues(r.Method, path, status).Inc()
			duration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		})
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/vaidashi/laundry-order-api/pkg/circuitbreaker"
	"github.com/vaidashi/laundry-order-api/pkg/logger"
)

func TestRateLimiterPerKey(t *testing.T) {
	m := NewRateLimiterMiddleware(&RateLimiterConfig{
		MaxTokens:  1,
		RefillRate: 0.001,
		KeyFunc:    func(r *http.Request) string { return r.Header.Get("X-Actor") },
	}, logger.NewNop())
	defer m.Stop()

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(actor string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil)
		req.Header.Set("X-Actor", actor)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, call("cust-1"))
	assert.Equal(t, http.StatusTooManyRequests, call("cust-1"))
	assert.Equal(t, http.StatusNoContent, call("cust-2"))
	assert.Equal(t, 2, m.GetMetrics()["tracked_keys"])
}

func TestRateLimiterFallsBackToIP(t *testing.T) {
	m := NewRateLimiterMiddleware(&RateLimiterConfig{MaxTokens: 1, RefillRate: 0.001}, logger.NewNop())
	defer m.Stop()

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestGracefulDegradationTripsOnServerErrors(t *testing.T) {
	gd := NewGracefulDegradation("orders", logger.NewNop())
	h := gd.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	}

	assert.Equal(t, circuitbreaker.StateOpen, gd.Breaker().GetState())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	gd.Reset()
	assert.Equal(t, "closed", gd.GetMetrics()["state"])
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_requests_total"}, []string{"method", "path", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "test_duration_seconds"}, []string{"method", "path", "status"})

	r := mux.NewRouter()
	r.Use(Metrics(requests, duration))
	r.HandleFunc("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/abc", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(requests.WithLabelValues(http.MethodGet, "/orders/{id}", "404")))
}

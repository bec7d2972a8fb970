package middleware

import (
	"net/http"
	"time"

	"github.com/vaidashi/laundry-order-api/pkg/circuitbreaker"
	"github.com/vaidashi/laundry-order-api/pkg/logger"
)

// GracefulDegradation sheds requests on a route group while its handlers keep failing with 5xx
type GracefulDegradation struct {
	breaker *circuitbreaker.CircuitBreaker
	logger  logger.Logger
}

// NewGracefulDegradation creates a new graceful degradation middleware
func NewGracefulDegradation(name string, logger logger.Logger) *GracefulDegradation {
	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 10,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 5,
	})

	return &GracefulDegradation{
		breaker: breaker,
		logger:  logger,
	}
}

// Middleware returns a middleware function
func (gd *GracefulDegradation) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !gd.breaker.Allow() {
			gd.logger.Warn("Circuit is open, request rejected",
				"breaker", gd.breaker.Name(),
				"path", r.URL.Path,
				"method", r.Method)

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"success":false,"error":"Service is temporarily unavailable. Please try again later.","code":"SERVICE_UNAVAILABLE"}`))
			return
		}

		wrappedWriter := newStatusCodeWriter(w)
		next.ServeHTTP(wrappedWriter, r)

		// 4xx are caller mistakes and leave the breaker alone
		switch status := wrappedWriter.statusCode; {
		case status >= 500:
			gd.breaker.Failure()
		case status < 400:
			gd.breaker.Success()
		}
	})
}

// statusCodeWriter is a wrapper around http.ResponseWriter that captures the status code
type statusCodeWriter struct {
	http.ResponseWriter
	statusCode int
}

func newStatusCodeWriter(w http.ResponseWriter) *statusCodeWriter {
	return &statusCodeWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader captures the status code and passes it to the wrapped ResponseWriter
func (scw *statusCodeWriter) WriteHeader(code int) {
	scw.statusCode = code
	scw.ResponseWriter.WriteHeader(code)
}

// Breaker exposes the underlying breaker for admin endpoints
func (gd *GracefulDegradation) Breaker() *circuitbreaker.CircuitBreaker {
	return gd.breaker
}

// GetMetrics returns metrics about the circuit breaker
func (gd *GracefulDegradation) GetMetrics() map[string]interface{} {
	return gd.breaker.GetMetrics()
}

// Reset resets the circuit breaker
func (gd *GracefulDegradation) Reset() {
	gd.breaker.Reset()
}

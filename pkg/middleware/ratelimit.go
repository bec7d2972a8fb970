package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/vaidashi/laundry-order-api/pkg/logger"
	"github.com/vaidashi/laundry-order-api/pkg/ratelimit"
)

// KeyFunc picks the rate limiting key for a request. An empty key falls back to the client IP.
type KeyFunc func(r *http.Request) string

// RateLimiterMiddleware throttles requests per key
type RateLimiterMiddleware struct {
	limiter           *ratelimit.KeyedLimiter
	keyFunc           KeyFunc
	logger            logger.Logger
	trustForwardedFor bool
}

// RateLimiterConfig configures the rate limiter middleware
type RateLimiterConfig struct {
	MaxTokens         float64
	RefillRate        float64
	KeyFunc           KeyFunc
	TrustForwardedFor bool
}

// NewRateLimiterMiddleware creates a new rate limiter middleware
func NewRateLimiterMiddleware(cfg *RateLimiterConfig, logger logger.Logger) *RateLimiterMiddleware {
	return &RateLimiterMiddleware{
		limiter: ratelimit.NewKeyedLimiter(ratelimit.KeyedLimiterConfig{
			MaxTokens:  cfg.MaxTokens,
			RefillRate: cfg.RefillRate,
		}),
		keyFunc:           cfg.KeyFunc,
		logger:            logger,
		trustForwardedFor: cfg.TrustForwardedFor,
	}
}

// Middleware returns a middleware function
func (m *RateLimiterMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ""
		if m.keyFunc != nil {
			key = m.keyFunc(r)
		}
		if key == "" {
			key = "ip:" + m.getClientIP(r)
		}

		if !m.limiter.Allow(key) {
			m.logger.Warn("Rate limit exceeded", "method", r.Method, "path", r.URL.Path, "key", key)

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "10")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"success":false,"error":"Too many requests. Please try again later.","code":"RATE_LIMITED"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimiterMiddleware) getClientIP(r *http.Request) string {
	if m.trustForwardedFor {
		if forwardedFor := r.Header.Get("X-Forwarded-For"); forwardedFor != "" {
			ips := strings.Split(forwardedFor, ",")
			return strings.TrimSpace(ips[0])
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Stop stops the limiter cleanup goroutine
func (m *RateLimiterMiddleware) Stop() {
	m.limiter.Stop()
}

// GetMetrics returns metrics about rate limiting
func (m *RateLimiterMiddleware) GetMetrics() map[string]interface{} {
	return m.limiter.GetMetrics()
}

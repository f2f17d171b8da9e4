// Package middleware adapts a throttle policy to net/http handlers.
package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"learn.throttle/metrics"
	"learn.throttle/types"
)

// ThrottleMiddleware guards HTTP handlers with a bound throttle policy.
type ThrottleMiddleware struct {
	throttle types.Throttle
	metrics  *metrics.ThrottleMetrics
	key      string
}

// NewThrottleMiddleware creates a middleware for the named throttle.
func NewThrottleMiddleware(throttle types.Throttle, metrics *metrics.ThrottleMetrics, key string) *ThrottleMiddleware {
	return &ThrottleMiddleware{
		throttle: throttle,
		metrics:  metrics,
		key:      key,
	}
}

// Handle wraps an http.HandlerFunc with throttling.
// identifierFunc extracts the accounting identifier (e.g. client IP) from
// the request.
func (m *ThrottleMiddleware) Handle(next http.HandlerFunc, identifierFunc func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identifier := identifierFunc(r)
		if identifier == "" {
			// Deny rather than fall through with a shared empty key.
			log.Warn().Str("throttle_key", m.key).Str("remote_addr", r.RemoteAddr).Msg("Middleware: could not extract identifier")
			w.WriteHeader(http.StatusInternalServerError)
			m.metrics.RecordRequest(false)
			return
		}

		allowed, err := m.throttle.Allow(r.Context(), identifier)
		if err != nil {
			log.Error().Err(err).Str("throttle_key", m.key).Str("identifier", identifier).Msg("Middleware: throttle check failed")
			w.WriteHeader(http.StatusInternalServerError)
			m.metrics.RecordRequest(false)
			return
		}

		m.metrics.RecordRequest(allowed)

		if !allowed {
			log.Debug().Str("throttle_key", m.key).Str("identifier", identifier).Msg("Middleware: request throttled")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	}
}

package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/orbitcrm/orbit/internal/api/response"
	"github.com/orbitcrm/orbit/internal/metrics"
	"github.com/orbitcrm/orbit/internal/ratelimit"
)

// RateLimit returns middleware that bounds throughput per credential digest.
// Must run after Auth. Counter-store failures fail open: the limiter is
// advisory abuse prevention, not a quota, and must never take the API down
// with it.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	message := fmt.Sprintf("Rate limit exceeded: %d requests per %s window",
		limiter.Max(), limiter.Window())

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			identity := GetIdentity(r.Context())
			if identity == nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "A bearer credential is required", requestID)
				return
			}

			decision, err := limiter.Allow(r.Context(), identity.KeyDigest)
			if err != nil {
				slog.Warn("rate limit store unavailable", "error", err, "requestId", requestID)
				next.ServeHTTP(w, r)
				return
			}

			if !decision.Allowed {
				metrics.ObserveRateLimitRejection()
				response.Err(w, http.StatusTooManyRequests, "RATE_LIMITED", message, requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

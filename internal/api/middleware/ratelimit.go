package middleware

import (
	"net/http"

	"github.com/vaelis-ai/vaelis-api/internal/api/shared"
	"github.com/vaelis-ai/vaelis-api/internal/platform/metrics"
)

// Allower decides whether a user may make another request.
type Allower interface {
	Allow(userID string) bool
}

// RateLimit rejects requests over the user's budget with 429. It must run
// after Authenticate; requests without a user ID share the "anonymous"
// bucket.
func RateLimit(limiter Allower) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := shared.GetUserID(r.Context())
			if !ok {
				userID = "anonymous"
			}
			if !limiter.Allow(userID) {
				metrics.RateLimitRejections.Inc()
				shared.RespondWithError(w, r, http.StatusTooManyRequests, "Rate limit exceeded",
					shared.WithHeader("Retry-After", "60"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package server

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/prooftamil/ime-gateway/internal/ratelimit"
	"github.com/prooftamil/ime-gateway/internal/reqctx"
)

// OutcomeRateLimited is the error kind for rejected requests.
const OutcomeRateLimited = "RateLimited"

// RateLimitMiddleware admits or rejects the authenticated client. It must run
// after AuthMiddleware. Every response carries x-ratelimit-* headers; rejected
// requests get 429 with Retry-After in whole seconds, rounded up.
func RateLimitMiddleware(limiter *ratelimit.FixedWindow, clock ratelimit.Clock, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			clientID := reqctx.ClientID(ctx)

			d := limiter.CheckAndConsume(clientID, clock.Now())

			h := w.Header()
			h.Set("x-ratelimit-limit-requests", strconv.Itoa(d.Limit))
			h.Set("x-ratelimit-remaining-requests", strconv.Itoa(d.Remaining))
			h.Set("x-ratelimit-reset-requests", d.ResetAt.UTC().Format(time.RFC3339))

			if !d.Allowed {
				logger.Info("rate limited",
					slog.String("request_id", reqctx.RequestID(ctx)),
					slog.String("client_id", clientID),
					slog.Duration("retry_after", d.RetryAfter))
				h.Set("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
				AddLogField(ctx, "error_kind", OutcomeRateLimited)
				setOutcome(ctx, OutcomeRateLimited)
				writeError(w, http.StatusTooManyRequests, OutcomeRateLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

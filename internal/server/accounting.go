package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prooftamil/ime-gateway/internal/reqctx"
	"github.com/prooftamil/ime-gateway/internal/storage"
	"github.com/prooftamil/ime-gateway/internal/telemetry"
)

// OutcomeInternalError marks requests that ended without a recorded outcome,
// such as a recovered panic.
const OutcomeInternalError = "InternalError"

type outcomeKey struct{}

// requestOutcome is filled in by the middlewares and handler that run inside
// AccountingMiddleware.
type requestOutcome struct {
	outcome     string
	clientID    string
	suggestions int
}

func outcomeFrom(ctx context.Context) *requestOutcome {
	o, _ := ctx.Value(outcomeKey{}).(*requestOutcome)
	return o
}

func setOutcome(ctx context.Context, outcome string) {
	if o := outcomeFrom(ctx); o != nil {
		o.outcome = outcome
	}
}

func setClientID(ctx context.Context, clientID string) {
	if o := outcomeFrom(ctx); o != nil {
		o.clientID = clientID
	}
}

func setSuggestionCount(ctx context.Context, n int) {
	if o := outcomeFrom(ctx); o != nil {
		o.suggestions = n
	}
}

// AccountingMiddleware records request metrics and, when usage is non-nil, a
// usage record for every request it wraps. Usage write failures are logged
// and never change the response.
func AccountingMiddleware(metrics *telemetry.Metrics, usage storage.UsageStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			o := &requestOutcome{}
			ctx := context.WithValue(r.Context(), outcomeKey{}, o)
			wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			defer func() {
				status := wrapped.statusCode
				if o.outcome == "" {
					// Reached only when the handler panicked.
					o.outcome = OutcomeInternalError
					status = http.StatusInternalServerError
				}
				duration := time.Since(start)
				metrics.RecordRequest(o.outcome, duration)
				AddLogField(ctx, "outcome", o.outcome)

				if usage == nil {
					return
				}
				rec := &storage.UsageRecord{
					RequestID:   reqctx.RequestID(ctx),
					ClientID:    o.clientID,
					Outcome:     o.outcome,
					Status:      status,
					Suggestions: o.suggestions,
					Duration:    duration,
					CreatedAt:   start,
				}
				if err := usage.Record(context.WithoutCancel(ctx), rec); err != nil {
					logger.Warn("failed to record usage",
						slog.String("request_id", rec.RequestID),
						slog.String("error", err.Error()))
				}
			}()

			next.ServeHTTP(wrapped, r.WithContext(ctx))
		})
	}
}

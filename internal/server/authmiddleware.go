package server

import (
	"log/slog"
	"net/http"

	"github.com/prooftamil/ime-gateway/internal/auth"
	"github.com/prooftamil/ime-gateway/internal/reqctx"
)

// AuthMiddleware authenticates X-API-Key against X-Client-Id and stores the
// client id in the request context. Failures end the request with 401 and the
// failure reason; nothing after this middleware runs.
func AuthMiddleware(store *auth.Store, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			apiKey, clientID := auth.ExtractCredentials(r)

			identity, err := store.Authenticate(apiKey, clientID)
			if err != nil {
				reason, ok := auth.ReasonOf(err)
				if !ok {
					reason = auth.ReasonBadKey
				}
				logger.Info("authentication failed",
					slog.String("request_id", reqctx.RequestID(ctx)),
					slog.String("client_id", clientID),
					slog.String("reason", string(reason)))
				AddLogField(ctx, "error_kind", string(reason))
				setOutcome(ctx, string(reason))
				writeError(w, http.StatusUnauthorized, string(reason))
				return
			}

			AddLogField(ctx, "client_id", identity.ClientID)
			setClientID(ctx, identity.ClientID)
			next.ServeHTTP(w, r.WithContext(reqctx.WithClientID(ctx, identity.ClientID)))
		})
	}
}

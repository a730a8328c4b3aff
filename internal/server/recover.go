package server

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// RecoverMiddleware turns a handler panic into a 500 InternalError envelope
// and logs the stack. http.ErrAbortHandler is re-raised so the server can
// abort the connection.
func RecoverMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if err, ok := rvr.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rvr)
				}

				logger.Error("panic recovered",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.Any("panic", rvr),
					slog.String("stack", string(debug.Stack())))
				AddLogField(r.Context(), "error_kind", OutcomeInternalError)

				if r.Header.Get("Connection") != "Upgrade" {
					writeError(w, http.StatusInternalServerError, OutcomeInternalError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

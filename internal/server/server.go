// Package server exposes the gateway over HTTP.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/prooftamil/ime-gateway/internal/auth"
	"github.com/prooftamil/ime-gateway/internal/ratelimit"
	"github.com/prooftamil/ime-gateway/internal/storage"
	"github.com/prooftamil/ime-gateway/internal/telemetry"
	"github.com/prooftamil/ime-gateway/internal/transliterate"
)

// Deps are the components the HTTP layer is built from. Metrics, Usage and
// Clock are optional; GET /usage is served only when Usage is set.
type Deps struct {
	Logger           *slog.Logger
	Credentials      *auth.Store
	Limiter          *ratelimit.FixedWindow
	Clock            ratelimit.Clock
	Service          *transliterate.Service
	Metrics          *telemetry.Metrics
	Usage            storage.UsageStore
	RequestTimeout   time.Duration
	EngineConfigured bool
	ServiceName      string
}

// Server holds the gateway router.
type Server struct {
	Router *chi.Mux
	logger *slog.Logger
}

// New builds the router. Non-health requests pass request id, logging,
// accounting, timeout, authentication and rate limiting before the handler.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = ratelimit.SystemClock
	}
	if deps.Metrics == nil {
		deps.Metrics = telemetry.NewMetrics(prometheus.NewRegistry())
	}
	if deps.ServiceName == "" {
		deps.ServiceName = "ime-gateway"
	}

	handlers := NewHandlers(deps.Service, deps.EngineConfigured, deps.Logger)

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(deps.Logger))
	r.Use(RecoverMiddleware(deps.Logger))

	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, deps.ServiceName)
	})

	r.Get("/health", handlers.Health)
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(AccountingMiddleware(deps.Metrics, deps.Usage, deps.Logger))
		r.Use(TimeoutMiddleware(deps.RequestTimeout))
		r.Use(AuthMiddleware(deps.Credentials, deps.Logger))
		r.Use(RateLimitMiddleware(deps.Limiter, deps.Clock, deps.Logger))
		r.Post("/transliterate", handlers.Transliterate)
	})

	if deps.Usage != nil {
		r.Group(func(r chi.Router) {
			r.Use(TimeoutMiddleware(deps.RequestTimeout))
			r.Use(AuthMiddleware(deps.Credentials, deps.Logger))
			r.Method(http.MethodGet, "/usage", NewUsageHandler(deps.Usage, deps.Logger))
		})
	}

	return &Server{
		Router: r,
		logger: deps.Logger,
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// Package runtime provides the Gateway struct and lifecycle management for
// the transliteration gateway.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/prooftamil/ime-gateway/internal/auth"
	"github.com/prooftamil/ime-gateway/internal/config"
	"github.com/prooftamil/ime-gateway/internal/engine"
	"github.com/prooftamil/ime-gateway/internal/ratelimit"
	"github.com/prooftamil/ime-gateway/internal/server"
	"github.com/prooftamil/ime-gateway/internal/storage"
	"github.com/prooftamil/ime-gateway/internal/storage/memory"
	"github.com/prooftamil/ime-gateway/internal/storage/sqlite"
	"github.com/prooftamil/ime-gateway/internal/telemetry"
	"github.com/prooftamil/ime-gateway/internal/transliterate"
)

// Gateway wires configuration, credentials, rate limiting, the orchestrator
// and the HTTP server. It can be embedded in larger applications or run
// standalone.
type Gateway struct {
	// Dependencies (injected via options)
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
	engine     engine.Engine
	clock      ratelimit.Clock
	usage      storage.UsageStore
	registry   *prometheus.Registry

	// Built by New
	credentials *auth.Store
	limiter     *ratelimit.FixedWindow
	service     *transliterate.Service
	metrics     *telemetry.Metrics
	handler     *server.Server
	retention   *retentionScheduler

	// Lifecycle management
	server   *http.Server
	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
}

// New creates a Gateway with the given options. A configuration is required
// (WithConfig or WithConfigFile).
func New(opts ...Option) (*Gateway, error) {
	gw := &Gateway{
		logger: slog.Default(),
		clock:  ratelimit.SystemClock,
	}

	for _, opt := range opts {
		if err := opt(gw); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if gw.cfg == nil {
		return nil, fmt.Errorf("config required (use WithConfig or WithConfigFile)")
	}
	if err := gw.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := gw.build(); err != nil {
		return nil, err
	}
	return gw, nil
}

func (g *Gateway) build() error {
	cfg := g.cfg

	creds, err := auth.CredentialsFromConfig(cfg.Auth.Secret, cfg.Auth.Clients)
	if err != nil {
		return fmt.Errorf("build credentials: %w", err)
	}
	g.credentials = auth.NewStore(cfg.Auth.Secret, creds)

	g.limiter = ratelimit.NewFixedWindow(cfg.RateLimit.PerMinute, cfg.RateLimit.Window)
	g.metrics = telemetry.NewMetrics(g.registry)

	engineConfigured := g.engine != nil
	if g.engine == nil && cfg.Engine.BaseURL != "" {
		g.engine = engine.NewClient(cfg.Engine.BaseURL,
			engine.WithHTTPClient(&http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}),
			engine.WithMaxRPS(cfg.Engine.MaxRPS),
			engine.WithLogger(g.logger))
		engineConfigured = true
	}
	if !engineConfigured {
		g.logger.Warn("no transliterator configured; requests will fail with EngineFailure")
	}

	svcOpts := []transliterate.Option{
		transliterate.WithLimits(transliterate.Limits{
			MaxTextLen: cfg.Transliterate.MaxTextLen,
			MaxLimit:   cfg.Transliterate.MaxLimit,
			Modes:      cfg.Transliterate.Modes,
		}),
		transliterate.WithTimeout(cfg.Engine.Timeout()),
		transliterate.WithObserver(g.metrics),
		transliterate.WithLogger(g.logger),
	}
	if cfg.Cache.MaxSize > 0 && cfg.Cache.TTLSeconds > 0 {
		ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
		svcOpts = append(svcOpts, transliterate.WithCache(transliterate.NewCache(cfg.Cache.MaxSize, ttl)))
	}
	if path := cfg.Transliterate.FreqDictPath; path != "" {
		dict, err := transliterate.LoadFreqDict(path)
		if err != nil {
			// Scores fall back to the baseline.
			g.logger.Warn("frequency dictionary unavailable", slog.String("error", err.Error()))
		} else {
			g.logger.Info("frequency dictionary loaded", slog.Int("words", dict.Len()))
			svcOpts = append(svcOpts, transliterate.WithFreqDict(dict))
		}
	}
	g.service = transliterate.NewService(g.engine, svcOpts...)

	if g.usage == nil {
		usage, err := openUsageStore(cfg.Usage)
		if err != nil {
			return fmt.Errorf("open usage store: %w", err)
		}
		g.usage = usage
	}
	if g.usage != nil {
		g.retention = newRetentionScheduler(g.usage, cfg.Usage, g.clock, g.logger)
	}

	g.handler = server.New(server.Deps{
		Logger:           g.logger,
		Credentials:      g.credentials,
		Limiter:          g.limiter,
		Clock:            g.clock,
		Service:          g.service,
		Metrics:          g.metrics,
		Usage:            g.usage,
		RequestTimeout:   cfg.Server.RequestTimeout,
		EngineConfigured: engineConfigured,
		ServiceName:      cfg.Tracing.ServiceName,
	})

	return nil
}

func openUsageStore(cfg config.UsageConfig) (storage.UsageStore, error) {
	switch cfg.Store {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create %s: %w", dir, err)
			}
		}
		return sqlite.New(cfg.SQLitePath)
	default:
		return nil, nil
	}
}

// Handler returns the gateway's HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Usage returns the usage ledger, or nil when disabled.
func (g *Gateway) Usage() storage.UsageStore {
	return g.usage
}

// Start binds the listener and serves in the background. It also starts the
// rate-window janitor and, for file configuration, the credential watcher.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ctx, g.cancel = context.WithCancel(ctx)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", g.cfg.Server.Port))
	if err != nil {
		g.cancel()
		return fmt.Errorf("listen: %w", err)
	}
	g.listener = ln

	g.server = &http.Server{
		Handler:           g.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      g.cfg.Server.RequestTimeout + 5*time.Second,
	}

	go func() {
		g.logger.Info("HTTP server listening", slog.String("addr", ln.Addr().String()))
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	g.limiter.StartJanitor(g.ctx, g.cfg.RateLimit.Window, g.clock)

	if g.retention != nil {
		if err := g.retention.Start(g.ctx); err != nil {
			g.logger.Error("usage retention not scheduled", slog.String("error", err.Error()))
		}
	}

	if g.configPath != "" {
		if err := g.watchCredentials(g.ctx); err != nil {
			g.logger.Error("credential watch failed", slog.String("error", err.Error()))
		}
	}

	g.logger.Info("gateway started",
		slog.Int("port", g.cfg.Server.Port),
		slog.Int("clients", g.credentials.Len()),
		slog.Int("rate_limit", g.cfg.RateLimit.PerMinute),
		slog.Duration("rate_window", g.cfg.RateLimit.Window))

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (g *Gateway) Addr() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listener == nil {
		return ""
	}
	return g.listener.Addr().String()
}

// Shutdown gracefully stops the gateway.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.logger.Info("shutting down gateway")

	if g.cancel != nil {
		g.cancel()
	}

	if g.server != nil {
		if err := g.server.Shutdown(ctx); err != nil {
			g.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			return err
		}
	}

	if g.retention != nil {
		g.retention.Stop()
	}

	if g.usage != nil {
		if err := g.usage.Close(); err != nil {
			g.logger.Error("failed to close usage store", slog.String("error", err.Error()))
		}
	}

	g.logger.Info("gateway shutdown complete")
	return nil
}

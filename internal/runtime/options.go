package runtime

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/prooftamil/ime-gateway/internal/config"
	"github.com/prooftamil/ime-gateway/internal/engine"
	"github.com/prooftamil/ime-gateway/internal/ratelimit"
	"github.com/prooftamil/ime-gateway/internal/storage"
)

// Option is a functional option for configuring a Gateway.
type Option func(*Gateway) error

// WithConfig uses an already loaded configuration. Credentials are not
// reloaded.
func WithConfig(cfg *config.Config) Option {
	return func(g *Gateway) error {
		if cfg == nil {
			return fmt.Errorf("config cannot be nil")
		}
		g.cfg = cfg
		return nil
	}
}

// WithConfigFile loads configuration from path (plus environment) and
// reloads client credentials when the file changes.
func WithConfigFile(path string) Option {
	return func(g *Gateway) error {
		if path == "" {
			return fmt.Errorf("config path cannot be empty")
		}
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		g.cfg = cfg
		g.configPath = path
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) error {
		g.logger = logger
		return nil
	}
}

// WithEngine sets the transliteration engine, replacing the HTTP runner
// client built from configuration.
func WithEngine(e engine.Engine) Option {
	return func(g *Gateway) error {
		g.engine = e
		return nil
	}
}

// WithClock sets the clock used for rate limiting.
func WithClock(c ratelimit.Clock) Option {
	return func(g *Gateway) error {
		g.clock = c
		return nil
	}
}

// WithUsageStore sets the usage ledger, overriding USAGE_STORE. The gateway
// closes it on Shutdown.
func WithUsageStore(s storage.UsageStore) Option {
	return func(g *Gateway) error {
		g.usage = s
		return nil
	}
}

// WithRegistry registers metrics with reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(g *Gateway) error {
		g.registry = reg
		return nil
	}
}

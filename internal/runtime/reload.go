package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/prooftamil/ime-gateway/internal/auth"
	"github.com/prooftamil/ime-gateway/internal/config"
)

// ReloadCredentials re-reads the config file and swaps in its client
// registry. Rate windows and every other setting are left as they are; a
// changed secret is rejected because it needs a restart.
func (g *Gateway) ReloadCredentials() error {
	if g.configPath == "" {
		return fmt.Errorf("no config file to reload")
	}

	cfg, err := config.Load(g.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Auth.Secret != g.cfg.Auth.Secret {
		return fmt.Errorf("API_KEY_SECRET changed; restart to apply")
	}

	creds, err := auth.CredentialsFromConfig(cfg.Auth.Secret, cfg.Auth.Clients)
	if err != nil {
		return fmt.Errorf("build credentials: %w", err)
	}
	g.credentials.Replace(creds)

	g.logger.Info("credentials reloaded", slog.Int("clients", len(creds)))
	return nil
}

// watchCredentials reloads credentials whenever the config file is written
// or replaced. The parent directory is watched so editors that rename over
// the file are seen too.
func (g *Gateway) watchCredentials(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	target := filepath.Clean(g.configPath)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", target, err)
	}

	g.logger.Info("watching config file for credential changes", slog.String("path", target))

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				g.logger.Debug("credential watch stopped")
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := g.ReloadCredentials(); err != nil {
					// Keep serving with the previous registry.
					g.logger.Error("failed to reload credentials",
						slog.String("error", err.Error()),
						slog.String("path", target))
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				g.logger.Error("config watch error", slog.String("error", err.Error()))
			}
		}
	}()

	return nil
}

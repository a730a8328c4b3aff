package runtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prooftamil/ime-gateway/internal/auth"
	"github.com/prooftamil/ime-gateway/internal/config"
	"github.com/prooftamil/ime-gateway/internal/engine"
	"github.com/prooftamil/ime-gateway/internal/storage"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	cfg.Server.Port = 0
	cfg.Auth.Secret = "runtime-secret"
	cfg.Auth.Clients = []config.ClientConfig{{ID: "web", APIKey: "web-key"}}
	return cfg
}

var staticEngine = engine.Func(func(context.Context, string, string, int) ([]engine.Candidate, error) {
	return []engine.Candidate{{Word: "வணக்கம்", Score: 0.9}}, nil
})

func post(t *testing.T, h http.Handler, client, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/transliterate", strings.NewReader(body))
	req.Header.Set(auth.HeaderClientID, client)
	req.Header.Set(auth.HeaderAPIKey, key)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGateway_New_RequiredOptions(t *testing.T) {
	_, err := New()
	if err == nil {
		t.Fatal("Expected error without config")
	}
	if !strings.Contains(err.Error(), "config required") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestGateway_New_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Secret = ""

	if _, err := New(WithConfig(cfg), WithLogger(quietLogger)); err == nil {
		t.Error("Expected error for missing secret")
	}
}

func TestGateway_Handler(t *testing.T) {
	gw, err := New(WithConfig(testConfig(t)), WithEngine(staticEngine), WithLogger(quietLogger))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	rec := post(t, gw.Handler(), "web", "web-key", `{"text":"vanakkam","mode":"spoken","limit":3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "வணக்கம்") {
		t.Errorf("body = %s", rec.Body.String())
	}
	if gw.Usage() != nil {
		t.Error("usage store enabled by default")
	}
}

func TestGateway_EngineFromConfig(t *testing.T) {
	runner := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/transliterate" {
			http.NotFound(w, r)
			return
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["mode"] != "formal" {
			http.Error(w, "unexpected mode", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"word":"nandri","ta":"நன்றி","score":0.7}]}`))
	}))
	defer runner.Close()

	cfg := testConfig(t)
	cfg.Engine.BaseURL = runner.URL
	cfg.Usage.Store = "memory"

	gw, err := New(WithConfig(cfg), WithLogger(quietLogger))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	rec := post(t, gw.Handler(), "web", "web-key", `{"text":"nandri","mode":"formal","limit":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	want := `{"success":true,"suggestions":[{"word":"nandri","ta":"நன்றி","score":0.7}]}`
	if got := strings.TrimSpace(rec.Body.String()); got != want {
		t.Errorf("body = %s, want %s", got, want)
	}

	records, err := gw.Usage().List(context.Background(), storage.ListOptions{})
	if err != nil || len(records) != 1 {
		t.Fatalf("usage = %v, %v", records, err)
	}
}

func TestGateway_NoEngineConfigured(t *testing.T) {
	gw, err := New(WithConfig(testConfig(t)), WithLogger(quietLogger))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	rec := post(t, gw.Handler(), "web", "web-key", `{"text":"amma","mode":"spoken","limit":1}`)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}

	health := httptest.NewRecorder()
	gw.Handler().ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/health", nil))
	if !strings.Contains(health.Body.String(), `"engine_configured":false`) {
		t.Errorf("health = %s", health.Body.String())
	}
}

func TestGateway_SQLiteUsage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Usage.Store = "sqlite"
	cfg.Usage.SQLitePath = filepath.Join(t.TempDir(), "nested", "usage.db")

	gw, err := New(WithConfig(cfg), WithEngine(staticEngine), WithLogger(quietLogger))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	post(t, gw.Handler(), "web", "web-key", `{"text":"vanakkam","mode":"spoken","limit":1}`)

	summary, err := gw.Usage().Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if len(summary) != 1 || summary[0].Succeeded != 1 {
		t.Errorf("summary = %+v", summary)
	}

	if err := gw.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if _, err := os.Stat(cfg.Usage.SQLitePath); err != nil {
		t.Errorf("database file missing: %v", err)
	}
}

func TestGateway_Start_And_Shutdown(t *testing.T) {
	gw, err := New(WithConfig(testConfig(t)), WithEngine(staticEngine), WithLogger(quietLogger))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := gw.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	addr := gw.Addr()
	if addr == "" {
		t.Fatal("Addr() empty after Start")
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("SplitHostPort(%q): %v", addr, err)
	}

	resp, err := http.Get("http://127.0.0.1:" + port + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := gw.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

const fileConfig = `
auth:
  secret: file-secret
  clients:
    - id: web
      api_key: web-key
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestGateway_ReloadCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, fileConfig)

	gw, err := New(WithConfigFile(path), WithEngine(staticEngine), WithLogger(quietLogger))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if rec := post(t, gw.Handler(), "mobile", "mobile-key", `{"text":"amma"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status before reload = %d, want 401", rec.Code)
	}

	writeFile(t, path, fileConfig+`    - id: mobile
      api_key: mobile-key
`)
	if err := gw.ReloadCredentials(); err != nil {
		t.Fatalf("ReloadCredentials() error = %v", err)
	}

	if rec := post(t, gw.Handler(), "mobile", "mobile-key", `{"text":"amma"}`); rec.Code != http.StatusOK {
		t.Errorf("status after reload = %d, want 200", rec.Code)
	}

	t.Run("secret change rejected", func(t *testing.T) {
		writeFile(t, path, strings.Replace(fileConfig, "file-secret", "other-secret", 1))
		if err := gw.ReloadCredentials(); err == nil {
			t.Error("expected error for changed secret")
		}
		// The previous registry stays in force.
		if rec := post(t, gw.Handler(), "mobile", "mobile-key", `{"text":"amma"}`); rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("invalid file rejected", func(t *testing.T) {
		writeFile(t, path, "auth: [")
		if err := gw.ReloadCredentials(); err == nil {
			t.Error("expected error for malformed file")
		}
	})
}

func TestGateway_WatchReloadsCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, fileConfig)

	gw, err := New(WithConfigFile(path), WithEngine(staticEngine), WithLogger(quietLogger))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	gw.cfg.Server.Port = 0

	if err := gw.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer gw.Shutdown(context.Background())

	writeFile(t, path, fileConfig+`    - id: batch
      api_key: batch-key
`)

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := gw.credentials.Authenticate("batch-key", "batch"); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("watcher did not reload credentials")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

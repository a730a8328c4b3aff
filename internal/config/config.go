package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is the config file read when no explicit path is given.
const DefaultPath = "config.yaml"

type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Auth          AuthConfig          `koanf:"auth"`
	RateLimit     RateLimitConfig     `koanf:"ratelimit"`
	Transliterate TransliterateConfig `koanf:"transliterate"`
	Engine        EngineConfig        `koanf:"engine"`
	Cache         CacheConfig         `koanf:"cache"`
	Usage         UsageConfig         `koanf:"usage"`
	Logging       LoggingConfig       `koanf:"logging"`
	Tracing       TracingConfig       `koanf:"tracing"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type AuthConfig struct {
	// Secret is the HMAC key every API key is hashed with.
	Secret  string         `koanf:"secret"`
	Clients []ClientConfig `koanf:"clients"`
	// EnvClient is the single client described by CLIENT_ID / API_KEY.
	EnvClient ClientConfig `koanf:"env_client"`
}

// ClientConfig registers one caller. Exactly one of APIKey (hashed at load)
// or KeyHash (hex HMAC produced by cmd/keygen) must be set.
type ClientConfig struct {
	ID      string `koanf:"id"`
	Name    string `koanf:"name"`
	APIKey  string `koanf:"api_key"`
	KeyHash string `koanf:"key_hash"`
}

type RateLimitConfig struct {
	PerMinute int           `koanf:"per_minute"`
	Window    time.Duration `koanf:"window"`
}

type TransliterateConfig struct {
	MaxTextLen   int      `koanf:"max_text_len"`
	MaxLimit     int      `koanf:"max_limit"`
	Modes        []string `koanf:"modes"`
	FreqDictPath string   `koanf:"freq_dict_path"`
}

type EngineConfig struct {
	BaseURL        string  `koanf:"base_url"`
	TimeoutSeconds int     `koanf:"timeout_seconds"`
	MaxRPS         float64 `koanf:"max_rps"`
}

// Timeout returns the bound applied to every engine call.
func (e EngineConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

type CacheConfig struct {
	TTLSeconds int `koanf:"ttl_seconds"`
	MaxSize    int `koanf:"max_size"`
}

type UsageConfig struct {
	Store      string `koanf:"store"` // none, memory, sqlite
	SQLitePath string `koanf:"sqlite_path"`
	// Retention is how long records are kept. Zero keeps them forever.
	Retention time.Duration `koanf:"retention"`
	// PruneSchedule is a standard five-field cron expression.
	PruneSchedule string `koanf:"prune_schedule"`
}

type LoggingConfig struct {
	Level string `koanf:"level"`
}

type TracingConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

// envKeys maps the flat environment variables the service has always used
// onto koanf keys.
var envKeys = map[string]string{
	"PORT":                           "server.port",
	"REQUEST_TIMEOUT":                "server.request_timeout",
	"API_KEY_SECRET":                 "auth.secret",
	"CLIENT_ID":                      "auth.env_client.id",
	"API_KEY":                        "auth.env_client.api_key",
	"RATE_LIMIT_PER_MIN":             "ratelimit.per_minute",
	"RATE_LIMIT_WINDOW":              "ratelimit.window",
	"MAX_TEXT_LEN":                   "transliterate.max_text_len",
	"MAX_LIMIT":                      "transliterate.max_limit",
	"FREQ_DICT_PATH":                 "transliterate.freq_dict_path",
	"TRANSLITERATOR_BASE_URL":        "engine.base_url",
	"TRANSLITERATOR_TIMEOUT_SECONDS": "engine.timeout_seconds",
	"TRANSLITERATOR_MAX_RPS":         "engine.max_rps",
	"CACHE_TTL_SECONDS":              "cache.ttl_seconds",
	"CACHE_MAX_SIZE":                 "cache.max_size",
	"USAGE_STORE":                    "usage.store",
	"USAGE_SQLITE_PATH":              "usage.sqlite_path",
	"USAGE_RETENTION":                "usage.retention",
	"USAGE_PRUNE_SCHEDULE":           "usage.prune_schedule",
	"LOG_LEVEL":                      "logging.level",
	"TRACING_ENABLED":                "tracing.enabled",
}

var defaults = map[string]any{
	"server.port":                8080,
	"server.request_timeout":     "30s",
	"auth.env_client.id":         "demo-client",
	"ratelimit.per_minute":       60,
	"ratelimit.window":           "1m",
	"transliterate.max_text_len": 64,
	"transliterate.max_limit":    12,
	"transliterate.modes":        []string{"spoken", "formal"},
	"engine.timeout_seconds":     5,
	"cache.ttl_seconds":          600,
	"cache.max_size":             5000,
	"usage.store":                "none",
	"usage.sqlite_path":          "./data/usage.db",
	"usage.retention":            "720h",
	"usage.prune_schedule":       "0 3 * * *",
	"logging.level":              "info",
	"tracing.service_name":       "ime-gateway",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (a missing file is fine), overlays the environment and
// applies defaults. An empty path means DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return envKeys[s]
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	for i := range cfg.Auth.Clients {
		cfg.Auth.Clients[i].APIKey = substituteEnvVars(cfg.Auth.Clients[i].APIKey)
	}
	if cfg.Auth.EnvClient.APIKey != "" {
		cfg.Auth.Clients = append(cfg.Auth.Clients, cfg.Auth.EnvClient)
	}

	return &cfg, nil
}

// Validate reports the first configuration problem that would make the
// gateway unable to serve.
func (c *Config) Validate() error {
	if c.Auth.Secret == "" {
		return errors.New("API_KEY_SECRET is required")
	}
	if len(c.Auth.Clients) == 0 {
		return errors.New("at least one client must be configured")
	}
	seen := make(map[string]struct{}, len(c.Auth.Clients))
	for _, cl := range c.Auth.Clients {
		if cl.ID == "" {
			return errors.New("client id cannot be empty")
		}
		if _, dup := seen[cl.ID]; dup {
			return fmt.Errorf("duplicate client id %q", cl.ID)
		}
		seen[cl.ID] = struct{}{}
		if (cl.APIKey == "") == (cl.KeyHash == "") {
			return fmt.Errorf("client %q: exactly one of api_key or key_hash must be set", cl.ID)
		}
	}
	if c.RateLimit.PerMinute <= 0 {
		return errors.New("RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.Transliterate.MaxTextLen <= 0 {
		return errors.New("MAX_TEXT_LEN must be > 0")
	}
	if c.Transliterate.MaxLimit <= 0 {
		return errors.New("MAX_LIMIT must be > 0")
	}
	if len(c.Transliterate.Modes) == 0 {
		return errors.New("at least one transliteration mode must be configured")
	}
	if c.Engine.TimeoutSeconds <= 0 {
		return errors.New("TRANSLITERATOR_TIMEOUT_SECONDS must be > 0")
	}
	if c.Engine.MaxRPS < 0 {
		return errors.New("TRANSLITERATOR_MAX_RPS must be >= 0")
	}
	switch c.Usage.Store {
	case "none", "memory", "sqlite":
	default:
		return fmt.Errorf("unknown usage store %q", c.Usage.Store)
	}
	if c.Usage.Retention < 0 {
		return errors.New("USAGE_RETENTION must be >= 0")
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Package config loads the portal configuration.
//
// Values are layered: struct defaults, then an optional YAML file, then
// environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

const ConfigPathEnvVar = "CONFIG_PATH"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Session   SessionConfig   `koanf:"session"`
	Cache     CacheConfig     `koanf:"cache"`
	Recommend RecommendConfig `koanf:"recommend"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Security  SecurityConfig  `koanf:"security"`
	OpenAI    OpenAIConfig    `koanf:"openai"`
	Log       LogConfig       `koanf:"log"`
}

type ServerConfig struct {
	Port         string        `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type DatabaseConfig struct {
	Driver   string `koanf:"driver"` // sqlite or postgres
	Path     string `koanf:"path"`
	URL      string `koanf:"url"`
	LockDir  string `koanf:"lock_dir"`
	MaxConns int    `koanf:"max_conns"`
}

type SessionConfig struct {
	Store      string        `koanf:"store"` // memory, badger or redis
	Path       string        `koanf:"path"`
	RedisAddr  string        `koanf:"redis_addr"`
	TTL        time.Duration `koanf:"ttl"`
	CookieName string        `koanf:"cookie_name"`
}

type CacheConfig struct {
	TTL time.Duration `koanf:"ttl"`
}

type RecommendConfig struct {
	TopGenreLimit int `koanf:"top_genre_limit"`
	ItemLimit     int `koanf:"item_limit"`
}

type CatalogConfig struct {
	ReservedGenres []string `koanf:"reserved_genres"`
	EditorsPick    string   `koanf:"editors_pick"`
	Featured       string   `koanf:"featured"`
	PageSize       int      `koanf:"page_size"`
	LatestLimit    int      `koanf:"latest_limit"`
	RandomLimit    int      `koanf:"random_limit"`
}

type SecurityConfig struct {
	CookieSecure    bool          `koanf:"cookie_secure"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	AuthRateLimit   int           `koanf:"auth_rate_limit"`
	AuthRateWindow  time.Duration `koanf:"auth_rate_window"`
	HSTS            bool          `koanf:"hsts"`
	MinPasswordSize int           `koanf:"min_password_size"`
	AdminUsername   string        `koanf:"admin_username"`
	AdminPassword   string        `koanf:"admin_password"`
}

type OpenAIConfig struct {
	APIKey string `koanf:"api_key"`
	Model  string `koanf:"model"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:   "sqlite",
			Path:     "animeportal.db",
			LockDir:  os.TempDir(),
			MaxConns: 10,
		},
		Session: SessionConfig{
			Store:      "memory",
			Path:       "data/sessions",
			RedisAddr:  "localhost:6379",
			TTL:        7 * 24 * time.Hour,
			CookieName: "animeportal_session",
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		Recommend: RecommendConfig{
			TopGenreLimit: 3,
			ItemLimit:     6,
		},
		Catalog: CatalogConfig{
			ReservedGenres: []string{"Editörün Seçimi", "Öne Çıkan"},
			EditorsPick:    "Editörün Seçimi",
			Featured:       "Öne Çıkan",
			PageSize:       24,
			LatestLimit:    12,
			RandomLimit:    6,
		},
		Security: SecurityConfig{
			CookieSecure:    false,
			CORSOrigins:     []string{"*"},
			AuthRateLimit:   5,
			AuthRateWindow:  time.Minute,
			HSTS:            false,
			MinPasswordSize: 8,
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, the config file and the environment.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.Session.Store {
	case "memory", "badger", "redis":
	default:
		return fmt.Errorf("unsupported session store %q", c.Session.Store)
	}
	if c.Session.Store == "redis" && c.Session.RedisAddr == "" {
		return fmt.Errorf("session.redis_addr is required for the redis store")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}

	if c.Recommend.TopGenreLimit < 1 || c.Recommend.ItemLimit < 1 {
		return fmt.Errorf("recommend limits must be at least 1")
	}
	if c.Catalog.PageSize < 1 || c.Catalog.PageSize > 100 {
		return fmt.Errorf("catalog.page_size must be between 1 and 100")
	}
	if c.Security.MinPasswordSize < 1 {
		return fmt.Errorf("security.min_password_size must be at least 1")
	}
	return nil
}

// LogLevel converts the configured level name.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"catalog.reserved_genres",
	"security.cors_origins",
}

// processSliceFields splits comma separated env values for slice settings.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"port":              "server.port",
	"read_timeout":      "server.read_timeout",
	"write_timeout":     "server.write_timeout",
	"db_driver":         "database.driver",
	"db_path":           "database.path",
	"database_url":      "database.url",
	"db_lock_dir":       "database.lock_dir",
	"db_max_conns":      "database.max_conns",
	"session_store":     "session.store",
	"session_path":      "session.path",
	"redis_addr":        "session.redis_addr",
	"session_ttl":       "session.ttl",
	"session_cookie":    "session.cookie_name",
	"cache_ttl":         "cache.ttl",
	"recommend_top":     "recommend.top_genre_limit",
	"recommend_limit":   "recommend.item_limit",
	"reserved_genres":   "catalog.reserved_genres",
	"editors_pick":      "catalog.editors_pick",
	"featured_genre":    "catalog.featured",
	"page_size":         "catalog.page_size",
	"cookie_secure":     "security.cookie_secure",
	"cors_origins":      "security.cors_origins",
	"auth_rate_limit":   "security.auth_rate_limit",
	"auth_rate_window":  "security.auth_rate_window",
	"enable_hsts":       "security.hsts",
	"min_password_size": "security.min_password_size",
	"admin_username":    "security.admin_username",
	"admin_password":    "security.admin_password",
	"openai_api_key":    "openai.api_key",
	"openai_model":      "openai.model",
	"log_level":         "log.level",
}

// envTransformFunc maps known environment variables onto config paths and
// drops everything else.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

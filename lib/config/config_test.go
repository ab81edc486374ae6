package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, 3, cfg.Recommend.TopGenreLimit)
	assert.Equal(t, 6, cfg.Recommend.ItemLimit)
	assert.Equal(t, []string{"Editörün Seçimi", "Öne Çıkan"}, cfg.Catalog.ReservedGenres)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel())
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := "server:\n  port: \"9000\"\nrecommend:\n  item_limit: 10\nlog:\n  level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("PORT", "9100")
	t.Setenv("RESERVED_GENRES", "Featured, Staff Pick")
	t.Setenv("SESSION_TTL", "2h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, 10, cfg.Recommend.ItemLimit)
	assert.Equal(t, []string{"Featured", "Staff Pick"}, cfg.Catalog.ReservedGenres)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"postgres without url", func(c *Config) { c.Database.Driver = "postgres" }},
		{"unknown session store", func(c *Config) { c.Session.Store = "etcd" }},
		{"zero item limit", func(c *Config) { c.Recommend.ItemLimit = 0 }},
		{"page size too large", func(c *Config) { c.Catalog.PageSize = 500 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, defaultConfig().Validate())
}

package db

import (
	"fmt"
	"log/slog"

	"github.com/icco/animeportal/lib/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open connects to the configured store. SQLite gets a single connection so
// that writers are serialised by the pool instead of failing with SQLITE_BUSY.
func Open(cfg config.DatabaseConfig, logger *slog.Logger) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger:         NewGormLogger(logger),
		TranslateError: true,
	}

	var (
		gormDB *gorm.DB
		err    error
	)
	switch cfg.Driver {
	case "postgres":
		gormDB, err = gorm.Open(postgres.Open(cfg.URL), gcfg)
	case "sqlite":
		gormDB, err = gorm.Open(sqlite.Open(cfg.Path+"?_foreign_keys=on"), gcfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}
	if cfg.Driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else if cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConns)
	}

	return gormDB, nil
}

// IsPostgres reports whether db talks to PostgreSQL.
func IsPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

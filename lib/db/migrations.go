package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/icco/animeportal/lib/lock"
	"github.com/icco/animeportal/models"
	"gorm.io/gorm"
)

const migrationLockKey = "migrations"

// RunMigrations migrates the schema while holding the migration lock so that
// several server processes started together do not race.
func RunMigrations(ctx context.Context, db *gorm.DB, fl *lock.FileLock, logger *slog.Logger) error {
	return fl.Do(ctx, migrationLockKey, 2*time.Minute, func() error {
		return migrate(ctx, db, logger)
	})
}

func migrate(ctx context.Context, db *gorm.DB, logger *slog.Logger) error {
	if !IsPostgres(db) {
		enableSQLiteOptimizations(ctx, db, logger)
	}

	if err := db.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	createAdditionalIndexes(ctx, db, logger)

	logger.InfoContext(ctx, "Database migrations complete")
	return nil
}

// enableSQLiteOptimizations enables SQLite-specific optimizations
func enableSQLiteOptimizations(ctx context.Context, db *gorm.DB, logger *slog.Logger) {
	optimizations := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=1000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
		"PRAGMA mmap_size=134217728", // 128MB
		"PRAGMA optimize",
	}

	for _, pragma := range optimizations {
		if err := db.WithContext(ctx).Exec(pragma).Error; err != nil {
			logger.WarnContext(ctx, "Failed to execute pragma", slog.String("pragma", pragma), slog.Any("error", err))
		} else {
			logger.DebugContext(ctx, "Executed pragma", slog.String("pragma", pragma))
		}
	}
}

// createAdditionalIndexes creates composite indexes for the hot listing queries.
func createAdditionalIndexes(ctx context.Context, db *gorm.DB, logger *slog.Logger) {
	additionalIndexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_anime_genres_genre ON anime_genres(genre_id, anime_id)",
		"CREATE INDEX IF NOT EXISTS idx_animes_rating_count ON animes(average_rating, rating_count)",
		"CREATE INDEX IF NOT EXISTS idx_animes_year_status ON animes(release_year, status)",
		"CREATE INDEX IF NOT EXISTS idx_episodes_anime_number ON episodes(anime_id, number)",
		"CREATE INDEX IF NOT EXISTS idx_ratings_user_created ON ratings(user_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_news_pinned_created ON news(is_pinned, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_notifications_user_read ON notifications(user_id, is_read)",
		"CREATE INDEX IF NOT EXISTS idx_community_members_approved_date ON community_members(is_approved, registration_date)",
	}

	for _, indexSQL := range additionalIndexes {
		if err := db.WithContext(ctx).Exec(indexSQL).Error; err != nil {
			logger.WarnContext(ctx, "Failed to create index", slog.String("sql", indexSQL), slog.Any("error", err))
		}
	}
}

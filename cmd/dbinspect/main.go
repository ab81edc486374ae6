// Command dbinspect logs a summary of the portal database: totals, the genre
// distribution, the latest additions and a few data sanity checks.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/icco/animeportal/lib/config"
	"github.com/icco/animeportal/lib/db"
	"github.com/icco/animeportal/lib/stats"
	"github.com/icco/animeportal/models"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))
	logger := slog.Default()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("Connecting to database",
		slog.String("driver", cfg.Database.Driver),
		slog.String("path", cfg.Database.Path))
	gormDB, err := db.Open(cfg.Database, logger)
	if err != nil {
		logger.Error("Failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}

	ctx := context.Background()

	logger.Info("=== DATABASE CONTENT OVERVIEW ===")
	s, err := stats.Collect(ctx, gormDB)
	if err != nil {
		logger.Error("Failed to collect stats", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Totals",
		slog.Int64("anime", s.TotalAnime),
		slog.Int64("episodes", s.TotalEpisodes),
		slog.Int64("genres", s.TotalGenres),
		slog.Int64("users", s.TotalUsers),
		slog.Int64("ratings", s.TotalRatings),
		slog.Float64("average_rating", s.AverageRating))
	logger.Info("Community members",
		slog.Int64("pending", s.PendingMembers),
		slog.Int64("approved", s.ApprovedMembers))

	logger.Info("=== GENRES ===")
	for _, g := range s.GenreDistribution {
		logger.Info("Genre", slog.String("name", g.Genre), slog.Int64("anime", g.Count))
	}

	logger.Info("=== LATEST ANIME ===")
	var latest []models.Anime
	if err := gormDB.WithContext(ctx).Order("created_at DESC").Limit(10).Find(&latest).Error; err != nil {
		logger.Error("Failed to get latest anime", slog.Any("error", err))
		os.Exit(1)
	}
	for _, a := range latest {
		logger.Info("Anime",
			slog.Uint64("id", uint64(a.ID)),
			slog.String("name", a.Name),
			slog.Float64("average_rating", a.AverageRating),
			slog.Int("rating_count", a.RatingCount))
	}

	logger.Info("=== DATA VALIDATION ===")
	checks := []struct {
		name  string
		model any
		where string
	}{
		{"Anime without episodes", &models.Anime{}, "NOT EXISTS (SELECT 1 FROM episodes WHERE episodes.anime_id = animes.id)"},
		{"Anime without genres", &models.Anime{}, "NOT EXISTS (SELECT 1 FROM anime_genres WHERE anime_genres.anime_id = animes.id)"},
		{"Episodes without sources", &models.Episode{}, "sources = '' OR sources IS NULL"},
		{"Anime with stale rating count", &models.Anime{}, "rating_count <> (SELECT COUNT(*) FROM ratings WHERE ratings.anime_id = animes.id)"},
	}
	for _, c := range checks {
		var n int64
		if err := gormDB.WithContext(ctx).Model(c.model).Where(c.where).Count(&n).Error; err != nil {
			logger.Error("Check failed", slog.String("check", c.name), slog.Any("error", err))
			continue
		}
		logger.Info(c.name, slog.Int64("count", n))
	}

	logger.Info("Database inspection completed")
}

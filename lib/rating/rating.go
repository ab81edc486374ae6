// Package rating stores user scores and keeps each anime's average and count
// in step with its score rows.
package rating

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/icco/animeportal/lib/apperr"
	"github.com/icco/animeportal/lib/db"
	"github.com/icco/animeportal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	MinScore = 1
	MaxScore = 5
)

// Result is the aggregate right after a score was committed.
type Result struct {
	NewAverage float64 `json:"new_average"`
	NewCount   int     `json:"rating_count"`
}

// Invalidator is told when cached catalog data went stale.
type Invalidator interface {
	InvalidateCatalog(ctx context.Context)
}

type Service struct {
	db     *gorm.DB
	cache  Invalidator
	logger *slog.Logger
}

func NewService(db *gorm.DB, cache Invalidator, logger *slog.Logger) *Service {
	return &Service{db: db, cache: cache, logger: logger}
}

// ParseScore reads a raw JSON value and accepts only integers in range.
// 4.0 is an integer, 4.5 and "4" are not.
func ParseScore(raw json.RawMessage) (int, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, apperr.InvalidScore("score is required")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, apperr.InvalidScore("score must be an integer")
	}
	if f != math.Trunc(f) {
		return 0, apperr.InvalidScore("score must be an integer")
	}
	score := int(f)
	if err := ValidateScore(score); err != nil {
		return 0, err
	}
	return score, nil
}

func ValidateScore(score int) error {
	if score < MinScore || score > MaxScore {
		return apperr.InvalidScore(fmt.Sprintf("score must be between %d and %d", MinScore, MaxScore))
	}
	return nil
}

// SubmitScore inserts or overwrites the user's score for an anime and
// recomputes the anime's aggregate in the same transaction.
func (s *Service) SubmitScore(ctx context.Context, userID, animeID uint, score int) (Result, error) {
	if err := ValidateScore(score); err != nil {
		return Result{}, err
	}

	var res Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var anime models.Anime
		q := tx.Select("id")
		if db.IsPostgres(tx) {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&anime, animeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("anime not found")
			}
			return fmt.Errorf("failed to load anime: %w", err)
		}

		row := models.Rating{UserID: userID, AnimeID: animeID, Score: score}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "anime_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("failed to upsert rating: %w", err)
		}

		err = tx.Exec(`UPDATE animes SET
			rating_count = (SELECT COUNT(*) FROM ratings WHERE ratings.anime_id = animes.id),
			average_rating = COALESCE((SELECT AVG(score) FROM ratings WHERE ratings.anime_id = animes.id), 0)
			WHERE id = ?`, animeID).Error
		if err != nil {
			return fmt.Errorf("failed to update rating aggregate: %w", err)
		}

		if err := tx.Select("average_rating", "rating_count").First(&anime, animeID).Error; err != nil {
			return fmt.Errorf("failed to read rating aggregate: %w", err)
		}
		res = Result{NewAverage: anime.AverageRating, NewCount: anime.RatingCount}
		return nil
	})
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return Result{}, err
		}
		s.logger.ErrorContext(ctx, "Failed to submit score",
			slog.Uint64("anime_id", uint64(animeID)),
			slog.Uint64("user_id", uint64(userID)),
			slog.Any("error", err))
		return Result{}, apperr.DataAccess(err)
	}

	if s.cache != nil {
		s.cache.InvalidateCatalog(ctx)
	}
	return res, nil
}

// ForUser lists a user's ratings, newest first, with the rated anime loaded.
func (s *Service) ForUser(ctx context.Context, userID uint) ([]models.Rating, error) {
	var ratings []models.Rating
	err := s.db.WithContext(ctx).
		Preload("Anime").
		Where("user_id = ?", userID).
		Order("updated_at DESC, id DESC").
		Find(&ratings).Error
	if err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to list ratings: %w", err))
	}
	return ratings, nil
}

// UserScore returns the user's current score for an anime, zero when unrated.
func (s *Service) UserScore(ctx context.Context, userID, animeID uint) (int, error) {
	var r models.Rating
	err := s.db.WithContext(ctx).Where("user_id = ? AND anime_id = ?", userID, animeID).Limit(1).Find(&r).Error
	if err != nil {
		return 0, apperr.DataAccess(fmt.Errorf("failed to load rating: %w", err))
	}
	return r.Score, nil
}

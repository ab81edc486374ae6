// Package recommend builds the "recommended for you" panel from a genre
// affinity, whether that affinity comes from the session or from ratings.
package recommend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/icco/animeportal/lib/affinity"
	"github.com/icco/animeportal/lib/apperr"
	"github.com/icco/animeportal/models"
	"gorm.io/gorm"
)

const (
	DefaultTopGenreLimit = 3
	DefaultItemLimit     = 6
)

// Source yields the affinity a selection is based on.
type Source interface {
	Affinity(ctx context.Context) (affinity.Affinity, error)
}

// SessionSource serves the view-derived affinity kept in the session.
type SessionSource struct {
	Views affinity.Affinity
}

func (s SessionSource) Affinity(context.Context) (affinity.Affinity, error) {
	return s.Views, nil
}

// RatingHistorySource derives an affinity from a user's ratings: every rated
// anime counts once for each of its non-reserved genres. Genres are ordered
// by count, ties by the earliest rating.
type RatingHistorySource struct {
	DB       *gorm.DB
	UserID   uint
	Reserved []string
}

type genreFrequency struct {
	GenreID     uint
	Hits        int
	FirstRating uint
}

func (s RatingHistorySource) Affinity(ctx context.Context) (affinity.Affinity, error) {
	q := s.DB.WithContext(ctx).
		Table("ratings").
		Select("anime_genres.genre_id AS genre_id, COUNT(*) AS hits, MIN(ratings.id) AS first_rating").
		Joins("JOIN anime_genres ON anime_genres.anime_id = ratings.anime_id").
		Joins("JOIN genres ON genres.id = anime_genres.genre_id").
		Where("ratings.user_id = ?", s.UserID)
	if len(s.Reserved) > 0 {
		q = q.Where("genres.name NOT IN ?", s.Reserved)
	}

	var rows []genreFrequency
	if err := q.Group("anime_genres.genre_id").Order("hits DESC, first_rating ASC").Scan(&rows).Error; err != nil {
		return affinity.Affinity{}, apperr.DataAccess(fmt.Errorf("failed to load rating history: %w", err))
	}

	a := affinity.New()
	for _, r := range rows {
		a.Add(r.GenreID, r.Hits)
	}
	return a, nil
}

// Selector picks anime for a ranked affinity.
type Selector struct {
	db            *gorm.DB
	logger        *slog.Logger
	topGenreLimit int
	itemLimit     int
	reserved      []string
}

// New creates a selector. Limits below 1 fall back to the defaults.
func New(db *gorm.DB, logger *slog.Logger, topGenreLimit, itemLimit int, reserved []string) *Selector {
	if topGenreLimit < 1 {
		topGenreLimit = DefaultTopGenreLimit
	}
	if itemLimit < 1 {
		itemLimit = DefaultItemLimit
	}
	return &Selector{
		db:            db,
		logger:        logger,
		topGenreLimit: topGenreLimit,
		itemLimit:     itemLimit,
		reserved:      reserved,
	}
}

// Select loads the affinity from src and returns matching anime with the
// selector's configured limits.
func (s *Selector) Select(ctx context.Context, src Source) ([]models.Anime, error) {
	a, err := src.Affinity(ctx)
	if err != nil {
		return nil, err
	}
	return s.SelectPersonalized(ctx, a, s.topGenreLimit, s.itemLimit)
}

// SelectPersonalized returns up to itemLimit anime tagged with any of the
// topGenreLimit highest ranked genres, ordered by id. An empty affinity gives
// an empty result.
func (s *Selector) SelectPersonalized(ctx context.Context, a affinity.Affinity, topGenreLimit, itemLimit int) ([]models.Anime, error) {
	if topGenreLimit < 1 {
		topGenreLimit = s.topGenreLimit
	}
	if itemLimit < 1 {
		itemLimit = s.itemLimit
	}

	genreIDs := a.Top(topGenreLimit)
	if len(genreIDs) == 0 {
		return []models.Anime{}, nil
	}

	tagged := s.db.Table("anime_genres").Select("anime_id").Where("genre_id IN ?", genreIDs)

	var items []models.Anime
	err := s.db.WithContext(ctx).
		Preload("Genres").
		Where("id IN (?)", tagged).
		Order("id").
		Limit(itemLimit).
		Find(&items).Error
	if err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to select recommendations: %w", err))
	}

	s.logger.DebugContext(ctx, "Selected recommendations",
		slog.Any("genres", genreIDs),
		slog.Int("count", len(items)))
	return items, nil
}

// SelectFromRatingHistory ranks genres by the user's ratings instead of views.
func (s *Selector) SelectFromRatingHistory(ctx context.Context, userID uint, topGenreLimit, itemLimit int) ([]models.Anime, error) {
	a, err := RatingHistorySource{DB: s.db, UserID: userID, Reserved: s.reserved}.Affinity(ctx)
	if err != nil {
		return nil, err
	}
	return s.SelectPersonalized(ctx, a, topGenreLimit, itemLimit)
}

// ForHome picks the strategy for the home page: session views first, then
// the logged in user's ratings. Anonymous visitors without views get nothing.
func (s *Selector) ForHome(ctx context.Context, views affinity.Affinity, userID *uint) ([]models.Anime, error) {
	if !views.Empty() {
		return s.Select(ctx, SessionSource{Views: views})
	}
	if userID != nil {
		return s.SelectFromRatingHistory(ctx, *userID, s.topGenreLimit, s.itemLimit)
	}
	return []models.Anime{}, nil
}

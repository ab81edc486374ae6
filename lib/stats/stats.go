// Package stats gathers the admin dashboard counters.
package stats

import (
	"context"
	"fmt"

	"github.com/icco/animeportal/lib/apperr"
	"github.com/icco/animeportal/lib/types"
	"github.com/icco/animeportal/models"
	"gorm.io/gorm"
)

// Collect counts the catalog, accounts and ratings. AverageRating is the mean
// of the per-anime averages over anime that have at least one rating.
func Collect(ctx context.Context, db *gorm.DB) (*types.StatsData, error) {
	db = db.WithContext(ctx)
	var s types.StatsData

	counts := []struct {
		dst   *int64
		model any
		where string
		args  []any
	}{
		{&s.TotalAnime, &models.Anime{}, "", nil},
		{&s.TotalEpisodes, &models.Episode{}, "", nil},
		{&s.TotalGenres, &models.Genre{}, "", nil},
		{&s.TotalUsers, &models.User{}, "", nil},
		{&s.PendingMembers, &models.CommunityMember{}, "is_approved = ?", []any{false}},
		{&s.ApprovedMembers, &models.CommunityMember{}, "is_approved = ?", []any{true}},
		{&s.TotalRatings, &models.Rating{}, "", nil},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if c.where != "" {
			q = q.Where(c.where, c.args...)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return nil, apperr.DataAccess(fmt.Errorf("failed to count: %w", err))
		}
	}

	if err := db.Model(&models.Anime{}).
		Where("rating_count > 0").
		Select("COALESCE(AVG(average_rating), 0)").
		Scan(&s.AverageRating).Error; err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to average ratings: %w", err))
	}

	if err := db.Table("genres").
		Select("genres.name AS genre, COUNT(anime_genres.anime_id) AS count").
		Joins("LEFT JOIN anime_genres ON anime_genres.genre_id = genres.id").
		Group("genres.id, genres.name").
		Order("count DESC, genres.name ASC").
		Scan(&s.GenreDistribution).Error; err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to load genre distribution: %w", err))
	}

	return &s, nil
}

// Package library holds the per-user lists: the watchlist and the
// notifications raised for watched anime.
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/icco/animeportal/lib/apperr"
	"github.com/icco/animeportal/models"
	"gorm.io/gorm"
)

type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// AddToWatchlist puts an anime on the user's watchlist. Adding it twice is
// reported as AlreadyExists.
func (s *Service) AddToWatchlist(ctx context.Context, userID, animeID uint) (*models.WatchlistEntry, error) {
	var a models.Anime
	err := s.db.WithContext(ctx).Select("id").First(&a, animeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("anime not found")
	}
	if err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to load anime: %w", err))
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.WatchlistEntry{}).
		Where("user_id = ? AND anime_id = ?", userID, animeID).
		Count(&count).Error; err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to check watchlist: %w", err))
	}
	if count > 0 {
		return nil, apperr.AlreadyExists("anime is already on the watchlist")
	}

	entry := &models.WatchlistEntry{UserID: userID, AnimeID: animeID}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.AlreadyExists("anime is already on the watchlist")
		}
		return nil, apperr.DataAccess(fmt.Errorf("failed to add to watchlist: %w", err))
	}
	return entry, nil
}

func (s *Service) RemoveFromWatchlist(ctx context.Context, userID, animeID uint) error {
	res := s.db.WithContext(ctx).Where("user_id = ? AND anime_id = ?", userID, animeID).Delete(&models.WatchlistEntry{})
	if res.Error != nil {
		return apperr.DataAccess(fmt.Errorf("failed to remove from watchlist: %w", res.Error))
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("anime is not on the watchlist")
	}
	return nil
}

// Watchlist returns the user's entries with their anime, newest first.
func (s *Service) Watchlist(ctx context.Context, userID uint) ([]models.WatchlistEntry, error) {
	var entries []models.WatchlistEntry
	err := s.db.WithContext(ctx).
		Preload("Anime").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to list watchlist: %w", err))
	}
	return entries, nil
}

func (s *Service) IsWatching(ctx context.Context, userID, animeID uint) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.WatchlistEntry{}).
		Where("user_id = ? AND anime_id = ?", userID, animeID).
		Count(&count).Error; err != nil {
		return false, apperr.DataAccess(fmt.Errorf("failed to check watchlist: %w", err))
	}
	return count > 0, nil
}

// NotifyNewEpisode creates one unread notification for every user watching
// the anime. It runs on the caller's transaction.
func (s *Service) NotifyNewEpisode(ctx context.Context, tx *gorm.DB, anime *models.Anime, ep *models.Episode) error {
	var userIDs []uint
	if err := tx.WithContext(ctx).Model(&models.WatchlistEntry{}).
		Where("anime_id = ?", anime.ID).
		Order("user_id").
		Pluck("user_id", &userIDs).Error; err != nil {
		return fmt.Errorf("failed to load watchers: %w", err)
	}
	if len(userIDs) == 0 {
		return nil
	}

	notes := make([]models.Notification, 0, len(userIDs))
	for _, id := range userIDs {
		notes = append(notes, models.Notification{
			UserID:  id,
			Message: fmt.Sprintf("%s %d. bölüm eklendi!", anime.Name, ep.Number),
			Link:    fmt.Sprintf("/episode/%d", ep.ID),
		})
	}
	if err := tx.WithContext(ctx).Create(&notes).Error; err != nil {
		return fmt.Errorf("failed to create notifications: %w", err)
	}

	s.logger.InfoContext(ctx, "Notified watchers",
		slog.Uint64("anime_id", uint64(anime.ID)),
		slog.Int("episode", ep.Number),
		slog.Int("watchers", len(userIDs)))
	return nil
}

// Notifications returns the user's notifications, newest first.
func (s *Service) Notifications(ctx context.Context, userID uint, limit int) ([]models.Notification, error) {
	var notes []models.Notification
	q := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&notes).Error; err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to list notifications: %w", err))
	}
	return notes, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error; err != nil {
		return 0, apperr.DataAccess(fmt.Errorf("failed to count notifications: %w", err))
	}
	return count, nil
}

// MarkRead marks one of the user's notifications as read. Another user's
// notification is reported as missing.
func (s *Service) MarkRead(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return apperr.DataAccess(fmt.Errorf("failed to mark notification: %w", res.Error))
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("notification not found")
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, apperr.DataAccess(fmt.Errorf("failed to mark notifications: %w", res.Error))
	}
	return res.RowsAffected, nil
}

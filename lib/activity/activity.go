// Package activity records back office actions for the admin audit list.
package activity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/icco/animeportal/lib/apperr"
	"github.com/icco/animeportal/models"
	"gorm.io/gorm"
)

// Actions recorded by the portal.
const (
	AnimeCreated    = "anime_created"
	AnimeUpdated    = "anime_updated"
	AnimeDeleted    = "anime_deleted"
	EpisodeAdded    = "episode_added"
	EpisodeDeleted  = "episode_deleted"
	GenreCreated    = "genre_created"
	GenreDeleted    = "genre_deleted"
	NewsChanged     = "news_changed"
	EventChanged    = "event_changed"
	MemberApproved  = "member_approved"
	MemberRejected  = "member_rejected"
	MembersExported = "members_exported"
	UserChanged     = "user_changed"
	ForumChanged    = "forum_changed"
)

type Log struct {
	db     *gorm.DB
	logger *slog.Logger
}

func New(db *gorm.DB, logger *slog.Logger) *Log {
	return &Log{db: db, logger: logger}
}

// Record stores one entry. A failed write is logged but never fails the
// action being recorded.
func (l *Log) Record(ctx context.Context, userID *uint, action, description string) {
	entry := models.ActivityLog{Action: action, Description: description, UserID: userID}
	if err := l.db.WithContext(ctx).Create(&entry).Error; err != nil {
		l.logger.ErrorContext(ctx, "Failed to record activity",
			slog.String("action", action),
			slog.Any("error", err))
		return
	}
	l.logger.InfoContext(ctx, "Activity", slog.String("action", action), slog.String("description", description))
}

// Recent returns up to limit entries, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]models.ActivityLog, error) {
	var entries []models.ActivityLog
	if err := l.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to list activity: %w", err))
	}
	return entries, nil
}

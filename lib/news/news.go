// Package news publishes the portal's news posts and community events.
package news

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/icco/animeportal/lib/account"
	"github.com/icco/animeportal/lib/apperr"
	"github.com/icco/animeportal/lib/validation"
	"github.com/icco/animeportal/models"
	"gorm.io/gorm"
)

type NewsInput struct {
	Title    string `json:"title" validate:"required,max=200"`
	Content  string `json:"content" validate:"required"`
	ImageURL string `json:"image_url" validate:"max=255"`
	IsPinned bool   `json:"is_pinned"`
}

type EventInput struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description"`
	Location    string     `json:"location" validate:"max=200"`
	StartTime   time.Time  `json:"start_time" validate:"required"`
	EndTime     *time.Time `json:"end_time"`
}

type Service struct {
	db        *gorm.DB
	validator *validation.Validator
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(db *gorm.DB, v *validation.Validator, logger *slog.Logger) *Service {
	return &Service{db: db, validator: v, logger: logger, now: time.Now}
}

// List returns up to limit news posts, pinned ones first, then newest.
func (s *Service) List(ctx context.Context, limit int) ([]models.News, error) {
	var items []models.News
	q := s.db.WithContext(ctx).Order("is_pinned DESC, created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&items).Error; err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to list news: %w", err))
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.News, error) {
	var n models.News
	if err := s.db.WithContext(ctx).First(&n, id).Error; err != nil {
		return nil, notFoundOr(err, "news", "load")
	}
	return &n, nil
}

func (s *Service) Create(ctx context.Context, actor *models.User, in NewsInput) (*models.News, error) {
	if err := account.Require(actor, account.PermEdit); err != nil {
		return nil, err
	}
	if err := s.validateNews(&in); err != nil {
		return nil, err
	}
	n := &models.News{
		Title:    in.Title,
		Content:  in.Content,
		ImageURL: in.ImageURL,
		IsPinned: in.IsPinned,
		AuthorID: actor.ID,
	}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to create news: %w", err))
	}
	return n, nil
}

func (s *Service) Update(ctx context.Context, actor *models.User, id uint, in NewsInput) (*models.News, error) {
	if err := account.Require(actor, account.PermEdit); err != nil {
		return nil, err
	}
	if err := s.validateNews(&in); err != nil {
		return nil, err
	}
	n, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Model(n).Select("title", "content", "image_url", "is_pinned").
		Updates(models.News{Title: in.Title, Content: in.Content, ImageURL: in.ImageURL, IsPinned: in.IsPinned}).Error
	if err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to update news: %w", err))
	}
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, actor *models.User, id uint) error {
	if err := account.Require(actor, account.PermDelete); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Delete(&models.News{}, id)
	if res.Error != nil {
		return apperr.DataAccess(fmt.Errorf("failed to delete news: %w", res.Error))
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("news not found")
	}
	return nil
}

func (s *Service) validateNews(in *NewsInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	return s.validator.Validate(in)
}

// Upcoming returns events that have not finished yet, soonest first. An
// event without an end time counts as finished once it has started.
func (s *Service) Upcoming(ctx context.Context, limit int) ([]models.Event, error) {
	now := s.now()
	var events []models.Event
	q := s.db.WithContext(ctx).
		Where("start_time >= ? OR (end_time IS NOT NULL AND end_time >= ?)", now, now).
		Order("start_time ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to list events: %w", err))
	}
	return events, nil
}

// Events returns every event, latest start first.
func (s *Service) Events(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	if err := s.db.WithContext(ctx).Order("start_time DESC, id DESC").Find(&events).Error; err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to list events: %w", err))
	}
	return events, nil
}

func (s *Service) GetEvent(ctx context.Context, id uint) (*models.Event, error) {
	var e models.Event
	if err := s.db.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, notFoundOr(err, "event", "load")
	}
	return &e, nil
}

func (s *Service) CreateEvent(ctx context.Context, actor *models.User, in EventInput) (*models.Event, error) {
	if err := account.Require(actor, account.PermEdit); err != nil {
		return nil, err
	}
	if err := s.validateEvent(&in); err != nil {
		return nil, err
	}
	e := &models.Event{
		Title:       in.Title,
		Description: in.Description,
		Location:    in.Location,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
	}
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to create event: %w", err))
	}
	return e, nil
}

func (s *Service) UpdateEvent(ctx context.Context, actor *models.User, id uint, in EventInput) (*models.Event, error) {
	if err := account.Require(actor, account.PermEdit); err != nil {
		return nil, err
	}
	if err := s.validateEvent(&in); err != nil {
		return nil, err
	}
	e, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Model(e).Select("title", "description", "location", "start_time", "end_time").
		Updates(models.Event{
			Title:       in.Title,
			Description: in.Description,
			Location:    in.Location,
			StartTime:   in.StartTime,
			EndTime:     in.EndTime,
		}).Error
	if err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to update event: %w", err))
	}
	return s.GetEvent(ctx, id)
}

func (s *Service) DeleteEvent(ctx context.Context, actor *models.User, id uint) error {
	if err := account.Require(actor, account.PermDelete); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Delete(&models.Event{}, id)
	if res.Error != nil {
		return apperr.DataAccess(fmt.Errorf("failed to delete event: %w", res.Error))
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("event not found")
	}
	return nil
}

func (s *Service) validateEvent(in *EventInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Location = strings.TrimSpace(in.Location)
	if err := s.validator.Validate(in); err != nil {
		return err
	}
	if in.EndTime != nil && in.EndTime.Before(in.StartTime) {
		return apperr.ValidationWithDetails("validation failed", map[string]string{
			"end_time": "must not be before start_time",
		})
	}
	return nil
}

func notFoundOr(err error, entity, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(entity + " not found")
	}
	return apperr.DataAccess(fmt.Errorf("failed to %s %s: %w", action, entity, err))
}

package community

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/icco/animeportal/lib/account"
	"github.com/icco/animeportal/lib/apperr"
	"github.com/icco/animeportal/models"
	"gorm.io/gorm"
)

type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=255"`
}

type ThreadInput struct {
	CategoryID uint   `json:"category_id" validate:"required"`
	Title      string `json:"title" validate:"required,max=200"`
	Content    string `json:"content" validate:"required"`
}

type PostInput struct {
	Content string `json:"content" validate:"required"`
}

func requireReader(actor *models.User) error {
	if actor == nil {
		return apperr.Unauthorized("login required")
	}
	return nil
}

// Categories lists the forum categories by name.
func (s *Service) Categories(ctx context.Context, actor *models.User) ([]models.ForumCategory, error) {
	if err := requireReader(actor); err != nil {
		return nil, err
	}
	var cats []models.ForumCategory
	if err := s.db.WithContext(ctx).Order("name").Find(&cats).Error; err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to list categories: %w", err))
	}
	return cats, nil
}

func (s *Service) CreateCategory(ctx context.Context, actor *models.User, in CategoryInput) (*models.ForumCategory, error) {
	if err := account.Require(actor, account.PermAdmin); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.ForumCategory{}).Where("name = ?", in.Name).Count(&count).Error; err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to check category: %w", err))
	}
	if count > 0 {
		return nil, apperr.AlreadyExists("category already exists")
	}

	cat := &models.ForumCategory{Name: in.Name, Description: strings.TrimSpace(in.Description)}
	if err := s.db.WithContext(ctx).Create(cat).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.AlreadyExists("category already exists")
		}
		return nil, apperr.DataAccess(fmt.Errorf("failed to create category: %w", err))
	}
	return cat, nil
}

// DeleteCategory removes a category with its threads and their posts.
func (s *Service) DeleteCategory(ctx context.Context, actor *models.User, id uint) error {
	if err := account.Require(actor, account.PermAdmin); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cat models.ForumCategory
		if err := tx.First(&cat, id).Error; err != nil {
			return err
		}
		threads := tx.Model(&models.ForumThread{}).Select("id").Where("category_id = ?", id)
		if err := tx.Where("thread_id IN (?)", threads).Delete(&models.ForumPost{}).Error; err != nil {
			return err
		}
		if err := tx.Where("category_id = ?", id).Delete(&models.ForumThread{}).Error; err != nil {
			return err
		}
		return tx.Delete(&cat).Error
	})
	return wrapForum(err, "category", "delete")
}

// Threads lists a category's threads, newest first.
func (s *Service) Threads(ctx context.Context, actor *models.User, categoryID uint) (*models.ForumCategory, []models.ForumThread, error) {
	if err := requireReader(actor); err != nil {
		return nil, nil, err
	}
	var cat models.ForumCategory
	if err := s.db.WithContext(ctx).First(&cat, categoryID).Error; err != nil {
		return nil, nil, wrapForum(err, "category", "load")
	}
	var threads []models.ForumThread
	if err := s.db.WithContext(ctx).Where("category_id = ?", categoryID).Order("created_at DESC, id DESC").Find(&threads).Error; err != nil {
		return nil, nil, apperr.DataAccess(fmt.Errorf("failed to list threads: %w", err))
	}
	return &cat, threads, nil
}

// Thread loads a thread with its posts, oldest first.
func (s *Service) Thread(ctx context.Context, actor *models.User, id uint) (*models.ForumThread, error) {
	if err := requireReader(actor); err != nil {
		return nil, err
	}
	var th models.ForumThread
	err := s.db.WithContext(ctx).
		Preload("Posts", func(db *gorm.DB) *gorm.DB { return db.Order("forum_posts.created_at ASC, forum_posts.id ASC") }).
		First(&th, id).Error
	if err != nil {
		return nil, wrapForum(err, "thread", "load")
	}
	return &th, nil
}

func (s *Service) CreateThread(ctx context.Context, actor *models.User, in ThreadInput) (*models.ForumThread, error) {
	if err := account.Require(actor, account.PermMember); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}
	var cat models.ForumCategory
	if err := s.db.WithContext(ctx).First(&cat, in.CategoryID).Error; err != nil {
		return nil, wrapForum(err, "category", "load")
	}

	th := &models.ForumThread{
		Title:        in.Title,
		Content:      in.Content,
		UserID:       actor.ID,
		UserUsername: actor.Username,
		CategoryID:   cat.ID,
	}
	if err := s.db.WithContext(ctx).Create(th).Error; err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to create thread: %w", err))
	}
	return th, nil
}

func (s *Service) CreatePost(ctx context.Context, actor *models.User, threadID uint, in PostInput) (*models.ForumPost, error) {
	if err := account.Require(actor, account.PermMember); err != nil {
		return nil, err
	}
	in.Content = strings.TrimSpace(in.Content)
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}
	var th models.ForumThread
	if err := s.db.WithContext(ctx).Select("id").First(&th, threadID).Error; err != nil {
		return nil, wrapForum(err, "thread", "load")
	}

	p := &models.ForumPost{
		Content:      in.Content,
		UserID:       actor.ID,
		UserUsername: actor.Username,
		ThreadID:     th.ID,
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to create post: %w", err))
	}
	return p, nil
}

func (s *Service) DeleteThread(ctx context.Context, actor *models.User, id uint) error {
	if err := account.Require(actor, account.PermAdmin); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var th models.ForumThread
		if err := tx.First(&th, id).Error; err != nil {
			return err
		}
		if err := tx.Where("thread_id = ?", id).Delete(&models.ForumPost{}).Error; err != nil {
			return err
		}
		return tx.Delete(&th).Error
	})
	return wrapForum(err, "thread", "delete")
}

func (s *Service) DeletePost(ctx context.Context, actor *models.User, id uint) error {
	if err := account.Require(actor, account.PermAdmin); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Delete(&models.ForumPost{}, id)
	if res.Error != nil {
		return apperr.DataAccess(fmt.Errorf("failed to delete post: %w", res.Error))
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("post not found")
	}
	return nil
}

func wrapForum(err error, entity, action string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(entity + " not found")
	}
	return apperr.DataAccess(fmt.Errorf("failed to %s %s: %w", action, entity, err))
}

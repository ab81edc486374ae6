// Package community handles membership applications, the community info page
// and the members-only forum.
package community

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

// Application status filters.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
)

// ApplyInput is a membership application as submitted.
type ApplyInput struct {
	Username         string `json:"username" validate:"required,min=3,max=80,alphanum"`
	Password         string `json:"password" validate:"required,max=1024"`
	Email            string `json:"email" validate:"required,email,max=120"`
	Name             string `json:"name" validate:"required,max=80"`
	Surname          string `json:"surname" validate:"required,max=80"`
	PlaceOfBirth     string `json:"place_of_birth" validate:"required,max=100"`
	DateOfBirth      string `json:"date_of_birth" validate:"required"`
	CurrentResidence string `json:"current_residence" validate:"required,max=100"`
	StudentID        string `json:"student_id" validate:"required,max=20,numeric"`
	PhoneNumber      string `json:"phone_number" validate:"required,len=13,trphone"`
	StudentClass     string `json:"student_class" validate:"required,max=20"`
	Faculty          string `json:"faculty" validate:"required,max=120"`
	Department       string `json:"department" validate:"required,max=120"`
	PreferredUnits   string `json:"preferred_units" validate:"max=255"`
}

// ListFilter narrows the application list. Status is StatusPending,
// StatusApproved or empty for both.
type ListFilter struct {
	Query  string `json:"q"`
	Status string `json:"status"`
}

type Service struct {
	db              *gorm.DB
	validator       *validation.Validator
	minPasswordSize int
	logger          *slog.Logger
}

func NewService(db *gorm.DB, v *validation.Validator, minPasswordSize int, logger *slog.Logger) *Service {
	return &Service{db: db, validator: v, minPasswordSize: minPasswordSize, logger: logger}
}

// Apply stores a pending membership application.
func (s *Service) Apply(ctx context.Context, in ApplyInput) (*models.CommunityMember, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.StudentID = strings.TrimSpace(in.StudentID)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}
	if len(in.Password) < s.minPasswordSize {
		return nil, apperr.ValidationWithDetails("validation failed", map[string]string{
			"password": fmt.Sprintf("must be at least %d characters", s.minPasswordSize),
		})
	}
	dob, err := validation.ValidateDate(in.DateOfBirth)
	if err != nil {
		return nil, err
	}

	if err := s.checkDuplicates(ctx, in); err != nil {
		return nil, err
	}

	hash, err := account.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	m := &models.CommunityMember{
		Username:         in.Username,
		PasswordHash:     hash,
		Email:            in.Email,
		Name:             strings.TrimSpace(in.Name),
		Surname:          strings.TrimSpace(in.Surname),
		PlaceOfBirth:     strings.TrimSpace(in.PlaceOfBirth),
		DateOfBirth:      dob,
		CurrentResidence: strings.TrimSpace(in.CurrentResidence),
		StudentID:        in.StudentID,
		PhoneNumber:      in.PhoneNumber,
		StudentClass:     strings.TrimSpace(in.StudentClass),
		Faculty:          strings.TrimSpace(in.Faculty),
		Department:       strings.TrimSpace(in.Department),
		PreferredUnits:   strings.TrimSpace(in.PreferredUnits),
	}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.AlreadyExists("an application with these details already exists")
		}
		return nil, apperr.DataAccess(fmt.Errorf("failed to store application: %w", err))
	}

	s.logger.InfoContext(ctx, "Membership application received", slog.String("username", m.Username))
	return m, nil
}

func (s *Service) checkDuplicates(ctx context.Context, in ApplyInput) error {
	checks := []struct {
		model any
		query string
		args  []any
		msg   string
	}{
		{&models.CommunityMember{}, "username = ?", []any{in.Username}, "username already taken"},
		{&models.CommunityMember{}, "email = ?", []any{in.Email}, "email already registered"},
		{&models.CommunityMember{}, "student_id = ?", []any{in.StudentID}, "student id already registered"},
		{&models.User{}, "username = ?", []any{in.Username}, "username already taken"},
		{&models.User{}, "email = ?", []any{in.Email}, "email already registered"},
	}
	for _, c := range checks {
		var count int64
		if err := s.db.WithContext(ctx).Model(c.model).Where(c.query, c.args...).Count(&count).Error; err != nil {
			return apperr.DataAccess(fmt.Errorf("failed to check application: %w", err))
		}
		if count > 0 {
			return apperr.AlreadyExists(c.msg)
		}
	}
	return nil
}

func (s *Service) filtered(ctx context.Context, f ListFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.CommunityMember{})
	if term := strings.TrimSpace(f.Query); term != "" {
		like := validation.LikePattern(term)
		q = q.Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(surname) LIKE ? ESCAPE '\' OR LOWER(faculty) LIKE ? ESCAPE '\' OR LOWER(department) LIKE ? ESCAPE '\' OR student_id LIKE ? ESCAPE '\'`,
			like, like, like, like, like)
	}
	switch f.Status {
	case StatusPending:
		q = q.Where("is_approved = ?", false)
	case StatusApproved:
		q = q.Where("is_approved = ?", true)
	}
	return q
}

// Members returns every application matching f, newest first.
func (s *Service) Members(ctx context.Context, actor *models.User, f ListFilter) ([]models.CommunityMember, error) {
	if err := account.Require(actor, account.PermAdmin); err != nil {
		return nil, err
	}
	if f.Status != "" && f.Status != StatusPending && f.Status != StatusApproved {
		return nil, apperr.Validation("status must be pending or approved")
	}
	var members []models.CommunityMember
	if err := s.filtered(ctx, f).Order("registration_date DESC, id DESC").Find(&members).Error; err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to list applications: %w", err))
	}
	return members, nil
}

func (s *Service) GetMember(ctx context.Context, actor *models.User, id uint) (*models.CommunityMember, error) {
	if err := account.Require(actor, account.PermAdmin); err != nil {
		return nil, err
	}
	return s.member(ctx, s.db, id)
}

func (s *Service) member(ctx context.Context, tx *gorm.DB, id uint) (*models.CommunityMember, error) {
	var m models.CommunityMember
	err := tx.WithContext(ctx).First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("application not found")
	}
	if err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to load application: %w", err))
	}
	return &m, nil
}

// Approve accepts an application. A user account with the same username is
// flagged as a community member; otherwise one is created from the
// application.
func (s *Service) Approve(ctx context.Context, actor *models.User, id uint) (*models.CommunityMember, error) {
	if err := account.Require(actor, account.PermAdmin); err != nil {
		return nil, err
	}

	var approved *models.CommunityMember
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := s.member(ctx, tx, id)
		if err != nil {
			return err
		}
		if m.IsApproved {
			return apperr.Validation("application is already approved")
		}

		var u models.User
		err = tx.Where("username = ?", m.Username).First(&u).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			email := m.Email
			u = models.User{
				Username:          m.Username,
				Email:             &email,
				Password:          m.PasswordHash,
				IsCommunityMember: true,
			}
			if err := tx.Create(&u).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := tx.Model(&u).Update("is_community_member", true).Error; err != nil {
				return err
			}
		}

		now := time.Now()
		if err := tx.Model(m).Updates(map[string]any{"is_approved": true, "approved_at": now}).Error; err != nil {
			return err
		}
		m.IsApproved = true
		m.ApprovedAt = &now
		approved = m
		return nil
	})
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.AlreadyExists("a user with this email already exists")
		}
		return nil, apperr.DataAccess(fmt.Errorf("failed to approve application: %w", err))
	}

	s.logger.InfoContext(ctx, "Approved membership", slog.String("username", approved.Username))
	return approved, nil
}

// Reject deletes the application.
func (s *Service) Reject(ctx context.Context, actor *models.User, id uint) (*models.CommunityMember, error) {
	if err := account.Require(actor, account.PermAdmin); err != nil {
		return nil, err
	}
	m, err := s.member(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Delete(m).Error; err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to reject application: %w", err))
	}
	return m, nil
}

// Info returns the community info page. An empty page is returned until an
// admin writes one.
func (s *Service) Info(ctx context.Context) (*models.CommunityInfo, error) {
	var info models.CommunityInfo
	err := s.db.WithContext(ctx).Order("id").First(&info).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.CommunityInfo{}, nil
	}
	if err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to load community info: %w", err))
	}
	return &info, nil
}

type InfoInput struct {
	Title    string `json:"title" validate:"required,max=200"`
	Content  string `json:"content" validate:"required"`
	ImageURL string `json:"image_url" validate:"max=255"`
}

// SaveInfo creates or replaces the community info page.
func (s *Service) SaveInfo(ctx context.Context, actor *models.User, in InfoInput) (*models.CommunityInfo, error) {
	if err := account.Require(actor, account.PermAdmin); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}
	info, err := s.Info(ctx)
	if err != nil {
		return nil, err
	}
	info.Title = strings.TrimSpace(in.Title)
	info.Content = in.Content
	info.ImageURL = strings.TrimSpace(in.ImageURL)
	if err := s.db.WithContext(ctx).Save(info).Error; err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to save community info: %w", err))
	}
	return info, nil
}

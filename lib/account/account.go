// Package account manages user accounts, logins and back office permissions.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/icco/animeportal/lib/apperr"
	"github.com/icco/animeportal/lib/validation"
	"github.com/icco/animeportal/models"
	"gorm.io/gorm"
)

// Permission names a back office capability.
type Permission string

const (
	PermAdmin   Permission = "admin"
	PermEdit    Permission = "edit"
	PermDelete  Permission = "delete"
	PermAddUser Permission = "add_user"
	PermMember  Permission = "community_member"
)

// Has reports whether u holds perm. Admins hold every permission except
// add_user, which must be granted explicitly.
func Has(u *models.User, perm Permission) bool {
	if u == nil {
		return false
	}
	switch perm {
	case PermAdmin:
		return u.IsAdmin
	case PermEdit:
		return u.IsAdmin || u.CanEdit
	case PermDelete:
		return u.IsAdmin || u.CanDelete
	case PermAddUser:
		return u.IsAdmin && u.CanAddUser
	case PermMember:
		return u.IsAdmin || u.IsCommunityMember
	default:
		return false
	}
}

// Require returns Unauthorized for a missing user and Forbidden when the
// permission is missing.
func Require(u *models.User, perm Permission) error {
	if u == nil {
		return apperr.Unauthorized("login required")
	}
	if !Has(u, perm) {
		return apperr.Forbidden("you do not have permission to do that")
	}
	return nil
}

type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=80,alphanum"`
	Email    string `json:"email" validate:"omitempty,email,max=120"`
	Password string `json:"password" validate:"required,max=1024"`
}

// Permissions is the editable set of flags on a user.
type Permissions struct {
	IsAdmin           bool `json:"is_admin"`
	CanEdit           bool `json:"can_edit"`
	CanDelete         bool `json:"can_delete"`
	CanAddUser        bool `json:"can_add_user"`
	IsCommunityMember bool `json:"is_community_member"`
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

// Register creates a plain user account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	return s.create(ctx, in, Permissions{})
}

// CreateUser lets a privileged admin add an account with permissions.
func (s *Service) CreateUser(ctx context.Context, actor *models.User, in RegisterInput, perms Permissions) (*models.User, error) {
	if err := Require(actor, PermAddUser); err != nil {
		return nil, err
	}
	return s.create(ctx, in, perms)
}

func (s *Service) create(ctx context.Context, in RegisterInput, perms Permissions) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}
	if len(in.Password) < s.minPasswordSize {
		return nil, apperr.ValidationWithDetails("validation failed", map[string]string{
			"password": fmt.Sprintf("must be at least %d characters", s.minPasswordSize),
		})
	}

	taken, err := s.taken(ctx, in.Username, in.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.AlreadyExists("username or email already taken")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &models.User{
		Username:          in.Username,
		Password:          hash,
		IsAdmin:           perms.IsAdmin,
		CanEdit:           perms.CanEdit,
		CanDelete:         perms.CanDelete,
		CanAddUser:        perms.CanAddUser,
		IsCommunityMember: perms.IsCommunityMember,
	}
	if in.Email != "" {
		u.Email = &in.Email
	}

	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.AlreadyExists("username or email already taken")
		}
		return nil, apperr.DataAccess(fmt.Errorf("failed to create user: %w", err))
	}

	s.logger.InfoContext(ctx, "Created user", slog.String("username", u.Username), slog.Uint64("id", uint64(u.ID)))
	return u, nil
}

// taken reports whether the username or the email is already in use. The
// unique indexes still catch races between the check and the insert.
func (s *Service) taken(ctx context.Context, username, email string) (bool, error) {
	q := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username)
	if email != "" {
		q = q.Or("email = ?", email)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, apperr.DataAccess(fmt.Errorf("failed to check user: %w", err))
	}
	return count > 0, nil
}

// Authenticate checks a username and password pair and stamps the login time.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.BadCredentials("invalid username or password")
	}
	if err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to load user: %w", err))
	}
	if !VerifyPassword(u.Password, password) {
		return nil, apperr.BadCredentials("invalid username or password")
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&u).Update("last_login_at", now).Error; err != nil {
		s.logger.WarnContext(ctx, "Failed to stamp login time", slog.Any("error", err))
	}
	u.LastLoginAt = &now
	return &u, nil
}

// Get loads a user by id.
func (s *Service) Get(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to load user: %w", err))
	}
	return &u, nil
}

// List returns all users ordered by username.
func (s *Service) List(ctx context.Context, actor *models.User) ([]models.User, error) {
	if err := Require(actor, PermAdmin); err != nil {
		return nil, err
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Order("username").Find(&users).Error; err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to list users: %w", err))
	}
	return users, nil
}

// SetPermissions replaces a user's permission flags.
func (s *Service) SetPermissions(ctx context.Context, actor *models.User, id uint, perms Permissions) (*models.User, error) {
	if err := Require(actor, PermAdmin); err != nil {
		return nil, err
	}
	if actor.ID == id && !perms.IsAdmin {
		return nil, apperr.Validation("you cannot remove your own admin flag")
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Model(u).Select("is_admin", "can_edit", "can_delete", "can_add_user", "is_community_member").
		Updates(models.User{
			IsAdmin:           perms.IsAdmin,
			CanEdit:           perms.CanEdit,
			CanDelete:         perms.CanDelete,
			CanAddUser:        perms.CanAddUser,
			IsCommunityMember: perms.IsCommunityMember,
		}).Error
	if err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to update permissions: %w", err))
	}
	return s.Get(ctx, id)
}

// Delete removes a user along with their ratings, watchlist and notifications.
func (s *Service) Delete(ctx context.Context, actor *models.User, id uint) error {
	if err := Require(actor, PermDelete); err != nil {
		return err
	}
	if actor.ID == id {
		return apperr.Validation("you cannot delete your own account")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{&models.Rating{}, &models.WatchlistEntry{}, &models.Notification{}} {
			if err := tx.Unscoped().Where("user_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.User{}, id).Error
	})
	if err != nil {
		return apperr.DataAccess(fmt.Errorf("failed to delete user: %w", err))
	}
	return nil
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !VerifyPassword(u.Password, current) {
		return apperr.BadCredentials("current password is wrong")
	}
	if len(next) < s.minPasswordSize {
		return apperr.Validation(fmt.Sprintf("password must be at least %d characters", s.minPasswordSize))
	}
	hash, err := HashPassword(next)
	if err != nil {
		return apperr.Validation(err.Error())
	}
	if err := s.db.WithContext(ctx).Model(u).Update("password", hash).Error; err != nil {
		return apperr.DataAccess(fmt.Errorf("failed to update password: %w", err))
	}
	return nil
}

// EnsureAdmin creates the bootstrap administrator when no user of that name
// exists yet.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to look up admin: %w", err)
	}
	if count > 0 {
		return nil
	}
	_, err := s.create(ctx, RegisterInput{Username: username, Password: password}, Permissions{
		IsAdmin:    true,
		CanEdit:    true,
		CanDelete:  true,
		CanAddUser: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	return nil
}

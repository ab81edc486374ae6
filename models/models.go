package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Anime is a catalog item. AverageRating and RatingCount are derived from the
// ratings table and are only written by the rating aggregator.
type Anime struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"size:150;not null;index" json:"name"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	CoverImage    string    `gorm:"size:200;not null" json:"cover_image"`
	ReleaseYear   *int      `gorm:"index" json:"release_year,omitempty"`
	Status        string    `gorm:"size:50;index" json:"status,omitempty"` // "Devam Ediyor", "Bitti"
	Type          string    `gorm:"size:50;index" json:"type,omitempty"`   // "TV", "Film", "OVA"
	AverageRating float64   `gorm:"not null;default:0;index" json:"average_rating"`
	RatingCount   int       `gorm:"not null;default:0" json:"rating_count"`
	Genres        []Genre   `gorm:"many2many:anime_genres;" json:"genres,omitempty"`
	Episodes      []Episode `gorm:"constraint:OnDelete:CASCADE;" json:"episodes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// GenreNames returns the names of the attached genres.
func (a Anime) GenreNames() []string {
	names := make([]string, 0, len(a.Genres))
	for _, g := range a.Genres {
		names = append(names, g.Name)
	}
	return names
}

type Genre struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:50;uniqueIndex;not null" json:"name"`
}

type Episode struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AnimeID   uint      `gorm:"not null;index" json:"anime_id"`
	Number    int       `gorm:"not null;index" json:"number"`
	Sources   string    `gorm:"type:text;not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// SourceList splits the comma separated sources column.
func (e Episode) SourceList() []string {
	var out []string
	for _, s := range strings.Split(e.Sources, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Rating is one score per (user, anime). The unique index backs the upsert in
// lib/rating.
type Rating struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_rating_user_anime;index" json:"user_id"`
	AnimeID   uint      `gorm:"not null;uniqueIndex:idx_rating_user_anime;index" json:"anime_id"`
	Score     int       `gorm:"not null;check:score >= 1 AND score <= 5" json:"score"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Anime     *Anime    `gorm:"constraint:OnDelete:CASCADE;" json:"anime,omitempty"`
}

type User struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Username          string     `gorm:"size:80;uniqueIndex;not null" json:"username"`
	Email             *string    `gorm:"size:120;uniqueIndex" json:"email,omitempty"`
	Password          string     `gorm:"size:200;not null" json:"-"`
	IsAdmin           bool       `gorm:"default:false" json:"is_admin"`
	CanEdit           bool       `gorm:"default:false" json:"can_edit"`
	CanDelete         bool       `gorm:"default:false" json:"can_delete"`
	CanAddUser        bool       `gorm:"default:false" json:"can_add_user"`
	IsCommunityMember bool       `gorm:"default:false" json:"is_community_member"`
	CreatedAt         time.Time  `json:"created_at"`
	LastLoginAt       *time.Time `json:"last_login_at,omitempty"`
}

// IsStaff reports whether the user may enter the back office at all.
func (u *User) IsStaff() bool {
	return u.IsAdmin || u.CanEdit || u.CanDelete || u.CanAddUser
}

type WatchlistEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_watchlist_user_anime" json:"user_id"`
	AnimeID   uint      `gorm:"not null;uniqueIndex:idx_watchlist_user_anime;index" json:"anime_id"`
	CreatedAt time.Time `json:"created_at"`
	Anime     *Anime    `gorm:"constraint:OnDelete:CASCADE;" json:"anime,omitempty"`
}

type Notification struct {
	gorm.Model
	UserID  uint   `gorm:"not null;index" json:"user_id"`
	Message string `gorm:"size:255;not null" json:"message"`
	Link    string `gorm:"size:255" json:"link"`
	IsRead  bool   `gorm:"default:false;index" json:"is_read"`
}

type News struct {
	gorm.Model
	Title    string `gorm:"size:200;not null" json:"title"`
	Content  string `gorm:"type:text;not null" json:"content"`
	ImageURL string `gorm:"size:255" json:"image_url"`
	IsPinned bool   `gorm:"default:false;index" json:"is_pinned"`
	AuthorID uint   `json:"author_id"`
}

type Event struct {
	gorm.Model
	Title       string     `gorm:"size:200;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Location    string     `gorm:"size:200" json:"location"`
	StartTime   time.Time  `gorm:"not null;index" json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
}

// CommunityMember is a membership application. PasswordHash is copied onto the
// user account when the application is approved.
type CommunityMember struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Username         string     `gorm:"size:80;uniqueIndex;not null" json:"username"`
	PasswordHash     string     `gorm:"size:200;not null" json:"-"`
	Email            string     `gorm:"size:120;uniqueIndex;not null" json:"email"`
	Name             string     `gorm:"size:80;not null" json:"name"`
	Surname          string     `gorm:"size:80;not null" json:"surname"`
	PlaceOfBirth     string     `gorm:"size:100" json:"place_of_birth"`
	DateOfBirth      time.Time  `json:"date_of_birth"`
	CurrentResidence string     `gorm:"size:100" json:"current_residence"`
	StudentID        string     `gorm:"size:20;uniqueIndex;not null" json:"student_id"`
	PhoneNumber      string     `gorm:"size:13" json:"phone_number"`
	StudentClass     string     `gorm:"size:20" json:"student_class"`
	Faculty          string     `gorm:"size:120" json:"faculty"`
	Department       string     `gorm:"size:120" json:"department"`
	PreferredUnits   string     `gorm:"size:255" json:"preferred_units"`
	IsApproved       bool       `gorm:"default:false;index" json:"is_approved"`
	RegistrationDate time.Time  `gorm:"autoCreateTime" json:"registration_date"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty"`
}

type CommunityInfo struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:200" json:"title"`
	Content   string    `gorm:"type:text" json:"content"`
	ImageURL  string    `gorm:"size:255" json:"image_url"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ForumCategory struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	Name        string        `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string        `gorm:"size:255" json:"description"`
	Threads     []ForumThread `gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE;" json:"threads,omitempty"`
}

type ForumThread struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	Title        string      `gorm:"size:200;not null" json:"title"`
	Content      string      `gorm:"type:text;not null" json:"content"`
	UserID       uint        `gorm:"not null" json:"user_id"`
	UserUsername string      `gorm:"size:80;not null" json:"user_username"`
	CategoryID   uint        `gorm:"not null;index" json:"category_id"`
	CreatedAt    time.Time   `gorm:"index" json:"created_at"`
	Posts        []ForumPost `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE;" json:"posts,omitempty"`
}

type ForumPost struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	UserID       uint      `gorm:"not null" json:"user_id"`
	UserUsername string    `gorm:"size:80;not null" json:"user_username"`
	ThreadID     uint      `gorm:"not null;index" json:"thread_id"`
	CreatedAt    time.Time `json:"created_at"`
}

type ActivityLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Action      string    `gorm:"size:50;not null;index" json:"action"`
	Description string    `gorm:"type:text;not null" json:"description"`
	UserID      *uint     `gorm:"index" json:"user_id,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// All lists every model in migration order.
func All() []any {
	return []any{
		&Genre{},
		&Anime{},
		&Episode{},
		&User{},
		&Rating{},
		&WatchlistEntry{},
		&Notification{},
		&News{},
		&Event{},
		&CommunityMember{},
		&CommunityInfo{},
		&ForumCategory{},
		&ForumThread{},
		&ForumPost{},
		&ActivityLog{},
	}
}

// Package catalog serves and curates the anime catalog: anime, genres and
// episodes.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/icco/animeportal/lib/apperr"
	"github.com/icco/animeportal/lib/cache"
	"github.com/icco/animeportal/lib/validation"
	"github.com/icco/animeportal/models"
	"gorm.io/gorm"
)

var (
	Statuses = []string{"Devam Ediyor", "Bitti"}
	Types    = []string{"TV", "Film", "OVA"}
)

// EpisodeNotifier is told about new episodes inside the insert transaction.
type EpisodeNotifier interface {
	NotifyNewEpisode(ctx context.Context, tx *gorm.DB, anime *models.Anime, ep *models.Episode) error
}

type Service struct {
	db        *gorm.DB
	cache     *cache.Cache
	notifier  EpisodeNotifier
	validator *validation.Validator
	reserved  []string
	logger    *slog.Logger
}

func NewService(db *gorm.DB, c *cache.Cache, notifier EpisodeNotifier, v *validation.Validator, reserved []string, logger *slog.Logger) *Service {
	return &Service{
		db:        db,
		cache:     c,
		notifier:  notifier,
		validator: v,
		reserved:  reserved,
		logger:    logger,
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidateCatalog(ctx)
	}
}

func (s *Service) GetAnime(ctx context.Context, id uint) (*models.Anime, error) {
	var a models.Anime
	err := s.db.WithContext(ctx).
		Preload("Genres", func(db *gorm.DB) *gorm.DB { return db.Order("genres.name") }).
		Preload("Episodes", func(db *gorm.DB) *gorm.DB { return db.Order("episodes.number") }).
		First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("anime not found")
	}
	if err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to load anime: %w", err))
	}
	return &a, nil
}

// Latest returns the n most recently added anime.
func (s *Service) Latest(ctx context.Context, n int) ([]models.Anime, error) {
	return cache.Remember(s.cache, fmt.Sprintf("%slatest:%d", cache.CatalogPrefix, n), func() ([]models.Anime, error) {
		var items []models.Anime
		err := s.db.WithContext(ctx).Preload("Genres").Order("created_at DESC, id DESC").Limit(n).Find(&items).Error
		if err != nil {
			return nil, apperr.DataAccess(fmt.Errorf("failed to load latest anime: %w", err))
		}
		return items, nil
	})
}

// ByGenreName returns up to n anime carrying the named genre, newest first.
// Used for the editor's pick and hero banner rows.
func (s *Service) ByGenreName(ctx context.Context, name string, n int) ([]models.Anime, error) {
	return cache.Remember(s.cache, fmt.Sprintf("%sgenre:%s:%d", cache.CatalogPrefix, name, n), func() ([]models.Anime, error) {
		tagged := s.db.Table("anime_genres").
			Select("anime_genres.anime_id").
			Joins("JOIN genres ON genres.id = anime_genres.genre_id").
			Where("genres.name = ?", name)

		var items []models.Anime
		err := s.db.WithContext(ctx).Preload("Genres").
			Where("id IN (?)", tagged).
			Order("created_at DESC, id DESC").
			Limit(n).
			Find(&items).Error
		if err != nil {
			return nil, apperr.DataAccess(fmt.Errorf("failed to load anime for genre %s: %w", name, err))
		}
		return items, nil
	})
}

// Random returns n random anime. It is never cached.
func (s *Service) Random(ctx context.Context, n int) ([]models.Anime, error) {
	var items []models.Anime
	if err := s.db.WithContext(ctx).Preload("Genres").Order("RANDOM()").Limit(n).Find(&items).Error; err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to load random anime: %w", err))
	}
	return items, nil
}

// Genres returns every genre including the reserved ones.
func (s *Service) Genres(ctx context.Context) ([]models.Genre, error) {
	var genres []models.Genre
	if err := s.db.WithContext(ctx).Order("name").Find(&genres).Error; err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to list genres: %w", err))
	}
	return genres, nil
}

// PublicGenres returns the genres visitors may browse by.
func (s *Service) PublicGenres(ctx context.Context) ([]models.Genre, error) {
	return cache.Remember(s.cache, cache.CatalogPrefix+"genres", func() ([]models.Genre, error) {
		q := s.db.WithContext(ctx).Order("name")
		if len(s.reserved) > 0 {
			q = q.Where("name NOT IN ?", s.reserved)
		}
		var genres []models.Genre
		if err := q.Find(&genres).Error; err != nil {
			return nil, apperr.DataAccess(fmt.Errorf("failed to list genres: %w", err))
		}
		return genres, nil
	})
}

// FilterPublicGenres drops reserved genres from a list.
func (s *Service) FilterPublicGenres(genres []models.Genre) []models.Genre {
	out := make([]models.Genre, 0, len(genres))
	for _, g := range genres {
		if !s.isReserved(g.Name) {
			out = append(out, g)
		}
	}
	return out
}

func (s *Service) isReserved(name string) bool {
	for _, r := range s.reserved {
		if r == name {
			return true
		}
	}
	return false
}

func (s *Service) CreateGenre(ctx context.Context, name string) (*models.Genre, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 50 {
		return nil, apperr.Validation("genre name must be between 1 and 50 characters")
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Genre{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to check genre: %w", err))
	}
	if count > 0 {
		return nil, apperr.AlreadyExists("genre already exists")
	}

	g := &models.Genre{Name: name}
	if err := s.db.WithContext(ctx).Create(g).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.AlreadyExists("genre already exists")
		}
		return nil, apperr.DataAccess(fmt.Errorf("failed to create genre: %w", err))
	}
	s.invalidate(ctx)
	return g, nil
}

// DeleteGenre removes a genre and untags every anime carrying it.
func (s *Service) DeleteGenre(ctx context.Context, id uint) (*models.Genre, error) {
	var g models.Genre
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&g, id).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM anime_genres WHERE genre_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&g).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("genre not found")
	}
	if err != nil {
		return nil, apperr.DataAccess(fmt.Errorf("failed to delete genre: %w", err))
	}
	s.invalidate(ctx)
	return &g, nil
}

// MatchGenres picks the existing genres whose names match candidates,
// ignoring case. Reserved genres are never suggested.
func (s *Service) MatchGenres(ctx context.Context, candidates []string) ([]models.Genre, error) {
	genres, err := s.PublicGenres(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Genre
	seen := map[uint]bool{}
	for _, c := range candidates {
		for _, g := range genres {
			if strings.EqualFold(strings.TrimSpace(c), g.Name) && !seen[g.ID] {
				out = append(out, g)
				seen[g.ID] = true
			}
		}
	}
	return out, nil
}

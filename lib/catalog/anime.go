package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/icco/animeportal/lib/apperr"
	"github.com/icco/animeportal/lib/cache"
	"github.com/icco/animeportal/lib/validation"
	"github.com/icco/animeportal/models"
	"gorm.io/gorm"
)

// Sort orders accepted by ListAnime.
const (
	SortNewest = "newest"
	SortName   = "name"
	SortRating = "rating"
)

// Filter narrows ListAnime. Zero fields do not filter.
type Filter struct {
	Query   string `json:"q,omitempty"`
	GenreID uint   `json:"genre,omitempty"`
	Year    int    `json:"year,omitempty"`
	Status  string `json:"status,omitempty"`
	Type    string `json:"type,omitempty"`
	Sort    string `json:"sort,omitempty"`
}

// Page is one page of a listing.
type Page struct {
	Items []models.Anime `json:"items"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
	Pages int            `json:"pages"`
}

// AnimeInput is the editable part of an anime.
type AnimeInput struct {
	Name        string `json:"name" validate:"required,max=150"`
	Description string `json:"description" validate:"required"`
	CoverImage  string `json:"cover_image" validate:"required,max=200"`
	ReleaseYear *int   `json:"release_year" validate:"omitempty,gte=1900,lte=2100"`
	Status      string `json:"status"`
	Type        string `json:"type"`
	GenreIDs    []uint `json:"genre_ids"`
}

// ListAnime returns one page of anime matching f.
func (s *Service) ListAnime(ctx context.Context, f Filter, page, size int) (*Page, error) {
	if err := validation.ValidatePagination(page, size); err != nil {
		return nil, err
	}
	f.Query = strings.TrimSpace(f.Query)

	keyData, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode filter: %w", err)
	}
	key := fmt.Sprintf("%slist:%s:%d:%d", cache.CatalogPrefix, keyData, page, size)

	return cache.Remember(s.cache, key, func() (*Page, error) {
		q := s.db.WithContext(ctx).Model(&models.Anime{})
		if f.Query != "" {
			q = q.Where(`LOWER(name) LIKE ? ESCAPE '\'`, validation.LikePattern(f.Query))
		}
		if f.GenreID != 0 {
			q = q.Where("id IN (?)", s.db.Table("anime_genres").Select("anime_id").Where("genre_id = ?", f.GenreID))
		}
		if f.Year != 0 {
			q = q.Where("release_year = ?", f.Year)
		}
		if f.Status != "" {
			q = q.Where("status = ?", f.Status)
		}
		if f.Type != "" {
			q = q.Where("type = ?", f.Type)
		}

		base := q.Session(&gorm.Session{})

		var total int64
		if err := base.Count(&total).Error; err != nil {
			return nil, apperr.DataAccess(fmt.Errorf("failed to count anime: %w", err))
		}

		order := "created_at DESC, id DESC"
		switch f.Sort {
		case SortName:
			order = "name ASC, id ASC"
		case SortRating:
			order = "average_rating DESC, rating_count DESC, id ASC"
		}

		var items []models.Anime
		if err := base.Order(order).Preload("Genres").Offset((page - 1) * size).Limit(size).Find(&items).Error; err != nil {
			return nil, apperr.DataAccess(fmt.Errorf("failed to list anime: %w", err))
		}

		return &Page{
			Items: items,
			Total: total,
			Page:  page,
			Size:  size,
			Pages: int((total + int64(size) - 1) / int64(size)),
		}, nil
	})
}

func (s *Service) validateAnime(in *AnimeInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.CoverImage = strings.TrimSpace(in.CoverImage)
	if err := s.validator.Validate(in); err != nil {
		return err
	}
	if in.Status != "" && !slices.Contains(Statuses, in.Status) {
		return apperr.Validation("status must be one of: " + strings.Join(Statuses, ", "))
	}
	if in.Type != "" && !slices.Contains(Types, in.Type) {
		return apperr.Validation("type must be one of: " + strings.Join(Types, ", "))
	}
	return nil
}

func (s *Service) loadGenres(tx *gorm.DB, ids []uint) ([]models.Genre, error) {
	if len(ids) == 0 {
		return []models.Genre{}, nil
	}
	var genres []models.Genre
	if err := tx.Where("id IN ?", ids).Find(&genres).Error; err != nil {
		return nil, err
	}
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	if len(genres) != len(slices.Compact(sorted)) {
		return nil, apperr.Validation("unknown genre id")
	}
	return genres, nil
}

// CreateAnime adds an anime with its genres.
func (s *Service) CreateAnime(ctx context.Context, in AnimeInput) (*models.Anime, error) {
	if err := s.validateAnime(&in); err != nil {
		return nil, err
	}

	a := models.Anime{
		Name:        in.Name,
		Description: in.Description,
		CoverImage:  in.CoverImage,
		ReleaseYear: in.ReleaseYear,
		Status:      in.Status,
		Type:        in.Type,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		genres, err := s.loadGenres(tx, in.GenreIDs)
		if err != nil {
			return err
		}
		a.Genres = genres
		return tx.Create(&a).Error
	})
	if err != nil {
		return nil, wrapWrite(err, "anime", "create")
	}

	s.invalidate(ctx)
	return &a, nil
}

// UpdateAnime replaces the editable fields and the genre set. Rating
// aggregates are left alone.
func (s *Service) UpdateAnime(ctx context.Context, id uint, in AnimeInput) (*models.Anime, error) {
	if err := s.validateAnime(&in); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Anime
		if err := tx.First(&a, id).Error; err != nil {
			return err
		}
		genres, err := s.loadGenres(tx, in.GenreIDs)
		if err != nil {
			return err
		}
		err = tx.Model(&a).Select("name", "description", "cover_image", "release_year", "status", "type").
			Updates(models.Anime{
				Name:        in.Name,
				Description: in.Description,
				CoverImage:  in.CoverImage,
				ReleaseYear: in.ReleaseYear,
				Status:      in.Status,
				Type:        in.Type,
			}).Error
		if err != nil {
			return err
		}
		return tx.Model(&a).Association("Genres").Replace(genres)
	})
	if err != nil {
		return nil, wrapWrite(err, "anime", "update")
	}

	s.invalidate(ctx)
	return s.GetAnime(ctx, id)
}

// DeleteAnime removes an anime with its episodes, ratings and watchlist rows.
func (s *Service) DeleteAnime(ctx context.Context, id uint) (*models.Anime, error) {
	var a models.Anime
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&a, id).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM anime_genres WHERE anime_id = ?", id).Error; err != nil {
			return err
		}
		for _, m := range []any{&models.Episode{}, &models.Rating{}, &models.WatchlistEntry{}} {
			if err := tx.Where("anime_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&a).Error
	})
	if err != nil {
		return nil, wrapWrite(err, "anime", "delete")
	}

	s.invalidate(ctx)
	return &a, nil
}

// GetEpisode loads an episode and its anime with genres.
func (s *Service) GetEpisode(ctx context.Context, id uint) (*models.Episode, *models.Anime, error) {
	var ep models.Episode
	err := s.db.WithContext(ctx).First(&ep, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, apperr.NotFound("episode not found")
	}
	if err != nil {
		return nil, nil, apperr.DataAccess(fmt.Errorf("failed to load episode: %w", err))
	}

	var a models.Anime
	if err := s.db.WithContext(ctx).Preload("Genres").First(&a, ep.AnimeID).Error; err != nil {
		return nil, nil, apperr.DataAccess(fmt.Errorf("failed to load anime for episode: %w", err))
	}
	return &ep, &a, nil
}

// AddEpisode stores a new episode and tells the watchers of the anime.
func (s *Service) AddEpisode(ctx context.Context, animeID uint, number int, sources []string) (*models.Episode, error) {
	if number < 1 {
		return nil, apperr.Validation("episode number must be at least 1")
	}
	var clean []string
	for _, src := range sources {
		if src = strings.TrimSpace(src); src != "" {
			clean = append(clean, src)
		}
	}
	if len(clean) == 0 {
		return nil, apperr.Validation("at least one source is required")
	}

	ep := models.Episode{AnimeID: animeID, Number: number, Sources: strings.Join(clean, ",")}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Anime
		if err := tx.First(&a, animeID).Error; err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&models.Episode{}).Where("anime_id = ? AND number = ?", animeID, number).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperr.AlreadyExists(fmt.Sprintf("episode %d already exists", number))
		}
		if err := tx.Create(&ep).Error; err != nil {
			return err
		}
		if s.notifier != nil {
			return s.notifier.NotifyNewEpisode(ctx, tx, &a, &ep)
		}
		return nil
	})
	if err != nil {
		return nil, wrapWrite(err, "anime", "add episode to")
	}

	s.invalidate(ctx)
	return &ep, nil
}

func (s *Service) DeleteEpisode(ctx context.Context, id uint) (*models.Episode, error) {
	var ep models.Episode
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&ep, id).Error; err != nil {
			return err
		}
		return tx.Delete(&ep).Error
	})
	if err != nil {
		return nil, wrapWrite(err, "episode", "delete")
	}
	s.invalidate(ctx)
	return &ep, nil
}

// wrapWrite keeps domain errors, maps missing rows to NotFound and wraps the
// rest as data access failures.
func wrapWrite(err error, entity, action string) error {
	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(entity + " not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.AlreadyExists("already exists")
	default:
		return apperr.DataAccess(fmt.Errorf("failed to %s %s: %w", action, entity, err))
	}
}

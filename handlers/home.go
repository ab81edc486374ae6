package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/icco/animeportal/lib/metrics"
	"github.com/icco/animeportal/lib/session"
	"github.com/icco/animeportal/lib/validation"
	"github.com/icco/animeportal/models"
)

// Recommendation sources reported with the home payload.
const (
	SourceSession = "session"
	SourceHistory = "history"
	SourceNone    = "none"
)

// HomeData is the home page content.
type HomeData struct {
	User                 *models.User   `json:"user,omitempty"`
	Featured             []models.Anime `json:"featured"`
	Latest               []models.Anime `json:"latest"`
	EditorsPick          []models.Anime `json:"editors_pick"`
	Random               []models.Anime `json:"random"`
	Recommended          []models.Anime `json:"recommended"`
	RecommendationSource string         `json:"recommendation_source"`
	Genres               []models.Genre `json:"genres"`
	News                 []models.News  `json:"news"`
	Events               []models.Event `json:"events"`
}

func loadHome(ctx context.Context, s *Services) (*HomeData, error) {
	cfg := s.Config.Catalog
	user := CurrentUser(ctx)
	home := &HomeData{User: user}

	var err error
	if home.Latest, err = s.Catalog.Latest(ctx, cfg.LatestLimit); err != nil {
		return nil, err
	}
	if home.EditorsPick, err = s.Catalog.ByGenreName(ctx, cfg.EditorsPick, cfg.LatestLimit); err != nil {
		return nil, err
	}
	if home.Featured, err = s.Catalog.ByGenreName(ctx, cfg.Featured, 5); err != nil {
		return nil, err
	}
	if home.Random, err = s.Catalog.Random(ctx, cfg.RandomLimit); err != nil {
		return nil, err
	}
	if home.Genres, err = s.Catalog.PublicGenres(ctx); err != nil {
		return nil, err
	}

	views := session.FromContext(ctx).Affinity
	var userID *uint
	if user != nil {
		userID = &user.ID
	}
	if home.Recommended, err = s.Recommend.ForHome(ctx, views, userID); err != nil {
		return nil, err
	}
	switch {
	case !views.Empty():
		home.RecommendationSource = SourceSession
	case userID != nil:
		home.RecommendationSource = SourceHistory
	default:
		home.RecommendationSource = SourceNone
	}
	metrics.RecordRecommendation(home.RecommendationSource)

	// news and events are secondary; a failure leaves the sections empty
	if home.News, err = s.News.List(ctx, 5); err != nil {
		s.Logger.WarnContext(ctx, "Failed to load news for home", slog.Any("error", err))
	}
	if home.Events, err = s.News.Upcoming(ctx, 5); err != nil {
		s.Logger.WarnContext(ctx, "Failed to load events for home", slog.Any("error", err))
	}
	return home, nil
}

func HandleHome(s *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		home, err := loadHome(r.Context(), s)
		if err != nil {
			s.Logger.ErrorContext(r.Context(), "Failed to load home page", slog.Any("error", err))
			renderError(w, "We couldn't load the home page. Please try again later.", http.StatusInternalServerError)
			return
		}
		renderPage(w, "home.html", home)
	}
}

func HandleHomeAPI(s *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		home, err := loadHome(r.Context(), s)
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		validation.WriteJSON(w, http.StatusOK, home)
	}
}

package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/icco/animeportal/lib/affinity"
	"github.com/icco/animeportal/lib/apperr"
	"github.com/icco/animeportal/lib/catalog"
	"github.com/icco/animeportal/lib/metrics"
	"github.com/icco/animeportal/lib/rating"
	"github.com/icco/animeportal/lib/session"
	"github.com/icco/animeportal/lib/validation"
	"github.com/icco/animeportal/models"
)

type animeDetail struct {
	Anime     *models.Anime  `json:"anime"`
	Genres    []models.Genre `json:"genres"`
	UserScore int            `json:"user_score,omitempty"`
	Watching  bool           `json:"watching"`
}

func loadAnimeDetail(ctx context.Context, s *Services, id uint) (*animeDetail, error) {
	a, err := s.Catalog.GetAnime(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &animeDetail{Anime: a, Genres: s.Catalog.FilterPublicGenres(a.Genres)}
	if u := CurrentUser(ctx); u != nil {
		if d.UserScore, err = s.Ratings.UserScore(ctx, u.ID, id); err != nil {
			return nil, err
		}
		if d.Watching, err = s.Library.IsWatching(ctx, u.ID, id); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func HandleAnimePage(s *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			renderAppError(w, err)
			return
		}
		d, err := loadAnimeDetail(r.Context(), s, id)
		if err != nil {
			renderAppError(w, err)
			return
		}
		renderPage(w, "anime.html", d)
	}
}

func HandleGetAnime(s *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		d, err := loadAnimeDetail(r.Context(), s, id)
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		validation.WriteJSON(w, http.StatusOK, d)
	}
}

// HandleListAnime serves the filtered, paginated catalog.
func HandleListAnime(cat *catalog.Service, pageSize int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := catalog.Filter{
			Query:   q.Get("q"),
			GenreID: uint(queryInt(r, "genre", 0)),
			Year:    queryInt(r, "year", 0),
			Status:  q.Get("status"),
			Type:    q.Get("type"),
			Sort:    q.Get("sort"),
		}
		page, err := cat.ListAnime(r.Context(), f, queryInt(r, "page", 1), queryInt(r, "size", pageSize))
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		validation.WriteJSON(w, http.StatusOK, page)
	}
}

func HandleGenres(cat *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		genres, err := cat.PublicGenres(r.Context())
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		validation.WriteJSON(w, http.StatusOK, genres)
	}
}

type episodeView struct {
	Episode *models.Episode `json:"episode"`
	Sources []string        `json:"sources"`
	Anime   *models.Anime   `json:"anime"`
}

// viewEpisode loads an episode and counts the view towards the visitor's
// genre affinity. The session is saved before anything is written to w.
func viewEpisode(w http.ResponseWriter, r *http.Request, s *Services, reserved map[string]bool) (*episodeView, error) {
	id, err := idParam(r, "id")
	if err != nil {
		return nil, err
	}
	ep, a, err := s.Catalog.GetEpisode(r.Context(), id)
	if err != nil {
		return nil, err
	}

	// Each request works on its own copy of the session. Two views racing in
	// one session both start from the same counts and the last save wins.
	sess := session.FromContext(r.Context())
	sess.Affinity = affinity.RecordView(sess.Affinity, a.Genres, reserved)
	if err := s.Sessions.Save(r.Context(), w, sess); err != nil {
		s.Logger.WarnContext(r.Context(), "Failed to save session", slog.Any("error", err))
	}

	a.Genres = s.Catalog.FilterPublicGenres(a.Genres)
	return &episodeView{Episode: ep, Sources: ep.SourceList(), Anime: a}, nil
}

func HandleEpisodePage(s *Services) http.HandlerFunc {
	reserved := affinity.ReservedSet(s.Config.Catalog.ReservedGenres)
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := viewEpisode(w, r, s, reserved)
		if err != nil {
			renderAppError(w, err)
			return
		}
		renderPage(w, "episode.html", v)
	}
}

func HandleGetEpisode(s *Services) http.HandlerFunc {
	reserved := affinity.ReservedSet(s.Config.Catalog.ReservedGenres)
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := viewEpisode(w, r, s, reserved)
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		validation.WriteJSON(w, http.StatusOK, v)
	}
}

type rateRequest struct {
	Score json.RawMessage `json:"score"`
}

type rateResponse struct {
	Status string `json:"status"`
	rating.Result
}

// HandleRate stores the logged in user's score for an anime and answers with
// the fresh aggregate.
func HandleRate(ratings *rating.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r.Context())
		if user == nil {
			validation.WriteError(w, apperr.Unauthorized("login required"))
			return
		}
		animeID, err := idParam(r, "id")
		if err != nil {
			validation.WriteError(w, err)
			return
		}

		var req rateRequest
		if err := validation.DecodeJSON(r, &req); err != nil {
			validation.WriteError(w, apperr.InvalidScore("score is required"))
			return
		}
		score, err := rating.ParseScore(req.Score)
		if err != nil {
			validation.WriteError(w, err)
			return
		}

		res, err := ratings.SubmitScore(r.Context(), user.ID, animeID, score)
		metrics.RecordRating(err)
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		validation.WriteJSON(w, http.StatusOK, rateResponse{Status: "success", Result: res})
	}
}
